package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"authguard/internal/lockout"
	"authguard/internal/models"
	"authguard/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type userRepository struct {
	repository.BaseRepository
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

const userColumns = `
	id, name, email, password, role, is_email_verified,
	verification_token, verification_token_expires,
	reset_password_token, reset_password_expires,
	two_factor_secret, is_two_factor_enabled,
	login_attempts, lock_until, last_login,
	profile, preferences, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user        models.User
		profile     []byte
		preferences []byte
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsEmailVerified,
		&user.VerificationTokenHash,
		&user.VerificationTokenExpires,
		&user.ResetPasswordTokenHash,
		&user.ResetPasswordExpires,
		&user.TwoFactorSecret,
		&user.IsTwoFactorEnabled,
		&user.LoginAttempts,
		&user.LockUntil,
		&user.LastLogin,
		&profile,
		&preferences,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Profile = models.DefaultProfile()
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &user.Profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	user.Preferences = models.DefaultPreferences()
	if len(preferences) > 0 {
		if err := json.Unmarshal(preferences, &user.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	profile, err := json.Marshal(user.Profile)
	if err != nil {
		return err
	}
	preferences, err := json.Marshal(user.Preferences)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (
			id, name, email, password, role, is_email_verified,
			verification_token, verification_token_expires,
			profile, preferences, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11
		)
		RETURNING created_at, updated_at`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = models.NormalizeEmail(user.Email)

	err = r.DB().QueryRowContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsEmailVerified,
		user.VerificationTokenHash,
		user.VerificationTokenExpires,
		profile,
		preferences,
		time.Now().UTC(),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.DB().ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(result, repository.ErrUserNotFound)
}

func (r *userRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(r.DB().QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = $1", models.NormalizeEmail(email))
}

func (r *userRepository) GetByVerificationTokenHash(ctx context.Context, hash string) (*models.User, error) {
	return r.getOne(ctx, "verification_token = $1", hash)
}

func (r *userRepository) GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	return r.getOne(ctx, "reset_password_token = $1", hash)
}

func (r *userRepository) buildWhere(filter repository.UserFilter) *whereClause {
	w := &whereClause{}
	if filter.Role != nil {
		w.add("role = ?", *filter.Role)
	}
	if filter.LockedAt != nil {
		w.add("lock_until > ?", *filter.LockedAt)
	}
	if filter.CreatedAfter != nil {
		w.add("created_at >= ?", *filter.CreatedAfter)
	}
	return w
}

func (r *userRepository) List(ctx context.Context, filter repository.UserFilter) ([]models.User, int, error) {
	w := r.buildWhere(filter)

	total, err := r.count(ctx, w)
	if err != nil {
		return nil, 0, err
	}

	query, params := w.page(`SELECT `+userColumns+` FROM users`+w.String()+` ORDER BY created_at DESC`, filter.Page)
	rows, err := r.DB().QueryContext(ctx, query, params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) count(ctx context.Context, w *whereClause) (int, error) {
	var n int
	err := r.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+w.String(), w.params...).Scan(&n)
	return n, err
}

func (r *userRepository) Count(ctx context.Context, filter repository.UserFilter) (int, error) {
	return r.count(ctx, r.buildWhere(filter))
}

func (r *userRepository) Refs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserRef, error) {
	refs := make(map[uuid.UUID]models.UserRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	rows, err := r.DB().QueryContext(ctx,
		`SELECT id, name, email FROM users WHERE id = ANY($1::uuid[])`,
		pq.Array(strIDs),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  uuid.UUID
			ref models.UserRef
		)
		if err := rows.Scan(&id, &ref.Name, &ref.Email); err != nil {
			return nil, err
		}
		refs[id] = ref
	}
	return refs, rows.Err()
}

func (r *userRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	return expectRow(result, repository.ErrUserNotFound)
}

func (r *userRepository) UpdateLoginState(ctx context.Context, id uuid.UUID, state lockout.State, lastLogin *time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET login_attempts = $1,
			lock_until = $2,
			last_login = COALESCE($3, last_login),
			updated_at = NOW()
		WHERE id = $4`,
		state.LoginAttempts, state.LockUntil, lastLogin, id,
	)
}

func (r *userRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, hash string, expires time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET verification_token = $1, verification_token_expires = $2, updated_at = NOW()
		WHERE id = $3`,
		hash, expires, id,
	)
}

func (r *userRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `
		UPDATE users
		SET is_email_verified = true,
			verification_token = NULL,
			verification_token_expires = NULL,
			updated_at = NOW()
		WHERE id = $1`,
		id,
	)
}

func (r *userRepository) SetResetToken(ctx context.Context, id uuid.UUID, hash string, expires time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET reset_password_token = $1, reset_password_expires = $2, updated_at = NOW()
		WHERE id = $3`,
		hash, expires, id,
	)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	return r.exec(ctx, `
		UPDATE users
		SET password = $1,
			reset_password_token = NULL,
			reset_password_expires = NULL,
			updated_at = NOW()
		WHERE id = $2`,
		hashedPassword, id,
	)
}

func (r *userRepository) SetTwoFactor(ctx context.Context, id uuid.UUID, secret *string, enabled bool) error {
	return r.exec(ctx, `
		UPDATE users
		SET two_factor_secret = $1, is_two_factor_enabled = $2, updated_at = NOW()
		WHERE id = $3`,
		secret, enabled, id,
	)
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name string, profile models.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return r.exec(ctx, `
		UPDATE users SET name = $1, profile = $2, updated_at = NOW() WHERE id = $3`,
		name, data, id,
	)
}

func (r *userRepository) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return r.exec(ctx, `
		UPDATE users SET preferences = $1, updated_at = NOW() WHERE id = $2`,
		data, id,
	)
}

func (r *userRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	return r.exec(ctx, `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`, role, id)
}

func (r *userRepository) ClearExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE users
		SET verification_token = CASE WHEN verification_token_expires < $1 THEN NULL ELSE verification_token END,
			verification_token_expires = CASE WHEN verification_token_expires < $1 THEN NULL ELSE verification_token_expires END,
			reset_password_token = CASE WHEN reset_password_expires < $1 THEN NULL ELSE reset_password_token END,
			reset_password_expires = CASE WHEN reset_password_expires < $1 THEN NULL ELSE reset_password_expires END
		WHERE verification_token_expires < $1 OR reset_password_expires < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func expectRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

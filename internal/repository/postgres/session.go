package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"authguard/internal/models"
	"authguard/internal/repository"

	"github.com/google/uuid"
)

type sessionRepository struct {
	repository.BaseRepository
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sql.DB) repository.SessionRepository {
	return &sessionRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

const sessionColumns = `
	id, user_id, token, refresh_token, ip_address, user_agent,
	device, location, expires_at, last_active_at, is_active, created_at`

func scanSession(row rowScanner) (*models.UserSession, error) {
	var (
		s        models.UserSession
		device   []byte
		location []byte
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Token,
		&s.RefreshToken,
		&s.IPAddress,
		&s.UserAgent,
		&device,
		&location,
		&s.ExpiresAt,
		&s.LastActiveAt,
		&s.IsActive,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(device) > 0 {
		if err := json.Unmarshal(device, &s.Device); err != nil {
			return nil, err
		}
	}
	if s.Location, err = unmarshalLocation(location); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *models.UserSession) error {
	device, err := json.Marshal(session.Device)
	if err != nil {
		return err
	}
	location, err := marshalLocation(session.Location)
	if err != nil {
		return err
	}

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err = r.DB().ExecContext(ctx, `
		INSERT INTO user_sessions (
			id, user_id, token, refresh_token, ip_address, user_agent,
			device, location, expires_at, last_active_at, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		session.ID,
		session.UserID,
		session.Token,
		session.RefreshToken,
		session.IPAddress,
		session.UserAgent,
		device,
		location,
		session.ExpiresAt,
		session.LastActiveAt,
		session.IsActive,
		session.CreatedAt,
	)
	return mapError(err)
}

func (r *sessionRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.UserSession, error) {
	s, err := scanSession(r.DB().QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE `+where, arg))
	if err == sql.ErrNoRows {
		return nil, repository.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserSession, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *sessionRepository) GetByToken(ctx context.Context, tokenHash string) (*models.UserSession, error) {
	return r.getOne(ctx, "token = $1", tokenHash)
}

func (r *sessionRepository) GetByRefreshToken(ctx context.Context, refreshHash string) (*models.UserSession, error) {
	return r.getOne(ctx, "refresh_token = $1", refreshHash)
}

func (r *sessionRepository) Touch(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := r.DB().ExecContext(ctx,
		`UPDATE user_sessions SET last_active_at = $1 WHERE token = $2 AND is_active = true`,
		at, tokenHash,
	)
	return err
}

func (r *sessionRepository) Deactivate(ctx context.Context, id uuid.UUID) (*models.UserSession, error) {
	s, err := scanSession(r.DB().QueryRowContext(ctx,
		`UPDATE user_sessions SET is_active = false WHERE id = $1 RETURNING `+sessionColumns, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sessionRepository) DeactivateByToken(ctx context.Context, tokenHash string) error {
	_, err := r.DB().ExecContext(ctx,
		`UPDATE user_sessions SET is_active = false WHERE token = $1`, tokenHash)
	return err
}

func (r *sessionRepository) DeactivateAllForUser(ctx context.Context, userID uuid.UUID, exceptTokenHash string) (int64, error) {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE user_sessions
		SET is_active = false
		WHERE user_id = $1 AND is_active = true AND ($2 = '' OR token <> $2)`,
		userID, exceptTokenHash,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.DB().ExecContext(ctx,
		`UPDATE user_sessions SET is_active = false WHERE is_active = true AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepository) Rotate(ctx context.Context, id uuid.UUID, tokenHash, refreshHash string, expiresAt, at time.Time) error {
	var expires *time.Time
	if !expiresAt.IsZero() {
		expires = &expiresAt
	}
	result, err := r.DB().ExecContext(ctx, `
		UPDATE user_sessions
		SET token = $1,
			refresh_token = COALESCE(NULLIF($2, ''), refresh_token),
			expires_at = COALESCE($3, expires_at),
			last_active_at = $4
		WHERE id = $5`,
		tokenHash, refreshHash, expires, at, id,
	)
	if err != nil {
		return mapError(err)
	}
	return expectRow(result, repository.ErrSessionNotFound)
}

func (r *sessionRepository) buildWhere(filter repository.SessionFilter) *whereClause {
	w := &whereClause{}
	if filter.UserID != nil {
		w.add("user_id = ?", *filter.UserID)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	return w
}

func (r *sessionRepository) List(ctx context.Context, filter repository.SessionFilter) ([]models.UserSession, int, error) {
	w := r.buildWhere(filter)

	total, err := r.count(ctx, w)
	if err != nil {
		return nil, 0, err
	}

	query, params := w.page(`SELECT `+sessionColumns+` FROM user_sessions`+w.String()+` ORDER BY last_active_at DESC`, filter.Page)
	rows, err := r.DB().QueryContext(ctx, query, params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sessions := make([]models.UserSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (r *sessionRepository) count(ctx context.Context, w *whereClause) (int, error) {
	var n int
	err := r.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM user_sessions`+w.String(), w.params...).Scan(&n)
	return n, err
}

func (r *sessionRepository) Count(ctx context.Context, filter repository.SessionFilter) (int, error) {
	return r.count(ctx, r.buildWhere(filter))
}

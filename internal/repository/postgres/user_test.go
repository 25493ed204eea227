package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"authguard/internal/lockout"
	"authguard/internal/models"
	"authguard/internal/repository"
	"authguard/internal/repository/postgres"
	"authguard/internal/testutil/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := db.LoadTestConfig(t)
	return db.SetupTestDB(t, &cfg.Database)
}

func createUser(t *testing.T, repo repository.UserRepository, email string) *models.User {
	t.Helper()
	user := &models.User{
		Name:         "user" + uuid.NewString()[:8],
		Email:        email,
		PasswordHash: "hashed",
		Role:         models.RoleUser,
		Profile:      models.DefaultProfile(),
		Preferences:  models.DefaultPreferences(),
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestUserRepository_Create(t *testing.T) {
	repo := postgres.NewUserRepository(setupDB(t))
	ctx := context.Background()

	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "Success", email: "Test@Example.com"},
		{name: "Duplicate Email", email: "test@example.com", wantErr: true},
		{name: "Second User", email: "other@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &models.User{
				Name:         "tester",
				Email:        tt.email,
				PasswordHash: "hashed",
				Role:         models.RoleUser,
				Profile:      models.DefaultProfile(),
				Preferences:  models.DefaultPreferences(),
			}
			err := repo.Create(ctx, user)
			if tt.wantErr {
				var dup *repository.DuplicateError
				require.ErrorAs(t, err, &dup)
				assert.Equal(t, "email", dup.Field)
				assert.ErrorIs(t, err, repository.ErrConflict)
				return
			}

			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, user.ID)
			require.False(t, user.CreatedAt.IsZero())

			saved, err := repo.GetByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, models.NormalizeEmail(tt.email), saved.Email)
			assert.Equal(t, "en", saved.Profile.PreferredLanguage)
			assert.True(t, saved.Preferences.EmailNotifications)
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	repo := postgres.NewUserRepository(setupDB(t))
	ctx := context.Background()
	user := createUser(t, repo, "lookup@example.com")

	found, err := repo.GetByEmail(ctx, "  LOOKUP@example.com ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_LoginState(t *testing.T) {
	repo := postgres.NewUserRepository(setupDB(t))
	ctx := context.Background()
	user := createUser(t, repo, "lock@example.com")

	until := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateLoginState(ctx, user.ID, lockout.State{LoginAttempts: 5, LockUntil: &until}, nil))

	saved, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, saved.LoginAttempts)
	require.NotNil(t, saved.LockUntil)
	assert.True(t, until.Equal(*saved.LockUntil))
	assert.Nil(t, saved.LastLogin)

	now := time.Now().UTC()
	locked, err := repo.Count(ctx, repository.UserFilter{LockedAt: &now})
	require.NoError(t, err)
	assert.Equal(t, 1, locked)

	require.NoError(t, repo.UpdateLoginState(ctx, user.ID, lockout.State{}, &now))
	saved, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, saved.LoginAttempts)
	assert.Nil(t, saved.LockUntil)
	assert.NotNil(t, saved.LastLogin)

	err = repo.UpdateLoginState(ctx, uuid.New(), lockout.State{}, nil)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_Tokens(t *testing.T) {
	repo := postgres.NewUserRepository(setupDB(t))
	ctx := context.Background()
	user := createUser(t, repo, "tokens@example.com")

	expires := time.Now().Add(time.Hour)
	require.NoError(t, repo.SetVerificationToken(ctx, user.ID, "verify-hash", expires))
	require.NoError(t, repo.SetResetToken(ctx, user.ID, "reset-hash", expires))

	found, err := repo.GetByVerificationTokenHash(ctx, "verify-hash")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	found, err = repo.GetByResetTokenHash(ctx, "reset-hash")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	require.NoError(t, repo.MarkEmailVerified(ctx, user.ID))
	_, err = repo.GetByVerificationTokenHash(ctx, "verify-hash")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new-hash"))
	_, err = repo.GetByResetTokenHash(ctx, "reset-hash")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	saved, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, saved.IsEmailVerified)
	assert.Equal(t, "new-hash", saved.PasswordHash)
}

func TestUserRepository_ClearExpiredTokens(t *testing.T) {
	repo := postgres.NewUserRepository(setupDB(t))
	ctx := context.Background()
	stale := createUser(t, repo, "stale@example.com")
	fresh := createUser(t, repo, "fresh@example.com")

	require.NoError(t, repo.SetVerificationToken(ctx, stale.ID, "stale-hash", time.Now().Add(-48*time.Hour)))
	require.NoError(t, repo.SetVerificationToken(ctx, fresh.ID, "fresh-hash", time.Now().Add(time.Hour)))

	n, err := repo.ClearExpiredTokens(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetByVerificationTokenHash(ctx, "stale-hash")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	_, err = repo.GetByVerificationTokenHash(ctx, "fresh-hash")
	assert.NoError(t, err)
}

func TestUserRepository_ListAndRefs(t *testing.T) {
	repo := postgres.NewUserRepository(setupDB(t))
	ctx := context.Background()

	a := createUser(t, repo, "a@example.com")
	b := createUser(t, repo, "b@example.com")
	require.NoError(t, repo.UpdateRole(ctx, b.ID, models.RoleAdmin))

	users, total, err := repo.List(ctx, repository.UserFilter{Page: repository.Page{Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, users, 1)

	admin := models.RoleAdmin
	admins, err := repo.Count(ctx, repository.UserFilter{Role: &admin})
	require.NoError(t, err)
	assert.Equal(t, 1, admins)

	refs, err := repo.Refs(ctx, []uuid.UUID{a.ID, b.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, refs, 2)
	assert.Equal(t, "a@example.com", refs[a.ID].Email)

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), repository.ErrUserNotFound)
}

func TestUserRepository_DeleteKeepsHistory(t *testing.T) {
	testDB := setupDB(t)
	users := postgres.NewUserRepository(testDB)
	sessions := postgres.NewSessionRepository(testDB)
	audits := postgres.NewAuditLogRepository(testDB)
	events := postgres.NewSecurityEventRepository(testDB)
	ctx := context.Background()

	user := createUser(t, users, "leaving@example.com")
	now := time.Now().UTC()

	session := &models.UserSession{
		UserID:       user.ID,
		Token:        "leaving-token",
		RefreshToken: "leaving-refresh",
		ExpiresAt:    now.Add(time.Hour),
		LastActiveAt: now,
		IsActive:     true,
	}
	require.NoError(t, sessions.Create(ctx, session))
	require.NoError(t, audits.Create(ctx, &models.AuditLog{
		UserID:    &user.ID,
		Action:    models.AuditActionLoginSuccess,
		Severity:  models.AuditSeverityInfo,
		Status:    models.AuditStatusSuccess,
		Timestamp: now,
	}))
	event := &models.SecurityEvent{
		UserID:    &user.ID,
		EventType: models.SecurityEventBruteForceAttempt,
		Severity:  models.SecuritySeverityMedium,
		Timestamp: now,
	}
	require.NoError(t, events.Create(ctx, event))
	_, err := events.Resolve(ctx, event.ID, user.ID, "handled", now)
	require.NoError(t, err)

	_, err = sessions.DeactivateAllForUser(ctx, user.ID, "")
	require.NoError(t, err)
	require.NoError(t, users.Delete(ctx, user.ID))

	kept, err := sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, kept.UserID)
	assert.False(t, kept.IsActive)

	// requests still in flight for the deleted account are recorded too
	require.NoError(t, audits.Create(ctx, &models.AuditLog{
		UserID:    &user.ID,
		Action:    models.AuditActionAPIRequest,
		Severity:  models.AuditSeverityInfo,
		Status:    models.AuditStatusSuccess,
		Timestamp: now.Add(time.Second),
	}))
	logs, total, err := audits.List(ctx, repository.AuditLogFilter{UserID: &user.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, entry := range logs {
		require.NotNil(t, entry.UserID)
		assert.Equal(t, user.ID, *entry.UserID)
	}

	resolved, err := events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved.UserID)
	assert.Equal(t, user.ID, *resolved.UserID)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, user.ID, *resolved.ResolvedBy)
}

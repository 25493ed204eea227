package repository

import (
	"context"
	"time"

	"authguard/internal/lockout"
	"authguard/internal/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user-related storage operations.
// Mutations take the already computed next state.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByVerificationTokenHash(ctx context.Context, hash string) (*models.User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, int, error)
	Count(ctx context.Context, filter UserFilter) (int, error)
	// Refs returns name/email pairs for the given ids; unknown ids are omitted
	Refs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserRef, error)

	UpdateLoginState(ctx context.Context, id uuid.UUID, state lockout.State, lastLogin *time.Time) error
	SetVerificationToken(ctx context.Context, id uuid.UUID, hash string, expires time.Time) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	SetResetToken(ctx context.Context, id uuid.UUID, hash string, expires time.Time) error
	// UpdatePassword stores a new hash and clears any reset token
	UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error
	SetTwoFactor(ctx context.Context, id uuid.UUID, secret *string, enabled bool) error
	UpdateProfile(ctx context.Context, id uuid.UUID, name string, profile models.Profile) error
	UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.Preferences) error
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error
	// ClearExpiredTokens drops verification and reset hashes that expired before cutoff
	ClearExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserFilter defines the filter options for listing users
type UserFilter struct {
	Role         *models.Role
	LockedAt     *time.Time // only users locked at this instant
	CreatedAfter *time.Time
	Page
}

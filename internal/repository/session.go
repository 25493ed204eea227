package repository

import (
	"context"
	"time"

	"authguard/internal/models"

	"github.com/google/uuid"
)

// SessionRepository stores user sessions. Token and RefreshToken hold
// digests of the issued JWTs, never the tokens themselves.
type SessionRepository interface {
	Create(ctx context.Context, session *models.UserSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserSession, error)
	GetByToken(ctx context.Context, tokenHash string) (*models.UserSession, error)
	GetByRefreshToken(ctx context.Context, refreshHash string) (*models.UserSession, error)
	Touch(ctx context.Context, tokenHash string, at time.Time) error
	Deactivate(ctx context.Context, id uuid.UUID) (*models.UserSession, error)
	DeactivateByToken(ctx context.Context, tokenHash string) error
	// DeactivateAllForUser skips the session with exceptTokenHash when it is non-empty
	DeactivateAllForUser(ctx context.Context, userID uuid.UUID, exceptTokenHash string) (int64, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	// Rotate swaps the token digests. An empty refreshHash or a zero expiresAt
	// keeps the stored value.
	Rotate(ctx context.Context, id uuid.UUID, tokenHash, refreshHash string, expiresAt, at time.Time) error
	// List orders by last activity, most recent first
	List(ctx context.Context, filter SessionFilter) ([]models.UserSession, int, error)
	Count(ctx context.Context, filter SessionFilter) (int, error)
}

// SessionFilter defines the filter options for listing sessions
type SessionFilter struct {
	UserID   *uuid.UUID
	IsActive *bool
	Page
}

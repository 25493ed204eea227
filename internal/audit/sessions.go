package audit

import (
	"context"
	"errors"
	"time"

	"authguard/internal/auth"
	"authguard/internal/models"
	"authguard/internal/repository"

	"github.com/google/uuid"
)

// SessionTracker records issued token pairs as user sessions. Tokens are
// stored as digests.
type SessionTracker struct {
	repo    repository.SessionRepository
	locator GeoLocator
	ttl     time.Duration
	now     func() time.Time
}

// NewSessionTracker creates a tracker whose sessions live for ttl
func NewSessionTracker(repo repository.SessionRepository, locator GeoLocator, ttl time.Duration) *SessionTracker {
	if locator == nil {
		locator = NoopLocator{}
	}
	return &SessionTracker{repo: repo, locator: locator, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source
func (t *SessionTracker) WithClock(now func() time.Time) *SessionTracker {
	t.now = now
	return t
}

// Create stores a new active session for the token pair
func (t *SessionTracker) Create(ctx context.Context, userID uuid.UUID, token, refreshToken string, rc RequestContext) (*models.UserSession, error) {
	now := t.now().UTC()
	session := &models.UserSession{
		UserID:       userID,
		Token:        auth.HashOpaqueToken(token),
		RefreshToken: auth.HashOpaqueToken(refreshToken),
		IPAddress:    rc.IPAddress,
		UserAgent:    rc.UserAgent,
		Device:       ParseDevice(rc.UserAgent),
		Location:     t.locator.Lookup(rc.IPAddress),
		ExpiresAt:    now.Add(t.ttl),
		LastActiveAt: now,
		IsActive:     true,
		CreatedAt:    now,
	}
	if err := t.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Touch bumps last activity for the session owning token
func (t *SessionTracker) Touch(ctx context.Context, token string) error {
	return t.repo.Touch(ctx, auth.HashOpaqueToken(token), t.now().UTC())
}

// Invalidate deactivates the session owning token
func (t *SessionTracker) Invalidate(ctx context.Context, token string) error {
	return t.repo.DeactivateByToken(ctx, auth.HashOpaqueToken(token))
}

// InvalidateAll deactivates the user's sessions except the one owning
// exceptToken, if given
func (t *SessionTracker) InvalidateAll(ctx context.Context, userID uuid.UUID, exceptToken string) (int64, error) {
	except := ""
	if exceptToken != "" {
		except = auth.HashOpaqueToken(exceptToken)
	}
	return t.repo.DeactivateAllForUser(ctx, userID, except)
}

// IsValid reports whether token belongs to an active, unexpired session
func (t *SessionTracker) IsValid(ctx context.Context, token string) (bool, error) {
	session, err := t.repo.GetByToken(ctx, auth.HashOpaqueToken(token))
	if errors.Is(err, repository.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return session.IsValid(t.now()), nil
}

// ValidRefresh returns the active session owning refreshToken
func (t *SessionTracker) ValidRefresh(ctx context.Context, refreshToken string) (*models.UserSession, error) {
	session, err := t.repo.GetByRefreshToken(ctx, auth.HashOpaqueToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if !session.IsValid(t.now()) {
		return nil, repository.ErrSessionNotFound
	}
	return session, nil
}

// ActiveSessions lists the user's active sessions, most recently used first
func (t *SessionTracker) ActiveSessions(ctx context.Context, userID uuid.UUID) ([]models.UserSession, error) {
	active := true
	sessions, _, err := t.repo.List(ctx, repository.SessionFilter{UserID: &userID, IsActive: &active})
	return sessions, err
}

// Rotate replaces both tokens of the session owning oldRefresh and extends
// its expiry
func (t *SessionTracker) Rotate(ctx context.Context, oldRefresh, newToken, newRefresh string) error {
	session, err := t.repo.GetByRefreshToken(ctx, auth.HashOpaqueToken(oldRefresh))
	if err != nil {
		return err
	}
	now := t.now().UTC()
	return t.repo.Rotate(ctx, session.ID,
		auth.HashOpaqueToken(newToken),
		auth.HashOpaqueToken(newRefresh),
		now.Add(t.ttl),
		now,
	)
}

// RotateAccess swaps the tokens of the session owning oldToken. An empty
// newRefresh keeps the stored refresh token and expiry.
func (t *SessionTracker) RotateAccess(ctx context.Context, oldToken, newToken, newRefresh string) error {
	session, err := t.repo.GetByToken(ctx, auth.HashOpaqueToken(oldToken))
	if err != nil {
		return err
	}
	now := t.now().UTC()
	refreshHash, expiresAt := "", time.Time{}
	if newRefresh != "" {
		refreshHash, expiresAt = auth.HashOpaqueToken(newRefresh), now.Add(t.ttl)
	}
	return t.repo.Rotate(ctx, session.ID, auth.HashOpaqueToken(newToken), refreshHash, expiresAt, now)
}

// Package memory provides in-process implementations of the repository
// interfaces. They back the handler tests and the "memory" storage driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"authguard/internal/lockout"
	"authguard/internal/models"
	"authguard/internal/repository"

	"github.com/google/uuid"
)

// UserRepository is a map-backed repository.UserRepository
type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.User
	now   func() time.Time
}

// NewUserRepository creates an empty user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[uuid.UUID]*models.User),
		now:   time.Now,
	}
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	return &cp
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := models.NormalizeEmail(user.Email)
	for _, existing := range r.users {
		if existing.Email == email {
			return &repository.DuplicateError{Field: "email"}
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := r.now().UTC()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepository) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *UserRepository) GetByVerificationTokenHash(ctx context.Context, hash string) (*models.User, error) {
	return r.find(func(u *models.User) bool {
		return u.VerificationTokenHash != nil && *u.VerificationTokenHash == hash
	})
}

func (r *UserRepository) GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	return r.find(func(u *models.User) bool {
		return u.ResetPasswordTokenHash != nil && *u.ResetPasswordTokenHash == hash
	})
}

func (r *UserRepository) filtered(filter repository.UserFilter) []models.User {
	var out []models.User
	for _, u := range r.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.LockedAt != nil && !u.LockoutState().IsLocked(*filter.LockedAt) {
			continue
		}
		if filter.CreatedAfter != nil && u.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		out = append(out, *u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *UserRepository) List(ctx context.Context, filter repository.UserFilter) ([]models.User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.filtered(filter)
	return paginate(all, filter.Page), len(all), nil
}

func (r *UserRepository) Count(ctx context.Context, filter repository.UserFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filtered(filter)), nil
}

func (r *UserRepository) Refs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make(map[uuid.UUID]models.UserRef, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			refs[id] = models.UserRef{Name: u.Name, Email: u.Email}
		}
	}
	return refs, nil
}

func (r *UserRepository) update(id uuid.UUID, fn func(u *models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(u)
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *UserRepository) UpdateLoginState(ctx context.Context, id uuid.UUID, state lockout.State, lastLogin *time.Time) error {
	return r.update(id, func(u *models.User) {
		u.ApplyLockoutState(state)
		if lastLogin != nil {
			t := *lastLogin
			u.LastLogin = &t
		}
	})
}

func (r *UserRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, hash string, expires time.Time) error {
	return r.update(id, func(u *models.User) {
		u.VerificationTokenHash = &hash
		u.VerificationTokenExpires = &expires
	})
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(u *models.User) {
		u.IsEmailVerified = true
		u.VerificationTokenHash = nil
		u.VerificationTokenExpires = nil
	})
}

func (r *UserRepository) SetResetToken(ctx context.Context, id uuid.UUID, hash string, expires time.Time) error {
	return r.update(id, func(u *models.User) {
		u.ResetPasswordTokenHash = &hash
		u.ResetPasswordExpires = &expires
	})
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	return r.update(id, func(u *models.User) {
		u.PasswordHash = hashedPassword
		u.ResetPasswordTokenHash = nil
		u.ResetPasswordExpires = nil
	})
}

func (r *UserRepository) SetTwoFactor(ctx context.Context, id uuid.UUID, secret *string, enabled bool) error {
	return r.update(id, func(u *models.User) {
		u.TwoFactorSecret = secret
		u.IsTwoFactorEnabled = enabled
	})
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name string, profile models.Profile) error {
	return r.update(id, func(u *models.User) {
		u.Name = name
		u.Profile = profile
	})
}

func (r *UserRepository) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.Preferences) error {
	return r.update(id, func(u *models.User) {
		u.Preferences = prefs
	})
}

func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	return r.update(id, func(u *models.User) {
		u.Role = role
	})
}

func (r *UserRepository) ClearExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, u := range r.users {
		changed := false
		if u.VerificationTokenExpires != nil && u.VerificationTokenExpires.Before(cutoff) {
			u.VerificationTokenHash = nil
			u.VerificationTokenExpires = nil
			changed = true
		}
		if u.ResetPasswordExpires != nil && u.ResetPasswordExpires.Before(cutoff) {
			u.ResetPasswordTokenHash = nil
			u.ResetPasswordExpires = nil
			changed = true
		}
		if changed {
			n++
		}
	}
	return n, nil
}

func paginate[T any](items []T, page repository.Page) []T {
	if page.Offset > 0 {
		if page.Offset >= len(items) {
			return []T{}
		}
		items = items[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	if items == nil {
		return []T{}
	}
	return items
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"authguard/internal/models"
	"authguard/internal/repository"

	"github.com/google/uuid"
)

// SessionRepository keeps user sessions in memory
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.UserSession
}

// NewSessionRepository creates an empty session repository
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[uuid.UUID]*models.UserSession)}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.UserSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.Token == session.Token {
			return &repository.DuplicateError{Field: "token"}
		}
		if s.RefreshToken == session.RefreshToken {
			return &repository.DuplicateError{Field: "refresh_token"}
		}
	}

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *SessionRepository) findLocked(match func(*models.UserSession) bool) *models.UserSession {
	for _, s := range r.sessions {
		if match(s) {
			return s
		}
	}
	return nil
}

func (r *SessionRepository) GetByToken(ctx context.Context, tokenHash string) (*models.UserSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.findLocked(func(s *models.UserSession) bool { return s.Token == tokenHash })
	if s == nil {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *SessionRepository) GetByRefreshToken(ctx context.Context, refreshHash string) (*models.UserSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.findLocked(func(s *models.UserSession) bool { return s.RefreshToken == refreshHash })
	if s == nil {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *SessionRepository) Touch(ctx context.Context, tokenHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.findLocked(func(s *models.UserSession) bool { return s.Token == tokenHash && s.IsActive })
	if s != nil {
		s.LastActiveAt = at
	}
	return nil
}

func (r *SessionRepository) Deactivate(ctx context.Context, id uuid.UUID) (*models.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	s.IsActive = false
	cp := *s
	return &cp, nil
}

func (r *SessionRepository) DeactivateByToken(ctx context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.findLocked(func(s *models.UserSession) bool { return s.Token == tokenHash }); s != nil {
		s.IsActive = false
	}
	return nil
}

func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, userID uuid.UUID, exceptTokenHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, s := range r.sessions {
		if s.UserID != userID || !s.IsActive {
			continue
		}
		if exceptTokenHash != "" && s.Token == exceptTokenHash {
			continue
		}
		s.IsActive = false
		n++
	}
	return n, nil
}

func (r *SessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, s := range r.sessions {
		if s.IsActive && !s.ExpiresAt.After(now) {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *SessionRepository) Rotate(ctx context.Context, id uuid.UUID, tokenHash, refreshHash string, expiresAt, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.Token = tokenHash
	if refreshHash != "" {
		s.RefreshToken = refreshHash
	}
	if !expiresAt.IsZero() {
		s.ExpiresAt = expiresAt
	}
	s.LastActiveAt = at
	return nil
}

func (r *SessionRepository) filtered(f repository.SessionFilter) []models.UserSession {
	var out []models.UserSession
	for _, s := range r.sessions {
		if f.UserID != nil && s.UserID != *f.UserID {
			continue
		}
		if f.IsActive != nil && s.IsActive != *f.IsActive {
			continue
		}
		out = append(out, *s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastActiveAt.After(out[j].LastActiveAt) })
	return out
}

func (r *SessionRepository) List(ctx context.Context, filter repository.SessionFilter) ([]models.UserSession, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.filtered(filter)
	return paginate(all, filter.Page), len(all), nil
}

func (r *SessionRepository) Count(ctx context.Context, filter repository.SessionFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filtered(filter)), nil
}

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

// SecurityEventRepository keeps security events in memory
type SecurityEventRepository struct {
	mu     sync.RWMutex
	events []*models.SecurityEvent
}

// NewSecurityEventRepository creates an empty security event repository
func NewSecurityEventRepository() *SecurityEventRepository {
	return &SecurityEventRepository{}
}

func (r *SecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	cp := *event
	r.events = append(r.events, &cp)
	return nil
}

func (r *SecurityEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.events {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrSecurityEventNotFound
}

func matchEvent(e *models.SecurityEvent, f repository.SecurityEventFilter) bool {
	if f.UserID != nil && (e.UserID == nil || *e.UserID != *f.UserID) {
		return false
	}
	if f.EventType != nil && e.EventType != *f.EventType {
		return false
	}
	if len(f.Severities) > 0 {
		found := false
		for _, s := range f.Severities {
			if e.Severity == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Resolved != nil && e.Resolved != *f.Resolved {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

func (r *SecurityEventRepository) filtered(f repository.SecurityEventFilter) []models.SecurityEvent {
	var out []models.SecurityEvent
	for i := len(r.events) - 1; i >= 0; i-- {
		if matchEvent(r.events[i], f) {
			out = append(out, *r.events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (r *SecurityEventRepository) List(ctx context.Context, filter repository.SecurityEventFilter) ([]models.SecurityEvent, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.filtered(filter)
	return paginate(all, filter.Page), len(all), nil
}

func (r *SecurityEventRepository) Count(ctx context.Context, filter repository.SecurityEventFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filtered(filter)), nil
}

func (r *SecurityEventRepository) Resolve(ctx context.Context, id, resolvedBy uuid.UUID, notes string, at time.Time) (*models.SecurityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID != id {
			continue
		}
		if e.Resolved {
			return nil, repository.ErrAlreadyResolved
		}
		e.Resolved = true
		e.ResolvedBy = &resolvedBy
		e.ResolvedAt = &at
		e.Notes = notes
		cp := *e
		return &cp, nil
	}
	return nil, repository.ErrSecurityEventNotFound
}

// All returns a copy of every stored event in insertion order.
func (r *SecurityEventRepository) All() []models.SecurityEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SecurityEvent, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, *e)
	}
	return out
}

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

// AuditLogRepository is an append-only slice of audit entries
type AuditLogRepository struct {
	mu   sync.RWMutex
	logs []models.AuditLog
}

// NewAuditLogRepository creates an empty audit log repository
func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{}
}

func (r *AuditLogRepository) Create(ctx context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	r.logs = append(r.logs, *log)
	return nil
}

func matchAudit(l models.AuditLog, f repository.AuditLogFilter) bool {
	if f.UserID != nil && (l.UserID == nil || *l.UserID != *f.UserID) {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if l.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Severity != nil && l.Severity != *f.Severity {
		return false
	}
	if f.Status != nil && l.Status != *f.Status {
		return false
	}
	if f.From != nil && l.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && l.Timestamp.After(*f.To) {
		return false
	}
	return true
}

func (r *AuditLogRepository) filtered(f repository.AuditLogFilter) []models.AuditLog {
	var out []models.AuditLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		if matchAudit(r.logs[i], f) {
			out = append(out, r.logs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (r *AuditLogRepository) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.filtered(filter)
	return paginate(all, filter.Page), len(all), nil
}

func (r *AuditLogRepository) Count(ctx context.Context, filter repository.AuditLogFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filtered(filter)), nil
}

func (r *AuditLogRepository) DailyLoginCounts(ctx context.Context, from, to time.Time) (map[string]models.DailyLoginStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]models.DailyLoginStat)
	filter := repository.AuditLogFilter{
		Actions: []models.AuditAction{models.AuditActionLoginSuccess, models.AuditActionLoginFailed},
		From:    &from,
		To:      &to,
	}
	for _, l := range r.filtered(filter) {
		day := l.Timestamp.UTC().Format("2006-01-02")
		s := stats[day]
		if l.Action == models.AuditActionLoginSuccess {
			s.Success++
		} else {
			s.Failure++
		}
		stats[day] = s
	}
	return stats, nil
}

// All returns a copy of every stored entry in insertion order.
func (r *AuditLogRepository) All() []models.AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.AuditLog(nil), r.logs...)
}

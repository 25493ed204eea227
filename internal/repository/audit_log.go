package repository

import (
	"context"
	"time"

	"authguard/internal/models"

	"github.com/google/uuid"
)

// AuditLogRepository stores the append-only audit trail. There is no update
// or delete operation.
type AuditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	// List returns one page ordered by timestamp descending and the total match count
	List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int, error)
	Count(ctx context.Context, filter AuditLogFilter) (int, error)
	// DailyLoginCounts buckets login success/failure entries by UTC day (YYYY-MM-DD)
	DailyLoginCounts(ctx context.Context, from, to time.Time) (map[string]models.DailyLoginStat, error)
}

// AuditLogFilter defines the filter options for listing audit logs
type AuditLogFilter struct {
	UserID   *uuid.UUID
	Actions  []models.AuditAction
	Severity *models.AuditSeverity
	Status   *models.AuditStatus
	From     *time.Time
	To       *time.Time
	Page
}

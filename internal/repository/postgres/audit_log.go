package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"authguard/internal/models"
	"authguard/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type auditLogRepository struct {
	repository.BaseRepository
}

// NewAuditLogRepository creates a new PostgreSQL audit log repository
func NewAuditLogRepository(db *sql.DB) repository.AuditLogRepository {
	return &auditLogRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *auditLogRepository) Create(ctx context.Context, log *models.AuditLog) error {
	details, err := marshalDetails(log.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_logs (
			id, user_id, action, severity, status,
			ip_address, user_agent, details, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	_, err = r.DB().ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.Action,
		log.Severity,
		log.Status,
		log.IPAddress,
		log.UserAgent,
		details,
		log.Timestamp,
	)
	return err
}

func (r *auditLogRepository) buildWhere(filter repository.AuditLogFilter) *whereClause {
	w := &whereClause{}
	if filter.UserID != nil {
		w.add("user_id = ?", *filter.UserID)
	}
	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		w.add("action = ANY(?)", pq.Array(actions))
	}
	if filter.Severity != nil {
		w.add("severity = ?", *filter.Severity)
	}
	if filter.Status != nil {
		w.add("status = ?", *filter.Status)
	}
	if filter.From != nil {
		w.add("occurred_at >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("occurred_at <= ?", *filter.To)
	}
	return w
}

func (r *auditLogRepository) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, int, error) {
	w := r.buildWhere(filter)

	total, err := r.count(ctx, w)
	if err != nil {
		return nil, 0, err
	}

	query, params := w.page(`
		SELECT id, user_id, action, severity, status,
			   ip_address, user_agent, details, occurred_at
		FROM audit_logs`+w.String()+` ORDER BY occurred_at DESC`, filter.Page)

	logs, err := r.queryLogs(ctx, query, params...)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *auditLogRepository) count(ctx context.Context, w *whereClause) (int, error) {
	var n int
	err := r.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+w.String(), w.params...).Scan(&n)
	return n, err
}

func (r *auditLogRepository) Count(ctx context.Context, filter repository.AuditLogFilter) (int, error) {
	return r.count(ctx, r.buildWhere(filter))
}

func (r *auditLogRepository) DailyLoginCounts(ctx context.Context, from, to time.Time) (map[string]models.DailyLoginStat, error) {
	query := `
		SELECT to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, action, COUNT(*)
		FROM audit_logs
		WHERE action IN ($1, $2) AND occurred_at >= $3 AND occurred_at <= $4
		GROUP BY day, action`

	rows, err := r.DB().QueryContext(ctx, query,
		models.AuditActionLoginSuccess,
		models.AuditActionLoginFailed,
		from,
		to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]models.DailyLoginStat)
	for rows.Next() {
		var (
			day    string
			action models.AuditAction
			n      int
		)
		if err := rows.Scan(&day, &action, &n); err != nil {
			return nil, err
		}
		s := stats[day]
		if action == models.AuditActionLoginSuccess {
			s.Success += n
		} else {
			s.Failure += n
		}
		stats[day] = s
	}
	return stats, rows.Err()
}

func (r *auditLogRepository) queryLogs(ctx context.Context, query string, args ...interface{}) ([]models.AuditLog, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]models.AuditLog, 0)
	for rows.Next() {
		var (
			log     models.AuditLog
			details []byte
		)
		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.Action,
			&log.Severity,
			&log.Status,
			&log.IPAddress,
			&log.UserAgent,
			&details,
			&log.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		if log.Details, err = unmarshalDetails(details); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

func marshalDetails(d models.Details) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return data, nil
}

func unmarshalDetails(data []byte) (models.Details, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var d models.Details
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	if len(d) == 0 {
		return nil, nil
	}
	return d, nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"authguard/internal/models"
	"authguard/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type securityEventRepository struct {
	repository.BaseRepository
}

// NewSecurityEventRepository creates a new PostgreSQL security event repository
func NewSecurityEventRepository(db *sql.DB) repository.SecurityEventRepository {
	return &securityEventRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

const securityEventColumns = `
	id, user_id, event_type, severity, ip_address, user_agent,
	location, details, resolved, resolved_by, resolved_at, notes, occurred_at`

func scanSecurityEvent(row rowScanner) (*models.SecurityEvent, error) {
	var (
		event    models.SecurityEvent
		location []byte
		details  []byte
	)
	err := row.Scan(
		&event.ID,
		&event.UserID,
		&event.EventType,
		&event.Severity,
		&event.IPAddress,
		&event.UserAgent,
		&location,
		&details,
		&event.Resolved,
		&event.ResolvedBy,
		&event.ResolvedAt,
		&event.Notes,
		&event.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	if event.Location, err = unmarshalLocation(location); err != nil {
		return nil, err
	}
	if event.Details, err = unmarshalDetails(details); err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *securityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) error {
	details, err := marshalDetails(event.Details)
	if err != nil {
		return err
	}
	location, err := marshalLocation(event.Location)
	if err != nil {
		return err
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = r.DB().ExecContext(ctx, `
		INSERT INTO security_events (
			id, user_id, event_type, severity, ip_address, user_agent,
			location, details, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID,
		event.UserID,
		event.EventType,
		event.Severity,
		event.IPAddress,
		event.UserAgent,
		location,
		details,
		event.Timestamp,
	)
	return err
}

func (r *securityEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityEvent, error) {
	event, err := scanSecurityEvent(r.DB().QueryRowContext(ctx,
		`SELECT `+securityEventColumns+` FROM security_events WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrSecurityEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (r *securityEventRepository) buildWhere(filter repository.SecurityEventFilter) *whereClause {
	w := &whereClause{}
	if filter.UserID != nil {
		w.add("user_id = ?", *filter.UserID)
	}
	if filter.EventType != nil {
		w.add("event_type = ?", *filter.EventType)
	}
	if len(filter.Severities) > 0 {
		severities := make([]string, len(filter.Severities))
		for i, s := range filter.Severities {
			severities[i] = string(s)
		}
		w.add("severity = ANY(?)", pq.Array(severities))
	}
	if filter.Resolved != nil {
		w.add("resolved = ?", *filter.Resolved)
	}
	if filter.From != nil {
		w.add("occurred_at >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("occurred_at <= ?", *filter.To)
	}
	return w
}

func (r *securityEventRepository) List(ctx context.Context, filter repository.SecurityEventFilter) ([]models.SecurityEvent, int, error) {
	w := r.buildWhere(filter)

	total, err := r.count(ctx, w)
	if err != nil {
		return nil, 0, err
	}

	query, params := w.page(`SELECT `+securityEventColumns+` FROM security_events`+w.String()+` ORDER BY occurred_at DESC`, filter.Page)
	rows, err := r.DB().QueryContext(ctx, query, params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]models.SecurityEvent, 0)
	for rows.Next() {
		event, err := scanSecurityEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *securityEventRepository) count(ctx context.Context, w *whereClause) (int, error) {
	var n int
	err := r.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM security_events`+w.String(), w.params...).Scan(&n)
	return n, err
}

func (r *securityEventRepository) Count(ctx context.Context, filter repository.SecurityEventFilter) (int, error) {
	return r.count(ctx, r.buildWhere(filter))
}

func (r *securityEventRepository) Resolve(ctx context.Context, id, resolvedBy uuid.UUID, notes string, at time.Time) (*models.SecurityEvent, error) {
	event, err := scanSecurityEvent(r.DB().QueryRowContext(ctx, `
		UPDATE security_events
		SET resolved = true, resolved_by = $1, resolved_at = $2, notes = $3
		WHERE id = $4 AND resolved = false
		RETURNING `+securityEventColumns,
		resolvedBy, at, notes, id,
	))
	if err == nil {
		return event, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// nothing updated: either missing or already resolved
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, repository.ErrAlreadyResolved
}

func marshalLocation(l *models.Location) ([]byte, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func unmarshalLocation(data []byte) (*models.Location, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var l models.Location
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

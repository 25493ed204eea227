package postgres

import (
	"errors"
	"fmt"
	"strings"

	"authguard/internal/repository"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// mapError converts driver errors into repository errors
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return &repository.DuplicateError{Field: constraintField(pqErr.Constraint)}
	}
	return err
}

// constraintField turns "users_email_key" into "email"
func constraintField(constraint string) string {
	field := constraint
	for _, prefix := range []string{"users_", "user_sessions_", "audit_logs_", "security_events_"} {
		field = strings.TrimPrefix(field, prefix)
	}
	field = strings.TrimSuffix(field, "_key")
	if field == "" {
		return "unknown"
	}
	return field
}

// whereClause accumulates numbered placeholders for dynamic filters
type whereClause struct {
	conditions []string
	params     []interface{}
}

func (w *whereClause) add(condition string, value interface{}) {
	w.params = append(w.params, value)
	w.conditions = append(w.conditions, strings.ReplaceAll(condition, "?", placeholder(len(w.params))))
}

func (w *whereClause) String() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conditions, " AND ")
}

// page appends LIMIT/OFFSET to query
func (w *whereClause) page(query string, p repository.Page) (string, []interface{}) {
	params := append([]interface{}(nil), w.params...)
	if p.Limit > 0 {
		params = append(params, p.Limit)
		query += " LIMIT " + placeholder(len(params))
	}
	if p.Offset > 0 {
		params = append(params, p.Offset)
		query += " OFFSET " + placeholder(len(params))
	}
	return query, params
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

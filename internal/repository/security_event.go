package repository

import (
	"context"
	"time"

	"authguard/internal/models"

	"github.com/google/uuid"
)

// SecurityEventRepository stores security events and their resolution
type SecurityEventRepository interface {
	Create(ctx context.Context, event *models.SecurityEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityEvent, error)
	List(ctx context.Context, filter SecurityEventFilter) ([]models.SecurityEvent, int, error)
	Count(ctx context.Context, filter SecurityEventFilter) (int, error)
	// Resolve flips resolved once; a second call returns ErrAlreadyResolved
	Resolve(ctx context.Context, id, resolvedBy uuid.UUID, notes string, at time.Time) (*models.SecurityEvent, error)
}

// SecurityEventFilter defines the filter options for listing security events
type SecurityEventFilter struct {
	UserID     *uuid.UUID
	EventType  *models.SecurityEventType
	Severities []models.SecuritySeverity
	Resolved   *bool
	From       *time.Time
	To         *time.Time
	Page
}

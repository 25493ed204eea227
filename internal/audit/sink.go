package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"authguard/internal/models"
	"authguard/internal/mq"
	"authguard/internal/repository"
)

// StoreSink writes records to the repositories
type StoreSink struct {
	audits repository.AuditLogRepository
	events repository.SecurityEventRepository
}

// NewStoreSink creates a sink backed by the given repositories
func NewStoreSink(audits repository.AuditLogRepository, events repository.SecurityEventRepository) *StoreSink {
	return &StoreSink{audits: audits, events: events}
}

func (s *StoreSink) WriteAudit(ctx context.Context, entry *models.AuditLog) error {
	return s.audits.Create(ctx, entry)
}

func (s *StoreSink) WriteSecurityEvent(ctx context.Context, event *models.SecurityEvent) error {
	return s.events.Create(ctx, event)
}

// PublisherSink forwards records as JSON messages
type PublisherSink struct {
	publisher     mq.Publisher
	auditQueue    string
	securityQueue string
}

// NewPublisherSink publishes audit entries to auditQueue and security
// events to securityQueue
func NewPublisherSink(publisher mq.Publisher, auditQueue, securityQueue string) *PublisherSink {
	return &PublisherSink{
		publisher:     publisher,
		auditQueue:    auditQueue,
		securityQueue: securityQueue,
	}
}

func (s *PublisherSink) WriteAudit(ctx context.Context, entry *models.AuditLog) error {
	return s.publish(ctx, s.auditQueue, entry, map[string]string{
		"action":   string(entry.Action),
		"severity": string(entry.Severity),
	})
}

func (s *PublisherSink) WriteSecurityEvent(ctx context.Context, event *models.SecurityEvent) error {
	return s.publish(ctx, s.securityQueue, event, map[string]string{
		"event_type": string(event.EventType),
		"severity":   string(event.Severity),
	})
}

func (s *PublisherSink) publish(ctx context.Context, queue string, v interface{}, attrs map[string]string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", queue, err)
	}
	if _, err := s.publisher.Publish(ctx, queue, data, attrs); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

func sinkName(s Sink) string {
	switch s.(type) {
	case *StoreSink:
		return "store"
	case *PublisherSink:
		return "publisher"
	default:
		return fmt.Sprintf("%T", s)
	}
}

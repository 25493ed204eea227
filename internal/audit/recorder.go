// Package audit records audit entries and security events off the request
// path, tracks user sessions and flags suspicious request payloads.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"authguard/internal/config"
	"authguard/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Sink persists or forwards records. Implementations must be safe for
// concurrent use when the recorder runs more than one worker.
type Sink interface {
	WriteAudit(ctx context.Context, entry *models.AuditLog) error
	WriteSecurityEvent(ctx context.Context, event *models.SecurityEvent) error
}

type record struct {
	audit *models.AuditLog
	event *models.SecurityEvent
}

// Recorder fans records out to its sinks from a bounded queue
type Recorder struct {
	queue   chan record
	sinks   []Sink
	locator GeoLocator
	timeout time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	pending atomic.Int64
	dropped atomic.Int64
}

// NewRecorder starts cfg.Workers goroutines draining the queue
func NewRecorder(cfg config.AuditConfig, locator GeoLocator, sinks ...Sink) *Recorder {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1024
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if locator == nil {
		locator = NoopLocator{}
	}

	r := &Recorder{
		queue:   make(chan record, size),
		sinks:   sinks,
		locator: locator,
		timeout: timeout,
		now:     time.Now,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

// WithClock sets the time source for records submitted without a timestamp
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// LogAudit enqueues an audit entry. It never blocks.
func (r *Recorder) LogAudit(ctx context.Context, entry models.AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = models.AuditSeverityInfo
	}
	if entry.Status == "" {
		entry.Status = models.AuditStatusSuccess
	}
	r.enqueue(record{audit: &entry})
}

// LogSecurityEvent enqueues a security event. It never blocks.
func (r *Recorder) LogSecurityEvent(ctx context.Context, event models.SecurityEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now().UTC()
	}
	r.enqueue(record{event: &event})
}

func (r *Recorder) enqueue(rec record) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(rec, "recorder closed")
		return
	}

	r.pending.Add(1)
	select {
	case r.queue <- rec:
	default:
		r.pending.Add(-1)
		r.drop(rec, "audit queue full")
	}
}

func (r *Recorder) drop(rec record, reason string) {
	r.dropped.Add(1)
	entry := log.WithField("reason", reason)
	if rec.audit != nil {
		entry = entry.WithField("action", rec.audit.Action)
	} else {
		entry = entry.WithField("event_type", rec.event.EventType)
	}
	entry.Warn("dropping audit record")
}

// Dropped returns the number of records discarded so far
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) work() {
	defer r.wg.Done()
	for rec := range r.queue {
		r.process(rec)
		r.pending.Add(-1)
	}
}

func (r *Recorder) process(rec record) {
	if rec.event != nil && rec.event.Location == nil && rec.event.IPAddress != "" {
		rec.event.Location = r.locator.Lookup(rec.event.IPAddress)
	}
	logRecord(rec)

	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		var err error
		if rec.audit != nil {
			err = sink.WriteAudit(ctx, rec.audit)
		} else {
			err = sink.WriteSecurityEvent(ctx, rec.event)
		}
		cancel()
		if err != nil {
			log.WithError(err).WithField("sink", sinkName(sink)).Error("audit sink write failed")
		}
	}
}

func logRecord(rec record) {
	if rec.audit != nil {
		a := rec.audit
		if a.Severity != models.AuditSeverityCritical && a.Severity != models.AuditSeverityError {
			return
		}
		log.WithFields(log.Fields{
			"action":   a.Action,
			"severity": a.Severity,
			"status":   a.Status,
			"ip":       a.IPAddress,
			"user_id":  a.UserID,
		}).Warn("audit")
		return
	}

	e := rec.event
	log.WithFields(log.Fields{
		"event_type": e.EventType,
		"severity":   e.Severity,
		"ip":         e.IPAddress,
		"user_id":    e.UserID,
	}).Warn("security event")
}

// Flush waits until every accepted record has been handed to the sinks
func (r *Recorder) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for r.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close stops intake, drains the queue and waits for the workers
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

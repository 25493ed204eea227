package jobs

import (
	"context"
	"fmt"
	"time"

	"authguard/internal/config"
	"authguard/internal/ratelimit"
	"authguard/internal/repository"

	log "github.com/sirupsen/logrus"
)

const (
	SessionExpiryJobName  = "expire-sessions"
	TokenSweepJobName     = "sweep-tokens"
	RateLimitPruneJobName = "prune-rate-limits"
)

type baseJob struct {
	name   string
	config Config
	now    func() time.Time
}

func (j *baseJob) Name() string      { return j.name }
func (j *baseJob) GetConfig() Config { return j.config }

// SessionExpiryJob deactivates sessions whose expiry has passed
type SessionExpiryJob struct {
	baseJob
	sessions repository.SessionRepository
}

func NewSessionExpiryJob(sessions repository.SessionRepository, cfg Config, now func() time.Time) *SessionExpiryJob {
	return &SessionExpiryJob{
		baseJob:  baseJob{name: SessionExpiryJobName, config: cfg, now: nowOrDefault(now)},
		sessions: sessions,
	}
}

func (j *SessionExpiryJob) Run(ctx context.Context) error {
	n, err := j.sessions.DeactivateExpired(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate expired sessions: %w", err)
	}
	if n > 0 {
		log.WithFields(log.Fields{"job": j.name, "sessions": n}).Info("Deactivated expired sessions")
	}
	return nil
}

// TokenSweepJob clears verification and reset token hashes that expired
// more than grace ago. Tokens inside the grace period keep answering with
// the expiry-specific error.
type TokenSweepJob struct {
	baseJob
	users repository.UserRepository
	grace time.Duration
}

func NewTokenSweepJob(users repository.UserRepository, grace time.Duration, cfg Config, now func() time.Time) *TokenSweepJob {
	return &TokenSweepJob{
		baseJob: baseJob{name: TokenSweepJobName, config: cfg, now: nowOrDefault(now)},
		users:   users,
		grace:   grace,
	}
}

func (j *TokenSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	n, err := j.users.ClearExpiredTokens(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("clear expired tokens: %w", err)
	}
	if n > 0 {
		log.WithFields(log.Fields{"job": j.name, "users": n, "cutoff": cutoff}).Info("Cleared expired account tokens")
	}
	return nil
}

// Cleaner drops idle per-client state
type Cleaner interface {
	Cleanup(now time.Time)
}

// RateLimitPruneJob bounds the memory held by the in-process limiters
type RateLimitPruneJob struct {
	baseJob
	limits  *ratelimit.Manager
	window  time.Duration
	cleaner Cleaner
}

func NewRateLimitPruneJob(limits *ratelimit.Manager, window time.Duration, cleaner Cleaner, cfg Config, now func() time.Time) *RateLimitPruneJob {
	return &RateLimitPruneJob{
		baseJob: baseJob{name: RateLimitPruneJobName, config: cfg, now: nowOrDefault(now)},
		limits:  limits,
		window:  window,
		cleaner: cleaner,
	}
}

func (j *RateLimitPruneJob) Run(ctx context.Context) error {
	if j.limits != nil {
		j.limits.Prune(j.window)
	}
	if j.cleaner != nil {
		j.cleaner.Cleanup(j.now())
	}
	return ctx.Err()
}

// Maintenance are the collaborators of the built-in jobs
type Maintenance struct {
	Users    repository.UserRepository
	Sessions repository.SessionRepository
	Limits   *ratelimit.Manager
	Cleaner  Cleaner
	Now      func() time.Time
}

// NewMaintenanceManager registers the built-in jobs with their configured
// schedules
func NewMaintenanceManager(cfg config.JobsConfig, authWindow time.Duration, deps Maintenance) *Manager {
	m := NewManager(time.Minute)
	m.Register(NewSessionExpiryJob(deps.Sessions, Config{
		Schedule: cfg.SessionExpirySchedule,
		Enabled:  cfg.Enabled,
	}, deps.Now))
	m.Register(NewTokenSweepJob(deps.Users, cfg.TokenSweepGrace, Config{
		Schedule: cfg.TokenSweepSchedule,
		Enabled:  cfg.Enabled,
	}, deps.Now))
	m.Register(NewRateLimitPruneJob(deps.Limits, authWindow, deps.Cleaner, Config{
		Schedule: cfg.RateLimitPruneSchedule,
		Enabled:  cfg.Enabled && cfg.RateLimitPruneSchedule != "",
	}, deps.Now))
	return m
}

func nowOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

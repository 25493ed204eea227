// Package jobs runs periodic maintenance on a cron schedule
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// ErrJobNotFound is returned when a job cannot be found by name
var ErrJobNotFound = errors.New("job not found")

// Config represents the schedule of a job
type Config struct {
	// Schedule in cron format (e.g. "*/5 * * * *" for every 5 minutes)
	Schedule string
	// Enabled determines if the job runs on schedule; RunJob ignores it
	Enabled bool
}

// Job is one unit of maintenance work
type Job interface {
	Name() string
	Run(ctx context.Context) error
	GetConfig() Config
}

// Manager handles the scheduling and execution of jobs
type Manager struct {
	jobs    []Job
	cron    *cron.Cron
	timeout time.Duration
}

// NewManager creates a scheduler. Each scheduled run gets timeout; zero
// means no limit.
func NewManager(timeout time.Duration) *Manager {
	// Minute resolution, no seconds field
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow,
	)), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	return &Manager{cron: c, timeout: timeout}
}

// Register adds a job to the manager
func (m *Manager) Register(j Job) {
	m.jobs = append(m.jobs, j)
}

// GetJob returns a job by name
func (m *Manager) GetJob(name string) (Job, bool) {
	for _, j := range m.jobs {
		if j.Name() == name {
			return j, true
		}
	}
	return nil, false
}

// Jobs returns the registered jobs in registration order
func (m *Manager) Jobs() []Job {
	return append([]Job(nil), m.jobs...)
}

// RunJob executes a job by name immediately, whether or not it is enabled
func (m *Manager) RunJob(ctx context.Context, name string) error {
	job, found := m.GetJob(name)
	if !found {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return job.Run(ctx)
}

// Start schedules every enabled job and starts the scheduler. Scheduled
// runs derive their context from ctx.
func (m *Manager) Start(ctx context.Context) error {
	for _, j := range m.jobs {
		config := j.GetConfig()
		if !config.Enabled {
			log.WithField("job", j.Name()).Info("Job is disabled, skipping scheduler")
			continue
		}
		if config.Schedule == "" {
			return fmt.Errorf("job %s has no schedule configured", j.Name())
		}

		job := j
		if _, err := m.cron.AddFunc(config.Schedule, func() { m.runScheduled(ctx, job) }); err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", j.Name(), err)
		}
		log.WithFields(log.Fields{"job": j.Name(), "schedule": config.Schedule}).Info("Scheduled job")
	}

	m.cron.Start()
	log.Info("Job scheduler started")
	return nil
}

func (m *Manager) runScheduled(ctx context.Context, job Job) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	entry := log.WithField("job", job.Name())
	if err := job.Run(ctx); err != nil {
		entry.WithError(err).Error("Job failed")
		return
	}
	entry.WithField("duration", time.Since(start).String()).Debug("Job finished")
}

// Stop stops the scheduler and waits for running jobs until ctx is done
func (m *Manager) Stop(ctx context.Context) error {
	done := m.cron.Stop()
	select {
	case <-done.Done():
		log.Info("Job scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

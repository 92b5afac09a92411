// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package scheduler runs periodic maintenance jobs on gocron: forwarding
// stored-offline payments, pruning idempotency records, trimming the audit
// log and garbage collecting the local store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/metrics"
)

// ErrUnknownJob is returned by RunNow for a name that was never added.
var ErrUnknownJob = errors.New("unknown scheduler job")

// Job is one periodic task. A zero Interval disables the job.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	// When, if set, is checked before each run; the run is skipped when it
	// returns false.
	When func() bool
}

// Scheduler owns a gocron scheduler and the context its jobs run under.
type Scheduler struct {
	logger      zerolog.Logger
	stopTimeout time.Duration

	mu      sync.Mutex
	jobs    []Job
	cron    gocron.Scheduler
	byName  map[string]gocron.Job
	cancel  context.CancelFunc
	running bool
}

// New creates a scheduler. stopTimeout bounds how long Stop waits for
// running jobs.
func New(stopTimeout time.Duration) *Scheduler {
	if stopTimeout <= 0 {
		stopTimeout = 10 * time.Second
	}
	return &Scheduler{
		logger:      logging.WithComponent("scheduler"),
		stopTimeout: stopTimeout,
		byName:      make(map[string]gocron.Job),
	}
}

// Add registers a job. Jobs must be added before Start; a job with a zero
// interval is ignored.
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 || job.Run == nil {
		s.logger.Debug().Str("job", job.Name).Msg("Job disabled")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start schedules every added job. Each job runs once immediately, then on
// its interval; a run that overlaps the previous one is rescheduled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	cron, err := gocron.NewScheduler(gocron.WithStopTimeout(s.stopTimeout))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)

	for _, job := range s.jobs {
		j, err := cron.NewJob(
			gocron.DurationJob(job.Interval),
			gocron.NewTask(s.runner(ctx, job)),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			cancel()
			_ = cron.Shutdown()
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
		s.byName[job.Name] = j
	}

	cron.Start()
	s.cron = cron
	s.cancel = cancel
	s.running = true
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop cancels running jobs and waits for them up to the stop timeout.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cron := s.cron
	s.cancel()
	s.byName = make(map[string]gocron.Job)
	s.mu.Unlock()

	if err := cron.Shutdown(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	return nil
}

// RunNow triggers a job outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return j.RunNow()
}

// Jobs returns the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.Name)
	}
	return names
}

func (s *Scheduler) runner(ctx context.Context, job Job) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		if job.When != nil && !job.When() {
			metrics.RecordSchedulerJob(job.Name, "skipped")
			return
		}

		start := time.Now()
		err := job.Run(ctx)
		if err != nil {
			metrics.RecordSchedulerJob(job.Name, "failed")
			s.logger.Warn().Err(err).Str("job", job.Name).Dur("duration", time.Since(start)).Msg("Scheduled job failed")
			return
		}
		metrics.RecordSchedulerJob(job.Name, "ok")
		s.logger.Debug().Str("job", job.Name).Dur("duration", time.Since(start)).Msg("Scheduled job finished")
	}
}

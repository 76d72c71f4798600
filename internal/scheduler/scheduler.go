// Package scheduler runs ingestion and enrichment on cron schedules for the
// daemon command.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled run.
type Job struct {
	Name string
	Spec string // cron spec, e.g. "*/15 * * * *" or "@every 1h"
	Run  func(ctx context.Context) error
}

// Scheduler owns the cron loop. Runs never overlap: a tick that fires while
// any job is still running is skipped.
type Scheduler struct {
	jobs       []Job
	runOnStart bool
	logger     *slog.Logger

	mu sync.Mutex
}

// NewScheduler creates a scheduler for jobs. When runOnStart is set, every
// job runs once, in order, before the first tick.
func NewScheduler(jobs []Job, runOnStart bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		jobs:       jobs,
		runOnStart: runOnStart,
		logger:     logger,
	}
}

// Run registers the jobs and blocks until ctx is cancelled. It returns nil
// on graceful shutdown, after in-flight jobs finish.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLogger(cronLogger{s.logger}))
	for _, j := range s.jobs {
		j := j
		if _, err := c.AddFunc(j.Spec, func() { s.trigger(ctx, j) }); err != nil {
			return fmt.Errorf("schedule %s %q: %w", j.Name, j.Spec, err)
		}
	}

	s.logger.Info("starting scheduler", "jobs", len(s.jobs))

	if s.runOnStart {
		for _, j := range s.jobs {
			if ctx.Err() != nil {
				break
			}
			s.trigger(ctx, j)
		}
	}

	c.Start()
	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	return nil
}

// trigger runs j unless another job holds the run lock.
func (s *Scheduler) trigger(ctx context.Context, j Job) bool {
	if ctx.Err() != nil {
		return false
	}
	if !s.mu.TryLock() {
		s.logger.Warn("run still in flight, skipping tick", "job", j.Name)
		return false
	}
	defer s.mu.Unlock()

	s.logger.Info("scheduled run starting", "job", j.Name)
	if err := j.Run(ctx); err != nil {
		s.logger.Error("scheduled run failed", "job", j.Name, "error", err)
		return true
	}
	s.logger.Info("scheduled run finished", "job", j.Name)
	return true
}

// cronLogger routes robfig/cron logs through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

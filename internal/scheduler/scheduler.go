// Package scheduler wires up the cron job that periodically deletes read
// notifications past their retention.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Cleaner deletes read notifications older than retention.
type Cleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler wraps robfig/cron and manages the retention job.
type Scheduler struct {
	cron      *cron.Cron
	cleaner   Cleaner
	spec      string // cron spec, e.g. "@daily"
	retention time.Duration
}

// New creates a Scheduler that runs the cleanup on spec.
func New(cleaner Cleaner, spec string, retention time.Duration) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		cleaner:   cleaner,
		spec:      spec,
		retention: retention,
	}
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunCleanup(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	slog.Info("scheduler: cron started", "spec", s.spec, "retention", s.retention)
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running job.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler: cron stopped")
}

// RunCleanup runs one retention pass.
func (s *Scheduler) RunCleanup(ctx context.Context) {
	n, err := s.cleaner.Cleanup(ctx, s.retention)
	if err != nil {
		slog.Error("scheduler: notification cleanup failed", "err", err)
		return
	}
	slog.Info("scheduler: notification cleanup complete", "deleted", n)
}

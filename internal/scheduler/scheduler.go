// Package scheduler fires periodic batch reprocessing runs on a cron
// schedule. Adapted from the teacher's schedule-tick poller: instead of
// matching per-pipeline cron expressions against a schedule store, a single
// configured cron expression drives one BatchRunner across all configured
// regions. Only the elected leader replica runs the cron (see
// internal/leader), so a multi-replica deployment never double-runs a batch.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// BatchRunner executes one batch reprocessing pass over the configured
// region list. Implemented by internal/pipeline.Batch.
type BatchRunner interface {
	Run(ctx context.Context) error
}

// Scheduler fires BatchRunner.Run on a cron schedule. A run already in
// flight is never overlapped with another: Scheduler skips a tick if the
// previous one has not returned yet.
type Scheduler struct {
	runner   BatchRunner
	cronExpr string

	cron    *cron.Cron
	running chan struct{} // capacity-1 semaphore; held while a run is in flight
}

// New creates a Scheduler that invokes runner.Run each time cronExpr fires.
// cronExpr uses the standard 5-field cron syntax (minute hour dom month dow).
func New(runner BatchRunner, cronExpr string) *Scheduler {
	return &Scheduler{
		runner:   runner,
		cronExpr: cronExpr,
		running:  make(chan struct{}, 1),
	}
}

// Start registers the cron job and begins firing it. Returns an error if
// cronExpr does not parse. Intended to be passed as the stop-returning
// callback of a leader.Elector's OnElected so only the leader runs it:
//
//	elector := leader.New(tryLock, leader.RetryInterval, func(ctx context.Context) func() {
//	    s := scheduler.New(batch, cfg.Schedule)
//	    if err := s.Start(ctx); err != nil {
//	        slog.Error("scheduler: failed to start", "error", err)
//	        return func() {}
//	    }
//	    return s.Stop
//	})
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cronExpr, func() { s.tick(ctx) })
	if err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("scheduler: started", "cron", s.cronExpr)
	return nil
}

// Stop halts the cron scheduler and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// tick runs the batch reprocessing pass, skipping if one is already running.
func (s *Scheduler) tick(ctx context.Context) {
	select {
	case s.running <- struct{}{}:
	default:
		slog.Warn("scheduler: previous batch run still in flight, skipping tick")
		return
	}
	defer func() { <-s.running }()

	slog.Info("scheduler: batch run starting")
	if err := s.runner.Run(ctx); err != nil {
		slog.Error("scheduler: batch run failed", "error", err)
		return
	}
	slog.Info("scheduler: batch run complete")
}

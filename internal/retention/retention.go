// Package retention prunes old per-region output snapshots from the
// storage sink on a timer. Adapted from the teacher's internal/reaper:
// the same Start/Stop background-goroutine shape and per-task panic
// isolation, narrowed to the one concern this repo has a retention policy
// for — snapshot history, not runs/pipelines/audit logs.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
	"github.com/wikiwatershed/tdxmnsi/internal/storage"
)

// Sink is the subset of storage.Sink retention needs.
type Sink interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Sweeper deletes per-region output snapshots beyond the configured keep
// count. "Current" keys (storage.CurrentBasinsKey / CurrentStreamsNoBasinKey)
// are never touched — only the historical storage.SnapshotPrefix tree.
type Sweeper struct {
	sink    Sink
	regions []domain.RegionCode
	keep    int
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Sweeper that keeps the most recent `keep` snapshots per
// region, checking every interval. keep is clamped to at least 1.
func New(sink Sink, regions []domain.RegionCode, keep int, interval time.Duration) *Sweeper {
	if keep < 1 {
		keep = 1
	}
	return &Sweeper{sink: sink, regions: regions, keep: keep, interval: interval}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for it to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// RunNow runs one sweep pass immediately and returns the number of
// snapshot objects deleted.
func (s *Sweeper) RunNow(ctx context.Context) int {
	return s.tick(ctx)
}

func (s *Sweeper) tick(ctx context.Context) int {
	total := 0
	for _, region := range s.regions {
		s.safeRun(region, func() {
			total += s.sweepRegion(ctx, region)
		})
	}
	if total > 0 {
		slog.Info("retention: sweep complete", "deleted", total)
	}
	return total
}

func (s *Sweeper) sweepRegion(ctx context.Context, region domain.RegionCode) int {
	keys, err := s.sink.List(ctx, storage.SnapshotPrefix(region))
	if err != nil {
		slog.Error("retention: list snapshots failed", "region", region, "error", err)
		return 0
	}

	timestamps := storage.SnapshotTimestamps(region, keys)
	if len(timestamps) <= s.keep {
		return 0
	}

	stale := timestamps[s.keep:]
	staleSet := make(map[string]bool, len(stale))
	for _, ts := range stale {
		staleSet[ts.UTC().Format(time.RFC3339Nano)] = true
	}

	deleted := 0
	prefix := storage.SnapshotPrefix(region)
	for _, k := range keys {
		rest := k[len(prefix):]
		for tsStr := range staleSet {
			if len(rest) > len(tsStr) && rest[:len(tsStr)] == tsStr {
				if err := s.sink.Delete(ctx, k); err != nil {
					slog.Warn("retention: delete snapshot failed", "key", k, "error", err)
					continue
				}
				deleted++
				break
			}
		}
	}
	return deleted
}

// safeRun executes fn with panic recovery so one region's failure never
// stops the sweep of the others.
func (s *Sweeper) safeRun(region domain.RegionCode, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("retention: sweep panicked", "region", region, "panic", rec)
		}
	}()
	fn()
}

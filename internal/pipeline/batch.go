// Package pipeline wires the ID Rekeyer, MNSI Engine, Basin Joiner, and
// Dissolve Planner into a per-region run, and fans that run out across the
// configured region list with bounded concurrency.
//
// Grounded on the original implementation's batch_process.py, a flat
// for-loop over regions with print-only progress; this package adds the
// isolation policy of spec.md §7 (one region's failure doesn't stop the
// batch) and a persistent per-region job ledger in place of print
// statements.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wikiwatershed/tdxmnsi/internal/config"
	"github.com/wikiwatershed/tdxmnsi/internal/domain"
	"github.com/wikiwatershed/tdxmnsi/internal/geomutil"
	"github.com/wikiwatershed/tdxmnsi/internal/postgres"
	"github.com/wikiwatershed/tdxmnsi/internal/rekey"
	"github.com/wikiwatershed/tdxmnsi/internal/storage"
	"github.com/wikiwatershed/tdxmnsi/internal/table"
)

// HeaderLoader produces the region-to-header crosswalk. Implemented by
// *crosswalk.Loader; a narrow interface so Batch can be tested without a
// network fetch.
type HeaderLoader interface {
	Load(ctx context.Context) (rekey.HeaderTable, error)
}

// JobLedger records per-region batch attempts. Implemented by
// *postgres.RegionJobStore; nil is valid (no persistence) for
// single-shot/local use.
type JobLedger interface {
	CreateJob(ctx context.Context, job *domain.RegionJob) error
	MarkRunning(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, p postgres.CompleteJobParams) error
}

// Batch runs the full pipeline over every region in its config, in
// parallel up to cfg.Concurrency, writing each region's output to Sink and
// recording outcomes in Ledger. Batch implements both api.BatchRunner and
// scheduler.BatchRunner (both just need Run(ctx) error / ActiveJobs() int).
type Batch struct {
	Config  *config.Config
	Reader  SourceReader
	Sink    storage.Sink
	Headers HeaderLoader
	Ledger  JobLedger // optional
	Dir     string    // directory input files are resolved under

	active int32
}

// ActiveJobs reports how many regions are currently being processed.
// Satisfies api.BatchRunner for the /metrics endpoint.
func (b *Batch) ActiveJobs() int {
	return int(atomic.LoadInt32(&b.active))
}

// Run processes every configured region, continuing past a region's
// failure and returning a combined error naming every region that failed.
// A nil return means every region succeeded.
func (b *Batch) Run(ctx context.Context) error {
	headers, err := b.Headers.Load(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: loading crosswalk: %w", err)
	}

	batchID := newBatchID()

	limit := b.Config.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	failures := make(chan error, len(b.Config.Regions))

	for _, rc := range b.Config.Regions {
		rc := rc
		g.Go(func() error {
			if err := b.runOneRegion(gctx, rc, headers, batchID); err != nil {
				slog.Error("pipeline: region failed", "region", rc.Code, "error", err)
				failures <- err
				return nil // isolate: never abort the group on one region's error
			}
			return nil
		})
	}

	// errgroup.Wait only ever returns nil here since runOneRegion's error is
	// captured on the failures channel, not returned to the group.
	_ = g.Wait()
	close(failures)

	var errs []error
	for err := range failures {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("pipeline: %d of %d regions failed: %w", len(errs), len(b.Config.Regions), combineErrors(errs))
	}
	return nil
}

func (b *Batch) runOneRegion(ctx context.Context, rc config.RegionConfig, headers rekey.HeaderTable, batchID string) error {
	atomic.AddInt32(&b.active, 1)
	defer atomic.AddInt32(&b.active, -1)

	region := domain.RegionCode(rc.Code)
	job := &domain.RegionJob{Region: region, BatchID: batchID, Status: domain.RegionJobPending}
	if b.Ledger != nil {
		if err := b.Ledger.CreateJob(ctx, job); err != nil {
			return fmt.Errorf("region %d: create job: %w", region, err)
		}
		if err := b.Ledger.MarkRunning(ctx, job.ID); err != nil {
			return fmt.Errorf("region %d: mark running: %w", region, err)
		}
	}

	started := time.Now()
	result, err := b.process(ctx, rc, region, headers)
	durationMs := time.Since(started).Milliseconds()
	if err != nil {
		b.recordCompletion(ctx, job.ID, region, domain.RegionJobFailed, durationMs, nil, err)
		return err
	}

	b.recordCompletion(ctx, job.ID, region, domain.RegionJobSuccess, durationMs, result, nil)
	return nil
}

func (b *Batch) recordCompletion(ctx context.Context, jobID string, region domain.RegionCode, status domain.RegionJobStatus, durationMs int64, result *RegionResult, regionErr error) {
	if b.Ledger == nil {
		return
	}
	p := postgres.CompleteJobParams{
		JobID:      jobID,
		Status:     status,
		DurationMs: &durationMs,
	}
	if regionErr != nil {
		msg := regionErr.Error()
		p.Error = &msg
	}
	if result != nil {
		streamCount, basinCount := int64(result.StreamReachCount), int64(result.BasinCount)
		p.StreamCount = &streamCount
		p.BasinCount = &basinCount
		streamsKey, basinsKey := storage.CurrentStreamsNoBasinKey(region), storage.CurrentBasinsKey(region)
		p.StreamsKey = &streamsKey
		p.BasinsKey = &basinsKey
	}
	if err := b.Ledger.CompleteJob(ctx, p); err != nil {
		slog.Error("pipeline: failed to record region job completion", "region", region, "error", err)
	}
}

func (b *Batch) process(ctx context.Context, rc config.RegionConfig, region domain.RegionCode, headers rekey.HeaderTable) (*RegionResult, error) {
	files, err := SelectRegionFiles(b.Dir, rc)
	if err != nil {
		return nil, err
	}

	result, err := RunRegion(files, region, headers, b.Config.Dissolve, b.Reader)
	if err != nil {
		return nil, err
	}

	if err := b.writeOutput(ctx, region, result); err != nil {
		return nil, fmt.Errorf("region %d: %w", region, err)
	}
	return result, nil
}

func (b *Batch) writeOutput(ctx context.Context, region domain.RegionCode, result *RegionResult) error {
	basinsData, err := table.WriteBasins(result.Basins)
	if err != nil {
		return fmt.Errorf("encode basins: %w", err)
	}
	streamsData, err := table.WriteStreams(result.OrphanStreams)
	if err != nil {
		return fmt.Errorf("encode orphan streams: %w", err)
	}
	geomData, err := geomutil.WriteGeoJSON(result.BasinGeometry)
	if err != nil {
		return fmt.Errorf("encode geometry: %w", err)
	}

	now := time.Now()
	writes := map[string][]byte{
		storage.CurrentBasinsKey(region):               basinsData,
		storage.CurrentStreamsNoBasinKey(region):        streamsData,
		storage.CurrentGeometryKey(region):               geomData,
		storage.SnapshotBasinsKey(region, now):           basinsData,
		storage.SnapshotStreamsNoBasinKey(region, now):   streamsData,
		storage.SnapshotGeometryKey(region, now):         geomData,
	}
	for key, data := range writes {
		if err := b.Sink.Put(ctx, key, data); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return nil
}

func newBatchID() string {
	return uuid.New().String()
}

func combineErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}

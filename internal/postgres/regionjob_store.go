package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

// RegionJobStore is the per-region batch-run ledger backed by Postgres.
type RegionJobStore struct {
	pool *pgxpool.Pool
}

// NewRegionJobStore creates a RegionJobStore backed by the given pool.
func NewRegionJobStore(pool *pgxpool.Pool) *RegionJobStore {
	return &RegionJobStore{pool: pool}
}

const regionJobColumns = `id, region_code, batch_id, status, started_at, finished_at,
	duration_ms, stream_count, basin_count, error, streams_key, basins_key, created_at`

// CreateJob inserts a new pending region job row and fills in its ID and CreatedAt.
func (s *RegionJobStore) CreateJob(ctx context.Context, job *domain.RegionJob) error {
	batchID, err := uuid.Parse(job.BatchID)
	if err != nil {
		return fmt.Errorf("invalid batch id: %w", err)
	}

	var id uuid.UUID
	var createdAt time.Time
	err = s.pool.QueryRow(ctx,
		`INSERT INTO region_jobs (region_code, batch_id, status) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		int64(job.Region), batchID, string(job.Status),
	).Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("create region job: %w", err)
	}

	job.ID = id.String()
	job.CreatedAt = createdAt
	return nil
}

// MarkRunning transitions a job to running and records its start time.
func (s *RegionJobStore) MarkRunning(ctx context.Context, jobID string) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("invalid job id: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE region_jobs SET status = $1, started_at = now() WHERE id = $2`,
		string(domain.RegionJobRunning), id)
	if err != nil {
		return fmt.Errorf("mark region job running: %w", err)
	}
	return nil
}

// CompleteJobParams carries the outcome of a finished region run.
type CompleteJobParams struct {
	JobID       string
	Status      domain.RegionJobStatus
	Error       *string
	StreamCount *int64
	BasinCount  *int64
	DurationMs  *int64
	StreamsKey  *string
	BasinsKey   *string
}

// CompleteJob records a terminal status (success or failed) on a region job.
func (s *RegionJobStore) CompleteJob(ctx context.Context, p CompleteJobParams) error {
	id, err := uuid.Parse(p.JobID)
	if err != nil {
		return fmt.Errorf("invalid job id: %w", err)
	}

	var durationMs pgtype.Int4
	if p.DurationMs != nil {
		durationMs = pgtype.Int4{Int32: clampInt64ToInt32(*p.DurationMs), Valid: true}
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE region_jobs SET
			status = $1, finished_at = now(), error = $2,
			stream_count = $3, basin_count = $4, duration_ms = $5,
			streams_key = $6, basins_key = $7
		 WHERE id = $8`,
		string(p.Status), textPtr(p.Error), p.StreamCount, p.BasinCount, durationMs,
		textPtr(p.StreamsKey), textPtr(p.BasinsKey), id)
	if err != nil {
		return fmt.Errorf("complete region job: %w", err)
	}
	return nil
}

// GetJob returns a single job by ID, or nil if it does not exist.
func (s *RegionJobStore) GetJob(ctx context.Context, jobID string) (*domain.RegionJob, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, nil
	}

	row := s.pool.QueryRow(ctx, `SELECT `+regionJobColumns+` FROM region_jobs WHERE id = $1`, id)
	job, err := scanRegionJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get region job: %w", err)
	}
	return job, nil
}

// LatestJobPerRegion returns the most recent job row for each distinct
// region code that has ever been run, using DISTINCT ON to avoid N+1 queries.
func (s *RegionJobStore) LatestJobPerRegion(ctx context.Context) ([]domain.RegionJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (region_code) `+regionJobColumns+`
		 FROM region_jobs ORDER BY region_code, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest region jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.RegionJob
	for rows.Next() {
		job, err := scanRegionJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan latest region job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// ListJobsForBatch returns every region job belonging to a batch run.
func (s *RegionJobStore) ListJobsForBatch(ctx context.Context, batchID string) ([]domain.RegionJob, error) {
	id, err := uuid.Parse(batchID)
	if err != nil {
		return nil, fmt.Errorf("invalid batch id: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+regionJobColumns+` FROM region_jobs WHERE batch_id = $1 ORDER BY region_code`, id)
	if err != nil {
		return nil, fmt.Errorf("list region jobs for batch: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RegionJob, 0)
	for rows.Next() {
		job, err := scanRegionJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan region job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRegionJob(row rowScanner) (*domain.RegionJob, error) {
	var (
		id, batchID           uuid.UUID
		regionCode            int64
		status                string
		startedAt, finishedAt *time.Time
		durationMs            pgtype.Int4
		streamCount           pgtype.Int8
		basinCount            pgtype.Int8
		errText               pgtype.Text
		streamsKey            pgtype.Text
		basinsKey             pgtype.Text
		createdAt             time.Time
	)
	if err := row.Scan(&id, &regionCode, &batchID, &status, &startedAt, &finishedAt,
		&durationMs, &streamCount, &basinCount, &errText, &streamsKey, &basinsKey, &createdAt); err != nil {
		return nil, err
	}

	job := &domain.RegionJob{
		ID:         id.String(),
		Region:     domain.RegionCode(regionCode),
		BatchID:    batchID.String(),
		Status:     domain.RegionJobStatus(status),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		CreatedAt:  createdAt,
	}
	if streamCount.Valid {
		job.StreamCount = int(streamCount.Int64)
	}
	if basinCount.Valid {
		job.BasinCount = int(basinCount.Int64)
	}
	if errText.Valid {
		job.Error = &errText.String
	}
	return job, nil
}

func textPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

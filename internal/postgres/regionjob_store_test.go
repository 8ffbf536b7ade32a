package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
	"github.com/wikiwatershed/tdxmnsi/internal/postgres"
)

func TestRegionJobStore_CreateAndGet(t *testing.T) {
	pool := testPool(t)
	store := postgres.NewRegionJobStore(pool)
	ctx := context.Background()

	job := &domain.RegionJob{
		Region:  domain.RegionCode(4020024190),
		BatchID: uuid.NewString(),
		Status:  domain.RegionJobPending,
	}
	require.NoError(t, store.CreateJob(ctx, job))
	require.NotEmpty(t, job.ID)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.RegionCode(4020024190), got.Region)
	assert.Equal(t, domain.RegionJobPending, got.Status)
}

func TestRegionJobStore_GetJob_NotFound(t *testing.T) {
	pool := testPool(t)
	store := postgres.NewRegionJobStore(pool)

	got, err := store.GetJob(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegionJobStore_MarkRunningThenComplete(t *testing.T) {
	pool := testPool(t)
	store := postgres.NewRegionJobStore(pool)
	ctx := context.Background()

	job := &domain.RegionJob{Region: domain.RegionCode(1), BatchID: uuid.NewString(), Status: domain.RegionJobPending}
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.MarkRunning(ctx, job.ID))

	streams, basins := int64(120), int64(45)
	duration := int64(5200)
	streamsKey, basinsKey := "regions/1/streams.arrow", "regions/1/basins.arrow"
	require.NoError(t, store.CompleteJob(ctx, postgres.CompleteJobParams{
		JobID: job.ID, Status: domain.RegionJobSuccess,
		StreamCount: &streams, BasinCount: &basins, DurationMs: &duration,
		StreamsKey: &streamsKey, BasinsKey: &basinsKey,
	}))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.RegionJobSuccess, got.Status)
	assert.Equal(t, 120, got.StreamCount)
	assert.Equal(t, 45, got.BasinCount)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.FinishedAt)
}

func TestRegionJobStore_CompleteJob_WithError(t *testing.T) {
	pool := testPool(t)
	store := postgres.NewRegionJobStore(pool)
	ctx := context.Background()

	job := &domain.RegionJob{Region: domain.RegionCode(2), BatchID: uuid.NewString(), Status: domain.RegionJobPending}
	require.NoError(t, store.CreateJob(ctx, job))

	errMsg := "dangling reference: link_id 5 field us_left points to missing link_id 9"
	require.NoError(t, store.CompleteJob(ctx, postgres.CompleteJobParams{
		JobID: job.ID, Status: domain.RegionJobFailed, Error: &errMsg,
	}))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Error)
	assert.Equal(t, errMsg, *got.Error)
}

func TestRegionJobStore_ListJobsForBatch(t *testing.T) {
	pool := testPool(t)
	store := postgres.NewRegionJobStore(pool)
	ctx := context.Background()

	batchID := uuid.NewString()
	for _, region := range []int64{10, 20, 30} {
		job := &domain.RegionJob{Region: domain.RegionCode(region), BatchID: batchID, Status: domain.RegionJobPending}
		require.NoError(t, store.CreateJob(ctx, job))
	}

	jobs, err := store.ListJobsForBatch(ctx, batchID)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, domain.RegionCode(10), jobs[0].Region)
	assert.Equal(t, domain.RegionCode(30), jobs[2].Region)
}

func TestRegionJobStore_LatestJobPerRegion(t *testing.T) {
	pool := testPool(t)
	store := postgres.NewRegionJobStore(pool)
	ctx := context.Background()

	first := &domain.RegionJob{Region: domain.RegionCode(99), BatchID: uuid.NewString(), Status: domain.RegionJobPending}
	require.NoError(t, store.CreateJob(ctx, first))
	require.NoError(t, store.CompleteJob(ctx, postgres.CompleteJobParams{JobID: first.ID, Status: domain.RegionJobFailed}))

	second := &domain.RegionJob{Region: domain.RegionCode(99), BatchID: uuid.NewString(), Status: domain.RegionJobPending}
	require.NoError(t, store.CreateJob(ctx, second))
	require.NoError(t, store.CompleteJob(ctx, postgres.CompleteJobParams{JobID: second.ID, Status: domain.RegionJobSuccess}))

	latest, err := store.LatestJobPerRegion(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, second.ID, latest[0].ID)
	assert.Equal(t, domain.RegionJobSuccess, latest[0].Status)
}

package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yieldscope/internal/domain"
	"yieldscope/internal/storage"
	"yieldscope/internal/storage/clickhouse"
)

func TestSampleStore_UpsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewSampleStore(conn)
	ctx := context.Background()

	samples := []*domain.Sample{
		{PoolID: "pool-a", Timestamp: 2000, TVLUSD: ptr(1.1e6), APY: ptr(3.0), APYMean30d: ptr(2.5)},
		{PoolID: "pool-a", Timestamp: 1000, TVLUSD: ptr(1.0e6), APY: ptr(2.0), APYBase: ptr(1.5), APYReward: ptr(0.5)},
		{PoolID: "pool-b", Timestamp: 1500, TVLUSD: ptr(2.0e7)},
	}
	require.NoError(t, store.UpsertBulk(ctx, samples))

	got, err := store.GetByPoolID(ctx, "pool-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].Timestamp, "results should be ordered by timestamp")
	assert.Equal(t, int64(2000), got[1].Timestamp)
	require.NotNil(t, got[0].APYBase)
	assert.Equal(t, 1.5, *got[0].APYBase)
	require.NotNil(t, got[1].APYMean30d)
	assert.Equal(t, 2.5, *got[1].APYMean30d)
	assert.Nil(t, got[1].APYBase)
}

func TestSampleStore_UpsertLastWriteWins(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewSampleStore(conn)
	ctx := context.Background()

	require.NoError(t, store.UpsertBulk(ctx, []*domain.Sample{
		{PoolID: "pool-a", Timestamp: 1000, APY: ptr(2.0)},
	}))
	// Re-ingesting the same key replaces the row.
	require.NoError(t, store.UpsertBulk(ctx, []*domain.Sample{
		{PoolID: "pool-a", Timestamp: 1000, APY: ptr(9.0), TVLUSD: ptr(5.0)},
	}))

	got, err := store.GetByPoolID(ctx, "pool-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].APY)
	assert.Equal(t, 9.0, *got[0].APY)
	require.NotNil(t, got[0].TVLUSD)
	assert.Equal(t, 5.0, *got[0].TVLUSD)
}

func TestSampleStore_GetByTimeRangeInclusive(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewSampleStore(conn)
	ctx := context.Background()

	require.NoError(t, store.UpsertBulk(ctx, []*domain.Sample{
		{PoolID: "pool-a", Timestamp: 1000, APY: ptr(1.0)},
		{PoolID: "pool-a", Timestamp: 2000, APY: ptr(2.0)},
		{PoolID: "pool-a", Timestamp: 3000, APY: ptr(3.0)},
	}))

	got, err := store.GetByTimeRange(ctx, "pool-a", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2, "range bounds are inclusive")
	assert.Equal(t, int64(1000), got[0].Timestamp)
	assert.Equal(t, int64(2000), got[1].Timestamp)
}

func TestSampleStore_GetRegressionWindowFiltersNulls(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewSampleStore(conn)
	ctx := context.Background()

	require.NoError(t, store.UpsertBulk(ctx, []*domain.Sample{
		{PoolID: "pool-a", Timestamp: 1000, TVLUSD: ptr(1.0), APY: ptr(2.0)},
		{PoolID: "pool-a", Timestamp: 2000, APY: ptr(3.0)},  // no TVL
		{PoolID: "pool-a", Timestamp: 3000, TVLUSD: ptr(2.0)}, // no APY
		{PoolID: "pool-a", Timestamp: 4000, TVLUSD: ptr(3.0), APY: ptr(4.0)},
	}))

	got, err := store.GetRegressionWindow(ctx, "pool-a", 0, 10000)
	require.NoError(t, err)
	require.Len(t, got, 2, "rows missing TVL or APY must be filtered")
	assert.Equal(t, int64(1000), got[0].Timestamp)
	assert.Equal(t, int64(4000), got[1].Timestamp)
}

func TestSampleStore_GetLatest(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewSampleStore(conn)
	ctx := context.Background()

	require.NoError(t, store.UpsertBulk(ctx, []*domain.Sample{
		{PoolID: "pool-a", Timestamp: 1000, APY: ptr(1.0)},
		{PoolID: "pool-a", Timestamp: 3000, APY: ptr(3.0)},
		{PoolID: "pool-a", Timestamp: 2000, APY: ptr(2.0)},
	}))

	got, err := store.GetLatest(ctx, "pool-a")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), got.Timestamp)
	require.NotNil(t, got.APY)
	assert.Equal(t, 3.0, *got.APY)
}

func TestSampleStore_GetLatestNotFound(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewSampleStore(conn)

	_, err := store.GetLatest(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yieldscope/internal/domain"
	"yieldscope/internal/storage"
	"yieldscope/internal/storage/postgres"
)

func testPool(id string, seenAt time.Time) *domain.Pool {
	return &domain.Pool{
		PoolID:      id,
		Project:     "aave-v3",
		Chain:       "Ethereum",
		Symbol:      "USDC",
		Name:        "USDC",
		Category:    "Lending",
		Stablecoin:  true,
		FirstSeenAt: seenAt,
		LastSeenAt:  seenAt,
	}
}

func TestPoolStore_UpsertAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPoolStore(db)
	ctx := context.Background()

	seenAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Upsert(ctx, testPool("pool-a", seenAt)))

	got, err := store.GetByID(ctx, "pool-a")
	require.NoError(t, err)
	assert.Equal(t, "aave-v3", got.Project)
	assert.Equal(t, "Lending", got.Category)
	assert.True(t, got.Stablecoin)
	assert.True(t, got.FirstSeenAt.Equal(seenAt))
}

func TestPoolStore_UpsertPreservesFirstSeenAt(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPoolStore(db)
	ctx := context.Background()

	first := time.Now().UTC().Truncate(time.Microsecond).Add(-time.Hour)
	second := first.Add(time.Hour)

	require.NoError(t, store.Upsert(ctx, testPool("pool-a", first)))

	updated := testPool("pool-a", second)
	updated.Category = "Yield"
	require.NoError(t, store.Upsert(ctx, updated))

	got, err := store.GetByID(ctx, "pool-a")
	require.NoError(t, err)
	assert.Equal(t, "Yield", got.Category, "metadata should be replaced")
	assert.True(t, got.FirstSeenAt.Equal(first), "first_seen_at should be preserved")
	assert.True(t, got.LastSeenAt.Equal(second), "last_seen_at should advance")
}

func TestPoolStore_GetByIDNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPoolStore(db)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPoolStore_ListOrdered(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPoolStore(db)
	ctx := context.Background()

	seenAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Upsert(ctx, testPool("pool-b", seenAt)))
	require.NoError(t, store.Upsert(ctx, testPool("pool-a", seenAt)))
	require.NoError(t, store.Upsert(ctx, testPool("pool-c", seenAt)))

	pools, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 3)
	assert.Equal(t, "pool-a", pools[0].PoolID)
	assert.Equal(t, "pool-b", pools[1].PoolID)
	assert.Equal(t, "pool-c", pools[2].PoolID)
}

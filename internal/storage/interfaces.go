package storage

import (
	"context"

	"yieldscope/internal/domain"
)

// PoolStore provides access to pool metadata storage.
type PoolStore interface {
	// Upsert inserts or replaces a pool keyed by pool_id. FirstSeenAt is
	// preserved across upserts; LastSeenAt is taken from the argument.
	Upsert(ctx context.Context, p *domain.Pool) error

	// GetByID retrieves a pool by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, poolID string) (*domain.Pool, error)

	// List retrieves all pools, ordered by pool_id ASC.
	List(ctx context.Context) ([]*domain.Pool, error)
}

// SampleStore provides access to pool sample time-series storage.
// Samples are keyed by (pool_id, timestamp) with last-write-wins upserts.
type SampleStore interface {
	// UpsertBulk inserts or replaces samples. Within one batch the last
	// entry for a key wins, matching re-ingestion of overlapping history.
	UpsertBulk(ctx context.Context, samples []*domain.Sample) error

	// GetByPoolID retrieves all samples for a pool, ordered by timestamp ASC.
	GetByPoolID(ctx context.Context, poolID string) ([]*domain.Sample, error)

	// GetByTimeRange retrieves samples for a pool within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.Sample, error)

	// GetRegressionWindow retrieves samples for a pool within [start, end]
	// (inclusive) where both tvl_usd and apy are present, ordered by
	// timestamp ASC. This is the candidate set for the elasticity estimator;
	// rows missing either field never reach it.
	GetRegressionWindow(ctx context.Context, poolID string, start, end int64) ([]*domain.Sample, error)

	// GetLatest retrieves the most recent sample for a pool.
	// Returns ErrNotFound if the pool has no samples.
	GetLatest(ctx context.Context, poolID string) (*domain.Sample, error)
}

// SummaryStore provides access to pool summary storage.
type SummaryStore interface {
	// Replace overwrites the summary row for s.PoolID wholesale. The write
	// is a single statement, so concurrent recomputes of the same pool
	// serialize at the row rather than interleaving fields.
	Replace(ctx context.Context, s *domain.PoolSummary) error

	// GetByPoolID retrieves a summary by pool ID. Returns ErrNotFound if
	// the pool has not been recomputed yet.
	GetByPoolID(ctx context.Context, poolID string) (*domain.PoolSummary, error)

	// List retrieves all summaries, ordered by pool_id ASC.
	List(ctx context.Context) ([]*domain.PoolSummary, error)
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"yieldscope/internal/domain"
	"yieldscope/internal/storage"
)

// SummaryStore implements storage.SummaryStore using PostgreSQL.
type SummaryStore struct {
	pool *Pool
}

// NewSummaryStore creates a new SummaryStore.
func NewSummaryStore(pool *Pool) *SummaryStore {
	return &SummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SummaryStore = (*SummaryStore)(nil)

// Replace overwrites the summary row for s.PoolID wholesale. The upsert is a
// single statement, so concurrent recomputes of the same pool serialize on
// the row and the last one wins with a complete, consistent set of fields.
func (s *SummaryStore) Replace(ctx context.Context, sum *domain.PoolSummary) error {
	if sum == nil || sum.PoolID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pool_summaries (
			pool_id, latest_timestamp, latest_tvl_usd, latest_apy,
			latest_apy_base, latest_apy_reward, slope, sample_count,
			min_tvl_usd, max_tvl_usd, window_start, window_end, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (pool_id) DO UPDATE SET
			latest_timestamp = EXCLUDED.latest_timestamp,
			latest_tvl_usd = EXCLUDED.latest_tvl_usd,
			latest_apy = EXCLUDED.latest_apy,
			latest_apy_base = EXCLUDED.latest_apy_base,
			latest_apy_reward = EXCLUDED.latest_apy_reward,
			slope = EXCLUDED.slope,
			sample_count = EXCLUDED.sample_count,
			min_tvl_usd = EXCLUDED.min_tvl_usd,
			max_tvl_usd = EXCLUDED.max_tvl_usd,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			computed_at = EXCLUDED.computed_at
	`

	_, err := s.pool.Exec(ctx, query,
		sum.PoolID,
		sum.LatestTimestamp,
		sum.LatestTVLUSD,
		sum.LatestAPY,
		sum.LatestAPYBase,
		sum.LatestAPYReward,
		sum.Slope,
		sum.SampleCount,
		sum.MinTVLUSD,
		sum.MaxTVLUSD,
		sum.WindowStart,
		sum.WindowEnd,
		sum.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("replace pool summary: %w", err)
	}
	return nil
}

// GetByPoolID retrieves a summary by pool ID. Returns ErrNotFound if not exists.
func (s *SummaryStore) GetByPoolID(ctx context.Context, poolID string) (*domain.PoolSummary, error) {
	query := `
		SELECT pool_id, latest_timestamp, latest_tvl_usd, latest_apy,
		       latest_apy_base, latest_apy_reward, slope, sample_count,
		       min_tvl_usd, max_tvl_usd, window_start, window_end, computed_at
		FROM pool_summaries
		WHERE pool_id = $1
	`

	row := s.pool.QueryRow(ctx, query, poolID)
	sum, err := scanSummary(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool summary: %w", err)
	}
	return sum, nil
}

// List retrieves all summaries, ordered by pool_id ASC.
func (s *SummaryStore) List(ctx context.Context) ([]*domain.PoolSummary, error) {
	query := `
		SELECT pool_id, latest_timestamp, latest_tvl_usd, latest_apy,
		       latest_apy_base, latest_apy_reward, slope, sample_count,
		       min_tvl_usd, max_tvl_usd, window_start, window_end, computed_at
		FROM pool_summaries
		ORDER BY pool_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pool summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.PoolSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool summary row: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool summary rows: %w", err)
	}

	return summaries, nil
}

// scanSummary scans a single row into a PoolSummary.
func scanSummary(row pgx.Row) (*domain.PoolSummary, error) {
	var sum domain.PoolSummary

	err := row.Scan(
		&sum.PoolID,
		&sum.LatestTimestamp,
		&sum.LatestTVLUSD,
		&sum.LatestAPY,
		&sum.LatestAPYBase,
		&sum.LatestAPYReward,
		&sum.Slope,
		&sum.SampleCount,
		&sum.MinTVLUSD,
		&sum.MaxTVLUSD,
		&sum.WindowStart,
		&sum.WindowEnd,
		&sum.ComputedAt,
	)
	if err != nil {
		return nil, err
	}

	return &sum, nil
}

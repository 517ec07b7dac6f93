package clickhouse

import (
	"context"
	"fmt"

	"yieldscope/internal/domain"
	"yieldscope/internal/storage"
)

// SampleStore implements storage.SampleStore using ClickHouse.
//
// pool_samples is a ReplacingMergeTree ordered by (pool_id, ts): re-inserting
// a key supersedes the previous row by insertion time, which gives the
// last-write-wins upsert the ingestion workflow needs. Reads use FINAL so
// superseded rows are collapsed before they reach callers.
type SampleStore struct {
	conn *Conn
}

// NewSampleStore creates a new SampleStore.
func NewSampleStore(conn *Conn) *SampleStore {
	return &SampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SampleStore = (*SampleStore)(nil)

const sampleColumns = `pool_id, ts, tvl_usd, apy, apy_base, apy_reward, apy_mean_30d`

// UpsertBulk inserts or replaces samples, last write wins per (pool_id, ts).
func (s *SampleStore) UpsertBulk(ctx context.Context, samples []*domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	for _, sm := range samples {
		if sm == nil || sm.PoolID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_samples (`+sampleColumns+`)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sm := range samples {
		err = batch.Append(
			sm.PoolID, sm.Timestamp,
			sm.TVLUSD, sm.APY, sm.APYBase, sm.APYReward, sm.APYMean30d,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPoolID retrieves all samples for a pool, ordered by timestamp ASC.
func (s *SampleStore) GetByPoolID(ctx context.Context, poolID string) ([]*domain.Sample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM pool_samples FINAL
		WHERE pool_id = ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("query by pool id: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// GetByTimeRange retrieves samples for a pool within [start, end] (inclusive).
func (s *SampleStore) GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.Sample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM pool_samples FINAL
		WHERE pool_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// GetRegressionWindow retrieves samples within [start, end] where both
// tvl_usd and apy are present. Rows missing either field are excluded here
// so they never reach the elasticity estimator.
func (s *SampleStore) GetRegressionWindow(ctx context.Context, poolID string, start, end int64) ([]*domain.Sample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM pool_samples FINAL
		WHERE pool_id = ? AND ts >= ? AND ts <= ?
		  AND tvl_usd IS NOT NULL AND apy IS NOT NULL
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query regression window: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// GetLatest retrieves the most recent sample for a pool.
func (s *SampleStore) GetLatest(ctx context.Context, poolID string) (*domain.Sample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM pool_samples FINAL
		WHERE pool_id = ?
		ORDER BY ts DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("query latest sample: %w", err)
	}
	defer rows.Close()

	samples, err := scanSamples(rows)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, storage.ErrNotFound
	}
	return samples[0], nil
}

// chRows is the subset of driver.Rows used by scanSamples.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanSamples scans multiple rows.
func scanSamples(rows chRows) ([]*domain.Sample, error) {
	var samples []*domain.Sample

	for rows.Next() {
		var sm domain.Sample

		err := rows.Scan(
			&sm.PoolID, &sm.Timestamp,
			&sm.TVLUSD, &sm.APY, &sm.APYBase, &sm.APYReward, &sm.APYMean30d,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}

		samples = append(samples, &sm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows: %w", err)
	}

	return samples, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"yieldscope/internal/domain"
	"yieldscope/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

// Upsert inserts or replaces a pool keyed by pool_id. first_seen_at is kept
// from the existing row; everything else takes the new values.
func (s *PoolStore) Upsert(ctx context.Context, p *domain.Pool) error {
	if p == nil || p.PoolID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pools (
			pool_id, project, chain, symbol, name, category, stablecoin,
			first_seen_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (pool_id) DO UPDATE SET
			project = EXCLUDED.project,
			chain = EXCLUDED.chain,
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			stablecoin = EXCLUDED.stablecoin,
			last_seen_at = EXCLUDED.last_seen_at
	`

	_, err := s.pool.Exec(ctx, query,
		p.PoolID,
		p.Project,
		p.Chain,
		p.Symbol,
		p.Name,
		p.Category,
		p.Stablecoin,
		p.FirstSeenAt,
		p.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("upsert pool: %w", err)
	}
	return nil
}

// GetByID retrieves a pool by its ID. Returns ErrNotFound if not exists.
func (s *PoolStore) GetByID(ctx context.Context, poolID string) (*domain.Pool, error) {
	query := `
		SELECT pool_id, project, chain, symbol, name, category, stablecoin,
		       first_seen_at, last_seen_at
		FROM pools
		WHERE pool_id = $1
	`

	row := s.pool.QueryRow(ctx, query, poolID)
	p, err := scanPool(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool by id: %w", err)
	}
	return p, nil
}

// List retrieves all pools, ordered by pool_id ASC.
func (s *PoolStore) List(ctx context.Context) ([]*domain.Pool, error) {
	query := `
		SELECT pool_id, project, chain, symbol, name, category, stablecoin,
		       first_seen_at, last_seen_at
		FROM pools
		ORDER BY pool_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	var pools []*domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool rows: %w", err)
	}

	return pools, nil
}

// scanPool scans a single row into a Pool.
func scanPool(row pgx.Row) (*domain.Pool, error) {
	var p domain.Pool

	err := row.Scan(
		&p.PoolID,
		&p.Project,
		&p.Chain,
		&p.Symbol,
		&p.Name,
		&p.Category,
		&p.Stablecoin,
		&p.FirstSeenAt,
		&p.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

package ingestion

import (
	"context"

	"yieldscope/internal/llama"
)

// PoolSource provides the pool catalog from an external aggregator.
type PoolSource interface {
	// Pools returns the full pool list with latest observed fields.
	Pools(ctx context.Context) ([]llama.PoolEntry, error)
}

// HistorySource provides per-pool TVL/APY history from an external aggregator.
type HistorySource interface {
	// Chart returns the history for one pool. Points may carry invalid
	// timestamps; Runner drops those.
	Chart(ctx context.Context, poolID string) ([]llama.HistoryPoint, error)
}

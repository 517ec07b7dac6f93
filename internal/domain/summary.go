package domain

import "time"

// PoolSummary is the per-pool derived row refreshed by the recompute workflow.
// Corresponds to the pool_summaries table in PostgreSQL, keyed by pool_id.
//
// The row is created or overwritten wholesale on each recompute pass, never
// partially updated. It is derived state: it can be regenerated from raw
// samples at any time and is read-only to the serving layer.
type PoolSummary struct {
	PoolID string

	// Latest known sample fields.
	LatestTimestamp int64
	LatestTVLUSD    *float64
	LatestAPY       *float64
	LatestAPYBase   *float64
	LatestAPYReward *float64

	// Elasticity of the yield rate with respect to TVL, estimated by
	// ordinary least squares over the estimation window.
	Slope float64

	// Diagnostics for the estimation window.
	SampleCount int
	MinTVLUSD   float64
	MaxTVLUSD   float64
	WindowStart int64
	WindowEnd   int64

	ComputedAt time.Time
}

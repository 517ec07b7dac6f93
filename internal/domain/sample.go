package domain

// Sample is one timestamped observation of a pool's capital and yield fields.
// Corresponds to the pool_samples table in ClickHouse, keyed by (pool_id, ts).
//
// Optional fields are pointers: nil means "not observed", never zero.
type Sample struct {
	PoolID    string // pool identifier
	Timestamp int64  // Unix timestamp in seconds

	TVLUSD    *float64 // total value locked in USD
	APY       *float64 // total annualized yield, percent
	APYBase   *float64 // fixed component of the yield
	APYReward *float64 // variable (incentive) component of the yield

	// APYMean30d is the trailing 30-day mean of the resolved yield rate,
	// attached during ingestion. Nil when no yield observation fell inside
	// the trailing window.
	APYMean30d *float64
}

// Rolling and estimation window defaults, in seconds.
const (
	// RollingWindowSeconds bounds the trailing mean attached to each sample.
	RollingWindowSeconds int64 = 30 * 24 * 3600

	// EstimationWindowSeconds bounds the sample set fed to the elasticity
	// estimator on each recompute pass.
	EstimationWindowSeconds int64 = 90 * 24 * 3600
)

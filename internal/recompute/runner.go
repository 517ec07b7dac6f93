// Package recompute refreshes per-pool derived summaries from raw samples.
package recompute

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"yieldscope/internal/domain"
	"yieldscope/internal/observability"
	"yieldscope/internal/storage"
	"yieldscope/internal/timeseries"
)

// Runner executes one recompute pass over all known pools.
type Runner struct {
	poolStore     storage.PoolStore
	sampleStore   storage.SampleStore
	summaryStore  storage.SummaryStore
	windowSeconds int64
	logger        *log.Logger
	now           func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	PoolStore     storage.PoolStore
	SampleStore   storage.SampleStore
	SummaryStore  storage.SummaryStore
	WindowSeconds int64 // estimation window, default 90 days
	Logger        *log.Logger
	Now           func() time.Time
}

// NewRunner creates a new recompute runner.
func NewRunner(opts RunnerOptions) *Runner {
	windowSeconds := opts.WindowSeconds
	if windowSeconds == 0 {
		windowSeconds = domain.EstimationWindowSeconds
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		poolStore:     opts.PoolStore,
		sampleStore:   opts.SampleStore,
		summaryStore:  opts.SummaryStore,
		windowSeconds: windowSeconds,
		logger:        logger,
		now:           now,
	}
}

// RunResult summarizes one recompute pass.
type RunResult struct {
	RunID             string
	SummariesComputed int
	PoolsSkipped      int
	PoolErrors        int
}

// Run recomputes the summary for every known pool. Pools with no qualifying
// history in the window are skipped without error; the skip is counted so
// operators can watch the ratio. Per-pool storage failures are logged and
// counted but do not abort the pass.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	started := r.now()
	result := &RunResult{RunID: uuid.NewString()}

	pools, err := r.poolStore.List(ctx)
	if err != nil {
		observability.RecordRecomputeRun("error", r.now().Sub(started).Seconds())
		return nil, fmt.Errorf("list pools: %w", err)
	}

	r.logger.Printf("recompute run %s: %d pools", result.RunID, len(pools))

	for _, pool := range pools {
		if err := ctx.Err(); err != nil {
			observability.RecordRecomputeRun("cancelled", r.now().Sub(started).Seconds())
			return result, err
		}

		computed, err := r.recomputePool(ctx, pool.PoolID)
		if err != nil {
			r.logger.Printf("recompute run %s: pool %s: %v", result.RunID, pool.PoolID, err)
			result.PoolErrors++
			continue
		}
		if !computed {
			result.PoolsSkipped++
			observability.RecordPoolSkippedNoData()
			continue
		}
		result.SummariesComputed++
		observability.RecordSummaryComputed()
	}

	observability.RecordRecomputeRun("success", r.now().Sub(started).Seconds())
	observability.DefaultMetrics.LastSuccessfulRecompute.Set(float64(r.now().Unix()))

	r.logger.Printf("recompute run %s: %d summaries computed, %d pools skipped, %d errors",
		result.RunID, result.SummariesComputed, result.PoolsSkipped, result.PoolErrors)

	return result, nil
}

// recomputePool builds and stores one pool's summary. Returns false when the
// pool has no qualifying history in the window.
func (r *Runner) recomputePool(ctx context.Context, poolID string) (bool, error) {
	windowEnd := r.now().Unix()
	windowStart := windowEnd - r.windowSeconds

	samples, err := r.sampleStore.GetRegressionWindow(ctx, poolID, windowStart, windowEnd)
	if err != nil {
		return false, fmt.Errorf("load regression window: %w", err)
	}
	if len(samples) == 0 {
		return false, nil
	}

	points := make([]timeseries.Point, len(samples))
	for i, s := range samples {
		points[i] = timeseries.Point{TVLUSD: *s.TVLUSD, APY: *s.APY}
	}
	estimate := timeseries.EstimateSlope(points)

	latest, err := r.sampleStore.GetLatest(ctx, poolID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Qualifying rows exist, so this should not happen; treat as
			// a transient read inconsistency and skip.
			return false, nil
		}
		return false, fmt.Errorf("load latest sample: %w", err)
	}

	summary := &domain.PoolSummary{
		PoolID:          poolID,
		LatestTimestamp: latest.Timestamp,
		LatestTVLUSD:    latest.TVLUSD,
		LatestAPY:       timeseries.ResolveAPY(latest),
		LatestAPYBase:   latest.APYBase,
		LatestAPYReward: latest.APYReward,
		Slope:           estimate.Slope,
		SampleCount:     estimate.Count,
		MinTVLUSD:       estimate.MinTVL,
		MaxTVLUSD:       estimate.MaxTVL,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
		ComputedAt:      r.now(),
	}

	if err := r.summaryStore.Replace(ctx, summary); err != nil {
		return false, fmt.Errorf("replace summary: %w", err)
	}
	return true, nil
}

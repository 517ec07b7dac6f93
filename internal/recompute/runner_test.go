package recompute_test

import (
	"context"
	"testing"
	"time"

	"yieldscope/internal/domain"
	"yieldscope/internal/recompute"
	"yieldscope/internal/storage"
	"yieldscope/internal/storage/memory"
)

func fp(v float64) *float64 { return &v }

type fixture struct {
	pools     *memory.PoolStore
	samples   *memory.SampleStore
	summaries *memory.SummaryStore
	runner    *recompute.Runner
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		pools:     memory.NewPoolStore(),
		samples:   memory.NewSampleStore(),
		summaries: memory.NewSummaryStore(),
		now:       time.Unix(100*24*3600, 0),
	}
	f.runner = recompute.NewRunner(recompute.RunnerOptions{
		PoolStore:    f.pools,
		SampleStore:  f.samples,
		SummaryStore: f.summaries,
		Now:          func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) addPool(t *testing.T, poolID string) {
	t.Helper()
	err := f.pools.Upsert(context.Background(), &domain.Pool{
		PoolID: poolID, Symbol: "USDC", FirstSeenAt: f.now, LastSeenAt: f.now,
	})
	if err != nil {
		t.Fatalf("Upsert pool failed: %v", err)
	}
}

func (f *fixture) addSamples(t *testing.T, samples []*domain.Sample) {
	t.Helper()
	if err := f.samples.UpsertBulk(context.Background(), samples); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}
}

func TestRunner_ComputesSummary(t *testing.T) {
	f := newFixture(t)
	f.addPool(t, "pool-a")

	base := f.now.Unix()
	f.addSamples(t, []*domain.Sample{
		{PoolID: "pool-a", Timestamp: base - 3000, TVLUSD: fp(1), APY: fp(2)},
		{PoolID: "pool-a", Timestamp: base - 2000, TVLUSD: fp(2), APY: fp(4)},
		{PoolID: "pool-a", Timestamp: base - 1000, TVLUSD: fp(3), APY: fp(6), APYBase: fp(5), APYReward: fp(1)},
	})

	result, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.SummariesComputed != 1 {
		t.Fatalf("Expected 1 summary computed, got %d", result.SummariesComputed)
	}

	summary, err := f.summaries.GetByPoolID(context.Background(), "pool-a")
	if err != nil {
		t.Fatalf("GetByPoolID failed: %v", err)
	}
	if summary.Slope != 2.0 {
		t.Errorf("Expected slope 2.0, got %f", summary.Slope)
	}
	if summary.SampleCount != 3 {
		t.Errorf("Expected 3 samples in window, got %d", summary.SampleCount)
	}
	if summary.MinTVLUSD != 1 || summary.MaxTVLUSD != 3 {
		t.Errorf("Expected TVL range [1,3], got [%f,%f]", summary.MinTVLUSD, summary.MaxTVLUSD)
	}
	if summary.LatestTimestamp != base-1000 {
		t.Errorf("Expected latest timestamp %d, got %d", base-1000, summary.LatestTimestamp)
	}
	if summary.LatestAPY == nil || *summary.LatestAPY != 6 {
		t.Errorf("Expected latest APY 6, got %v", summary.LatestAPY)
	}
	if summary.WindowEnd != base || summary.WindowStart != base-domain.EstimationWindowSeconds {
		t.Errorf("Unexpected window [%d,%d]", summary.WindowStart, summary.WindowEnd)
	}
}

func TestRunner_SkipsPoolWithNoQualifyingHistory(t *testing.T) {
	f := newFixture(t)
	f.addPool(t, "pool-a")

	// Samples missing TVL or APY never qualify for the estimator.
	base := f.now.Unix()
	f.addSamples(t, []*domain.Sample{
		{PoolID: "pool-a", Timestamp: base - 2000, APY: fp(2)},
		{PoolID: "pool-a", Timestamp: base - 1000, TVLUSD: fp(1)},
	})

	result, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.PoolsSkipped != 1 {
		t.Errorf("Expected 1 pool skipped, got %d", result.PoolsSkipped)
	}
	if result.SummariesComputed != 0 {
		t.Errorf("Expected 0 summaries, got %d", result.SummariesComputed)
	}

	if _, err := f.summaries.GetByPoolID(context.Background(), "pool-a"); err != storage.ErrNotFound {
		t.Errorf("Expected ErrNotFound for skipped pool, got %v", err)
	}
}

func TestRunner_IgnoresSamplesOutsideWindow(t *testing.T) {
	f := newFixture(t)
	f.addPool(t, "pool-a")

	base := f.now.Unix()
	f.addSamples(t, []*domain.Sample{
		// Old enough to fall before the estimation window.
		{PoolID: "pool-a", Timestamp: base - domain.EstimationWindowSeconds - 100, TVLUSD: fp(999), APY: fp(999)},
		{PoolID: "pool-a", Timestamp: base - 1000, TVLUSD: fp(5), APY: fp(3)},
	})

	result, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.SummariesComputed != 1 {
		t.Fatalf("Expected 1 summary, got %d", result.SummariesComputed)
	}

	summary, err := f.summaries.GetByPoolID(context.Background(), "pool-a")
	if err != nil {
		t.Fatalf("GetByPoolID failed: %v", err)
	}
	if summary.SampleCount != 1 {
		t.Errorf("Expected 1 sample in window, got %d", summary.SampleCount)
	}
	// Single point: degenerate regression, slope 0.
	if summary.Slope != 0 {
		t.Errorf("Expected slope 0, got %f", summary.Slope)
	}
}

func TestRunner_ReplacesStaleSummary(t *testing.T) {
	f := newFixture(t)
	f.addPool(t, "pool-a")

	stale := &domain.PoolSummary{
		PoolID:      "pool-a",
		Slope:       42,
		SampleCount: 99,
		LatestAPY:   fp(123),
		ComputedAt:  f.now.Add(-time.Hour),
	}
	if err := f.summaries.Replace(context.Background(), stale); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	base := f.now.Unix()
	f.addSamples(t, []*domain.Sample{
		{PoolID: "pool-a", Timestamp: base - 1000, TVLUSD: fp(5), APY: fp(3)},
	})

	if _, err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	summary, err := f.summaries.GetByPoolID(context.Background(), "pool-a")
	if err != nil {
		t.Fatalf("GetByPoolID failed: %v", err)
	}
	if summary.Slope != 0 || summary.SampleCount != 1 {
		t.Errorf("Expected recomputed summary, got %+v", summary)
	}
	if summary.LatestAPY == nil || *summary.LatestAPY != 3 {
		t.Errorf("Expected latest APY 3, got %v", summary.LatestAPY)
	}
}

func TestRunner_LatestSampleMayLagWindow(t *testing.T) {
	f := newFixture(t)
	f.addPool(t, "pool-a")

	base := f.now.Unix()
	f.addSamples(t, []*domain.Sample{
		{PoolID: "pool-a", Timestamp: base - 2000, TVLUSD: fp(1), APY: fp(2)},
		// Latest sample has no APY; the summary still reports it as the
		// freshest observation with a nil yield.
		{PoolID: "pool-a", Timestamp: base - 500, TVLUSD: fp(7)},
	})

	if _, err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	summary, err := f.summaries.GetByPoolID(context.Background(), "pool-a")
	if err != nil {
		t.Fatalf("GetByPoolID failed: %v", err)
	}
	if summary.LatestTimestamp != base-500 {
		t.Errorf("Expected latest timestamp %d, got %d", base-500, summary.LatestTimestamp)
	}
	if summary.LatestAPY != nil {
		t.Errorf("Expected nil latest APY, got %v", *summary.LatestAPY)
	}
	if summary.LatestTVLUSD == nil || *summary.LatestTVLUSD != 7 {
		t.Errorf("Expected latest TVL 7, got %v", summary.LatestTVLUSD)
	}
	if summary.SampleCount != 1 {
		t.Errorf("Expected 1 qualifying sample, got %d", summary.SampleCount)
	}
}

// Package ingestion pulls the pool catalog and per-pool history from the
// upstream aggregator into storage.
package ingestion

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"yieldscope/internal/domain"
	"yieldscope/internal/llama"
	"yieldscope/internal/observability"
	"yieldscope/internal/storage"
	"yieldscope/internal/timeseries"
)

// Runner executes one ingestion pass: catalog refresh plus per-pool history.
type Runner struct {
	poolSource    PoolSource
	historySource HistorySource
	poolStore     storage.PoolStore
	sampleStore   storage.SampleStore
	maxPools      int
	logger        *log.Logger
	now           func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	PoolSource    PoolSource
	HistorySource HistorySource
	PoolStore     storage.PoolStore
	SampleStore   storage.SampleStore
	MaxPools      int // limit pools per run, 0 = no limit
	Logger        *log.Logger
	Now           func() time.Time
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		poolSource:    opts.PoolSource,
		historySource: opts.HistorySource,
		poolStore:     opts.PoolStore,
		sampleStore:   opts.SampleStore,
		maxPools:      opts.MaxPools,
		logger:        logger,
		now:           now,
	}
}

// RunResult summarizes one ingestion pass.
type RunResult struct {
	RunID          string
	PoolsUpserted  int
	SamplesStored  int
	PointsDropped  int
	PoolErrors     int
	EntriesSkipped int // catalog entries without a pool ID
}

// Run fetches the pool catalog, upserts pool metadata, then fetches and
// stores each pool's history. Per-pool history failures are logged and
// counted but do not abort the pass; a catalog fetch failure does.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	started := r.now()
	result := &RunResult{RunID: uuid.NewString()}

	r.logger.Printf("ingestion run %s: fetching pool catalog", result.RunID)

	entries, err := r.poolSource.Pools(ctx)
	if err != nil {
		observability.RecordFetchError("pools")
		observability.RecordIngestionRun("error", r.now().Sub(started).Seconds())
		return nil, fmt.Errorf("fetch pools: %w", err)
	}

	if r.maxPools > 0 && len(entries) > r.maxPools {
		entries = entries[:r.maxPools]
	}

	seenAt := r.now()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			observability.RecordIngestionRun("cancelled", r.now().Sub(started).Seconds())
			return result, err
		}
		if entry.Pool == "" {
			result.EntriesSkipped++
			continue
		}

		pool := poolFromEntry(entry, seenAt)
		if err := r.poolStore.Upsert(ctx, pool); err != nil {
			r.logger.Printf("ingestion run %s: upsert pool %s: %v", result.RunID, entry.Pool, err)
			result.PoolErrors++
			continue
		}
		result.PoolsUpserted++

		stored, dropped, err := r.ingestHistory(ctx, entry.Pool)
		if err != nil {
			r.logger.Printf("ingestion run %s: history for pool %s: %v", result.RunID, entry.Pool, err)
			observability.RecordFetchError("chart")
			result.PoolErrors++
			continue
		}
		result.SamplesStored += stored
		result.PointsDropped += dropped
	}

	observability.RecordPoolsUpserted(result.PoolsUpserted)
	observability.RecordSamplesStored(result.SamplesStored)
	observability.RecordHistoryPointsDropped(result.PointsDropped)
	observability.RecordCatalogEntriesSkipped(result.EntriesSkipped)
	observability.RecordIngestionRun("success", r.now().Sub(started).Seconds())
	observability.DefaultMetrics.LastSuccessfulIngestion.Set(float64(r.now().Unix()))

	if result.EntriesSkipped > 0 {
		r.logger.Printf("ingestion run %s: %d catalog entries without a pool id skipped", result.RunID, result.EntriesSkipped)
	}
	r.logger.Printf("ingestion run %s: %d pools upserted, %d samples stored, %d points dropped, %d pool errors",
		result.RunID, result.PoolsUpserted, result.SamplesStored, result.PointsDropped, result.PoolErrors)

	return result, nil
}

// ingestHistory fetches one pool's chart, converts it to samples with the
// 30-day trailing APY mean attached, and bulk-upserts them.
func (r *Runner) ingestHistory(ctx context.Context, poolID string) (stored, dropped int, err error) {
	points, err := r.historySource.Chart(ctx, poolID)
	if err != nil {
		return 0, 0, err
	}

	samples, dropped := SamplesFromHistory(poolID, points)
	if len(samples) == 0 {
		return 0, dropped, nil
	}

	if err := r.sampleStore.UpsertBulk(ctx, samples); err != nil {
		return 0, dropped, fmt.Errorf("store samples: %w", err)
	}
	return len(samples), dropped, nil
}

// SamplesFromHistory converts aggregator history points into samples for
// one pool. Points with unparseable timestamps are dropped and counted.
// The result is ordered by timestamp ascending with the trailing 30-day
// APY mean attached to each sample.
func SamplesFromHistory(poolID string, points []llama.HistoryPoint) ([]*domain.Sample, int) {
	samples := make([]*domain.Sample, 0, len(points))
	dropped := 0
	for _, p := range points {
		if !p.Timestamp.Valid {
			dropped++
			continue
		}
		samples = append(samples, &domain.Sample{
			PoolID:    poolID,
			Timestamp: p.Timestamp.Unix,
			TVLUSD:    p.TVLUSD,
			APY:       p.APY,
			APYBase:   p.APYBase,
			APYReward: p.APYReward,
		})
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp < samples[j].Timestamp
	})

	means := timeseries.TrailingMean(samples, domain.RollingWindowSeconds, timeseries.ResolveAPY)
	for i, s := range samples {
		s.APYMean30d = means[i]
	}

	return samples, dropped
}

// poolFromEntry maps a catalog entry to pool metadata. FirstSeenAt is set
// here but preserved by the store when the pool already exists.
func poolFromEntry(entry llama.PoolEntry, seenAt time.Time) *domain.Pool {
	name := entry.Symbol
	if entry.PoolMeta != "" {
		name = entry.Symbol + " (" + entry.PoolMeta + ")"
	}

	return &domain.Pool{
		PoolID:      entry.Pool,
		Project:     entry.Project,
		Chain:       entry.Chain,
		Symbol:      entry.Symbol,
		Name:        name,
		Category:    entry.Category,
		Stablecoin:  entry.Stablecoin,
		FirstSeenAt: seenAt,
		LastSeenAt:  seenAt,
	}
}

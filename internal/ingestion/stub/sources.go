// Package stub provides fixed in-memory ingestion sources for testing.
package stub

import (
	"context"

	"yieldscope/internal/llama"
)

// PoolSource returns a fixed pool catalog.
// Implements ingestion.PoolSource.
type PoolSource struct {
	entries []llama.PoolEntry
	err     error
}

// NewPoolSource creates a stub pool source returning the given entries.
func NewPoolSource(entries []llama.PoolEntry) *PoolSource {
	return &PoolSource{entries: entries}
}

// NewFailingPoolSource creates a stub pool source that always fails.
func NewFailingPoolSource(err error) *PoolSource {
	return &PoolSource{err: err}
}

// Pools returns copies of the configured entries.
func (s *PoolSource) Pools(_ context.Context) ([]llama.PoolEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]llama.PoolEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// HistorySource returns fixed per-pool history.
// Implements ingestion.HistorySource.
type HistorySource struct {
	charts map[string][]llama.HistoryPoint
	errs   map[string]error
}

// NewHistorySource creates a stub history source keyed by pool ID.
func NewHistorySource(charts map[string][]llama.HistoryPoint) *HistorySource {
	return &HistorySource{charts: charts, errs: make(map[string]error)}
}

// FailFor makes Chart return err for the given pool ID.
func (s *HistorySource) FailFor(poolID string, err error) {
	s.errs[poolID] = err
}

// Chart returns copies of the configured points for the pool.
func (s *HistorySource) Chart(_ context.Context, poolID string) ([]llama.HistoryPoint, error) {
	if err := s.errs[poolID]; err != nil {
		return nil, err
	}
	points := s.charts[poolID]
	out := make([]llama.HistoryPoint, len(points))
	copy(out, points)
	return out, nil
}

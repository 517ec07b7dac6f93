package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"yieldscope/internal/domain"
	"yieldscope/internal/storage"
)

// SampleStore is an in-memory implementation of storage.SampleStore.
type SampleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Sample // keyed by (pool_id, timestamp)
}

// NewSampleStore creates a new in-memory sample store.
func NewSampleStore() *SampleStore {
	return &SampleStore{
		data: make(map[string]*domain.Sample),
	}
}

// sampleKey generates a unique key for a sample.
func sampleKey(poolID string, timestamp int64) string {
	return fmt.Sprintf("%s|%d", poolID, timestamp)
}

// UpsertBulk inserts or replaces samples, last write wins per key.
func (s *SampleStore) UpsertBulk(_ context.Context, samples []*domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sm := range samples {
		if sm == nil || sm.PoolID == "" {
			return storage.ErrInvalidInput
		}
	}
	for _, sm := range samples {
		copy := *sm
		s.data[sampleKey(sm.PoolID, sm.Timestamp)] = &copy
	}

	return nil
}

// GetByPoolID retrieves all samples for a pool, ordered by timestamp ASC.
func (s *SampleStore) GetByPoolID(_ context.Context, poolID string) ([]*domain.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Sample
	for _, sm := range s.data {
		if sm.PoolID == poolID {
			copy := *sm
			result = append(result, &copy)
		}
	}

	sortSamples(result)
	return result, nil
}

// GetByTimeRange retrieves samples for a pool within [start, end] (inclusive).
func (s *SampleStore) GetByTimeRange(_ context.Context, poolID string, start, end int64) ([]*domain.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Sample
	for _, sm := range s.data {
		if sm.PoolID == poolID && sm.Timestamp >= start && sm.Timestamp <= end {
			copy := *sm
			result = append(result, &copy)
		}
	}

	sortSamples(result)
	return result, nil
}

// GetRegressionWindow retrieves samples within [start, end] where both
// tvl_usd and apy are present.
func (s *SampleStore) GetRegressionWindow(_ context.Context, poolID string, start, end int64) ([]*domain.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Sample
	for _, sm := range s.data {
		if sm.PoolID == poolID && sm.Timestamp >= start && sm.Timestamp <= end &&
			sm.TVLUSD != nil && sm.APY != nil {
			copy := *sm
			result = append(result, &copy)
		}
	}

	sortSamples(result)
	return result, nil
}

// GetLatest retrieves the most recent sample for a pool.
func (s *SampleStore) GetLatest(_ context.Context, poolID string) (*domain.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Sample
	for _, sm := range s.data {
		if sm.PoolID != poolID {
			continue
		}
		if latest == nil || sm.Timestamp > latest.Timestamp {
			latest = sm
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}
	copy := *latest
	return &copy, nil
}

func sortSamples(samples []*domain.Sample) {
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp < samples[j].Timestamp
	})
}

var _ storage.SampleStore = (*SampleStore)(nil)

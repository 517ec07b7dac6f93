package memory

import (
	"context"
	"sort"
	"sync"

	"yieldscope/internal/domain"
	"yieldscope/internal/storage"
)

// SummaryStore is an in-memory implementation of storage.SummaryStore.
type SummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PoolSummary // keyed by pool_id
}

// NewSummaryStore creates a new in-memory summary store.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{
		data: make(map[string]*domain.PoolSummary),
	}
}

// Replace overwrites the summary row for s.PoolID wholesale.
func (s *SummaryStore) Replace(_ context.Context, sum *domain.PoolSummary) error {
	if sum == nil || sum.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *sum
	s.data[sum.PoolID] = &copy
	return nil
}

// GetByPoolID retrieves a summary by pool ID.
func (s *SummaryStore) GetByPoolID(_ context.Context, poolID string) (*domain.PoolSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.data[poolID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *sum
	return &copy, nil
}

// List retrieves all summaries, ordered by pool_id ASC.
func (s *SummaryStore) List(_ context.Context) ([]*domain.PoolSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PoolSummary, 0, len(s.data))
	for _, sum := range s.data {
		copy := *sum
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PoolID < result[j].PoolID
	})

	return result, nil
}

var _ storage.SummaryStore = (*SummaryStore)(nil)

// Package memory provides in-memory storage implementations used by tests
// and the --use-memory server mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"yieldscope/internal/domain"
	"yieldscope/internal/storage"
)

// PoolStore is an in-memory implementation of storage.PoolStore.
type PoolStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Pool // keyed by pool_id
}

// NewPoolStore creates a new in-memory pool store.
func NewPoolStore() *PoolStore {
	return &PoolStore{
		data: make(map[string]*domain.Pool),
	}
}

// Upsert inserts or replaces a pool keyed by pool_id.
func (s *PoolStore) Upsert(_ context.Context, p *domain.Pool) error {
	if p == nil || p.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	if existing, ok := s.data[p.PoolID]; ok {
		copy.FirstSeenAt = existing.FirstSeenAt
	}
	s.data[p.PoolID] = &copy
	return nil
}

// GetByID retrieves a pool by its ID.
func (s *PoolStore) GetByID(_ context.Context, poolID string) (*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[poolID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

// List retrieves all pools, ordered by pool_id ASC.
func (s *PoolStore) List(_ context.Context) ([]*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Pool, 0, len(s.data))
	for _, p := range s.data {
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PoolID < result[j].PoolID
	})

	return result, nil
}

var _ storage.PoolStore = (*PoolStore)(nil)

package memory

import (
	"context"
	"sync"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// MarketStore is an in-memory implementation of storage.MarketStore.
type MarketStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MarketInfo // keyed by market_id
}

// NewMarketStore creates a new in-memory market store.
func NewMarketStore() *MarketStore {
	return &MarketStore{
		data: make(map[string]*domain.MarketInfo),
	}
}

// Upsert writes market metadata, overwriting any prior row.
func (s *MarketStore) Upsert(_ context.Context, m *domain.MarketInfo) error {
	if m == nil || m.MarketID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *m
	s.data[m.MarketID] = &copy
	return nil
}

// Get retrieves one market. Returns ErrNotFound if unknown.
func (s *MarketStore) Get(_ context.Context, marketID string) (*domain.MarketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[marketID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *m
	return &copy, nil
}

var _ storage.MarketStore = (*MarketStore)(nil)

package memory

import (
	"context"
	"sort"
	"sync"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// ClassificationStore is an in-memory implementation of storage.ClassificationStore.
type ClassificationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Classification // keyed by wallet
}

// NewClassificationStore creates a new in-memory classification store.
func NewClassificationStore() *ClassificationStore {
	return &ClassificationStore{
		data: make(map[string]*domain.Classification),
	}
}

// Upsert writes a wallet's current verdict, overwriting any prior one.
func (s *ClassificationStore) Upsert(_ context.Context, c *domain.Classification) error {
	if c == nil || c.Wallet == "" || c.Kind == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *c
	s.data[c.Wallet] = &copy
	return nil
}

// Get retrieves a wallet's current verdict. Returns ErrNotFound if never classified.
func (s *ClassificationStore) Get(_ context.Context, wallet string) (*domain.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[wallet]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *c
	return &copy, nil
}

// ListFollowable retrieves every wallet currently classified as a persona.
func (s *ClassificationStore) ListFollowable(ctx context.Context) ([]*domain.Classification, error) {
	return s.ListByKind(ctx, domain.KindPersona)
}

// ListByKind retrieves all verdicts of one kind, ordered by wallet.
func (s *ClassificationStore) ListByKind(_ context.Context, kind domain.ClassificationKind) ([]*domain.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Classification
	for _, c := range s.data {
		if c.Kind == kind {
			copy := *c
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Wallet < result[j].Wallet
	})

	return result, nil
}

var _ storage.ClassificationStore = (*ClassificationStore)(nil)

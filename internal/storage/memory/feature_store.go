package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// FeatureStore is an in-memory implementation of storage.FeatureStore.
type FeatureStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WalletFeatures // keyed by wallet|window|date
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		data: make(map[string]*domain.WalletFeatures),
	}
}

func featureKey(wallet string, windowDays int, featureDate string) string {
	return fmt.Sprintf("%s|%d|%s", wallet, windowDays, featureDate)
}

// Upsert writes a feature vector, overwriting any prior row for the same key.
func (s *FeatureStore) Upsert(_ context.Context, f *domain.WalletFeatures) error {
	if f == nil || f.Wallet == "" || f.WindowDays <= 0 || f.FeatureDate == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *f
	s.data[featureKey(f.Wallet, f.WindowDays, f.FeatureDate)] = &copy
	return nil
}

// GetLatest retrieves the most recent vector for a wallet and window.
func (s *FeatureStore) GetLatest(_ context.Context, wallet string, windowDays int) (*domain.WalletFeatures, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.WalletFeatures
	for _, f := range s.data {
		if f.Wallet != wallet || f.WindowDays != windowDays {
			continue
		}
		if latest == nil || f.ComputedAt > latest.ComputedAt {
			latest = f
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

// GetByWallet retrieves all stored vectors for a wallet, newest first.
func (s *FeatureStore) GetByWallet(_ context.Context, wallet string) ([]*domain.WalletFeatures, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WalletFeatures
	for _, f := range s.data {
		if f.Wallet == wallet {
			copy := *f
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ComputedAt > result[j].ComputedAt
	})

	return result, nil
}

var _ storage.FeatureStore = (*FeatureStore)(nil)

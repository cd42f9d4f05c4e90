package memory

import (
	"context"
	"sort"
	"sync"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// WalletTradeStore is an in-memory implementation of storage.WalletTradeStore.
type WalletTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SourceTrade // keyed by trade_id
}

// NewWalletTradeStore creates a new in-memory wallet trade store.
func NewWalletTradeStore() *WalletTradeStore {
	return &WalletTradeStore{
		data: make(map[string]*domain.SourceTrade),
	}
}

// Insert adds one source trade. Returns ErrDuplicateKey if trade_id exists.
func (s *WalletTradeStore) Insert(_ context.Context, t *domain.SourceTrade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TradeID] = &copy
	return nil
}

// InsertBulk adds multiple source trades atomically. Fails entire batch on any duplicate.
func (s *WalletTradeStore) InsertBulk(_ context.Context, trades []*domain.SourceTrade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(trades))

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		copy := *t
		s.data[t.TradeID] = &copy
	}

	return nil
}

// GetByWallet retrieves a wallet's full trade log, ordered by timestamp ASC.
func (s *WalletTradeStore) GetByWallet(_ context.Context, wallet string) ([]*domain.SourceTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SourceTrade
	for _, t := range s.data {
		if t.Wallet == wallet {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTrades(result)
	return result, nil
}

// GetByWalletTimeRange retrieves a wallet's trades within [start, end] (inclusive), ordered ASC.
func (s *WalletTradeStore) GetByWalletTimeRange(_ context.Context, wallet string, start, end int64) ([]*domain.SourceTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SourceTrade
	for _, t := range s.data {
		if t.Wallet == wallet && t.Timestamp >= start && t.Timestamp <= end {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTrades(result)
	return result, nil
}

// GetSince retrieves all trades with timestamp > since, ordered ASC.
func (s *WalletTradeStore) GetSince(_ context.Context, since int64) ([]*domain.SourceTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SourceTrade
	for _, t := range s.data {
		if t.Timestamp > since {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTrades(result)
	return result, nil
}

// Wallets lists every distinct wallet present in the archive.
func (s *WalletTradeStore) Wallets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, t := range s.data {
		seen[t.Wallet] = struct{}{}
	}

	result := make([]string, 0, len(seen))
	for w := range seen {
		result = append(result, w)
	}
	sort.Strings(result)

	return result, nil
}

func sortTrades(trades []*domain.SourceTrade) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Timestamp == trades[j].Timestamp {
			return trades[i].TradeID < trades[j].TradeID
		}
		return trades[i].Timestamp < trades[j].Timestamp
	})
}

var _ storage.WalletTradeStore = (*WalletTradeStore)(nil)

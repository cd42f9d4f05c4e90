package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// ExecutionStore is an in-memory implementation of the simulation write path
// and its read interfaces. One mutex over all tables makes every unit
// trivially atomic, the same guarantee the PostgreSQL backend gets from a
// transaction.
type ExecutionStore struct {
	mu        sync.RWMutex
	trades    map[string]*domain.SimulatedTrade    // keyed by sim_trade_id
	bySource  map[string]string                    // source_trade_id -> sim_trade_id
	positions map[string]*domain.SimulatedPosition // keyed by wallet|market|side
	fidelity  []*domain.FidelityEvent
	eventIDs  map[string]struct{}
	slippage  []*domain.SlippageRecord
	risk      map[string]*domain.RiskState // keyed by portfolio sentinel or wallet
}

// NewExecutionStore creates a new in-memory execution store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		trades:    make(map[string]*domain.SimulatedTrade),
		bySource:  make(map[string]string),
		positions: make(map[string]*domain.SimulatedPosition),
		eventIDs:  make(map[string]struct{}),
		risk:      make(map[string]*domain.RiskState),
	}
}

func positionKey(wallet, marketID string, side domain.Side) string {
	return fmt.Sprintf("%s|%s|%s", wallet, marketID, side)
}

// RecordMirror persists one copy decision as a single unit.
// Returns ErrDuplicateKey if the source trade was already mirrored.
func (s *ExecutionStore) RecordMirror(_ context.Context, u *storage.MirrorUnit) error {
	if u == nil || u.Trade == nil || u.Fidelity == nil || u.Slippage == nil {
		return storage.ErrInvalidInput
	}
	t := u.Trade
	if t.SimTradeID == "" || t.SourceTradeID == "" || t.Wallet == "" || t.MarketID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySource[t.SourceTradeID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.trades[t.SimTradeID]; exists {
		return storage.ErrDuplicateKey
	}

	tradeCopy := *t
	s.trades[t.SimTradeID] = &tradeCopy
	s.bySource[t.SourceTradeID] = t.SimTradeID

	s.mergePosition(t)
	s.appendFidelityLocked(u.Fidelity)

	slipCopy := *u.Slippage
	s.slippage = append(s.slippage, &slipCopy)

	s.applyDeltaLocked(t.Wallet, u.WalletDelta, t.CreatedAt)
	s.applyDeltaLocked(domain.RiskPortfolioKey, u.PortfolioDelta, t.CreatedAt)

	return nil
}

// mergePosition folds a new entry into the (wallet, market, side) accumulator
// using a size-weighted running average.
func (s *ExecutionStore) mergePosition(t *domain.SimulatedTrade) {
	key := positionKey(t.Wallet, t.MarketID, t.Side)
	p, exists := s.positions[key]
	if !exists {
		s.positions[key] = &domain.SimulatedPosition{
			Wallet:        t.Wallet,
			MarketID:      t.MarketID,
			Side:          t.Side,
			TotalSize:     t.OurSize,
			AvgEntryPrice: t.OurEntryPrice,
			UpdatedAt:     t.CreatedAt,
		}
		return
	}

	newSize := p.TotalSize + t.OurSize
	if newSize > 0 {
		p.AvgEntryPrice = (p.AvgEntryPrice*p.TotalSize + t.OurEntryPrice*t.OurSize) / newSize
	}
	p.TotalSize = newSize
	p.UpdatedAt = t.CreatedAt
}

// RecordSkip appends a skip-decision fidelity event.
// Returns ErrDuplicateKey if the event was already recorded.
func (s *ExecutionStore) RecordSkip(_ context.Context, e *domain.FidelityEvent) error {
	if e == nil || e.EventID == "" || e.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.eventIDs[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}
	s.appendFidelityLocked(e)
	return nil
}

func (s *ExecutionStore) appendFidelityLocked(e *domain.FidelityEvent) {
	copy := *e
	s.fidelity = append(s.fidelity, &copy)
	s.eventIDs[e.EventID] = struct{}{}
}

// ApplySettlement finalizes every trade in the unit as a single unit.
func (s *ExecutionStore) ApplySettlement(_ context.Context, u *storage.SettlementUnit) error {
	if u == nil || u.MarketID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range u.Trades {
		stored, exists := s.trades[t.SimTradeID]
		if !exists {
			return storage.ErrNotFound
		}
		stored.Status = t.Status
		stored.ExitPrice = t.ExitPrice
		stored.PnL = t.PnL
		stored.SettledAt = t.SettledAt
		delete(s.positions, positionKey(t.Wallet, t.MarketID, t.Side))
	}

	for wallet, delta := range u.WalletDeltas {
		s.applyDeltaLocked(wallet, delta, u.ResolvedAt)
	}
	s.applyDeltaLocked(domain.RiskPortfolioKey, u.PortfolioDelta, u.ResolvedAt)

	return nil
}

func (s *ExecutionStore) applyDeltaLocked(key string, d domain.RiskDelta, now int64) {
	st, exists := s.risk[key]
	if !exists {
		st = &domain.RiskState{Key: key}
		s.risk[key] = st
	}
	st.TotalExposure += d.Exposure
	st.DailyPnL += d.DailyPnL
	st.WeeklyPnL += d.WeeklyPnL
	st.CurrentPnL += d.CurrentPnL
	st.OpenPositions += d.OpenPositions
	if st.CurrentPnL > st.PeakPnL {
		st.PeakPnL = st.CurrentPnL
	}
	st.UpdatedAt = now
}

// GetBySourceTradeID retrieves the simulated trade mirroring a source trade.
func (s *ExecutionStore) GetBySourceTradeID(_ context.Context, sourceTradeID string) (*domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	simID, exists := s.bySource[sourceTradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *s.trades[simID]
	return &copy, nil
}

// GetOpenByMarket retrieves all open simulated trades in a market.
func (s *ExecutionStore) GetOpenByMarket(_ context.Context, marketID string) ([]*domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulatedTrade
	for _, t := range s.trades {
		if t.MarketID == marketID && t.Status == domain.TradeStatusOpen {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	return result, nil
}

// GetByWallet retrieves all simulated trades copied from a wallet, newest first.
func (s *ExecutionStore) GetByWallet(_ context.Context, wallet string) ([]*domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulatedTrade
	for _, t := range s.trades {
		if t.Wallet == wallet {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})

	return result, nil
}

// GetByWalletTimeRange retrieves trades created within [start, end] (inclusive).
func (s *ExecutionStore) GetByWalletTimeRange(_ context.Context, wallet string, start, end int64) ([]*domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulatedTrade
	for _, t := range s.trades {
		if t.Wallet == wallet && t.CreatedAt >= start && t.CreatedAt <= end {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	return result, nil
}

// Get retrieves the accumulator row for (wallet, market, side).
func (s *ExecutionStore) Get(_ context.Context, wallet, marketID string, side domain.Side) (*domain.SimulatedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.positions[positionKey(wallet, marketID, side)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *p
	return &copy, nil
}

// GetByMarket retrieves all open positions in a market.
func (s *ExecutionStore) GetByMarket(_ context.Context, marketID string) ([]*domain.SimulatedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulatedPosition
	for _, p := range s.positions {
		if p.MarketID == marketID {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Wallet < result[j].Wallet
	})

	return result, nil
}

// GetFidelityByWallet retrieves all decisions for a wallet, ordered by creation ASC.
func (s *ExecutionStore) GetFidelityByWallet(_ context.Context, wallet string) ([]*domain.FidelityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FidelityEvent
	for _, e := range s.fidelity {
		if e.Wallet == wallet {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, nil
}

// GetFidelityByWalletTimeRange retrieves decisions within [start, end] (inclusive).
func (s *ExecutionStore) GetFidelityByWalletTimeRange(_ context.Context, wallet string, start, end int64) ([]*domain.FidelityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FidelityEvent
	for _, e := range s.fidelity {
		if e.Wallet == wallet && e.CreatedAt >= start && e.CreatedAt <= end {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, nil
}

// CountFidelityByWallet returns (copied, total) decision counts for a wallet.
func (s *ExecutionStore) CountFidelityByWallet(_ context.Context, wallet string) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var copied, total int64
	for _, e := range s.fidelity {
		if e.Wallet != wallet {
			continue
		}
		total++
		if e.Outcome == domain.FidelityCopied {
			copied++
		}
	}
	return copied, total, nil
}

// GetSlippageByWallet retrieves all records for a wallet, ordered by creation ASC.
func (s *ExecutionStore) GetSlippageByWallet(_ context.Context, wallet string) ([]*domain.SlippageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SlippageRecord
	for _, r := range s.slippage {
		if r.Wallet == wallet {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

// GetSlippageByWalletTimeRange retrieves records within [start, end] (inclusive).
func (s *ExecutionStore) GetSlippageByWalletTimeRange(_ context.Context, wallet string, start, end int64) ([]*domain.SlippageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SlippageRecord
	for _, r := range s.slippage {
		if r.Wallet == wallet && r.CreatedAt >= start && r.CreatedAt <= end {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

// RecentAvgGapCents returns the mean entry gap over the wallet's last n records.
func (s *ExecutionStore) RecentAvgGapCents(_ context.Context, wallet string, n int) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*domain.SlippageRecord
	for _, r := range s.slippage {
		if r.Wallet == wallet {
			records = append(records, r)
		}
	}
	if len(records) == 0 || n <= 0 {
		return 0, nil
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
	if len(records) > n {
		records = records[:n]
	}

	var sum float64
	for _, r := range records {
		sum += r.EntryGapCents
	}
	return sum / float64(len(records)), nil
}

// Put writes a full risk state row, overwriting any prior one.
func (s *ExecutionStore) Put(_ context.Context, st *domain.RiskState) error {
	if st == nil || st.Key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *st
	s.risk[st.Key] = &copy
	return nil
}

// GetRiskState retrieves one risk state row.
func (s *ExecutionStore) GetRiskState(_ context.Context, key string) (*domain.RiskState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.risk[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *st
	return &copy, nil
}

// GetAllRiskStates retrieves every risk state row for ledger rehydration.
func (s *ExecutionStore) GetAllRiskStates(_ context.Context) ([]*domain.RiskState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RiskState, 0, len(s.risk))
	for _, st := range s.risk {
		copy := *st
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result, nil
}

// FidelityEvents returns the store viewed as a storage.FidelityEventStore.
func (s *ExecutionStore) FidelityEvents() storage.FidelityEventStore {
	return fidelityView{s}
}

// SlippageRecords returns the store viewed as a storage.SlippageRecordStore.
func (s *ExecutionStore) SlippageRecords() storage.SlippageRecordStore {
	return slippageView{s}
}

// RiskStates returns the store viewed as a storage.RiskStateStore.
func (s *ExecutionStore) RiskStates() storage.RiskStateStore {
	return riskView{s}
}

type fidelityView struct{ s *ExecutionStore }

func (v fidelityView) GetByWallet(ctx context.Context, wallet string) ([]*domain.FidelityEvent, error) {
	return v.s.GetFidelityByWallet(ctx, wallet)
}

func (v fidelityView) GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.FidelityEvent, error) {
	return v.s.GetFidelityByWalletTimeRange(ctx, wallet, start, end)
}

func (v fidelityView) CountByWallet(ctx context.Context, wallet string) (int64, int64, error) {
	return v.s.CountFidelityByWallet(ctx, wallet)
}

type slippageView struct{ s *ExecutionStore }

func (v slippageView) GetByWallet(ctx context.Context, wallet string) ([]*domain.SlippageRecord, error) {
	return v.s.GetSlippageByWallet(ctx, wallet)
}

func (v slippageView) GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.SlippageRecord, error) {
	return v.s.GetSlippageByWalletTimeRange(ctx, wallet, start, end)
}

func (v slippageView) RecentAvgGapCents(ctx context.Context, wallet string, n int) (float64, error) {
	return v.s.RecentAvgGapCents(ctx, wallet, n)
}

type riskView struct{ s *ExecutionStore }

func (v riskView) Put(ctx context.Context, st *domain.RiskState) error {
	return v.s.Put(ctx, st)
}

func (v riskView) Get(ctx context.Context, key string) (*domain.RiskState, error) {
	return v.s.GetRiskState(ctx, key)
}

func (v riskView) GetAll(ctx context.Context) ([]*domain.RiskState, error) {
	return v.s.GetAllRiskStates(ctx)
}

var (
	_ storage.ExecutionStore         = (*ExecutionStore)(nil)
	_ storage.SimulatedTradeStore    = (*ExecutionStore)(nil)
	_ storage.SimulatedPositionStore = (*ExecutionStore)(nil)
	_ storage.FidelityEventStore     = fidelityView{}
	_ storage.SlippageRecordStore    = slippageView{}
	_ storage.RiskStateStore         = riskView{}
)

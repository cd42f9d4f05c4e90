package storage

import (
	"context"

	"mirrorlab/internal/domain"
)

// WalletTradeStore provides access to the raw wallet_trades archive.
type WalletTradeStore interface {
	// Insert adds one source trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.SourceTrade) error

	// InsertBulk adds multiple source trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.SourceTrade) error

	// GetByWallet retrieves a wallet's full trade log, ordered by timestamp ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.SourceTrade, error)

	// GetByWalletTimeRange retrieves a wallet's trades within [start, end] (inclusive), ordered ASC.
	GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.SourceTrade, error)

	// GetSince retrieves all trades with timestamp > since, ordered ASC. Used by trade detection.
	GetSince(ctx context.Context, since int64) ([]*domain.SourceTrade, error)

	// Wallets lists every distinct wallet present in the archive.
	Wallets(ctx context.Context) ([]string, error)
}

// FeatureStore provides access to wallet_features storage.
type FeatureStore interface {
	// Upsert writes a feature vector, overwriting any prior row for
	// (wallet, window_days, feature_date). Latest wins.
	Upsert(ctx context.Context, f *domain.WalletFeatures) error

	// GetLatest retrieves the most recent vector for a wallet and window.
	// Returns ErrNotFound if the wallet was never computed.
	GetLatest(ctx context.Context, wallet string, windowDays int) (*domain.WalletFeatures, error)

	// GetByWallet retrieves all stored vectors for a wallet, newest first.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.WalletFeatures, error)
}

// ClassificationStore provides access to wallet_classifications storage.
type ClassificationStore interface {
	// Upsert writes a wallet's current verdict, overwriting any prior one.
	// Re-running a cycle with unchanged inputs leaves exactly one row.
	Upsert(ctx context.Context, c *domain.Classification) error

	// Get retrieves a wallet's current verdict. Returns ErrNotFound if never classified.
	Get(ctx context.Context, wallet string) (*domain.Classification, error)

	// ListFollowable retrieves every wallet currently classified as a persona.
	ListFollowable(ctx context.Context) ([]*domain.Classification, error)

	// ListByKind retrieves all verdicts of one kind.
	ListByKind(ctx context.Context, kind domain.ClassificationKind) ([]*domain.Classification, error)
}

// MarketStore provides access to markets storage.
type MarketStore interface {
	// Upsert writes market metadata, overwriting any prior row.
	Upsert(ctx context.Context, m *domain.MarketInfo) error

	// Get retrieves one market. Returns ErrNotFound if unknown.
	Get(ctx context.Context, marketID string) (*domain.MarketInfo, error)
}

// SimulatedTradeStore provides read access to simulated_trades.
// Writes happen only through ExecutionStore units.
type SimulatedTradeStore interface {
	// GetBySourceTradeID retrieves the simulated trade mirroring a source trade.
	// Returns ErrNotFound if the source trade was never copied.
	GetBySourceTradeID(ctx context.Context, sourceTradeID string) (*domain.SimulatedTrade, error)

	// GetOpenByMarket retrieves all open simulated trades in a market.
	GetOpenByMarket(ctx context.Context, marketID string) ([]*domain.SimulatedTrade, error)

	// GetByWallet retrieves all simulated trades copied from a wallet, newest first.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.SimulatedTrade, error)

	// GetByWalletTimeRange retrieves trades created within [start, end] (inclusive).
	GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.SimulatedTrade, error)
}

// SimulatedPositionStore provides read access to simulated_positions.
type SimulatedPositionStore interface {
	// Get retrieves the accumulator row for (wallet, market, side).
	// Returns ErrNotFound if no position is open.
	Get(ctx context.Context, wallet, marketID string, side domain.Side) (*domain.SimulatedPosition, error)

	// GetByMarket retrieves all open positions in a market.
	GetByMarket(ctx context.Context, marketID string) ([]*domain.SimulatedPosition, error)
}

// FidelityEventStore provides read access to the fidelity_events audit log.
type FidelityEventStore interface {
	// GetByWallet retrieves all decisions for a wallet, ordered by creation ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.FidelityEvent, error)

	// GetByWalletTimeRange retrieves decisions within [start, end] (inclusive).
	GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.FidelityEvent, error)

	// CountByWallet returns (copied, total) decision counts for a wallet.
	CountByWallet(ctx context.Context, wallet string) (copied int64, total int64, err error)
}

// SlippageRecordStore provides read access to the slippage_records audit log.
type SlippageRecordStore interface {
	// GetByWallet retrieves all records for a wallet, ordered by creation ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.SlippageRecord, error)

	// GetByWalletTimeRange retrieves records within [start, end] (inclusive).
	GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.SlippageRecord, error)

	// RecentAvgGapCents returns the mean entry gap over the wallet's last n
	// records. Returns 0 with no error when the wallet has no records.
	RecentAvgGapCents(ctx context.Context, wallet string, n int) (float64, error)
}

// RiskStateStore provides access to persisted risk_state rows. Rows are
// rehydrated into the in-memory ledger at startup; mutations during mirroring
// and settlement happen inside ExecutionStore units.
type RiskStateStore interface {
	// Put writes a full row, overwriting any prior one. Used for halt flag
	// changes and for seeding.
	Put(ctx context.Context, s *domain.RiskState) error

	// Get retrieves one row. Returns ErrNotFound if the key has no state yet.
	Get(ctx context.Context, key string) (*domain.RiskState, error)

	// GetAll retrieves every row for ledger rehydration.
	GetAll(ctx context.Context) ([]*domain.RiskState, error)
}

// MirrorUnit is everything one copy decision writes. RecordMirror persists it
// as a single indivisible unit: after a crash either the whole unit is
// visible or none of it is.
type MirrorUnit struct {
	Trade          *domain.SimulatedTrade
	Fidelity       *domain.FidelityEvent
	Slippage       *domain.SlippageRecord
	WalletDelta    domain.RiskDelta
	PortfolioDelta domain.RiskDelta
}

// SettlementUnit is everything one market resolution writes.
type SettlementUnit struct {
	MarketID       string
	SettlePrice    float64
	ResolvedAt     int64
	Trades         []*domain.SimulatedTrade // settled copies with final status, pnl, exit
	WalletDeltas   map[string]domain.RiskDelta
	PortfolioDelta domain.RiskDelta
}

// ExecutionStore persists mirroring and settlement outcomes atomically.
type ExecutionStore interface {
	// RecordMirror inserts the simulated trade, merges the accumulator
	// position, applies both risk deltas, and appends both audit rows as one
	// unit. Returns ErrDuplicateKey if the source trade was already mirrored.
	RecordMirror(ctx context.Context, u *MirrorUnit) error

	// RecordSkip appends a skip-decision fidelity event. Write-once.
	RecordSkip(ctx context.Context, e *domain.FidelityEvent) error

	// ApplySettlement finalizes every trade in the unit, deletes the matching
	// accumulator positions, and applies risk deltas as one unit.
	ApplySettlement(ctx context.Context, u *SettlementUnit) error
}

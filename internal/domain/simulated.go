package domain

// SimulatedTrade represents one mirrored copy of a source trade with full
// execution detail. SourceTradeID is the idempotency key: replaying a source
// trade never creates a second row.
// Corresponds to simulated_trades table in PostgreSQL.
type SimulatedTrade struct {
	SimTradeID    string // deterministic hash
	Wallet        string // copied wallet address
	MarketID      string // market condition identifier
	Side          Side   // BUY | SELL
	SourceTradeID string // triggering source trade, UNIQUE

	// What they did
	TheirPrice float64 // source fill price
	TheirSize  float64 // source fill size in shares
	TheirTime  int64   // source fill timestamp (s)

	// What we simulated
	OurSize       float64 // shares after sizing and per-trade cap
	OurEntryPrice float64 // after slippage and fee
	SlippageFrac  float64 // slippage fraction applied
	FeeApplied    float64 // fee component of the entry price
	SizingMethod  string  // PROPORTIONAL | FLAT
	DetectionMs   int64   // detection delay, feed arrival minus fill time

	// Outcome
	Status    TradeStatus // OPEN | SETTLED_WIN | SETTLED_LOSS
	ExitPrice float64     // settle price, set on settlement
	PnL       float64     // realized pnl, set on settlement
	CreatedAt int64       // Unix timestamp in seconds
	SettledAt int64       // Unix timestamp in seconds, 0 while open
}

// TradeStatus represents the lifecycle state of a simulated trade.
type TradeStatus string

const (
	TradeStatusOpen        TradeStatus = "OPEN"
	TradeStatusSettledWin  TradeStatus = "SETTLED_WIN"
	TradeStatusSettledLoss TradeStatus = "SETTLED_LOSS"
)

// Sizing method constants
const (
	SizingProportional = "PROPORTIONAL"
	SizingFlat         = "FLAT"
)

// SimulatedPosition accumulates mirrored entries for one (wallet, market,
// side). Updated on every copy, deleted on settlement.
// Corresponds to simulated_positions table in PostgreSQL.
type SimulatedPosition struct {
	Wallet        string  // copied wallet address
	MarketID      string  // market condition identifier
	Side          Side    // BUY | SELL
	TotalSize     float64 // accumulated shares
	AvgEntryPrice float64 // running size-weighted average
	UpdatedAt     int64   // Unix timestamp in seconds
}

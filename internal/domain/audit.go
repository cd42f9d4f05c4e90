package domain

// FidelityOutcome records what happened to one source-trade decision.
type FidelityOutcome string

const (
	FidelityCopied               FidelityOutcome = "COPIED"
	FidelitySkippedPortfolioRisk FidelityOutcome = "SKIPPED_PORTFOLIO_RISK"
	FidelitySkippedWalletRisk    FidelityOutcome = "SKIPPED_WALLET_RISK"
	FidelitySkippedMalformed     FidelityOutcome = "SKIPPED_MALFORMED"
)

// FidelityEvent is the write-once audit row for one source-trade decision.
// One row per decision, never mutated. Together with SlippageRecord these
// rows form the replay log.
// Corresponds to fidelity_events table in PostgreSQL.
type FidelityEvent struct {
	EventID       string          // deterministic hash
	Wallet        string          // copied wallet address
	MarketID      string          // market condition identifier
	SourceTradeID string          // decided source trade
	Outcome       FidelityOutcome // copied or a specific skip reason
	Detail        string          // gate identity and measured values on skip
	CreatedAt     int64           // Unix timestamp in seconds
}

// SlippageRecord captures the execution gap for one copied trade.
// Corresponds to slippage_records table in PostgreSQL.
type SlippageRecord struct {
	RecordID      string  // deterministic hash
	Wallet        string  // copied wallet address
	MarketID      string  // market condition identifier
	SourceTradeID string  // triggering source trade
	SimTradeID    string  // resulting simulated trade
	TheirPrice    float64 // source fill price
	OurPrice      float64 // simulated entry price
	EntryGapCents float64 // |OurPrice - TheirPrice| * 100
	FeeApplied    float64 // fee component of the entry price
	DetectionMs   int64   // detection delay in milliseconds
	CreatedAt     int64   // Unix timestamp in seconds
}

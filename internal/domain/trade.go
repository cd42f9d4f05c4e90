package domain

// SourceTrade represents one fill made by a tracked wallet on the venue.
// Corresponds to wallet_trades table in ClickHouse.
type SourceTrade struct {
	TradeID   string  // deterministic hash, dedup key
	Wallet    string  // wallet address
	MarketID  string  // market condition identifier
	Side      Side    // BUY | SELL
	Size      float64 // outcome shares filled
	Price     float64 // outcome share price in [0,1]
	Timestamp int64   // Unix timestamp in seconds
}

// MarketResolution represents a market settling at a terminal price.
type MarketResolution struct {
	MarketID    string  // market condition identifier
	SettlePrice float64 // exactly 0.0 or 1.0
	ResolvedAt  int64   // Unix timestamp in seconds
}

package domain

// WalletFeatures represents the behavioral feature vector computed for one
// wallet over one lookback window. Recomputed each cycle, latest wins.
// Corresponds to wallet_features table in PostgreSQL.
type WalletFeatures struct {
	Wallet      string // wallet address
	WindowDays  int    // lookback window length
	FeatureDate string // YYYY-MM-DD of the computation day
	ComputedAt  int64  // Unix timestamp in seconds

	// Volume
	TradeCount    int // fills inside the window
	UniqueMarkets int // distinct markets traded

	// PnL. TotalPnL must always equal FIFORealizedPnL + UnrealizedPnL.
	WinCount        int     // FIFO pairs with positive pnl
	LossCount       int     // FIFO pairs with pnl <= 0
	CashflowPnL     float64 // sell proceeds - buy cost, includes paper gains
	FIFORealizedPnL float64 // pnl over FIFO-matched closed pairs only
	UnrealizedPnL   float64 // open positions marked at current price
	TotalPnL        float64 // realized + unrealized
	RealizedROI     float64 // FIFORealizedPnL / total buy cost
	MaxPairLoss     float64 // largest single pair loss, as a positive number
	AvgWinPnL       float64 // mean pnl across winning pairs
	TopTradePnLShare float64 // best pair pnl / sum of winning pair pnl

	// Shape
	OpenPositionsCount int     // markets with unmatched buys
	AvgPositionSize    float64 // mean fill notional
	AvgHoldHours       float64 // mean FIFO pair hold time in hours
	MaxDrawdownPct     float64 // peak-to-trough on the cumulative pair pnl curve
	SharpeLike         float64 // mean pair pnl / stddev pair pnl
	TradesPerDay       float64
	TradesPerWeek      float64

	// Style
	ConcentrationRatio float64 // volume share of top-3 markets
	SizeCV             float64 // stddev/mean of fill sizes
	BuySellBalance     float64 // buy notional / total notional
	MidFillRatio       float64 // fills priced inside the mid band
	ExtremeFillRatio   float64 // fills priced near 0 or 1
	BurstinessRatio    float64 // max fills in any 1h window / total fills
	DominantCategory   string  // most-traded market category
	DominantCategoryShare float64
}

// OpenPosition represents the unmatched buy remainder for one wallet in one
// market after FIFO pairing. Derived each cycle from the trade log, never
// persisted as authoritative state.
type OpenPosition struct {
	MarketID    string
	Size        float64 // sum of unmatched buy notionals
	CostBasis   float64 // size-weighted average price of unmatched buys
	OldestBuyTS int64   // Unix timestamp of the oldest unmatched buy
}

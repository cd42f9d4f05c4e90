package domain

// RiskPortfolioKey is the sentinel RiskState key for portfolio-wide totals.
const RiskPortfolioKey = "PORTFOLIO"

// RiskState represents accumulated risk figures for one key, either the
// portfolio sentinel or a wallet address. Rows are only ever incremented or
// decremented, never replaced wholesale.
// Corresponds to risk_state table in PostgreSQL.
type RiskState struct {
	Key           string  // RiskPortfolioKey or wallet address
	TotalExposure float64 // open simulated notional in quote currency
	DailyPnL      float64 // realized pnl since local midnight
	WeeklyPnL     float64 // realized pnl over the trailing week
	CurrentPnL    float64 // lifetime realized pnl
	PeakPnL       float64 // high-water mark of CurrentPnL
	OpenPositions int     // count of open simulated positions
	Halted        bool    // manual or automatic kill switch
	HaltReason    string  // operator-visible reason when halted
	UpdatedAt     int64   // Unix timestamp in seconds
}

// DrawdownPct returns the percentage decline from the pnl high-water mark.
// Zero when no peak has been established.
func (s *RiskState) DrawdownPct() float64 {
	if s.PeakPnL <= 0 {
		return 0
	}
	return (s.PeakPnL - s.CurrentPnL) / s.PeakPnL * 100
}

// RiskDelta is an increment applied to a RiskState row. Fields are added to
// the existing row; PeakPnL is re-derived from the resulting CurrentPnL.
type RiskDelta struct {
	Exposure      float64
	DailyPnL      float64
	WeeklyPnL     float64
	CurrentPnL    float64
	OpenPositions int
}

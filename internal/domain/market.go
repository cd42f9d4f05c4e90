package domain

// MarketInfo represents venue metadata for one market.
// Corresponds to markets table in PostgreSQL.
type MarketInfo struct {
	MarketID  string // market condition identifier
	Title     string // human-readable question
	Slug      string // venue URL slug
	Category  string // venue category label
	Active    bool   // still accepting fills
	CreatedAt int64  // record creation timestamp (s)
}

// Package features turns a wallet's raw trade log into its behavioral
// feature vector, built around FIFO-paired realized pnl.
package features

import (
	"mirrorlab/internal/domain"
)

// Pair is one FIFO-matched buy/sell lot in a single market.
type Pair struct {
	PnL      float64 // (sell_price - buy_price) * min(buy_size, sell_size)
	HoldSecs int64   // sell_ts - buy_ts
	SellTS   int64   // close time, used to order pairs chronologically
}

// MarketPairing is the outcome of FIFO pairing one market's fills.
type MarketPairing struct {
	MarketID    string
	RealizedPnL float64
	Pairs       []Pair
	Open        *domain.OpenPosition // nil when no buys remain unmatched
	BuyCost     float64              // total buy notional in this market
}

// PairMarket walks a single market's fills in time order and matches the
// i-th buy against the i-th sell. Pnl attribution must be FIFO, not
// average-cost or LIFO: the question being answered is what closing these
// specific shares actually earned. Unmatched buy shares form the market's
// open position.
func PairMarket(marketID string, trades []*domain.SourceTrade) MarketPairing {
	var buys, sells []*domain.SourceTrade
	for _, t := range trades {
		switch t.Side {
		case domain.SideBuy:
			buys = append(buys, t)
		case domain.SideSell:
			sells = append(sells, t)
		}
	}

	result := MarketPairing{MarketID: marketID}
	for _, b := range buys {
		result.BuyCost += b.Price * b.Size
	}

	n := len(buys)
	if len(sells) < n {
		n = len(sells)
	}

	matched := make([]float64, n)
	for i := 0; i < n; i++ {
		size := buys[i].Size
		if sells[i].Size < size {
			size = sells[i].Size
		}
		matched[i] = size
		pair := Pair{
			PnL:      (sells[i].Price - buys[i].Price) * size,
			HoldSecs: sells[i].Timestamp - buys[i].Timestamp,
			SellTS:   sells[i].Timestamp,
		}
		result.RealizedPnL += pair.PnL
		result.Pairs = append(result.Pairs, pair)
	}

	// Unmatched shares stay open: whole buys past the last sell, plus the
	// remainder of any buy its sell only partially consumed. Each remainder
	// keeps its own price and timestamp.
	open := &domain.OpenPosition{MarketID: marketID}
	var cost float64
	for i, b := range buys {
		rem := b.Size
		if i < n {
			rem -= matched[i]
		}
		if rem <= 0 {
			continue
		}
		open.Size += rem
		cost += b.Price * rem
		if open.OldestBuyTS == 0 || b.Timestamp < open.OldestBuyTS {
			open.OldestBuyTS = b.Timestamp
		}
	}
	if open.Size > 0 {
		open.CostBasis = cost / open.Size
		result.Open = open
	}

	return result
}

// Profitable reports whether this market's paired subtotal came out positive.
func (m *MarketPairing) Profitable() bool {
	return m.RealizedPnL > 0
}

// LifetimeRealized runs FIFO pairing over a wallet's full trade log and
// returns the lifetime realized pnl and total lifetime buy cost. Used by the
// stage one eligibility gate, where unrealized gains never count.
func LifetimeRealized(trades []*domain.SourceTrade) (realizedPnL, buyCost float64) {
	for _, byMarket := range groupByMarket(trades) {
		pairing := PairMarket(byMarket[0].MarketID, byMarket)
		realizedPnL += pairing.RealizedPnL
		buyCost += pairing.BuyCost
	}
	return realizedPnL, buyCost
}

// groupByMarket partitions trades by market, preserving input order inside
// each group. Input is expected sorted by timestamp ASC.
func groupByMarket(trades []*domain.SourceTrade) map[string][]*domain.SourceTrade {
	groups := make(map[string][]*domain.SourceTrade)
	for _, t := range trades {
		groups[t.MarketID] = append(groups[t.MarketID], t)
	}
	return groups
}

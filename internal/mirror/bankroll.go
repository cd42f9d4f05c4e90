package mirror

import (
	"context"
	"fmt"
	"time"

	"mirrorlab/internal/storage"
)

// BankrollEstimator approximates how much capital a tracked wallet deploys,
// from its recent buy notional. The estimate feeds proportional sizing; a
// wallet with no recent buys yields zero and sizing falls back to flat.
type BankrollEstimator struct {
	trades     storage.WalletTradeStore
	windowDays int
	now        func() time.Time
}

func NewBankrollEstimator(trades storage.WalletTradeStore, windowDays int, now func() time.Time) *BankrollEstimator {
	if now == nil {
		now = time.Now
	}
	return &BankrollEstimator{trades: trades, windowDays: windowDays, now: now}
}

// Estimate sums the wallet's buy notional over the trailing window.
func (e *BankrollEstimator) Estimate(ctx context.Context, wallet string) (float64, error) {
	end := e.now().Unix()
	start := end - int64(e.windowDays)*86400

	trades, err := e.trades.GetByWalletTimeRange(ctx, wallet, start, end)
	if err != nil {
		return 0, fmt.Errorf("load trades for bankroll estimate of %s: %w", wallet, err)
	}

	var buyNotional float64
	for _, t := range trades {
		if t.Side.IsBuy() {
			buyNotional += t.Size * t.Price
		}
	}
	return buyNotional, nil
}

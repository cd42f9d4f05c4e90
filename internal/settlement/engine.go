package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/observability"
	"mirrorlab/internal/risk"
	"mirrorlab/internal/storage"
)

// Engine closes open simulated trades when a market resolves. All trades in
// one market settle as a single durable unit together with the risk-state
// deltas they imply.
type Engine struct {
	exec   storage.ExecutionStore
	trades storage.SimulatedTradeStore
	ledger *risk.Ledger
	log    *slog.Logger
	now    func() time.Time
}

// Options for creating a settlement Engine.
type Options struct {
	Exec   storage.ExecutionStore
	Trades storage.SimulatedTradeStore
	Ledger *risk.Ledger

	Logger *slog.Logger
	Now    func() time.Time
}

// NewEngine creates a settlement engine.
func NewEngine(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		exec:   opts.Exec,
		trades: opts.Trades,
		ledger: opts.Ledger,
		log:    log,
		now:    now,
	}
}

// Settle finalizes every open simulated trade in the resolved market.
// Returns the number of trades settled. A malformed resolution is skipped
// with a warning, never fatal.
func (e *Engine) Settle(ctx context.Context, res *domain.MarketResolution) (int, error) {
	if res.MarketID == "" || (res.SettlePrice != 0 && res.SettlePrice != 1) {
		e.log.Warn("skipping malformed market resolution",
			"market_id", res.MarketID,
			"settle_price", res.SettlePrice)
		return 0, nil
	}

	open, err := e.trades.GetOpenByMarket(ctx, res.MarketID)
	if err != nil {
		return 0, fmt.Errorf("load open trades for %s: %w", res.MarketID, err)
	}
	if len(open) == 0 {
		return 0, nil
	}

	settledAt := e.now().Unix()
	walletDeltas := make(map[string]domain.RiskDelta)
	var portfolioDelta domain.RiskDelta

	for _, t := range open {
		pnl := settlePnL(t, res.SettlePrice)
		t.ExitPrice = res.SettlePrice
		t.PnL = pnl
		t.SettledAt = settledAt
		if pnl >= 0 {
			t.Status = domain.TradeStatusSettledWin
		} else {
			t.Status = domain.TradeStatusSettledLoss
		}

		d := walletDeltas[t.Wallet]
		d.Exposure -= t.OurSize * t.OurEntryPrice
		d.OpenPositions--
		d.DailyPnL += pnl
		d.WeeklyPnL += pnl
		d.CurrentPnL += pnl
		walletDeltas[t.Wallet] = d

		portfolioDelta.Exposure -= t.OurSize * t.OurEntryPrice
		portfolioDelta.OpenPositions--
		portfolioDelta.DailyPnL += pnl
		portfolioDelta.WeeklyPnL += pnl
		portfolioDelta.CurrentPnL += pnl
	}

	unit := &storage.SettlementUnit{
		MarketID:       res.MarketID,
		SettlePrice:    res.SettlePrice,
		ResolvedAt:     res.ResolvedAt,
		Trades:         open,
		WalletDeltas:   walletDeltas,
		PortfolioDelta: portfolioDelta,
	}
	if err := e.exec.ApplySettlement(ctx, unit); err != nil {
		return 0, fmt.Errorf("apply settlement for %s: %w", res.MarketID, err)
	}

	for wallet, d := range walletDeltas {
		e.ledger.Apply(wallet, d, settledAt)
	}
	e.ledger.Apply(domain.RiskPortfolioKey, portfolioDelta, settledAt)
	observability.RecordSettlement(len(open))

	e.log.Info("settled market",
		"market_id", res.MarketID,
		"settle_price", res.SettlePrice,
		"trades", len(open),
		"pnl", portfolioDelta.CurrentPnL)
	return len(open), nil
}

// settlePnL prices a terminal fill: a buy earns the move from entry to the
// settle price, a sell the mirror image.
func settlePnL(t *domain.SimulatedTrade, settle float64) float64 {
	if t.Side.IsBuy() {
		return (settle - t.OurEntryPrice) * t.OurSize
	}
	return (t.OurEntryPrice - settle) * t.OurSize
}

package features

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"mirrorlab/internal/config"
	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// ErrInsufficientData is returned when a wallet has too few fills inside the
// lookback window to produce a meaningful feature vector.
var ErrInsufficientData = errors.New("insufficient trade data")

// PriceSource supplies current mark prices for open positions. ok is false
// when the source has no price for the market, which is expected for
// resolved markets and must not fail the computation.
type PriceSource interface {
	Price(ctx context.Context, marketID string) (price float64, ok bool, err error)
}

// Engine computes wallet feature vectors from the trade archive.
type Engine struct {
	trades  storage.WalletTradeStore
	markets storage.MarketStore
	prices  PriceSource
	cfg     config.FeaturesConfig
	log     *slog.Logger
	now     func() time.Time
}

// Options for creating a feature Engine.
type Options struct {
	Trades  storage.WalletTradeStore
	Markets storage.MarketStore
	Prices  PriceSource
	Config  config.FeaturesConfig

	Logger *slog.Logger
	Now    func() time.Time // defaults to time.Now
}

// NewEngine creates a feature engine.
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
		trades:  opts.Trades,
		markets: opts.Markets,
		prices:  opts.Prices,
		cfg:     opts.Config,
		log:     log,
		now:     now,
	}
}

// Compute builds the feature vector for one wallet over a lookback window,
// along with the wallet's open positions after FIFO pairing. Read-only; safe
// to call concurrently for different wallets.
func (e *Engine) Compute(ctx context.Context, wallet string, windowDays int) (*domain.WalletFeatures, []*domain.OpenPosition, error) {
	nowT := e.now().UTC()
	end := nowT.Unix()
	start := end - int64(windowDays)*86400

	trades, err := e.trades.GetByWalletTimeRange(ctx, wallet, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("load trades for %s: %w", wallet, err)
	}
	if len(trades) < e.cfg.MinTrades {
		return nil, nil, ErrInsufficientData
	}

	f := &domain.WalletFeatures{
		Wallet:      wallet,
		WindowDays:  windowDays,
		FeatureDate: nowT.Format("2006-01-02"),
		ComputedAt:  end,
		TradeCount:  len(trades),
	}

	// FIFO pairing per market
	byMarket := groupByMarket(trades)
	f.UniqueMarkets = len(byMarket)

	var allPairs []Pair
	var openPositions []*domain.OpenPosition
	var totalBuyCost float64
	marketIDs := make([]string, 0, len(byMarket))
	for id := range byMarket {
		marketIDs = append(marketIDs, id)
	}
	sort.Strings(marketIDs)

	for _, id := range marketIDs {
		pairing := PairMarket(id, byMarket[id])
		f.FIFORealizedPnL += pairing.RealizedPnL
		totalBuyCost += pairing.BuyCost
		allPairs = append(allPairs, pairing.Pairs...)
		if pairing.Open != nil {
			openPositions = append(openPositions, pairing.Open)
		}
	}

	// Order pairs by close time so drawdown walks the real pnl curve
	sort.Slice(allPairs, func(i, j int) bool { return allPairs[i].SellTS < allPairs[j].SellTS })

	pairPnLs := make([]float64, len(allPairs))
	var holdSecs int64
	var winPnL float64
	var bestWin float64
	for i, p := range allPairs {
		pairPnLs[i] = p.PnL
		holdSecs += p.HoldSecs
		if p.PnL > 0 {
			f.WinCount++
			winPnL += p.PnL
			if p.PnL > bestWin {
				bestWin = p.PnL
			}
		} else {
			f.LossCount++
			if loss := -p.PnL; loss > f.MaxPairLoss {
				f.MaxPairLoss = loss
			}
		}
	}
	if f.WinCount > 0 {
		f.AvgWinPnL = winPnL / float64(f.WinCount)
	}
	if winPnL > 0 {
		f.TopTradePnLShare = bestWin / winPnL
	}
	if len(allPairs) > 0 {
		f.AvgHoldHours = float64(holdSecs) / float64(len(allPairs)) / 3600
	}
	if totalBuyCost > 0 {
		f.RealizedROI = f.FIFORealizedPnL / totalBuyCost * 100
	}

	f.MaxDrawdownPct = computeMaxDrawdownPct(pairPnLs)
	f.SharpeLike = computeSharpeLike(pairPnLs)

	// Unrealized pnl: open positions marked at the current price. A missing
	// price contributes zero, never a crash and never a zero cost basis.
	f.OpenPositionsCount = len(openPositions)
	for _, pos := range openPositions {
		price, ok, err := e.prices.Price(ctx, pos.MarketID)
		if err != nil || !ok {
			e.log.Warn("mark price unavailable, open position contributes zero",
				"wallet", wallet, "market", pos.MarketID, "err", err)
			continue
		}
		f.UnrealizedPnL += (price - pos.CostBasis) * pos.Size
	}
	f.TotalPnL = f.FIFORealizedPnL + f.UnrealizedPnL

	e.computeStyle(ctx, f, trades, byMarket)

	return f, openPositions, nil
}

// computeStyle fills in the cashflow and trading-style features.
func (e *Engine) computeStyle(ctx context.Context, f *domain.WalletFeatures, trades []*domain.SourceTrade, byMarket map[string][]*domain.SourceTrade) {
	notionals := make([]float64, len(trades))
	timestamps := make([]int64, len(trades))
	volumeByMarket := make(map[string]float64, len(byMarket))

	var buyNotional, totalNotional float64
	var midFills, extremeFills int
	for i, t := range trades {
		notional := t.Price * t.Size
		notionals[i] = notional
		timestamps[i] = t.Timestamp
		totalNotional += notional
		volumeByMarket[t.MarketID] += notional

		switch t.Side {
		case domain.SideBuy:
			buyNotional += notional
			f.CashflowPnL -= notional
		case domain.SideSell:
			f.CashflowPnL += notional
		}

		if t.Price >= e.cfg.MidBandLow && t.Price <= e.cfg.MidBandHigh {
			midFills++
		}
		if t.Price <= e.cfg.ExtremeLow || t.Price >= e.cfg.ExtremeHigh {
			extremeFills++
		}
	}

	n := len(trades)
	f.AvgPositionSize = computeMean(notionals)
	f.SizeCV = computeSizeCV(notionals)
	f.TradesPerDay = float64(n) / float64(f.WindowDays)
	f.TradesPerWeek = f.TradesPerDay * 7
	f.ConcentrationRatio = computeConcentration(volumeByMarket)
	f.BurstinessRatio = computeBurstiness(timestamps)
	f.MidFillRatio = float64(midFills) / float64(n)
	f.ExtremeFillRatio = float64(extremeFills) / float64(n)
	if totalNotional > 0 {
		f.BuySellBalance = buyNotional / totalNotional
	}

	// Category volume needs market metadata; unknown markets land in a
	// catch-all bucket rather than failing the vector.
	volumeByCategory := make(map[string]float64)
	for marketID, volume := range volumeByMarket {
		category := "uncategorized"
		if m, err := e.markets.Get(ctx, marketID); err == nil && m.Category != "" {
			category = m.Category
		}
		volumeByCategory[category] += volume
	}
	f.DominantCategory, f.DominantCategoryShare = computeDominant(volumeByCategory)
}

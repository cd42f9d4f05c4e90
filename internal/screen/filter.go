// Package screen implements the cheap stage one eligibility gate that runs
// before any heavy feature computation.
package screen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mirrorlab/internal/config"
	"mirrorlab/internal/domain"
	"mirrorlab/internal/features"
	"mirrorlab/internal/storage"
)

// Result is the outcome of the stage one gate for one wallet.
type Result struct {
	Pass      bool
	AgeDays   float64              // wallet age derived from the first trade
	Exclusion domain.ExclusionCode // set when Pass is false
	Metric    float64              // measured value of the failing check
	Threshold float64              // threshold it was compared against
}

// Filter applies the four eligibility checks in a fixed order,
// short-circuiting on the first failure.
type Filter struct {
	trades storage.WalletTradeStore
	cfg    config.StageOneConfig
	log    *slog.Logger
	now    func() time.Time
}

// Options for creating a stage one Filter.
type Options struct {
	Trades storage.WalletTradeStore
	Config config.StageOneConfig

	Logger *slog.Logger
	Now    func() time.Time // defaults to time.Now
}

// NewFilter creates a stage one filter.
func NewFilter(opts Options) *Filter {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Filter{
		trades: opts.Trades,
		cfg:    opts.Config,
		log:    log,
		now:    now,
	}
}

// Check loads a wallet's lifetime trade log and evaluates the gate.
func (f *Filter) Check(ctx context.Context, wallet string) (*Result, error) {
	trades, err := f.trades.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("load lifetime trades for %s: %w", wallet, err)
	}

	now := f.now().Unix()
	var ageDays, daysSinceLast float64
	if len(trades) > 0 {
		ageDays = float64(now-trades[0].Timestamp) / 86400
		daysSinceLast = float64(now-trades[len(trades)-1].Timestamp) / 86400
	}

	// Lifetime ROI is FIFO realized only. A wallet sitting on paper gains
	// while being a net loser on closed positions does not pass.
	realized, buyCost := features.LifetimeRealized(trades)
	var roiPct float64
	if buyCost > 0 {
		roiPct = realized / buyCost * 100
	}

	result := Evaluate(f.cfg, ageDays, len(trades), daysSinceLast, roiPct)
	result.AgeDays = ageDays
	if !result.Pass {
		f.log.Debug("stage one rejection",
			"wallet", wallet,
			"reason", result.Exclusion,
			"metric", result.Metric,
			"threshold", result.Threshold)
	}
	return result, nil
}

// Evaluate runs the four checks against already-derived inputs. Pure; the
// order is a contract and the first failure wins.
func Evaluate(cfg config.StageOneConfig, ageDays float64, tradeCount int, daysSinceLast, lifetimeROIPct float64) *Result {
	if ageDays < float64(cfg.MinWalletAgeDays) {
		return &Result{
			Exclusion: domain.ExclStage1TooYoung,
			Metric:    ageDays,
			Threshold: float64(cfg.MinWalletAgeDays),
		}
	}
	if tradeCount < cfg.MinTotalTrades {
		return &Result{
			Exclusion: domain.ExclStage1TooFewTrades,
			Metric:    float64(tradeCount),
			Threshold: float64(cfg.MinTotalTrades),
		}
	}
	if daysSinceLast > float64(cfg.MaxInactiveDays) {
		return &Result{
			Exclusion: domain.ExclStage1Inactive,
			Metric:    daysSinceLast,
			Threshold: float64(cfg.MaxInactiveDays),
		}
	}
	if lifetimeROIPct < cfg.MinLifetimeROIPct {
		return &Result{
			Exclusion: domain.ExclStage1NegativeLifetimeROI,
			Metric:    lifetimeROIPct,
			Threshold: cfg.MinLifetimeROIPct,
		}
	}
	return &Result{Pass: true}
}

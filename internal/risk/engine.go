package risk

import (
	"context"
	"fmt"
	"log/slog"

	"mirrorlab/internal/config"
	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

// Gate identifies one predicate in the fixed evaluation order.
type Gate string

const (
	GateGlobalHalt          Gate = "GLOBAL_HALT"
	GatePortfolioExposure   Gate = "PORTFOLIO_EXPOSURE"
	GatePortfolioDailyLoss  Gate = "PORTFOLIO_DAILY_LOSS"
	GatePortfolioWeeklyLoss Gate = "PORTFOLIO_WEEKLY_LOSS"
	GateMaxOpenPositions    Gate = "MAX_OPEN_POSITIONS"
	GateWalletExposure      Gate = "WALLET_EXPOSURE"
	GateWalletDailyLoss     Gate = "WALLET_DAILY_LOSS"
	GateWalletWeeklyLoss    Gate = "WALLET_WEEKLY_LOSS"
	GateWalletDrawdown      Gate = "WALLET_DRAWDOWN"
	GateAvgSlippage         Gate = "AVG_SLIPPAGE"
	GateCopyFidelity        Gate = "COPY_FIDELITY"
)

// Rejection is a gate refusing a proposed trade. Not an error: expected
// control flow, logged with the measured values that caused it.
type Rejection struct {
	Gate   Gate
	Scope  domain.FidelityOutcome // which skip outcome the fidelity log gets
	Value  float64
	Limit  float64
	Reason string
}

func (r *Rejection) String() string {
	return r.Reason
}

// Engine evaluates the ordered gate list against a proposed trade. The first
// failing gate aborts, later gates never run, and no state is mutated.
type Engine struct {
	ledger   *Ledger
	fidelity storage.FidelityEventStore
	slippage storage.SlippageRecordStore
	cfg      config.RiskConfig
	bankroll float64
	log      *slog.Logger
}

// Options for creating a risk Engine.
type Options struct {
	Ledger   *Ledger
	Fidelity storage.FidelityEventStore
	Slippage storage.SlippageRecordStore
	Config   config.RiskConfig
	Bankroll float64

	Logger *slog.Logger
}

// NewEngine creates a risk gate engine.
func NewEngine(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		ledger:   opts.Ledger,
		fidelity: opts.Fidelity,
		slippage: opts.Slippage,
		cfg:      opts.Config,
		bankroll: opts.Bankroll,
		log:      log,
	}
}

// Check runs the gates in order for a proposed copy of size proposedUSD.
// A nil Rejection means the trade may proceed. The error return is for
// storage failures while reading the audit trail, never for a refusal.
func (e *Engine) Check(ctx context.Context, wallet string, proposedUSD float64) (*Rejection, error) {
	// 1. Global halt
	if halted, reason := e.ledger.Halted(); halted {
		return &Rejection{
			Gate:   GateGlobalHalt,
			Scope:  domain.FidelitySkippedPortfolioRisk,
			Reason: fmt.Sprintf("trading halted: %s", reason),
		}, nil
	}

	pf := e.ledger.Snapshot(domain.RiskPortfolioKey)

	// 2. Portfolio exposure
	if limit := e.bankroll * e.cfg.Portfolio.MaxExposurePct / 100; pf.TotalExposure+proposedUSD > limit {
		return reject(GatePortfolioExposure, domain.FidelitySkippedPortfolioRisk,
			pf.TotalExposure+proposedUSD, limit,
			"portfolio exposure $%.2f exceeds limit $%.2f"), nil
	}

	// 3. Portfolio daily loss
	if floor := -(e.bankroll * e.cfg.Portfolio.MaxDailyLossPct / 100); pf.DailyPnL < floor {
		return reject(GatePortfolioDailyLoss, domain.FidelitySkippedPortfolioRisk,
			pf.DailyPnL, floor,
			"portfolio daily pnl $%.2f below floor $%.2f"), nil
	}

	// 4. Portfolio weekly loss
	if floor := -(e.bankroll * e.cfg.Portfolio.MaxWeeklyLossPct / 100); pf.WeeklyPnL < floor {
		return reject(GatePortfolioWeeklyLoss, domain.FidelitySkippedPortfolioRisk,
			pf.WeeklyPnL, floor,
			"portfolio weekly pnl $%.2f below floor $%.2f"), nil
	}

	// 5. Open position count
	if pf.OpenPositions >= e.cfg.Portfolio.MaxOpenPositions {
		return reject(GateMaxOpenPositions, domain.FidelitySkippedPortfolioRisk,
			float64(pf.OpenPositions), float64(e.cfg.Portfolio.MaxOpenPositions),
			"open positions %.0f at limit %.0f"), nil
	}

	w := e.ledger.Snapshot(wallet)

	// 6. Wallet exposure
	if limit := e.bankroll * e.cfg.Wallet.MaxExposurePct / 100; w.TotalExposure+proposedUSD > limit {
		return reject(GateWalletExposure, domain.FidelitySkippedWalletRisk,
			w.TotalExposure+proposedUSD, limit,
			"wallet exposure $%.2f exceeds limit $%.2f"), nil
	}

	// 7. Wallet daily loss
	if floor := -(e.bankroll * e.cfg.Wallet.MaxDailyLossPct / 100); w.DailyPnL < floor {
		return reject(GateWalletDailyLoss, domain.FidelitySkippedWalletRisk,
			w.DailyPnL, floor,
			"wallet daily pnl $%.2f below floor $%.2f"), nil
	}

	// 8. Wallet weekly loss
	if floor := -(e.bankroll * e.cfg.Wallet.MaxWeeklyLossPct / 100); w.WeeklyPnL < floor {
		return reject(GateWalletWeeklyLoss, domain.FidelitySkippedWalletRisk,
			w.WeeklyPnL, floor,
			"wallet weekly pnl $%.2f below floor $%.2f"), nil
	}

	// 9. Wallet drawdown from peak
	if dd := w.DrawdownPct(); dd >= e.cfg.Wallet.MaxDrawdownPct {
		return reject(GateWalletDrawdown, domain.FidelitySkippedWalletRisk,
			dd, e.cfg.Wallet.MaxDrawdownPct,
			"wallet drawdown %.1f%% at limit %.1f%%"), nil
	}

	// 10. Trailing average slippage
	avgGap, err := e.slippage.RecentAvgGapCents(ctx, wallet, e.cfg.Wallet.SlippageWindow)
	if err != nil {
		return nil, fmt.Errorf("read trailing slippage for %s: %w", wallet, err)
	}
	if avgGap >= e.cfg.Wallet.MaxAvgSlippageCents {
		return reject(GateAvgSlippage, domain.FidelitySkippedWalletRisk,
			avgGap, e.cfg.Wallet.MaxAvgSlippageCents,
			"trailing slippage %.2fc at limit %.2fc"), nil
	}

	// 11. Copy fidelity. A wallet with no decisions yet is at 100%.
	copied, total, err := e.fidelity.CountByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("read copy fidelity for %s: %w", wallet, err)
	}
	fidelityPct := 100.0
	if total > 0 {
		fidelityPct = float64(copied) / float64(total) * 100
	}
	if fidelityPct < e.cfg.Wallet.MinCopyFidelityPct {
		return reject(GateCopyFidelity, domain.FidelitySkippedWalletRisk,
			fidelityPct, e.cfg.Wallet.MinCopyFidelityPct,
			"copy fidelity %.1f%% below minimum %.1f%%"), nil
	}

	return nil, nil
}

func reject(gate Gate, scope domain.FidelityOutcome, value, limit float64, format string) *Rejection {
	return &Rejection{
		Gate:   gate,
		Scope:  scope,
		Value:  value,
		Limit:  limit,
		Reason: fmt.Sprintf(format, value, limit),
	}
}

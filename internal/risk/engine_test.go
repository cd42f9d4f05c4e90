package risk

import (
	"context"
	"testing"

	"mirrorlab/internal/config"
	"mirrorlab/internal/domain"
)

// stubAudit implements the fidelity and slippage read interfaces and records
// whether the engine touched them.
type stubAudit struct {
	copied, total int64
	avgGap        float64

	fidelityCalls int
	slippageCalls int
}

func (s *stubAudit) GetByWallet(ctx context.Context, wallet string) ([]*domain.FidelityEvent, error) {
	return nil, nil
}

func (s *stubAudit) GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.FidelityEvent, error) {
	return nil, nil
}

func (s *stubAudit) CountByWallet(ctx context.Context, wallet string) (int64, int64, error) {
	s.fidelityCalls++
	return s.copied, s.total, nil
}

type stubSlippage struct {
	audit *stubAudit
}

func (s *stubSlippage) GetByWallet(ctx context.Context, wallet string) ([]*domain.SlippageRecord, error) {
	return nil, nil
}

func (s *stubSlippage) GetByWalletTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.SlippageRecord, error) {
	return nil, nil
}

func (s *stubSlippage) RecentAvgGapCents(ctx context.Context, wallet string, n int) (float64, error) {
	s.audit.slippageCalls++
	return s.audit.avgGap, nil
}

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		Portfolio: config.PortfolioRiskConfig{
			MaxExposurePct:   50, // $500 of a $1000 bankroll
			MaxDailyLossPct:  5,  // $50
			MaxWeeklyLossPct: 10, // $100
			MaxOpenPositions: 10,
		},
		Wallet: config.WalletRiskConfig{
			MaxExposurePct:      10, // $100
			MaxDailyLossPct:     2,  // $20
			MaxWeeklyLossPct:    4,  // $40
			MaxDrawdownPct:      30,
			MaxAvgSlippageCents: 5,
			SlippageWindow:      20,
			MinCopyFidelityPct:  70,
		},
	}
}

func testEngine(t *testing.T) (*Engine, *Ledger, *stubAudit) {
	t.Helper()
	audit := &stubAudit{copied: 9, total: 10}
	ledger := NewLedger()
	eng := NewEngine(Options{
		Ledger:   ledger,
		Fidelity: audit,
		Slippage: &stubSlippage{audit: audit},
		Config:   testRiskConfig(),
		Bankroll: 1000,
	})
	return eng, ledger, audit
}

func TestCheckAllGatesPass(t *testing.T) {
	eng, ledger, _ := testEngine(t)
	ledger.Apply("wallet-a", domain.RiskDelta{Exposure: 50}, 1000)
	ledger.Apply(domain.RiskPortfolioKey, domain.RiskDelta{Exposure: 200, OpenPositions: 4}, 1000)

	rej, err := eng.Check(context.Background(), "wallet-a", 25)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rej != nil {
		t.Fatalf("unexpected rejection: %+v", rej)
	}
}

func TestCheckGlobalHalt(t *testing.T) {
	eng, ledger, audit := testEngine(t)
	ledger.Halt("manual stop", 1000)

	rej, err := eng.Check(context.Background(), "wallet-a", 10)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rej == nil || rej.Gate != GateGlobalHalt {
		t.Fatalf("rejection = %+v, want GLOBAL_HALT", rej)
	}
	if rej.Scope != domain.FidelitySkippedPortfolioRisk {
		t.Errorf("Scope = %v", rej.Scope)
	}
	if audit.fidelityCalls != 0 || audit.slippageCalls != 0 {
		t.Error("halted engine still read the audit stores")
	}
}

// A failure at gate 2 must stop evaluation: the audit stores backing gates
// 10 and 11 are never queried and nothing in the ledger changes.
func TestCheckShortCircuits(t *testing.T) {
	eng, ledger, audit := testEngine(t)
	ledger.Apply(domain.RiskPortfolioKey, domain.RiskDelta{Exposure: 490}, 1000)
	before := ledger.Snapshot(domain.RiskPortfolioKey)

	rej, err := eng.Check(context.Background(), "wallet-a", 20)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rej == nil || rej.Gate != GatePortfolioExposure {
		t.Fatalf("rejection = %+v, want PORTFOLIO_EXPOSURE", rej)
	}
	if rej.Value != 510 || rej.Limit != 500 {
		t.Errorf("Value/Limit = %v/%v, want 510/500", rej.Value, rej.Limit)
	}
	if audit.fidelityCalls != 0 {
		t.Errorf("gate 11 evaluated after gate 2 failure (%d fidelity reads)", audit.fidelityCalls)
	}
	if audit.slippageCalls != 0 {
		t.Errorf("gate 10 evaluated after gate 2 failure (%d slippage reads)", audit.slippageCalls)
	}
	after := ledger.Snapshot(domain.RiskPortfolioKey)
	if before != after {
		t.Errorf("Check mutated ledger state: %+v -> %+v", before, after)
	}
}

func TestCheckPortfolioLossGates(t *testing.T) {
	tests := []struct {
		name  string
		delta domain.RiskDelta
		gate  Gate
	}{
		{"daily", domain.RiskDelta{DailyPnL: -50.01}, GatePortfolioDailyLoss},
		{"weekly", domain.RiskDelta{DailyPnL: -40, WeeklyPnL: -100.01}, GatePortfolioWeeklyLoss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, ledger, _ := testEngine(t)
			ledger.Apply(domain.RiskPortfolioKey, tt.delta, 1000)

			rej, err := eng.Check(context.Background(), "wallet-a", 10)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if rej == nil || rej.Gate != tt.gate {
				t.Fatalf("rejection = %+v, want %s", rej, tt.gate)
			}
			if rej.Scope != domain.FidelitySkippedPortfolioRisk {
				t.Errorf("Scope = %v", rej.Scope)
			}
		})
	}
}

func TestCheckLossAtExactLimitPasses(t *testing.T) {
	eng, ledger, _ := testEngine(t)
	// Exactly -$50 daily is the floor, not past it.
	ledger.Apply(domain.RiskPortfolioKey, domain.RiskDelta{DailyPnL: -50, WeeklyPnL: -50}, 1000)

	rej, err := eng.Check(context.Background(), "wallet-a", 10)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rej != nil {
		t.Fatalf("unexpected rejection at exact floor: %+v", rej)
	}
}

func TestCheckMaxOpenPositions(t *testing.T) {
	eng, ledger, _ := testEngine(t)
	ledger.Apply(domain.RiskPortfolioKey, domain.RiskDelta{OpenPositions: 10}, 1000)

	rej, err := eng.Check(context.Background(), "wallet-a", 10)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rej == nil || rej.Gate != GateMaxOpenPositions {
		t.Fatalf("rejection = %+v, want MAX_OPEN_POSITIONS", rej)
	}
}

func TestCheckWalletGates(t *testing.T) {
	tests := []struct {
		name  string
		delta domain.RiskDelta
		gate  Gate
	}{
		{"exposure", domain.RiskDelta{Exposure: 95}, GateWalletExposure},
		{"daily loss", domain.RiskDelta{DailyPnL: -20.01}, GateWalletDailyLoss},
		{"weekly loss", domain.RiskDelta{DailyPnL: -19, WeeklyPnL: -40.01}, GateWalletWeeklyLoss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, ledger, _ := testEngine(t)
			ledger.Apply("wallet-a", tt.delta, 1000)

			rej, err := eng.Check(context.Background(), "wallet-a", 10)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if rej == nil || rej.Gate != tt.gate {
				t.Fatalf("rejection = %+v, want %s", rej, tt.gate)
			}
			if rej.Scope != domain.FidelitySkippedWalletRisk {
				t.Errorf("Scope = %v", rej.Scope)
			}
		})
	}
}

func TestCheckWalletDrawdown(t *testing.T) {
	eng, ledger, _ := testEngine(t)
	// Peak $100, current $70: exactly 30% drawdown, which is at the limit.
	ledger.Apply("wallet-a", domain.RiskDelta{CurrentPnL: 100}, 1000)
	ledger.Apply("wallet-a", domain.RiskDelta{CurrentPnL: -30}, 2000)

	rej, err := eng.Check(context.Background(), "wallet-a", 10)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rej == nil || rej.Gate != GateWalletDrawdown {
		t.Fatalf("rejection = %+v, want WALLET_DRAWDOWN", rej)
	}
	if rej.Value != 30 {
		t.Errorf("Value = %v, want 30", rej.Value)
	}
}

func TestCheckDrawdownIgnoredWithoutPeak(t *testing.T) {
	eng, ledger, _ := testEngine(t)
	// A wallet that has only lost money has no profit peak to draw down from.
	ledger.Apply("wallet-a", domain.RiskDelta{CurrentPnL: -15, DailyPnL: -15, WeeklyPnL: -15}, 1000)

	rej, err := eng.Check(context.Background(), "wallet-a", 10)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rej != nil {
		t.Fatalf("unexpected rejection: %+v", rej)
	}
}

func TestCheckAvgSlippage(t *testing.T) {
	eng, _, audit := testEngine(t)
	audit.avgGap = 5

	rej, err := eng.Check(context.Background(), "wallet-a", 10)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rej == nil || rej.Gate != GateAvgSlippage {
		t.Fatalf("rejection = %+v, want AVG_SLIPPAGE", rej)
	}
	if audit.fidelityCalls != 0 {
		t.Error("gate 11 evaluated after gate 10 failure")
	}
}

func TestCheckCopyFidelity(t *testing.T) {
	eng, _, audit := testEngine(t)
	audit.copied, audit.total = 6, 10

	rej, err := eng.Check(context.Background(), "wallet-a", 10)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rej == nil || rej.Gate != GateCopyFidelity {
		t.Fatalf("rejection = %+v, want COPY_FIDELITY", rej)
	}
	if rej.Value != 60 {
		t.Errorf("Value = %v, want 60", rej.Value)
	}
}

func TestCheckFidelityWithNoHistoryIs100(t *testing.T) {
	eng, _, audit := testEngine(t)
	audit.copied, audit.total = 0, 0

	rej, err := eng.Check(context.Background(), "wallet-a", 10)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rej != nil {
		t.Fatalf("fresh wallet rejected on fidelity: %+v", rej)
	}
	if audit.fidelityCalls != 1 {
		t.Errorf("fidelityCalls = %d, want 1", audit.fidelityCalls)
	}
}

package memory

import (
	"context"
	"errors"
	"math"
	"testing"

	"mirrorlab/internal/domain"
	"mirrorlab/internal/storage"
)

func mirrorUnit(simID, sourceID, wallet, market string, size, price float64) *storage.MirrorUnit {
	return &storage.MirrorUnit{
		Trade: &domain.SimulatedTrade{
			SimTradeID:    simID,
			Wallet:        wallet,
			MarketID:      market,
			Side:          domain.SideBuy,
			SourceTradeID: sourceID,
			TheirPrice:    price,
			TheirSize:     size,
			OurSize:       size,
			OurEntryPrice: price,
			Status:        domain.TradeStatusOpen,
			CreatedAt:     1000,
		},
		Fidelity: &domain.FidelityEvent{
			EventID:       "fe-" + sourceID,
			Wallet:        wallet,
			MarketID:      market,
			SourceTradeID: sourceID,
			Outcome:       domain.FidelityCopied,
			CreatedAt:     1000,
		},
		Slippage: &domain.SlippageRecord{
			RecordID:      "sl-" + sourceID,
			Wallet:        wallet,
			MarketID:      market,
			SourceTradeID: sourceID,
			SimTradeID:    simID,
			TheirPrice:    price,
			OurPrice:      price + 0.01,
			EntryGapCents: 1.0,
			CreatedAt:     1000,
		},
		WalletDelta:    domain.RiskDelta{Exposure: size, OpenPositions: 1},
		PortfolioDelta: domain.RiskDelta{Exposure: size, OpenPositions: 1},
	}
}

func TestExecutionStore_RecordMirror(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	if err := store.RecordMirror(ctx, mirrorUnit("sim1", "src1", "0xabc", "cond-1", 50, 0.60)); err != nil {
		t.Fatalf("RecordMirror failed: %v", err)
	}

	got, err := store.GetBySourceTradeID(ctx, "src1")
	if err != nil {
		t.Fatalf("GetBySourceTradeID failed: %v", err)
	}
	if got.OurSize != 50 {
		t.Errorf("OurSize mismatch: got %f, want 50", got.OurSize)
	}

	pos, err := store.Get(ctx, "0xabc", "cond-1", domain.SideBuy)
	if err != nil {
		t.Fatalf("position Get failed: %v", err)
	}
	if pos.TotalSize != 50 || pos.AvgEntryPrice != 0.60 {
		t.Errorf("position mismatch: got size=%f avg=%f", pos.TotalSize, pos.AvgEntryPrice)
	}

	st, err := store.GetRiskState(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetRiskState failed: %v", err)
	}
	if st.TotalExposure != 50 || st.OpenPositions != 1 {
		t.Errorf("wallet risk mismatch: exposure=%f positions=%d", st.TotalExposure, st.OpenPositions)
	}

	pf, err := store.GetRiskState(ctx, domain.RiskPortfolioKey)
	if err != nil {
		t.Fatalf("portfolio GetRiskState failed: %v", err)
	}
	if pf.TotalExposure != 50 {
		t.Errorf("portfolio exposure mismatch: got %f", pf.TotalExposure)
	}
}

func TestExecutionStore_RecordMirrorIdempotent(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	if err := store.RecordMirror(ctx, mirrorUnit("sim1", "src1", "0xabc", "cond-1", 50, 0.60)); err != nil {
		t.Fatalf("first RecordMirror failed: %v", err)
	}

	// Replaying the same source trade must not create a second copy
	err := store.RecordMirror(ctx, mirrorUnit("sim1b", "src1", "0xabc", "cond-1", 50, 0.60))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	trades, err := store.GetByWallet(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	if len(trades) != 1 {
		t.Errorf("expected exactly 1 simulated trade, got %d", len(trades))
	}

	// The rejected replay must leave risk state untouched
	st, err := store.GetRiskState(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetRiskState failed: %v", err)
	}
	if st.TotalExposure != 50 {
		t.Errorf("replay mutated exposure: got %f, want 50", st.TotalExposure)
	}
}

func TestExecutionStore_PositionWeightedAverage(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	if err := store.RecordMirror(ctx, mirrorUnit("sim1", "src1", "0xabc", "cond-1", 100, 0.40)); err != nil {
		t.Fatalf("RecordMirror failed: %v", err)
	}
	if err := store.RecordMirror(ctx, mirrorUnit("sim2", "src2", "0xabc", "cond-1", 50, 0.70)); err != nil {
		t.Fatalf("RecordMirror failed: %v", err)
	}

	pos, err := store.Get(ctx, "0xabc", "cond-1", domain.SideBuy)
	if err != nil {
		t.Fatalf("position Get failed: %v", err)
	}
	want := (0.40*100 + 0.70*50) / 150
	if math.Abs(pos.AvgEntryPrice-want) > 1e-9 {
		t.Errorf("AvgEntryPrice mismatch: got %f, want %f", pos.AvgEntryPrice, want)
	}
	if pos.TotalSize != 150 {
		t.Errorf("TotalSize mismatch: got %f, want 150", pos.TotalSize)
	}
}

func TestExecutionStore_ApplySettlement(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	if err := store.RecordMirror(ctx, mirrorUnit("sim1", "src1", "0xabc", "cond-1", 25, 0.60)); err != nil {
		t.Fatalf("RecordMirror failed: %v", err)
	}

	unit := &storage.SettlementUnit{
		MarketID:    "cond-1",
		SettlePrice: 1.0,
		ResolvedAt:  2000,
		Trades: []*domain.SimulatedTrade{
			{
				SimTradeID: "sim1",
				Wallet:     "0xabc",
				MarketID:   "cond-1",
				Side:       domain.SideBuy,
				Status:     domain.TradeStatusSettledWin,
				ExitPrice:  1.0,
				PnL:        10.0,
				SettledAt:  2000,
			},
		},
		WalletDeltas: map[string]domain.RiskDelta{
			"0xabc": {Exposure: -25, DailyPnL: 10, WeeklyPnL: 10, CurrentPnL: 10, OpenPositions: -1},
		},
		PortfolioDelta: domain.RiskDelta{Exposure: -25, DailyPnL: 10, WeeklyPnL: 10, CurrentPnL: 10, OpenPositions: -1},
	}
	if err := store.ApplySettlement(ctx, unit); err != nil {
		t.Fatalf("ApplySettlement failed: %v", err)
	}

	got, err := store.GetBySourceTradeID(ctx, "src1")
	if err != nil {
		t.Fatalf("GetBySourceTradeID failed: %v", err)
	}
	if got.Status != domain.TradeStatusSettledWin || got.PnL != 10.0 {
		t.Errorf("settled trade mismatch: status=%s pnl=%f", got.Status, got.PnL)
	}

	// Accumulator position deleted on settlement
	if _, err := store.Get(ctx, "0xabc", "cond-1", domain.SideBuy); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected position deleted, got %v", err)
	}

	st, err := store.GetRiskState(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetRiskState failed: %v", err)
	}
	if st.TotalExposure != 0 || st.CurrentPnL != 10 || st.PeakPnL != 10 || st.OpenPositions != 0 {
		t.Errorf("risk state mismatch after settlement: %+v", st)
	}
}

func TestExecutionStore_RecordSkipAndFidelityCounts(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	if err := store.RecordMirror(ctx, mirrorUnit("sim1", "src1", "0xabc", "cond-1", 50, 0.60)); err != nil {
		t.Fatalf("RecordMirror failed: %v", err)
	}

	skip := &domain.FidelityEvent{
		EventID:       "fe-src2",
		Wallet:        "0xabc",
		MarketID:      "cond-1",
		SourceTradeID: "src2",
		Outcome:       domain.FidelitySkippedWalletRisk,
		Detail:        "wallet exposure $900.00 exceeds limit $800.00",
		CreatedAt:     1100,
	}
	if err := store.RecordSkip(ctx, skip); err != nil {
		t.Fatalf("RecordSkip failed: %v", err)
	}

	if err := store.RecordSkip(ctx, skip); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey on repeated skip, got %v", err)
	}

	copied, total, err := store.CountFidelityByWallet(ctx, "0xabc")
	if err != nil {
		t.Fatalf("CountFidelityByWallet failed: %v", err)
	}
	if copied != 1 || total != 2 {
		t.Errorf("fidelity counts mismatch: copied=%d total=%d", copied, total)
	}
}

func TestExecutionStore_RecentAvgGapCents(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	// No records yet: zero, not an error
	avg, err := store.RecentAvgGapCents(ctx, "0xabc", 10)
	if err != nil {
		t.Fatalf("RecentAvgGapCents failed: %v", err)
	}
	if avg != 0 {
		t.Errorf("expected 0 with no records, got %f", avg)
	}

	for i, gap := range []float64{1.0, 2.0, 3.0} {
		u := mirrorUnit("sim"+string(rune('a'+i)), "src"+string(rune('a'+i)), "0xabc", "cond-1", 10, 0.50)
		u.Slippage.EntryGapCents = gap
		u.Slippage.CreatedAt = int64(1000 + i)
		u.Trade.CreatedAt = int64(1000 + i)
		if err := store.RecordMirror(ctx, u); err != nil {
			t.Fatalf("RecordMirror failed: %v", err)
		}
	}

	// Last two records only
	avg, err = store.RecentAvgGapCents(ctx, "0xabc", 2)
	if err != nil {
		t.Fatalf("RecentAvgGapCents failed: %v", err)
	}
	if math.Abs(avg-2.5) > 1e-9 {
		t.Errorf("expected trailing avg 2.5, got %f", avg)
	}
}

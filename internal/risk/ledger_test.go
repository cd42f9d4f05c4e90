package risk

import (
	"testing"

	"mirrorlab/internal/domain"
)

func TestLedgerApplyTracksPeak(t *testing.T) {
	l := NewLedger()

	l.Apply("wallet-a", domain.RiskDelta{CurrentPnL: 50, DailyPnL: 50, WeeklyPnL: 50}, 1000)
	l.Apply("wallet-a", domain.RiskDelta{CurrentPnL: -20, DailyPnL: -20, WeeklyPnL: -20}, 2000)

	s := l.Snapshot("wallet-a")
	if s.CurrentPnL != 30 {
		t.Errorf("CurrentPnL = %v, want 30", s.CurrentPnL)
	}
	if s.PeakPnL != 50 {
		t.Errorf("PeakPnL = %v, want 50", s.PeakPnL)
	}
	if got := s.DrawdownPct(); got != 40 {
		t.Errorf("DrawdownPct() = %v, want 40", got)
	}
	if s.UpdatedAt != 2000 {
		t.Errorf("UpdatedAt = %v, want 2000", s.UpdatedAt)
	}
}

func TestLedgerSnapshotUnknownKeyIsZero(t *testing.T) {
	l := NewLedger()

	s := l.Snapshot("never-seen")
	if s.Key != "never-seen" {
		t.Errorf("Key = %q, want never-seen", s.Key)
	}
	if s.TotalExposure != 0 || s.CurrentPnL != 0 || s.OpenPositions != 0 {
		t.Errorf("expected zero state, got %+v", s)
	}
	if got := s.DrawdownPct(); got != 0 {
		t.Errorf("DrawdownPct() of zero state = %v, want 0", got)
	}
}

func TestLedgerRehydrateReplacesContents(t *testing.T) {
	l := NewLedger()
	l.Apply("stale", domain.RiskDelta{Exposure: 999}, 1)

	l.Rehydrate([]*domain.RiskState{
		{Key: domain.RiskPortfolioKey, TotalExposure: 500, OpenPositions: 3, UpdatedAt: 100},
		{Key: "wallet-a", TotalExposure: 120, CurrentPnL: 40, PeakPnL: 60, UpdatedAt: 100},
	})

	if s := l.Snapshot("stale"); s.TotalExposure != 0 {
		t.Errorf("stale key survived rehydrate: %+v", s)
	}
	pf := l.Snapshot(domain.RiskPortfolioKey)
	if pf.TotalExposure != 500 || pf.OpenPositions != 3 {
		t.Errorf("portfolio state = %+v", pf)
	}
	w := l.Snapshot("wallet-a")
	if w.PeakPnL != 60 {
		t.Errorf("wallet PeakPnL = %v, want 60", w.PeakPnL)
	}
}

func TestLedgerSnapshotAllSorted(t *testing.T) {
	l := NewLedger()
	l.Apply("b", domain.RiskDelta{Exposure: 2}, 1)
	l.Apply("a", domain.RiskDelta{Exposure: 1}, 1)
	l.Apply("c", domain.RiskDelta{Exposure: 3}, 1)

	all := l.SnapshotAll()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i, want := range []string{"a", "b", "c"} {
		if all[i].Key != want {
			t.Errorf("all[%d].Key = %q, want %q", i, all[i].Key, want)
		}
	}
}

func TestLedgerSnapshotIsACopy(t *testing.T) {
	l := NewLedger()
	l.Apply("wallet-a", domain.RiskDelta{Exposure: 100}, 1)

	s := l.Snapshot("wallet-a")
	s.TotalExposure = -1

	if got := l.Snapshot("wallet-a").TotalExposure; got != 100 {
		t.Errorf("ledger mutated through snapshot: exposure = %v", got)
	}
}

func TestLedgerHaltResume(t *testing.T) {
	l := NewLedger()

	if halted, _ := l.Halted(); halted {
		t.Fatal("fresh ledger reports halted")
	}

	l.Halt("weekly loss breach", 5000)
	halted, reason := l.Halted()
	if !halted {
		t.Fatal("ledger not halted after Halt")
	}
	if reason != "weekly loss breach" {
		t.Errorf("reason = %q", reason)
	}

	l.Resume(6000)
	if halted, _ := l.Halted(); halted {
		t.Error("ledger still halted after Resume")
	}
}

func TestLedgerResets(t *testing.T) {
	l := NewLedger()
	l.Apply("wallet-a", domain.RiskDelta{DailyPnL: -30, WeeklyPnL: -70, CurrentPnL: -70}, 1000)

	l.ResetDaily(2000)
	s := l.Snapshot("wallet-a")
	if s.DailyPnL != 0 {
		t.Errorf("DailyPnL after reset = %v, want 0", s.DailyPnL)
	}
	if s.WeeklyPnL != -70 {
		t.Errorf("WeeklyPnL touched by daily reset: %v", s.WeeklyPnL)
	}
	if s.CurrentPnL != -70 {
		t.Errorf("CurrentPnL touched by daily reset: %v", s.CurrentPnL)
	}

	l.ResetWeekly(3000)
	if got := l.Snapshot("wallet-a").WeeklyPnL; got != 0 {
		t.Errorf("WeeklyPnL after weekly reset = %v, want 0", got)
	}
}

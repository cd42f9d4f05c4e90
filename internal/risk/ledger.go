// Package risk holds the shared risk ledger and the ordered gate engine
// every proposed copy must clear.
package risk

import (
	"sort"
	"sync"

	"mirrorlab/internal/domain"
)

// Ledger is the in-memory, internally-synchronized risk state for the
// portfolio sentinel and every wallet. It is the single source the gates
// read; persisted risk_state rows mirror it and seed it after a restart.
type Ledger struct {
	mu     sync.RWMutex
	states map[string]*domain.RiskState
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{states: make(map[string]*domain.RiskState)}
}

// Rehydrate seeds the ledger from persisted rows, replacing current contents.
func (l *Ledger) Rehydrate(states []*domain.RiskState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.states = make(map[string]*domain.RiskState, len(states))
	for _, s := range states {
		copy := *s
		l.states[s.Key] = &copy
	}
}

// Snapshot returns a copy of one key's state. An unknown key yields a zero
// state, not an error: a wallet with no history has no exposure.
func (l *Ledger) Snapshot(key string) domain.RiskState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if s, exists := l.states[key]; exists {
		return *s
	}
	return domain.RiskState{Key: key}
}

// SnapshotAll returns copies of every tracked state, ordered by key.
func (l *Ledger) SnapshotAll() []*domain.RiskState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*domain.RiskState, 0, len(l.states))
	for _, s := range l.states {
		copy := *s
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Apply increments one key's state by a delta.
func (l *Ledger) Apply(key string, d domain.RiskDelta, now int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, exists := l.states[key]
	if !exists {
		s = &domain.RiskState{Key: key}
		l.states[key] = s
	}
	s.TotalExposure += d.Exposure
	s.DailyPnL += d.DailyPnL
	s.WeeklyPnL += d.WeeklyPnL
	s.CurrentPnL += d.CurrentPnL
	s.OpenPositions += d.OpenPositions
	if s.CurrentPnL > s.PeakPnL {
		s.PeakPnL = s.CurrentPnL
	}
	s.UpdatedAt = now
}

// Halt raises the portfolio-wide kill switch.
func (l *Ledger) Halt(reason string, now int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, exists := l.states[domain.RiskPortfolioKey]
	if !exists {
		s = &domain.RiskState{Key: domain.RiskPortfolioKey}
		l.states[domain.RiskPortfolioKey] = s
	}
	s.Halted = true
	s.HaltReason = reason
	s.UpdatedAt = now
}

// Resume clears the kill switch.
func (l *Ledger) Resume(now int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s, exists := l.states[domain.RiskPortfolioKey]; exists {
		s.Halted = false
		s.HaltReason = ""
		s.UpdatedAt = now
	}
}

// Halted reports the kill switch state and reason.
func (l *Ledger) Halted() (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if s, exists := l.states[domain.RiskPortfolioKey]; exists {
		return s.Halted, s.HaltReason
	}
	return false, ""
}

// ResetDaily zeroes the daily pnl window on every key.
func (l *Ledger) ResetDaily(now int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.states {
		s.DailyPnL = 0
		s.UpdatedAt = now
	}
}

// ResetWeekly zeroes the weekly pnl window on every key.
func (l *Ledger) ResetWeekly(now int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.states {
		s.WeeklyPnL = 0
		s.UpdatedAt = now
	}
}

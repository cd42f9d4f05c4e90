package pipeline

import "sync"

// Notifier coalesces wake-up triggers into a single-slot generation
// counter. Any number of Trigger calls while the worker is busy collapse
// into one pending wake-up; the worker always catches up to the newest
// generation it observes, never replays intermediate ones.
type Notifier struct {
	mu   sync.Mutex
	cond chan struct{}
	gen  uint64
}

// NewNotifier creates a trigger notifier.
func NewNotifier() *Notifier {
	return &Notifier{cond: make(chan struct{}, 1)}
}

// Trigger bumps the generation and wakes the worker if it is parked. Safe
// for concurrent use; never blocks.
func (n *Notifier) Trigger() {
	n.mu.Lock()
	n.gen++
	n.mu.Unlock()

	select {
	case n.cond <- struct{}{}:
	default:
	}
}

// Wait returns a channel that receives when at least one trigger arrived
// since the last Observe.
func (n *Notifier) Wait() <-chan struct{} {
	return n.cond
}

// Observe claims any pending wake-up and returns the current generation.
// A worker records this before a run; if Pending reports a newer
// generation afterwards, more work arrived mid-run and one more pass is
// due.
func (n *Notifier) Observe() uint64 {
	select {
	case <-n.cond:
	default:
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gen
}

// Pending reports whether triggers arrived after the observed generation.
func (n *Notifier) Pending(observed uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gen > observed
}

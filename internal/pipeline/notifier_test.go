package pipeline

import "testing"

func TestNotifierCoalescesTriggers(t *testing.T) {
	n := NewNotifier()

	for i := 0; i < 5; i++ {
		n.Trigger()
	}

	// Five triggers collapse into one wake-up.
	select {
	case <-n.Wait():
	default:
		t.Fatal("no wake-up pending after triggers")
	}
	select {
	case <-n.Wait():
		t.Fatal("second wake-up pending, triggers were queued not coalesced")
	default:
	}
}

func TestNotifierPendingTracksGeneration(t *testing.T) {
	n := NewNotifier()

	observed := n.Observe()
	if n.Pending(observed) {
		t.Fatal("pending with no triggers")
	}

	n.Trigger()
	if !n.Pending(observed) {
		t.Fatal("trigger not pending against old generation")
	}

	observed = n.Observe()
	if n.Pending(observed) {
		t.Fatal("pending after observing the latest generation")
	}
}

func TestNotifierObserveClaimsWakeup(t *testing.T) {
	n := NewNotifier()
	n.Trigger()

	n.Observe()

	select {
	case <-n.Wait():
		t.Fatal("wake-up still pending after Observe")
	default:
	}
}

func TestNotifierTriggerNeverBlocks(t *testing.T) {
	n := NewNotifier()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			n.Trigger()
		}
		close(done)
	}()
	<-done

	if got := n.Observe(); got != 1000 {
		t.Errorf("generation = %d, want 1000", got)
	}
}

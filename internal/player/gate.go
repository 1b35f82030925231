package player

import (
	"context"
	"sync"
)

// PauseGate is an async manual-reset latch. Waiters block while the gate is
// reset and are all released when it is set. Waiter goroutines resume on their
// own schedulers; Set never runs waiter code inline.
type PauseGate struct {
	mu        sync.Mutex
	signalled bool
	open      chan struct{} // closed while signalled is being flipped on
}

// NewPauseGate creates a gate in the given initial state.
func NewPauseGate(signalled bool) *PauseGate {
	g := &PauseGate{
		signalled: signalled,
		open:      make(chan struct{}),
	}
	if signalled {
		close(g.open)
	}
	return g
}

// Set releases all current and future waiters until Reset.
func (g *PauseGate) Set() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.signalled {
		g.signalled = true
		close(g.open)
	}
}

// Reset transitions to non-signalled. No-op when already reset.
func (g *PauseGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.signalled {
		g.signalled = false
		g.open = make(chan struct{})
	}
}

// Signalled reports whether the gate currently passes waiters through.
func (g *PauseGate) Signalled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.signalled
}

// Wait returns immediately if the gate is signalled, otherwise blocks until
// Set or ctx cancellation. Cancelling one waiter does not affect others.
func (g *PauseGate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if g.signalled {
			g.mu.Unlock()
			return nil
		}
		open := g.open
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-open:
			// The gate may have been reset again between the close and
			// this wakeup; re-check.
		}
	}
}

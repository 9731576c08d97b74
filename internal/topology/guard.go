package topology

import (
	"sync"
	"sync/atomic"
)

// Guard serializes registry mutation between the event reconciliation
// goroutine and caller goroutines. One guard is shared by all labs of a
// client session. It only engages while event listening is active; when
// disabled, Lock returns immediately and the caller is responsible for
// single-goroutine use or external synchronization.
//
// Go has no re-entrant lock, so the package follows the convention that
// exported methods acquire the guard and unexported ...Locked helpers assume
// it is already held.
type Guard struct {
	mu     sync.Mutex
	active atomic.Bool
}

// Enable turns serialization on. Called before the event listener starts
// delivering events.
func (g *Guard) Enable() {
	if g != nil {
		g.active.Store(true)
	}
}

// Disable turns serialization off. Only safe once the event listener has
// fully stopped.
func (g *Guard) Disable() {
	if g != nil {
		g.active.Store(false)
	}
}

// Lock acquires the guard when active and returns the matching unlock. The
// returned function must always be called:
//
//	defer l.guard.Lock()()
//
// A nil guard is a valid no-op capability.
func (g *Guard) Lock() (unlock func()) {
	if g == nil || !g.active.Load() {
		return func() {}
	}
	g.mu.Lock()
	return g.mu.Unlock
}

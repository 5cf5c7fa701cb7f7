package reconcile

import "sync"

// Gate suspends reconciliation for the duration of a critical section such
// as order submission. Holds nest; reconciliation resumes when every hold
// is released.
type Gate struct {
	mu    sync.Mutex
	holds int
}

// NewGate creates an open gate.
func NewGate() *Gate {
	return &Gate{}
}

// Suspend takes a hold and returns its release func. Calling release more
// than once has no further effect. Callers release with defer so the hold
// ends on every return path.
func (g *Gate) Suspend() (release func()) {
	g.mu.Lock()
	g.holds++
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.holds--
			g.mu.Unlock()
		})
	}
}

// Suspended reports whether any hold is active.
func (g *Gate) Suspended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holds > 0
}

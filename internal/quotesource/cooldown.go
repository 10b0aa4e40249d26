package quotesource

import (
	"sync"
	"time"
)

// cooldownGate blocks remote calls for a window after the last failure.
type cooldownGate struct {
	mu          sync.Mutex
	window      time.Duration
	lastFailure time.Time
	now         func() time.Time
}

func newCooldownGate(window time.Duration, now func() time.Time) *cooldownGate {
	if now == nil {
		now = time.Now
	}
	return &cooldownGate{window: window, now: now}
}

// Allow reports whether a remote call may be attempted now.
func (g *cooldownGate) Allow() bool {
	return g.Remaining() == 0
}

// Remaining is how long the gate stays closed (0 when open).
func (g *cooldownGate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastFailure.IsZero() {
		return 0
	}
	left := g.window - g.now().Sub(g.lastFailure)
	if left < 0 {
		return 0
	}
	return left
}

func (g *cooldownGate) RecordFailure() {
	g.mu.Lock()
	g.lastFailure = g.now()
	g.mu.Unlock()
}

func (g *cooldownGate) RecordSuccess() {
	g.mu.Lock()
	g.lastFailure = time.Time{}
	g.mu.Unlock()
}

func (g *cooldownGate) SetWindow(d time.Duration) {
	g.mu.Lock()
	g.window = d
	g.mu.Unlock()
}

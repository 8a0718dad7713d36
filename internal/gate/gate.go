// Package gate aggregates the reasons periodic work should pause.
//
// A [Gate] holds one reference count per [Reason]. Work is suspended while
// any count is above zero. Modal dialogs acquire and release the
// [ReasonModal] count, so nested dialogs keep the gate closed until the
// last one closes. Page visibility is a boolean reason set via
// [Gate.SetHidden].
package gate

import (
	"sort"
	"sync"
)

// Reason names one cause of suspension.
type Reason string

const (
	// ReasonModal is held once per open modal dialog.
	ReasonModal Reason = "modal"

	// ReasonHidden is held while the page is not visible.
	ReasonHidden Reason = "hidden"
)

// Gate is a reference-counted set of suspension reasons.
//
// The zero value is not usable; create gates with [New].
// All methods are safe for concurrent use.
type Gate struct {
	mu      sync.Mutex
	counts  map[Reason]int
	resumed chan struct{}
}

// New returns an open gate.
func New() *Gate {
	return &Gate{
		counts:  make(map[Reason]int),
		resumed: make(chan struct{}),
	}
}

// Acquire increments the count for reason and returns the new count.
func (g *Gate) Acquire(reason Reason) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.acquireLocked(reason)
}

// Release decrements the count for reason and returns the new count.
// Releasing a reason that is not held is a no-op; counts never go negative.
func (g *Gate) Release(reason Reason) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.releaseLocked(reason)
}

// SetHidden records page visibility. Repeated calls with the same value
// do not stack.
func (g *Gate) SetHidden(hidden bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	held := g.counts[ReasonHidden] > 0
	switch {
	case hidden && !held:
		g.acquireLocked(ReasonHidden)
	case !hidden && held:
		g.releaseLocked(ReasonHidden)
	}
}

// Suspended reports whether any reason is currently held.
func (g *Gate) Suspended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.suspendedLocked()
}

// Count returns the current count for reason.
func (g *Gate) Count(reason Reason) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[reason]
}

// Resumed returns a channel that is closed the next time the gate goes
// from suspended to open. Each transition closes the channel handed out
// before it, so callers should fetch a fresh channel after every wake-up.
func (g *Gate) Resumed() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resumed
}

// Snapshot returns a copy of all held reasons and their counts.
func (g *Gate) Snapshot() map[Reason]int {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[Reason]int, len(g.counts))
	for r, n := range g.counts {
		out[r] = n
	}
	return out
}

// Reasons returns the held reasons in sorted order.
func (g *Gate) Reasons() []Reason {
	snap := g.Snapshot()
	out := make([]Reason, 0, len(snap))
	for r := range snap {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *Gate) acquireLocked(reason Reason) int {
	g.counts[reason]++
	return g.counts[reason]
}

func (g *Gate) releaseLocked(reason Reason) int {
	n := g.counts[reason]
	if n == 0 {
		return 0
	}

	n--
	if n == 0 {
		delete(g.counts, reason)
	} else {
		g.counts[reason] = n
	}

	if !g.suspendedLocked() {
		g.signalResumeLocked()
	}
	return n
}

func (g *Gate) suspendedLocked() bool {
	return len(g.counts) > 0
}

func (g *Gate) signalResumeLocked() {
	close(g.resumed)
	g.resumed = make(chan struct{})
}

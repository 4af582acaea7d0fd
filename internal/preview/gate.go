package preview

import (
	"sync"
	"time"

	"tubefetch/internal/domain/logger"
)

type gateState int

const (
	gateIdle gateState = iota
	gateAccumulating
	gateArmed
	gateRevealed
)

func (s gateState) String() string {
	switch s {
	case gateIdle:
		return "idle"
	case gateAccumulating:
		return "accumulating"
	case gateArmed:
		return "armed"
	case gateRevealed:
		return "revealed"
	}
	return "unknown"
}

// revealGate decides when the preview may be shown.
//
// Expected loads are registered first, then the gate is armed. Once armed,
// the gate reveals a short debounce after every load has completed. The
// ceiling timer reveals regardless of the counters.
type revealGate struct {
	mu       sync.Mutex
	state    gateState
	need     int
	done     int
	debounce time.Duration
	settle   *time.Timer
	ceiling  *time.Timer
	timedOut bool
	ch       chan struct{}
}

// newGate returns an idle gate whose ceiling timer is already running.
func newGate(debounce, ceiling time.Duration) *revealGate {
	g := &revealGate{
		debounce: debounce,
		ch:       make(chan struct{}),
	}
	g.mu.Lock()
	g.ceiling = time.AfterFunc(ceiling, g.force)
	g.mu.Unlock()
	return g
}

// expect registers n more loads. Ignored once armed.
func (g *revealGate) expect(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != gateIdle && g.state != gateAccumulating {
		logger.Pl.D(3, "Ignoring %d expected preview loads in state %s", n, g.state)
		return
	}
	g.state = gateAccumulating
	g.need += n
}

// complete records one finished load, successful or not.
func (g *revealGate) complete() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == gateRevealed {
		return
	}
	g.done++
	if g.state == gateArmed && g.done >= g.need {
		g.scheduleLocked()
	}
}

// arm starts honoring the counters.
func (g *revealGate) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == gateRevealed || g.state == gateArmed {
		return
	}
	g.state = gateArmed

	switch {
	case g.need == 0:
		g.revealLocked(false)
	case g.done >= g.need:
		g.scheduleLocked()
	}
}

// force reveals from the ceiling timer.
func (g *revealGate) force() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == gateRevealed {
		return
	}
	logger.Pl.D(2, "Preview wait ceiling reached with %d of %d loads done", g.done, g.need)
	g.revealLocked(true)
}

// revealed is closed once the preview may be shown.
func (g *revealGate) revealed() <-chan struct{} {
	return g.ch
}

// hitCeiling reports whether the reveal came from the ceiling timer.
func (g *revealGate) hitCeiling() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timedOut
}

// stop releases both timers. The gate is left as it is.
func (g *revealGate) stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ceiling.Stop()
	if g.settle != nil {
		g.settle.Stop()
	}
}

func (g *revealGate) scheduleLocked() {
	if g.settle != nil {
		return
	}
	g.settle = time.AfterFunc(g.debounce, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.state != gateRevealed {
			g.revealLocked(false)
		}
	})
}

func (g *revealGate) revealLocked(timedOut bool) {
	g.state = gateRevealed
	g.timedOut = timedOut
	g.ceiling.Stop()
	if g.settle != nil {
		g.settle.Stop()
	}
	close(g.ch)
}

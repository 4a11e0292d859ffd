package scroll

import "sync"

// State of a Gate.
type State int

const (
	// Idle accepts the next qualifying sample.
	Idle State = iota
	// Loading ignores samples until Settle.
	Loading
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	default:
		return "unknown"
	}
}

// Gate is the Idle/Loading state machine. It owns the busy flag: Busy().Get() is true
// exactly while the gate is Loading. Busy subscribers run inside the transition and
// must not call Begin, Observe or Settle.
type Gate struct {
	// transition serializes state changes together with their busy notification
	transition sync.Mutex

	mu        sync.Mutex
	state     State
	threshold int
	enabled   *Flag
	busy      *Flag
}

// NewGate creates an idle gate. A nil enabled flag means always enabled.
// A non-positive threshold falls back to DefaultThreshold.
func NewGate(enabled *Flag, threshold int) *Gate {
	if enabled == nil {
		enabled = NewFlag(true)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{
		threshold: threshold,
		enabled:   enabled,
		busy:      NewFlag(false),
	}
}

// Observe feeds one sample. It returns true when the sample moved the gate from Idle
// to Loading; the caller must then start exactly one load and call Settle when it ends.
func (g *Gate) Observe(s Sample) bool {
	if !s.NearBottom(g.threshold) || !g.enabled.Get() {
		return false
	}
	return g.Begin()
}

// Begin moves an idle gate to Loading regardless of scroll position and enabled flag.
// It is used for the initial fill and for explicit "load more" requests.
func (g *Gate) Begin() bool {
	g.transition.Lock()
	defer g.transition.Unlock()

	g.mu.Lock()
	if g.state != Idle {
		g.mu.Unlock()
		return false
	}
	g.state = Loading
	g.mu.Unlock()

	g.busy.Set(true)
	return true
}

// Settle returns the gate to Idle, whatever the outcome of the load.
func (g *Gate) Settle() {
	g.transition.Lock()
	defer g.transition.Unlock()

	g.mu.Lock()
	g.state = Idle
	g.mu.Unlock()

	g.busy.Set(false)
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Busy returns the observable busy flag.
func (g *Gate) Busy() *Flag {
	return g.busy
}

// Enabled returns the enabled flag the gate consults.
func (g *Gate) Enabled() *Flag {
	return g.enabled
}

// Threshold returns the bottom margin in content units.
func (g *Gate) Threshold() int {
	return g.threshold
}

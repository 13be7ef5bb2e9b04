// Package trigger debounces the gate's physical trigger (a reed switch or
// momentary button) into clean press/release edges.
package trigger

import "time"

// Sampler reads the raw trigger input. One sample is taken per control-loop
// tick. Implementations apply the configured polarity so that true always
// means "trigger is active" (magnet present / switch closed).
type Sampler interface {
	Sample() (active bool, err error)
}

// Edge is a debounced transition of the trigger.
type Edge int

const (
	// EdgeNone means the stable state did not change this sample.
	EdgeNone Edge = iota
	// EdgePressed means the trigger became active.
	EdgePressed
	// EdgeReleased means the trigger became inactive.
	EdgeReleased
)

// String returns a string representation of the edge.
func (e Edge) String() string {
	switch e {
	case EdgeNone:
		return "none"
	case EdgePressed:
		return "pressed"
	case EdgeReleased:
		return "released"
	default:
		return "Edge(?)"
	}
}

// Monitor turns raw samples into debounced edges. A raw transition must
// hold for the debounce window before it becomes the stable state; shorter
// glitches are suppressed and emit no edge.
type Monitor struct {
	debounce time.Duration

	stable    bool
	raw       bool
	rawSince  time.Time
	primed    bool // first sample seeds state without emitting an edge
}

// NewMonitor creates a Monitor with the given debounce window.
func NewMonitor(debounce time.Duration) *Monitor {
	return &Monitor{debounce: debounce}
}

// Active returns the current stable trigger state.
func (m *Monitor) Active() bool {
	return m.stable
}

// Observe feeds one raw sample taken at the given time and returns the
// debounced edge, if any. At most one edge is emitted per physical
// transition.
func (m *Monitor) Observe(raw bool, now time.Time) Edge {
	if !m.primed {
		m.primed = true
		m.stable = raw
		m.raw = raw
		m.rawSince = now
		return EdgeNone
	}

	if raw != m.raw {
		m.raw = raw
		m.rawSince = now
	}

	if m.raw == m.stable {
		return EdgeNone
	}
	if now.Sub(m.rawSince) < m.debounce {
		return EdgeNone
	}

	m.stable = m.raw
	if m.stable {
		return EdgePressed
	}
	return EdgeReleased
}

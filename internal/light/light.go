// Package light defines the brightness output boundary between the gate's
// animation logic and whatever is physically driving the chevron LEDs.
package light

// Output is the interface for anything that can set the brightness of a
// single chevron. Levels are normalized to [0.0, 1.0]; implementations
// should treat a repeated write of the same value as a no-op, although
// Levels already suppresses those before they reach the Output.
type Output interface {
	// Set sets the brightness of the chevron at the given index.
	Set(index int, level float64)
}

// Flusher is an optional interface for Outputs that batch writes into
// frames. The daemon calls Flush once per tick after the animation has
// advanced.
type Flusher interface {
	Flush() error
}

// Levels is a brightness buffer in front of an Output. It remembers the
// last level written per chevron and only forwards changed values.
type Levels struct {
	out Output
	cur []float64
}

// NewLevels creates a Levels buffer for the given number of chevrons.
// All levels start at 0 (dark).
func NewLevels(out Output, count int) *Levels {
	return &Levels{
		out: out,
		cur: make([]float64, count),
	}
}

// Count returns the number of chevrons.
func (l *Levels) Count() int {
	return len(l.cur)
}

// Get returns the last level written to the chevron at the given index.
func (l *Levels) Get(i int) float64 {
	return l.cur[i]
}

// Set sets the brightness of a single chevron, clamping to [0, 1].
func (l *Levels) Set(i int, level float64) {
	level = clamp(level)
	if l.cur[i] == level {
		return
	}
	l.cur[i] = level
	l.out.Set(i, level)
}

// Fill sets every chevron to the same brightness.
func (l *Levels) Fill(level float64) {
	for i := range l.cur {
		l.Set(i, level)
	}
}

// FillSubset sets every listed chevron to the same brightness.
func (l *Levels) FillSubset(indices []int, level float64) {
	for _, i := range indices {
		l.Set(i, level)
	}
}

// Snapshot returns a copy of the current levels.
func (l *Levels) Snapshot() []float64 {
	s := make([]float64, len(l.cur))
	copy(s, l.cur)
	return s
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

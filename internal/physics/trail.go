package physics

import "github.com/ayusman/handbow/internal/geom"

// Trail is a fixed-capacity ring buffer of recent arrow positions.
// It is only read by renderers and never feeds back into the simulation.
type Trail struct {
	data []geom.Vec2
	pos  int
	full bool
}

// NewTrail creates a Trail holding at most capacity positions.
// A non-positive capacity yields a trail that records nothing.
func NewTrail(capacity int) *Trail {
	if capacity < 0 {
		capacity = 0
	}
	return &Trail{data: make([]geom.Vec2, capacity)}
}

// Push appends p, evicting the oldest position when the trail is full.
func (t *Trail) Push(p geom.Vec2) {
	if len(t.data) == 0 {
		return
	}
	t.data[t.pos] = p
	t.pos++
	if t.pos >= len(t.data) {
		t.pos = 0
		t.full = true
	}
}

// Len returns the number of recorded positions.
func (t *Trail) Len() int {
	if t.full {
		return len(t.data)
	}
	return t.pos
}

// Cap returns the trail capacity.
func (t *Trail) Cap() int {
	return len(t.data)
}

// Points returns the recorded positions, oldest first.
func (t *Trail) Points() []geom.Vec2 {
	n := t.Len()
	out := make([]geom.Vec2, n)
	if !t.full {
		copy(out, t.data[:t.pos])
		return out
	}
	k := copy(out, t.data[t.pos:])
	copy(out[k:], t.data[:t.pos])
	return out
}

package control

import "github.com/ayusman/handbow/internal/geom"

// PullTracker follows the pull origin and the current hand position.
//
// While unlatched the origin trails the current position, so a slow drift
// never builds up distance but a quick pull does. Once latched the origin
// stays put until Reset.
type PullTracker struct {
	follow float64
	state  PullState
	primed bool
}

// NewPullTracker creates a tracker whose unlatched origin moves toward the
// current position by follow each update. follow of 1 snaps it.
func NewPullTracker(follow float64) *PullTracker {
	t := &PullTracker{}
	t.SetFollow(follow)
	return t
}

// SetFollow changes how quickly the unlatched origin trails.
func (t *PullTracker) SetFollow(follow float64) {
	if follow <= 0 || follow > 1 {
		follow = 1
	}
	t.follow = follow
}

// Update moves the current position and recomputes the pull.
func (t *PullTracker) Update(current geom.Vec2) PullState {
	if !t.primed {
		t.state.Origin = current
		t.primed = true
	}
	t.state.Current = current
	switch {
	case t.state.Latched:
	case t.follow == 1:
		t.state.Origin = current
	default:
		t.state.Origin = t.state.Origin.Lerp(current, t.follow)
	}
	t.recompute()
	return t.state
}

// Latch freezes the origin where it is.
func (t *PullTracker) Latch() {
	t.state.Latched = true
}

// LatchAt freezes the origin at p.
func (t *PullTracker) LatchAt(p geom.Vec2) {
	t.state.Origin = p
	t.primed = true
	t.state.Latched = true
	t.recompute()
}

// Rebase moves the current position to p without building up distance.
// An unlatched origin jumps to p; a latched one stays put.
func (t *PullTracker) Rebase(p geom.Vec2) {
	t.state.Current = p
	if !t.state.Latched {
		t.state.Origin = p
	}
	t.primed = true
	t.recompute()
}

// Reset unlatches and moves the origin onto the current position, so a new
// draw starts from zero distance.
func (t *PullTracker) Reset() {
	t.state.Latched = false
	t.state.Origin = t.state.Current
	t.recompute()
}

// State returns the current pull.
func (t *PullTracker) State() PullState {
	return t.state
}

func (t *PullTracker) recompute() {
	aim := t.state.Aim()
	t.state.Distance = aim.Len()
	if t.state.Distance == 0 {
		t.state.Angle = 0
		return
	}
	t.state.Angle = aim.ScreenAngle()
}

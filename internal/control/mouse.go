package control

import (
	"sync"

	"github.com/ayusman/handbow/internal/geom"
)

// MouseInput turns pointer events into samples. Pressing the button starts a
// pull at the press point; letting go is the release trigger.
//
// Set may be called from any goroutine; the other methods belong to the
// game loop.
type MouseInput struct {
	mu      sync.Mutex
	pos     geom.Vec2
	down    bool
	seen    bool
	pending bool // a press happened since the last Produce

	smooth  *Smoother
	pull    *PullTracker
	wasDown bool
}

// NewMouseInput creates a mouse input.
func NewMouseInput(cfg Config) *MouseInput {
	cfg = cfg.withDefaults()
	return &MouseInput{
		smooth: NewSmoother(cfg.MouseSmoothing),
		pull:   NewPullTracker(1),
	}
}

// SetConfig applies new tunables.
func (m *MouseInput) SetConfig(cfg Config) {
	m.smooth.SetAlpha(cfg.withDefaults().MouseSmoothing)
}

// Set records the pointer position in screen pixels and the button state.
func (m *MouseInput) Set(pos geom.Vec2, down bool) {
	if !pos.IsFinite() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if down && !m.down {
		m.pending = true
	}
	m.pos = pos
	m.down = down
	m.seen = true
}

// Produce returns the sample for this tick.
func (m *MouseInput) Produce() Sample {
	m.mu.Lock()
	pos, down, seen, pressed := m.pos, m.down, m.seen, m.pending
	m.pending = false
	m.mu.Unlock()

	if !seen {
		return Sample{Source: KindMouse}
	}

	// A click shorter than one tick still counts as a press.
	down = down || pressed

	cur := m.smooth.Update(pos)
	if down && !m.wasDown {
		m.pull.LatchAt(cur)
	}
	if !down && m.wasDown {
		m.pull.Reset()
	}
	m.wasDown = down

	return Sample{
		Position: cur,
		Source:   KindMouse,
		Valid:    true,
		Pressed:  down,
		Pull:     m.pull.Update(cur),
	}
}

// Latch is a no-op: the mouse pull is latched by the button.
func (m *MouseInput) Latch() {}

// Reset releases the pull origin.
func (m *MouseInput) Reset() {
	m.pull.Reset()
}

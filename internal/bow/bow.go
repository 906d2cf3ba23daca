// Package bow implements the draw/aim/release state machine that turns a
// noisy pull signal into discrete shots.
package bow

import (
	"fmt"
	"math"

	"github.com/ayusman/handbow/internal/control"
	"github.com/ayusman/handbow/internal/geom"
)

// Phase is the bow's state.
type Phase int

const (
	Idle Phase = iota
	Drawing
	Aiming
	Released
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case Aiming:
		return "aiming"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is the observable bow state. Power and Angle are zero while Idle.
type State struct {
	Phase Phase   `json:"phase"`
	Power float64 `json:"power"`
	Angle float64 `json:"angle"`
}

// EventKind identifies a transition worth reporting.
type EventKind int

const (
	// DrawStarted fires on Idle -> Drawing.
	DrawStarted EventKind = iota + 1
	// Cancelled fires when a draw relaxes below the pull threshold.
	Cancelled
	// Fired carries the angle and power of a shot.
	Fired
	// Abandoned fires when tracking was lost for too long mid-draw.
	Abandoned
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case DrawStarted:
		return "draw_started"
	case Cancelled:
		return "cancelled"
	case Fired:
		return "released"
	case Abandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is emitted by Update on notable transitions.
type Event struct {
	Kind  EventKind
	Angle float64
	Power float64
}

// Config holds the state machine tunables. Distances are in screen pixels.
type Config struct {
	// PullThreshold is the pull distance that starts a draw.
	PullThreshold float64
	// ReleaseThreshold is how far the pull must shrink within one tick to
	// count as a release snap.
	ReleaseThreshold float64
	// PowerPerPixel converts the peak pull distance to power.
	PowerPerPixel float64
	// MinPower is the floor applied to every shot.
	MinPower float64
	// MaxPower caps power.
	MaxPower float64
	// AbandonTicks is how many consecutive invalid samples a draw survives.
	AbandonTicks int
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		PullThreshold:    40,
		ReleaseThreshold: 25,
		PowerPerPixel:    1.0 / 3.0,
		MinPower:         10,
		MaxPower:         100,
		AbandonTicks:     15,
	}
}

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	switch {
	case !geom.IsFinite(c.PullThreshold) || !geom.IsFinite(c.ReleaseThreshold) ||
		!geom.IsFinite(c.PowerPerPixel) || !geom.IsFinite(c.MinPower) || !geom.IsFinite(c.MaxPower):
		return fmt.Errorf("bow tunables must be finite, got %+v", c)
	case c.PullThreshold <= 0:
		return fmt.Errorf("pull threshold must be positive, got %v", c.PullThreshold)
	case c.ReleaseThreshold <= 0:
		return fmt.Errorf("release threshold must be positive, got %v", c.ReleaseThreshold)
	case c.PowerPerPixel <= 0:
		return fmt.Errorf("power per pixel must be positive, got %v", c.PowerPerPixel)
	case c.MinPower < 0 || c.MaxPower <= 0 || c.MinPower > c.MaxPower:
		return fmt.Errorf("power range [%v, %v] is invalid", c.MinPower, c.MaxPower)
	case c.AbandonTicks < 0:
		return fmt.Errorf("abandon ticks must not be negative, got %d", c.AbandonTicks)
	}
	return nil
}

// Machine is the draw/aim/release state machine. It is driven by one
// Update per game tick and is not safe for concurrent use.
type Machine struct {
	cfg   Config
	state State

	peak        float64 // largest distance seen in this draw
	lastDist    float64
	invalid     int
	lastPressed bool
}

// New creates a Machine in Idle. An invalid config falls back to defaults.
func New(cfg Config) *Machine {
	if cfg.Validate() != nil {
		cfg = DefaultConfig()
	}
	return &Machine{cfg: cfg}
}

// SetConfig replaces the tunables. Invalid configs are rejected.
func (m *Machine) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.cfg = cfg
	return nil
}

// Config returns the active tunables.
func (m *Machine) Config() Config {
	return m.cfg
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Reset forces the machine to Idle without emitting anything.
func (m *Machine) Reset() {
	m.toIdle()
	m.lastPressed = false
}

// Update advances the machine by one sample. It returns an event and true
// when the tick produced a reportable transition. A shot passes through
// Released and back to Idle within the same call.
func (m *Machine) Update(s control.Sample) (Event, bool) {
	triggered := m.lastPressed && !s.Pressed
	m.lastPressed = s.Pressed

	switch m.state.Phase {
	case Idle:
		return m.updateIdle(s)
	case Drawing, Aiming:
		return m.updateDraw(s, triggered)
	default:
		m.toIdle()
		return Event{}, false
	}
}

func (m *Machine) updateIdle(s control.Sample) (Event, bool) {
	if !s.Valid {
		return Event{}, false
	}
	d := s.Pull.Distance
	if d <= m.cfg.PullThreshold || s.Pull.Aim().X <= 0 {
		return Event{}, false
	}

	m.state.Phase = Drawing
	m.peak = d
	m.lastDist = d
	m.invalid = 0
	m.state.Angle = s.Pull.Angle
	m.state.Power = m.powerFor(d)
	return Event{Kind: DrawStarted, Angle: m.state.Angle, Power: m.state.Power}, true
}

func (m *Machine) updateDraw(s control.Sample, triggered bool) (Event, bool) {
	if !s.Valid {
		m.invalid++
		if m.invalid > m.cfg.AbandonTicks {
			m.toIdle()
			return Event{Kind: Abandoned}, true
		}
		return Event{}, false
	}
	m.invalid = 0

	if triggered {
		return m.fire(), true
	}

	d := s.Pull.Distance
	if m.state.Phase == Aiming && m.lastDist-d > m.cfg.ReleaseThreshold {
		return m.fire(), true
	}
	if d < m.cfg.PullThreshold {
		m.toIdle()
		return Event{Kind: Cancelled}, true
	}

	if m.state.Phase == Drawing && d >= m.lastDist {
		m.state.Phase = Aiming
	}
	if d > m.peak {
		m.peak = d
	}
	m.lastDist = d
	m.state.Angle = s.Pull.Angle
	m.state.Power = m.powerFor(m.peak)
	return Event{}, false
}

// fire emits the shot with the angle and power held before this tick,
// since the release snap itself no longer reflects the aim.
func (m *Machine) fire() Event {
	m.state.Phase = Released
	ev := Event{
		Kind:  Fired,
		Angle: m.state.Angle,
		Power: math.Max(m.state.Power, m.cfg.MinPower),
	}
	m.toIdle()
	return ev
}

func (m *Machine) powerFor(d float64) float64 {
	p := d * m.cfg.PowerPerPixel
	if p < 0 {
		return 0
	}
	if p > m.cfg.MaxPower {
		return m.cfg.MaxPower
	}
	return p
}

func (m *Machine) toIdle() {
	m.state = State{Phase: Idle}
	m.peak = 0
	m.lastDist = 0
	m.invalid = 0
}

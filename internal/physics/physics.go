// Package physics simulates arrow flight under constant gravity using a
// fixed-step integrator that is independent of the render frame rate.
package physics

import (
	"fmt"
	"math"

	"github.com/ayusman/handbow/internal/geom"
)

// Default simulation settings, in logical screen pixels and seconds.
const (
	DefaultStep          = 1.0 / 60.0
	DefaultGravity       = 300.0
	DefaultVelocityScale = 12.0
	DefaultGroundY       = 620.0
	DefaultMinX          = 0.0
	DefaultMaxX          = 1280.0
	DefaultTrailCapacity = 20
)

// stepEpsilon absorbs rounding when the accumulator holds a whole number of steps.
const stepEpsilon = 1e-9

// Config holds the simulation parameters. Screen y grows downward.
type Config struct {
	Origin        geom.Vec2 // Launch point (the bow)
	Step          float64   // Fixed integration step in seconds
	Gravity       float64   // Downward acceleration in px/s²
	VelocityScale float64   // Launch speed in px/s per unit of power
	GroundY       float64   // Arrows landing at or below this y stop
	MinX          float64   // Left playfield bound
	MaxX          float64   // Right playfield bound
	BoardX        float64   // Target board plane; 0 disables board strikes
	TrailCapacity int       // Positions kept per arrow for rendering
}

// DefaultConfig returns the standard playfield for a 1280x720 screen.
func DefaultConfig() Config {
	return Config{
		Origin:        geom.Vec2{X: 150, Y: 360},
		Step:          DefaultStep,
		Gravity:       DefaultGravity,
		VelocityScale: DefaultVelocityScale,
		GroundY:       DefaultGroundY,
		MinX:          DefaultMinX,
		MaxX:          DefaultMaxX,
		TrailCapacity: DefaultTrailCapacity,
	}
}

// Status describes where an arrow is in its flight.
type Status int

const (
	// Flying means the arrow is still in the air.
	Flying Status = iota
	// Landed means the arrow reached the ground plane.
	Landed
	// LeftPlayfield means the arrow crossed a horizontal playfield bound.
	LeftPlayfield
	// Struck means the arrow hit the target board plane.
	Struck
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Flying:
		return "flying"
	case Landed:
		return "landed"
	case LeftPlayfield:
		return "left_playfield"
	case Struck:
		return "struck"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the flight is over.
func (s Status) Terminal() bool {
	return s != Flying
}

// Outcome is the result of advancing an arrow.
type Outcome struct {
	Status   Status
	Position geom.Vec2 // Resting position when Status is terminal
}

// Arrow is a single projectile. It is owned by the Engine that launched it
// until its flight ends.
type Arrow struct {
	Position geom.Vec2
	Velocity geom.Vec2 // px/s, screen space
	Alive    bool
	Trail    *Trail
	Steps    int // Fixed steps simulated so far

	status Status
	accum  float64
}

// Status returns the arrow's current flight status.
func (a *Arrow) Status() Status {
	return a.status
}

// Engine launches and advances arrows.
type Engine struct {
	cfg Config
}

// New creates an Engine. Zero-valued and non-finite fields fall back to
// defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if !(cfg.Step > 0) || !geom.IsFinite(cfg.Step) {
		cfg.Step = def.Step
	}
	if cfg.Gravity == 0 || !geom.IsFinite(cfg.Gravity) {
		cfg.Gravity = def.Gravity
	}
	if !(cfg.VelocityScale > 0) || !geom.IsFinite(cfg.VelocityScale) {
		cfg.VelocityScale = def.VelocityScale
	}
	if !cfg.Origin.IsFinite() {
		cfg.Origin = def.Origin
	}
	if !geom.IsFinite(cfg.BoardX) {
		cfg.BoardX = 0
	}
	if cfg.GroundY == 0 || !geom.IsFinite(cfg.GroundY) {
		cfg.GroundY = def.GroundY
	}
	if !(cfg.MaxX > cfg.MinX) || !geom.IsFinite(cfg.MaxX) || !geom.IsFinite(cfg.MinX) {
		cfg.MinX, cfg.MaxX = def.MinX, def.MaxX
	}
	if cfg.TrailCapacity == 0 {
		cfg.TrailCapacity = def.TrailCapacity
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration after defaults were applied.
func (e *Engine) Config() Config {
	return e.cfg
}

// Launch creates an arrow at the configured origin. The angle is in radians
// from the horizontal, increasing upward; power scales the launch speed.
// Non-finite or negative input is a programming error and panics.
func (e *Engine) Launch(angle, power float64) *Arrow {
	if !geom.IsFinite(angle) || !geom.IsFinite(power) || power < 0 {
		panic(fmt.Sprintf("physics: invalid launch angle=%v power=%v", angle, power))
	}

	speed := power * e.cfg.VelocityScale
	a := &Arrow{
		Position: e.cfg.Origin,
		// Screen y grows downward, so the upward component is negated.
		Velocity: geom.Vec2{X: speed * math.Cos(angle), Y: -speed * math.Sin(angle)},
		Alive:    true,
		Trail:    NewTrail(e.cfg.TrailCapacity),
		status:   Flying,
	}
	a.Trail.Push(a.Position)
	return a
}

// Advance moves the arrow forward by dt seconds of simulated time in whole
// fixed steps, carrying the remainder to the next call. A terminated arrow
// returns its final outcome unchanged. dt must be finite and non-negative.
func (e *Engine) Advance(a *Arrow, dt float64) Outcome {
	if !geom.IsFinite(dt) || dt < 0 {
		panic(fmt.Sprintf("physics: invalid dt=%v", dt))
	}
	if !a.Alive {
		return Outcome{Status: a.status, Position: a.Position}
	}

	a.accum += dt
	for a.accum+stepEpsilon >= e.cfg.Step {
		a.accum -= e.cfg.Step
		if st := e.step(a); st.Terminal() {
			a.accum = 0
			return Outcome{Status: st, Position: a.Position}
		}
	}

	return Outcome{Status: Flying, Position: a.Position}
}

// step integrates one fixed step with semi-implicit Euler and resolves
// collisions against the board plane, the ground and the side bounds.
func (e *Engine) step(a *Arrow) Status {
	h := e.cfg.Step
	prev := a.Position

	a.Velocity.Y += e.cfg.Gravity * h
	a.Position = a.Position.Add(a.Velocity.Scale(h))
	a.Steps++

	// Earliest crossing within this step wins.
	hitT, hitStatus := math.Inf(1), Flying

	if e.cfg.BoardX != 0 && prev.X < e.cfg.BoardX && a.Position.X >= e.cfg.BoardX {
		hitT = (e.cfg.BoardX - prev.X) / (a.Position.X - prev.X)
		hitStatus = Struck
	}
	if a.Position.Y >= e.cfg.GroundY {
		t := 1.0
		if a.Position.Y != prev.Y {
			t = (e.cfg.GroundY - prev.Y) / (a.Position.Y - prev.Y)
		}
		if t < hitT {
			hitT, hitStatus = t, Landed
		}
	}

	switch hitStatus {
	case Struck:
		a.Position = prev.Lerp(a.Position, hitT)
		a.Position.X = e.cfg.BoardX
	case Landed:
		a.Position = prev.Lerp(a.Position, clamp01(hitT))
		a.Position.Y = e.cfg.GroundY
	default:
		if a.Position.X < e.cfg.MinX || a.Position.X > e.cfg.MaxX {
			hitStatus = LeftPlayfield
		}
	}

	a.Trail.Push(a.Position)
	if hitStatus.Terminal() {
		a.Alive = false
		a.Velocity = geom.Vec2{}
	}
	a.status = hitStatus
	return hitStatus
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

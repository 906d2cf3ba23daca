// Package game sequences the bow, the arrow and scoring for one player.
package game

import (
	"time"

	"github.com/ayusman/handbow/internal/bow"
	"github.com/ayusman/handbow/internal/control"
	"github.com/ayusman/handbow/internal/physics"
	"github.com/ayusman/handbow/internal/scoring"
)

// DefaultArrows is the quiver size of a fresh session.
const DefaultArrows = 10

// Config holds the session parameters.
type Config struct {
	Arrows  int
	Bow     bow.Config
	Physics physics.Config
	Target  *scoring.Target
}

// DefaultConfig returns a ten-arrow session against the default target,
// with the board plane at the target center.
func DefaultConfig() Config {
	target := scoring.DefaultTarget()
	phys := physics.DefaultConfig()
	phys.BoardX = target.Center().X
	return Config{
		Arrows:  DefaultArrows,
		Bow:     bow.DefaultConfig(),
		Physics: phys,
		Target:  target,
	}
}

// Session holds the score, the quiver and the arrow in flight. It is owned
// by the game loop and is not safe for concurrent use.
type Session struct {
	arrows  int
	bow     *bow.Machine
	engine  *physics.Engine
	target  *scoring.Target
	now     func() time.Time
	pull    control.PullState
	score   int
	left    int
	current *physics.Arrow
	lastHit *Hit
	ticks   uint64
	fired   *bow.State // the shot released this tick, for one snapshot
}

// NewSession creates a session ready for the first shot.
func NewSession(cfg Config) *Session {
	if cfg.Arrows <= 0 {
		cfg.Arrows = DefaultArrows
	}
	if cfg.Target == nil {
		cfg.Target = scoring.DefaultTarget()
	}
	return &Session{
		arrows: cfg.Arrows,
		bow:    bow.New(cfg.Bow),
		engine: physics.New(cfg.Physics),
		target: cfg.Target,
		now:    time.Now,
		left:   cfg.Arrows,
	}
}

// SetBowConfig swaps the bow tunables between ticks.
func (s *Session) SetBowConfig(cfg bow.Config) error {
	return s.bow.SetConfig(cfg)
}

// BowConfig returns the active bow tunables.
func (s *Session) BowConfig() bow.Config {
	return s.bow.Config()
}

// Tick runs one game step: the sample drives the bow, a shot launches an
// arrow if any remain, and the arrow in flight advances by dt seconds.
func (s *Session) Tick(sample control.Sample, dt float64) []Event {
	var events []Event
	s.ticks++
	s.pull = sample.Pull
	s.fired = nil

	if ev, ok := s.bow.Update(sample); ok {
		switch ev.Kind {
		case bow.DrawStarted:
			events = append(events, s.event(EventDrawStarted, func(e *Event) {
				e.Angle, e.Power = ev.Angle, ev.Power
			}))
		case bow.Cancelled:
			events = append(events, s.event(EventCancelled, nil))
		case bow.Abandoned:
			events = append(events, s.event(EventAbandoned, nil))
		case bow.Fired:
			events = append(events, s.launch(ev)...)
		}
	}

	if s.current != nil {
		out := s.engine.Advance(s.current, dt)
		if out.Status.Terminal() {
			events = append(events, s.settle(out))
		}
	}

	return events
}

// launch fires an arrow for a release, or drops the release when the
// quiver is empty.
func (s *Session) launch(ev bow.Event) []Event {
	if s.left == 0 {
		return nil
	}

	// One arrow in flight: a new shot replaces the old one unscored.
	s.current = s.engine.Launch(ev.Angle, ev.Power)
	s.left--
	s.fired = &bow.State{Phase: bow.Released, Power: ev.Power, Angle: ev.Angle}

	events := []Event{s.event(EventReleased, func(e *Event) {
		e.Angle, e.Power = ev.Angle, ev.Power
		e.Position = s.current.Position
	})}
	if s.left == 0 {
		events = append(events, s.event(EventAmmoDepleted, nil))
	}
	return events
}

// settle scores a finished flight.
func (s *Session) settle(out physics.Outcome) Event {
	points := scoring.Score(out.Position, s.target)
	s.score += points
	s.current = nil
	s.lastHit = &Hit{Points: points, Position: out.Position, Outcome: out.Status.String()}

	return s.event(EventHit, func(e *Event) {
		e.Points = points
		e.Position = out.Position
		e.Outcome = out.Status.String()
	})
}

// Reset restores a full quiver and zero score, drops any arrow and puts
// the bow back to idle.
func (s *Session) Reset() Event {
	s.score = 0
	s.left = s.arrows
	s.current = nil
	s.lastHit = nil
	s.pull = control.PullState{}
	s.fired = nil
	s.bow.Reset()
	return s.event(EventReset, nil)
}

// CancelDraw returns the bow to idle without firing, for input switches.
func (s *Session) CancelDraw() {
	s.bow.Reset()
}

// Score returns the total score.
func (s *Session) Score() int {
	return s.score
}

// ArrowsRemaining returns how many arrows are left.
func (s *Session) ArrowsRemaining() int {
	return s.left
}

// Bow returns the bow state.
func (s *Session) Bow() bow.State {
	return s.bow.State()
}

// Target returns the target.
func (s *Session) Target() *scoring.Target {
	return s.target
}

func (s *Session) event(kind EventKind, fill func(*Event)) Event {
	e := Event{
		Kind:      kind,
		Time:      s.now(),
		Score:     s.score,
		Remaining: s.left,
	}
	if fill != nil {
		fill(&e)
	}
	return e
}

package game

import (
	"github.com/ayusman/handbow/internal/bow"
	"github.com/ayusman/handbow/internal/control"
	"github.com/ayusman/handbow/internal/geom"
	"github.com/ayusman/handbow/internal/scoring"
)

// Hit describes where the last arrow came to rest.
type Hit struct {
	Points   int       `json:"points"`
	Position geom.Vec2 `json:"position"`
	Outcome  string    `json:"outcome"`
}

// ArrowView is the render view of the arrow in flight.
type ArrowView struct {
	Position geom.Vec2   `json:"position"`
	Velocity geom.Vec2   `json:"velocity"`
	Trail    []geom.Vec2 `json:"trail"`
}

// TargetView is the render view of the target.
type TargetView struct {
	Center geom.Vec2      `json:"center"`
	Rings  []scoring.Ring `json:"rings"`
}

// Snapshot is a read-only copy of everything a renderer draws.
type Snapshot struct {
	Tick            uint64            `json:"tick"`
	Bow             bow.State         `json:"bow"`
	Pull            control.PullState `json:"pull"`
	Arrow           *ArrowView        `json:"arrow,omitempty"`
	LastHit         *Hit              `json:"last_hit,omitempty"`
	Score           int               `json:"score"`
	ArrowsRemaining int               `json:"arrows_remaining"`
	Target          TargetView        `json:"target"`
}

// Snapshot copies the current state. The result shares nothing with the
// session. On the tick a shot fires, Bow shows the Released phase with the
// shot's power and angle, although the machine itself is already idle.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:            s.ticks,
		Bow:             s.bow.State(),
		Pull:            s.pull,
		Score:           s.score,
		ArrowsRemaining: s.left,
		Target: TargetView{
			Center: s.target.Center(),
			Rings:  s.target.Rings(),
		},
	}
	if s.fired != nil {
		snap.Bow = *s.fired
	}
	if a := s.current; a != nil {
		snap.Arrow = &ArrowView{
			Position: a.Position,
			Velocity: a.Velocity,
			Trail:    a.Trail.Points(),
		}
	}
	if s.lastHit != nil {
		hit := *s.lastHit
		snap.LastHit = &hit
	}
	return snap
}

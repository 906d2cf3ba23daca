// Package scoring scores arrow resting positions against a ringed target.
package scoring

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ayusman/handbow/internal/geom"
)

// ErrInvalidTarget is returned when a target's ring table cannot be used for scoring.
var ErrInvalidTarget = errors.New("invalid target")

// Ring is a concentric scoring zone with an outer radius and a point value.
type Ring struct {
	Radius float64 `json:"radius" yaml:"radius"`
	Points int     `json:"points" yaml:"points"`
}

// Target is the static target geometry. Rings are sorted ascending by radius,
// innermost first. A Target is immutable after construction.
type Target struct {
	center geom.Vec2
	rings  []Ring
}

// Default target geometry.
var (
	DefaultCenter = geom.Vec2{X: 1100, Y: 360}
	DefaultRings  = []Ring{
		{Radius: 20, Points: 10},
		{Radius: 30, Points: 6},
		{Radius: 40, Points: 4},
		{Radius: 50, Points: 2},
		{Radius: 60, Points: 1},
	}
)

// NewTarget creates a Target from a center and a ring table in any order.
// Rings must have positive radii, distinct radii, and non-negative points
// that do not increase outward.
func NewTarget(center geom.Vec2, rings []Ring) (*Target, error) {
	if !center.IsFinite() {
		return nil, fmt.Errorf("%w: center is not finite", ErrInvalidTarget)
	}
	if len(rings) == 0 {
		return nil, fmt.Errorf("%w: no rings", ErrInvalidTarget)
	}

	sorted := make([]Ring, len(rings))
	copy(sorted, rings)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Radius < sorted[j].Radius
	})

	for i, r := range sorted {
		if r.Radius <= 0 || !geom.IsFinite(r.Radius) {
			return nil, fmt.Errorf("%w: ring radius %v", ErrInvalidTarget, r.Radius)
		}
		if r.Points < 0 {
			return nil, fmt.Errorf("%w: ring points %d", ErrInvalidTarget, r.Points)
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.Radius == r.Radius {
				return nil, fmt.Errorf("%w: duplicate ring radius %v", ErrInvalidTarget, r.Radius)
			}
			// Outer rings never score more than inner ones.
			if r.Points > prev.Points {
				return nil, fmt.Errorf("%w: ring %v scores more than ring %v", ErrInvalidTarget, r.Radius, prev.Radius)
			}
		}
	}

	return &Target{center: center, rings: sorted}, nil
}

// DefaultTarget returns the standard five-ring target.
func DefaultTarget() *Target {
	t, err := NewTarget(DefaultCenter, DefaultRings)
	if err != nil {
		panic(err)
	}
	return t
}

// Center returns the target center.
func (t *Target) Center() geom.Vec2 {
	return t.center
}

// Rings returns a copy of the ring table, innermost first.
func (t *Target) Rings() []Ring {
	out := make([]Ring, len(t.rings))
	copy(out, t.rings)
	return out
}

// OuterRadius returns the radius of the largest ring.
func (t *Target) OuterRadius() float64 {
	return t.rings[len(t.rings)-1].Radius
}

// Score returns the points for an arrow resting at pos: the points of the
// first ring whose radius is at least the distance to the center, or 0 when
// the arrow is outside every ring.
func Score(pos geom.Vec2, t *Target) int {
	return t.ScoreDistance(pos.Dist(t.center))
}

// ScoreDistance scores a distance from the target center.
func (t *Target) ScoreDistance(d float64) int {
	for _, r := range t.rings {
		if d <= r.Radius {
			return r.Points
		}
	}
	return 0
}

package control

import "github.com/ayusman/handbow/internal/geom"

// Smoother is an exponential moving average over positions.
type Smoother struct {
	alpha  float64
	value  geom.Vec2
	primed bool
}

// NewSmoother creates a Smoother where alpha is the weight of each new
// position. Values outside (0,1] disable smoothing.
func NewSmoother(alpha float64) *Smoother {
	s := &Smoother{}
	s.SetAlpha(alpha)
	return s
}

// SetAlpha changes the smoothing weight without discarding the history.
func (s *Smoother) SetAlpha(alpha float64) {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	s.alpha = alpha
}

// Update folds p into the average and returns the new smoothed position.
// The first position is taken as-is.
func (s *Smoother) Update(p geom.Vec2) geom.Vec2 {
	if !s.primed {
		s.value = p
		s.primed = true
		return p
	}
	s.value = s.value.Lerp(p, s.alpha)
	return s.value
}

// Value returns the smoothed position and whether any position was seen.
func (s *Smoother) Value() (geom.Vec2, bool) {
	return s.value, s.primed
}

// Reset forgets the history.
func (s *Smoother) Reset() {
	s.value = geom.Vec2{}
	s.primed = false
}

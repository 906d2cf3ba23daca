package control

import "github.com/ayusman/handbow/internal/geom"

// SightingFeed delivers detector results. Take returns false when nothing
// new arrived since the previous call.
type SightingFeed interface {
	Take() (Sighting, bool)
}

// CameraInput turns detector sightings into samples.
type CameraInput struct {
	cfg    Config
	feed   SightingFeed
	smooth *Smoother
	pull   *PullTracker
	last   Sample
	lost   bool // the previous sighting had no usable hand
}

// NewCameraInput creates a camera input reading from feed.
func NewCameraInput(feed SightingFeed, cfg Config) *CameraInput {
	cfg = cfg.withDefaults()
	return &CameraInput{
		cfg:    cfg,
		feed:   feed,
		smooth: NewSmoother(cfg.Smoothing),
		pull:   NewPullTracker(cfg.AnchorFollow),
		last:   Sample{Source: KindCamera},
	}
}

// SetConfig applies new tunables, keeping the smoothing history.
func (c *CameraInput) SetConfig(cfg Config) {
	cfg = cfg.withDefaults()
	c.cfg = cfg
	c.smooth.SetAlpha(cfg.Smoothing)
	c.pull.SetFollow(cfg.AnchorFollow)
}

// Produce returns the sample for this tick. Without a new sighting the
// previous sample is repeated. A missing or low-confidence hand yields an
// invalid sample that keeps the last smoothed position.
func (c *CameraInput) Produce() Sample {
	s, ok := c.feed.Take()
	if !ok {
		c.last.Pull = c.pull.State()
		return c.last
	}

	if !s.Present || s.Confidence < c.cfg.MinConfidence || !s.Point.IsFinite() {
		held, _ := c.smooth.Value()
		c.lost = true
		c.last = Sample{
			Position: held,
			Source:   KindCamera,
			Pull:     c.pull.State(),
		}
		return c.last
	}

	raw := c.toScreen(s.Point)
	if c.lost {
		// A re-acquired hand starts from where it is now, not from where
		// it was last seen.
		c.smooth.Reset()
		c.pull.Rebase(raw)
		c.lost = false
	}
	pos := c.smooth.Update(raw)
	c.last = Sample{
		Position: pos,
		Source:   KindCamera,
		Valid:    true,
		Pull:     c.pull.Update(pos),
	}
	return c.last
}

// Latch freezes the pull origin.
func (c *CameraInput) Latch() {
	c.pull.Latch()
}

// Reset releases the pull origin.
func (c *CameraInput) Reset() {
	c.pull.Reset()
}

// toScreen maps normalized frame coordinates onto the logical screen.
func (c *CameraInput) toScreen(p geom.Vec2) geom.Vec2 {
	x := clamp01(p.X)
	if c.cfg.Mirror {
		x = 1 - x
	}
	return geom.Vec2{
		X: x * c.cfg.ScreenWidth,
		Y: clamp01(p.Y) * c.cfg.ScreenHeight,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

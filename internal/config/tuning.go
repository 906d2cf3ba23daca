package config

import (
	"fmt"

	"github.com/ayusman/handbow/internal/bow"
	"github.com/ayusman/handbow/internal/control"
	"github.com/ayusman/handbow/internal/geom"
)

// Tuning is the set of values that can be changed while the game runs.
type Tuning struct {
	Smoothing        float64 `json:"smoothing" yaml:"smoothing"`
	AnchorFollow     float64 `json:"anchor_follow" yaml:"anchor_follow"`
	MinConfidence    float64 `json:"min_confidence" yaml:"min_confidence"`
	PullThreshold    float64 `json:"pull_threshold" yaml:"pull_threshold"`
	ReleaseThreshold float64 `json:"release_threshold" yaml:"release_threshold"`
	PowerPerPixel    float64 `json:"power_per_pixel" yaml:"power_per_pixel"`
	AbandonTicks     int     `json:"abandon_ticks" yaml:"abandon_ticks"`
}

// Tuning returns the runtime tunables of c.
func (c *Config) Tuning() Tuning {
	return Tuning{
		Smoothing:        c.Control.Smoothing,
		AnchorFollow:     c.Control.AnchorFollow,
		MinConfidence:    c.Control.MinConfidence,
		PullThreshold:    c.Bow.PullThreshold,
		ReleaseThreshold: c.Bow.ReleaseThreshold,
		PowerPerPixel:    c.Bow.PowerPerPixel,
		AbandonTicks:     c.Bow.AbandonTicks,
	}
}

// SetTuning copies t into c.
func (c *Config) SetTuning(t Tuning) {
	c.Control.Smoothing = t.Smoothing
	c.Control.AnchorFollow = t.AnchorFollow
	c.Control.MinConfidence = t.MinConfidence
	c.Bow.PullThreshold = t.PullThreshold
	c.Bow.ReleaseThreshold = t.ReleaseThreshold
	c.Bow.PowerPerPixel = t.PowerPerPixel
	c.Bow.AbandonTicks = t.AbandonTicks
}

// Validate checks the ranges of every tunable.
func (t Tuning) Validate() error {
	switch {
	case !finite(t.Smoothing, t.AnchorFollow, t.MinConfidence, t.PullThreshold, t.ReleaseThreshold, t.PowerPerPixel):
		return fmt.Errorf("tunables must be finite, got %+v", t)
	case t.Smoothing <= 0 || t.Smoothing > 1:
		return fmt.Errorf("smoothing must be in (0, 1], got %v", t.Smoothing)
	case t.AnchorFollow <= 0 || t.AnchorFollow > 1:
		return fmt.Errorf("anchor follow must be in (0, 1], got %v", t.AnchorFollow)
	case t.MinConfidence < 0 || t.MinConfidence > 1:
		return fmt.Errorf("min confidence must be in [0, 1], got %v", t.MinConfidence)
	case t.PullThreshold <= 0:
		return fmt.Errorf("pull threshold must be positive, got %v", t.PullThreshold)
	case t.ReleaseThreshold <= 0:
		return fmt.Errorf("release threshold must be positive, got %v", t.ReleaseThreshold)
	case t.PowerPerPixel <= 0:
		return fmt.Errorf("power per pixel must be positive, got %v", t.PowerPerPixel)
	case t.AbandonTicks < 0:
		return fmt.Errorf("abandon ticks must not be negative, got %d", t.AbandonTicks)
	}
	return nil
}

// ApplyControl returns cfg with the input tunables replaced.
func (t Tuning) ApplyControl(cfg control.Config) control.Config {
	cfg.Smoothing = t.Smoothing
	cfg.AnchorFollow = t.AnchorFollow
	cfg.MinConfidence = t.MinConfidence
	return cfg
}

// ApplyBow returns cfg with the draw tunables replaced.
func (t Tuning) ApplyBow(cfg bow.Config) bow.Config {
	cfg.PullThreshold = t.PullThreshold
	cfg.ReleaseThreshold = t.ReleaseThreshold
	cfg.PowerPerPixel = t.PowerPerPixel
	cfg.AbandonTicks = t.AbandonTicks
	return cfg
}

// finite reports whether every value is a finite number.
func finite(vs ...float64) bool {
	for _, v := range vs {
		if !geom.IsFinite(v) {
			return false
		}
	}
	return true
}

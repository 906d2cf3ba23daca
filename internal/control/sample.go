// Package control turns raw hand sightings and mouse input into smoothed
// control samples with a pull vector that drives the bow.
package control

import (
	"fmt"

	"github.com/ayusman/handbow/internal/geom"
)

// Kind identifies which input produced a sample.
type Kind int

const (
	KindCamera Kind = iota
	KindMouse
)

// String returns the input name.
func (k Kind) String() string {
	switch k {
	case KindCamera:
		return "camera"
	case KindMouse:
		return "mouse"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// PullState describes the current draw: where it began, where the hand is
// now, how far apart they are and which way the arrow would fly.
type PullState struct {
	Origin   geom.Vec2 `json:"origin"`
	Current  geom.Vec2 `json:"current"`
	Distance float64   `json:"distance"`
	Angle    float64   `json:"angle"` // radians from horizontal, increasing upward
	Latched  bool      `json:"latched"`
}

// Aim returns the launch direction in screen space. The arrow flies
// opposite to the pull.
func (p PullState) Aim() geom.Vec2 {
	return p.Origin.Sub(p.Current)
}

// Sample is one tick of normalized input.
type Sample struct {
	Position geom.Vec2 `json:"position"` // smoothed, logical screen pixels
	Source   Kind      `json:"source"`
	Valid    bool      `json:"valid"`
	Pressed  bool      `json:"pressed"` // trigger held (mouse button)
	Pull     PullState `json:"pull"`
}

// Source produces one sample per game tick. Latch freezes the pull origin
// when a draw starts; Reset releases it when the bow returns to idle.
type Source interface {
	Produce() Sample
	Latch()
	Reset()
}

// Sighting is one detector result in normalized frame coordinates.
// Present is false when the frame had no hand.
type Sighting struct {
	Point      geom.Vec2
	Confidence float64
	Present    bool
}

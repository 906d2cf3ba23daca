package game

import (
	"time"

	"github.com/ayusman/handbow/internal/geom"
)

// EventKind names a discrete game event.
type EventKind string

const (
	EventDrawStarted  EventKind = "draw_started"
	EventCancelled    EventKind = "cancelled"
	EventReleased     EventKind = "released"
	EventHit          EventKind = "hit"
	EventAmmoDepleted EventKind = "ammo_depleted"
	EventAbandoned    EventKind = "abandoned"
	EventReset        EventKind = "reset"
)

// AllEventKinds lists every kind, in the order above.
var AllEventKinds = []EventKind{
	EventDrawStarted, EventCancelled, EventReleased, EventHit,
	EventAmmoDepleted, EventAbandoned, EventReset,
}

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	for _, known := range AllEventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is a discrete game event for the audio and UI collaborators.
type Event struct {
	Kind      EventKind `json:"kind"`
	Time      time.Time `json:"time"`
	Angle     float64   `json:"angle,omitempty"`
	Power     float64   `json:"power,omitempty"`
	Points    int       `json:"points"`
	Position  geom.Vec2 `json:"position"`
	Outcome   string    `json:"outcome,omitempty"`
	Score     int       `json:"score"`
	Remaining int       `json:"arrows_remaining"`
}

// Package plugin runs external executables in response to game events,
// such as a sound player that reacts to releases and hits.
package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/handbow/internal/game"
)

// Manifest describes a plugin's metadata and the events it wants.
type Manifest struct {
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Description string           `json:"description"`
	Executable  string           `json:"executable"`
	Events      []game.EventKind `json:"events"`
	Config      json.RawMessage  `json:"config,omitempty"`
}

// Validate checks that the manifest names an executable and only known
// event kinds.
func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest has no name")
	}
	if m.Executable == "" {
		return fmt.Errorf("plugin %s: no executable", m.Name)
	}
	for _, kind := range m.Events {
		if !kind.Valid() {
			return fmt.Errorf("plugin %s: unknown event %q", m.Name, kind)
		}
	}
	return nil
}

// Request is written to a plugin's stdin, one per event.
type Request struct {
	Event  game.Event      `json:"event"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Subscribes reports whether the plugin wants events of the given kind.
// A manifest with no events subscribes to everything.
func (p *Plugin) Subscribes(kind game.EventKind) bool {
	if len(p.Manifest.Events) == 0 {
		return true
	}
	for _, k := range p.Manifest.Events {
		if k == kind {
			return true
		}
	}
	return false
}

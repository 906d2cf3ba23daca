// Package api provides the HTTP handlers for runtime tuning and camera sources.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/handbow/internal/capture"
	"github.com/ayusman/handbow/internal/config"
)

// Tuner reads and applies runtime tuning on the running game.
type Tuner interface {
	Tuning() config.Tuning
	ApplyTuning(t config.Tuning) error
}

// SourceSwitcher hot-swaps the capture camera.
type SourceSwitcher interface {
	SwitchSource(src capture.Source) error
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

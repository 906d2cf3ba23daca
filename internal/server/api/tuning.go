package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ayusman/handbow/internal/store"
)

// TuningHandler handles GET and PUT /api/tuning.
type TuningHandler struct {
	store *store.Store
	tuner Tuner
}

// NewTuningHandler creates a new TuningHandler.
func NewTuningHandler(s *store.Store, t Tuner) *TuningHandler {
	return &TuningHandler{store: s, tuner: t}
}

// ServeHTTP implements the http.Handler interface.
func (h *TuningHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.tuner.Tuning())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// update decodes the body over the current tuning, so omitted fields keep
// their values, then applies and persists it.
func (h *TuningHandler) update(w http.ResponseWriter, r *http.Request) {
	tuning := h.tuner.Tuning()
	if err := json.NewDecoder(r.Body).Decode(&tuning); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := tuning.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.tuner.ApplyTuning(tuning); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Settings().SetJSON(store.SettingTuning, tuning); err != nil {
		log.Printf("Failed to persist tuning: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to save tuning")
		return
	}

	writeJSON(w, http.StatusOK, tuning)
}

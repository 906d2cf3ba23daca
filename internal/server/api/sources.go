package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/ayusman/handbow/internal/capture"
	"github.com/ayusman/handbow/internal/store"
)

// SourcesHandler handles HTTP requests for camera source resources.
type SourcesHandler struct {
	store    *store.Store
	switcher SourceSwitcher
	mooerURL string
}

// NewSourcesHandler creates a new SourcesHandler. mooerURL fills in
// pan-tilt camera sources created without a URL; switcher may be nil, in
// which case activation is only recorded.
func NewSourcesHandler(s *store.Store, switcher SourceSwitcher, mooerURL string) *SourcesHandler {
	return &SourcesHandler{store: s, switcher: switcher, mooerURL: mooerURL}
}

// ServeHTTP routes /api/sources, /api/sources/{id} and
// /api/sources/{id}/activate.
func (h *SourcesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sources")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, action, _ := strings.Cut(path, "/")
	switch {
	case action == "activate" && r.Method == http.MethodPost:
		h.activate(w, r, id)
	case action != "":
		writeError(w, http.StatusNotFound, "Not found")
	case r.Method == http.MethodGet:
		h.get(w, r, id)
	case r.Method == http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createSourceRequest struct {
	Name string `json:"name"`
	// Camera is the short form accepted on the command line: a device
	// index, an rtsp:// URL, "mooer", "auto" or a video path.
	Camera string             `json:"camera"`
	Kind   capture.SourceKind `json:"kind"`
	Device int                `json:"device"`
	URL    string             `json:"url"`
	Width  int                `json:"width"`
	Height int                `json:"height"`
	FPS    int                `json:"fps"`
}

type sourceResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Source      capture.Source `json:"source"`
	Active      bool           `json:"active"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

type listSourcesResponse struct {
	Sources []sourceResponse `json:"sources"`
}

// toSourceResponse converts a store.CameraSource to a sourceResponse.
// Stream passwords never leave the server.
func toSourceResponse(cs *store.CameraSource) sourceResponse {
	src := cs.Source
	src.URL = redact(src)
	return sourceResponse{
		ID:          cs.ID,
		Name:        cs.Name,
		Description: cs.Source.String(),
		Source:      src,
		Active:      cs.Active,
		CreatedAt:   cs.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   cs.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func redact(src capture.Source) string {
	if src.Kind != capture.SourceRTSP && src.Kind != capture.SourceMooer {
		return src.URL
	}
	// String renders "<kind>:<redacted url>".
	return strings.TrimPrefix(src.String(), string(src.Kind)+":")
}

// list handles GET /api/sources and returns all camera sources.
func (h *SourcesHandler) list(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.Sources().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sources")
		return
	}

	response := listSourcesResponse{
		Sources: make([]sourceResponse, 0, len(sources)),
	}
	for _, cs := range sources {
		response.Sources = append(response.Sources, toSourceResponse(cs))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sources/{id}.
func (h *SourcesHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	cs, err := h.store.Sources().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get source")
		return
	}

	writeJSON(w, http.StatusOK, toSourceResponse(cs))
}

// create handles POST /api/sources.
func (h *SourcesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	src := capture.Source{
		Kind:   req.Kind,
		Device: req.Device,
		URL:    req.URL,
	}
	if req.Camera != "" {
		parsed, err := capture.ParseSource(req.Camera, h.mooerURL)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		src = parsed
	}
	if src.Kind == capture.SourceMooer && src.URL == "" {
		src.URL = h.mooerURL
	}
	src.Width, src.Height, src.FPS = req.Width, req.Height, req.FPS

	if err := src.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cs := &store.CameraSource{Name: req.Name, Source: src}
	if err := h.store.Sources().Create(cs); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create source")
		return
	}

	writeJSON(w, http.StatusCreated, toSourceResponse(cs))
}

// delete handles DELETE /api/sources/{id}.
func (h *SourcesHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sources().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete source")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// activate handles POST /api/sources/{id}/activate and switches the
// capture camera to the source.
func (h *SourcesHandler) activate(w http.ResponseWriter, r *http.Request, id string) {
	cs, err := h.store.Sources().Activate(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to activate source")
		return
	}

	if h.switcher != nil {
		if err := h.switcher.SwitchSource(cs.Source); err != nil {
			log.Printf("Failed to switch camera to %s: %v", cs.Source, err)
			writeError(w, http.StatusInternalServerError, "Failed to switch camera")
			return
		}
	}

	writeJSON(w, http.StatusOK, toSourceResponse(cs))
}

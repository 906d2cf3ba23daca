// Package server provides the HTTP and websocket server for handbow.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ayusman/handbow/internal/game"
	"github.com/ayusman/handbow/internal/geom"
	"github.com/ayusman/handbow/internal/server/api"
	"github.com/ayusman/handbow/internal/store"
)

// Game is the running game as the server sees it. Every method must be
// safe to call from request goroutines.
type Game interface {
	Snapshot() game.Snapshot
	Reset()
	SetMouse(pos geom.Vec2, down bool)
}

// Preview is a source of JPEG preview frames, newest only.
type Preview interface {
	Peek() ([]byte, bool)
	Seq() uint64
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Game      Game
	Preview   Preview
	Tuner     api.Tuner
	Switcher  api.SourceSwitcher
	MooerURL  string
	Status    func() any // extra fields for /api/health
}

// Server represents the HTTP server for the handbow application.
type Server struct {
	config Config
	mux    *http.ServeMux
	hub    *Hub
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	if config.Game != nil {
		s.hub = NewHub(config.Game)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Game != nil {
		s.mux.HandleFunc("/api/state", s.handleState)
		s.mux.HandleFunc("/api/reset", s.handleReset)
		s.mux.Handle("/api/live", s.hub)
	}

	if s.config.Store != nil {
		if s.config.Tuner != nil {
			s.mux.Handle("/api/tuning", api.NewTuningHandler(s.config.Store, s.config.Tuner))
		}

		sources := api.NewSourcesHandler(s.config.Store, s.config.Switcher, s.config.MooerURL)
		s.mux.Handle("/api/sources", sources)
		s.mux.Handle("/api/sources/", sources)
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Hub returns the live websocket hub, or nil when no game is configured.
func (s *Server) Hub() *Hub {
	return s.hub
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.hub != nil {
		response["clients"] = s.hub.Clients()
		response["dropped"] = s.hub.Dropped()
	}
	if s.config.Status != nil {
		response["capture"] = s.config.Status()
	}

	writeJSON(w, http.StatusOK, response)
}

// handleState handles GET /api/state and returns the current snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.config.Game.Snapshot())
}

// handleReset handles POST /api/reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.config.Game.Reset()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset queued"})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.hub != nil {
		go s.hub.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

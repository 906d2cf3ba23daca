// Package app runs the game loop: it picks an input, feeds the session and
// hands snapshots and events to the renderer, the tray and the plugins.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/handbow/internal/bow"
	"github.com/ayusman/handbow/internal/capture"
	"github.com/ayusman/handbow/internal/config"
	"github.com/ayusman/handbow/internal/control"
	"github.com/ayusman/handbow/internal/game"
	"github.com/ayusman/handbow/internal/geom"
)

// Loop timing.
const (
	// TickRate is the game loop period.
	TickRate = time.Second / 60
	// MaxFrameTime caps the elapsed time fed into one tick, in seconds.
	MaxFrameTime = 0.25
)

// Capture is the part of the capture worker the loop uses. The camera
// drives the bow only while Tracking; otherwise the mouse does.
type Capture interface {
	Active() bool
	Tracking() bool
	Sightings() *capture.Latest[control.Sighting]
	Swap(cam capture.Camera)
}

// Sink receives game events. Publish must not block.
type Sink interface {
	Publish(ev game.Event)
}

// Config holds the application dependencies.
type Config struct {
	// Settings provides the session, input and tuning values.
	Settings *config.Config
	// Capture is optional; without it only the mouse drives the bow.
	Capture Capture
	// OpenCamera builds a camera for SwitchSource. Defaults to
	// capture.NewCamera.
	OpenCamera func(capture.Source) capture.Camera
}

// Status summarizes the loop for health reporting.
type Status struct {
	Input  string `json:"input"`
	Paused bool   `json:"paused"`
	Ticks  uint64 `json:"ticks"`
	Score  int    `json:"score"`
	Arrows int    `json:"arrows_remaining"`
}

// App owns the game session and drives it from a fixed-rate loop. The
// session is touched only by the loop; other goroutines go through the
// queued commands and the published snapshot.
type App struct {
	settings   config.Config
	baseBow    bow.Config
	session    *game.Session
	capture    Capture
	camera     *control.CameraInput
	mouse      *control.MouseInput
	openCamera func(capture.Source) capture.Camera
	now        func() time.Time

	// loop-owned
	input     control.Kind
	inputSeen bool

	mu       sync.Mutex
	snapshot game.Snapshot
	tuning   config.Tuning
	pending  *config.Tuning
	reset    bool
	paused   bool
	sinks    []Sink
}

// New creates an app from cfg.
func New(cfg Config) (*App, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	gameCfg, err := settings.GameConfig()
	if err != nil {
		return nil, fmt.Errorf("game config: %w", err)
	}
	if err := gameCfg.Bow.Validate(); err != nil {
		return nil, fmt.Errorf("bow config: %w", err)
	}

	open := cfg.OpenCamera
	if open == nil {
		open = capture.NewCamera
	}

	a := &App{
		settings:   *settings,
		baseBow:    gameCfg.Bow,
		session:    game.NewSession(gameCfg),
		capture:    cfg.Capture,
		mouse:      control.NewMouseInput(settings.ControlConfig()),
		openCamera: open,
		now:        time.Now,
		tuning:     settings.Tuning(),
	}
	if a.capture != nil {
		a.camera = control.NewCameraInput(a.capture.Sightings(), settings.ControlConfig())
	}
	a.snapshot = a.session.Snapshot()
	return a, nil
}

// AddSink registers a receiver for game events.
func (a *App) AddSink(s Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, s)
}

// Run ticks the game at TickRate until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickRate)
	defer ticker.Stop()

	log.Println("Game loop started")
	last := a.now()
	for {
		select {
		case <-ctx.Done():
			log.Println("Game loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}

		now := a.now()
		a.step(now.Sub(last).Seconds())
		last = now
	}
}

// step runs one loop iteration with dt seconds of elapsed time.
func (a *App) step(dt float64) {
	if dt > MaxFrameTime {
		dt = MaxFrameTime
	}
	if dt < 0 {
		dt = 0
	}

	var events []game.Event
	if ev, ok := a.applyCommands(); ok {
		events = append(events, ev)
	}

	if !a.Paused() {
		events = append(events, a.tick(dt)...)
	}

	snap := a.session.Snapshot()
	a.mu.Lock()
	a.snapshot = snap
	sinks := append([]Sink(nil), a.sinks...)
	a.mu.Unlock()

	for _, ev := range events {
		for _, s := range sinks {
			s.Publish(ev)
		}
	}
}

// applyCommands applies queued tuning and resets between ticks.
func (a *App) applyCommands() (game.Event, bool) {
	a.mu.Lock()
	tuning, reset := a.pending, a.reset
	a.pending, a.reset = nil, false
	a.mu.Unlock()

	if tuning != nil {
		a.settings.SetTuning(*tuning)
		ctrl := a.settings.ControlConfig()
		a.mouse.SetConfig(ctrl)
		if a.camera != nil {
			a.camera.SetConfig(ctrl)
		}
		// Validated in ApplyTuning.
		if err := a.session.SetBowConfig(a.settings.BowConfig()); err != nil {
			log.Printf("Failed to apply bow tuning: %v", err)
		}
	}

	if !reset {
		return game.Event{}, false
	}
	a.sourceFor(a.input).Reset()
	return a.session.Reset(), true
}

// tick advances the session by one step on the active input.
func (a *App) tick(dt float64) []game.Event {
	kind := a.activeInput()
	if a.inputSeen && kind != a.input {
		log.Printf("Input switched to %s", kind)
		a.session.CancelDraw()
		a.mouse.Reset()
		if a.camera != nil {
			a.camera.Reset()
		}
	}
	a.input, a.inputSeen = kind, true

	src := a.sourceFor(kind)
	before := a.session.Bow().Phase
	events := a.session.Tick(src.Produce(), dt)

	for _, ev := range events {
		if ev.Kind == game.EventDrawStarted {
			src.Latch()
		}
	}
	if before != bow.Idle && a.session.Bow().Phase == bow.Idle {
		src.Reset()
	}
	return events
}

// activeInput picks the camera while it is tracking a hand. Frames alone
// are not enough: a detector that never finds a hand leaves the mouse in
// charge.
func (a *App) activeInput() control.Kind {
	if a.camera != nil && a.capture.Active() && a.capture.Tracking() {
		return control.KindCamera
	}
	return control.KindMouse
}

func (a *App) sourceFor(kind control.Kind) control.Source {
	if kind == control.KindCamera && a.camera != nil {
		return a.camera
	}
	return a.mouse
}

// Snapshot returns the state published after the last tick.
func (a *App) Snapshot() game.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// Reset queues a new round: full quiver, zero score.
func (a *App) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset = true
}

// SetMouse records the pointer in screen pixels.
func (a *App) SetMouse(pos geom.Vec2, down bool) {
	a.mouse.Set(pos, down)
}

// SetPaused stops or resumes the simulation. Snapshots keep flowing.
func (a *App) SetPaused(paused bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paused = paused
}

// Paused reports whether the simulation is stopped.
func (a *App) Paused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

// Tuning returns the most recently accepted tuning.
func (a *App) Tuning() config.Tuning {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tuning
}

// ApplyTuning validates t and queues it for the next tick.
func (a *App) ApplyTuning(t config.Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if err := t.ApplyBow(a.baseBow).Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tuning = t
	a.pending = &t
	return nil
}

// SwitchSource swaps the capture camera for src. The worker closes the old
// camera between two reads.
func (a *App) SwitchSource(src capture.Source) error {
	if a.capture == nil {
		return fmt.Errorf("no capture worker")
	}
	if err := src.Validate(); err != nil {
		return err
	}
	a.capture.Swap(a.openCamera(src))
	log.Printf("Switching camera to %s", src)
	return nil
}

// Status reports the loop state.
func (a *App) Status() Status {
	snap := a.Snapshot()
	a.mu.Lock()
	defer a.mu.Unlock()

	return Status{
		Input:  a.activeInput().String(),
		Paused: a.paused,
		Ticks:  snap.Tick,
		Score:  snap.Score,
		Arrows: snap.ArrowsRemaining,
	}
}

// Package tray provides a system tray menu showing the score with pause,
// reset and quit controls.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handbow/internal/game"
)

// Tray is the system tray application.
type Tray struct {
	onPause func(paused bool)
	onReset func()
	onOpen  func()
	onQuit  func()
	paused  bool
	score   int
	arrows  int
	mu      sync.RWMutex

	// Menu items stored for later updates
	menuScore *systray.MenuItem
	menuPause *systray.MenuItem
}

// New creates a new Tray showing a fresh quiver of arrows.
func New(arrows int) *Tray {
	return &Tray{arrows: arrows}
}

// OnPause sets the callback for the Pause/Resume item.
func (t *Tray) OnPause(fn func(paused bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPause = fn
}

// OnReset sets the callback for the Reset item.
func (t *Tray) OnReset(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReset = fn
}

// OnOpen sets the callback for the Open in browser item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback for the Quit item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Handbow")
	systray.SetTooltip("Handbow archery")

	t.mu.Lock()
	t.menuScore = systray.AddMenuItem(t.scoreLabel(), "Current round")
	t.menuScore.Disable()
	systray.AddSeparator()
	t.menuPause = systray.AddMenuItem(pauseLabel(t.paused), "Pause or resume the game")
	t.mu.Unlock()

	menuReset := systray.AddMenuItem("Reset", "Start a new round")
	menuOpen := systray.AddMenuItem("Open in browser", "Open the game in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Handbow")

	go func() {
		for {
			select {
			case <-t.menuPause.ClickedCh:
				t.handlePause()
			case <-menuReset.ClickedCh:
				t.handleReset()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handlePause flips the paused state and reports it.
func (t *Tray) handlePause() {
	t.mu.Lock()
	t.paused = !t.paused
	paused := t.paused
	if t.menuPause != nil {
		t.menuPause.SetTitle(pauseLabel(paused))
	}
	callback := t.onPause
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(paused)
	}
}

func (t *Tray) handleReset() {
	t.mu.RLock()
	callback := t.onReset
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit runs the quit callback and closes the tray.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Publish updates the score line from a game event.
func (t *Tray) Publish(ev game.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.score, t.arrows = ev.Score, ev.Remaining
	if t.menuScore != nil {
		t.menuScore.SetTitle(t.scoreLabel())
	}
}

// Label returns the score line shown in the menu.
func (t *Tray) Label() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scoreLabel()
}

// IsPaused returns the current paused state.
func (t *Tray) IsPaused() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.paused
}

func (t *Tray) scoreLabel() string {
	return fmt.Sprintf("Score %d · Arrows %d", t.score, t.arrows)
}

func pauseLabel(paused bool) string {
	if paused {
		return "Resume"
	}
	return "Pause"
}

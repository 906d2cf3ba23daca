// Package main provides a sound effect plugin. It maps game events to
// system sounds and plays them with whatever player the platform has.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

// Event is the subset of a game event the plugin reads.
type Event struct {
	Kind   string  `json:"kind"`
	Points int     `json:"points"`
	Power  float64 `json:"power"`
}

// Request represents the input from the plugin executor.
type Request struct {
	Event  Event           `json:"event"`
	Config json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the plugin configuration from plugin.json.
type Config struct {
	Volume float64 `json:"volume"`
	Mute   bool    `json:"mute"`
}

// sounds maps a cue to a system sound per platform.
var sounds = map[string]map[string]string{
	"darwin": {
		"release": "/System/Library/Sounds/Pop.aiff",
		"hit":     "/System/Library/Sounds/Glass.aiff",
		"miss":    "/System/Library/Sounds/Bottle.aiff",
		"empty":   "/System/Library/Sounds/Sosumi.aiff",
	},
	"linux": {
		"release": "/usr/share/sounds/freedesktop/stereo/message.oga",
		"hit":     "/usr/share/sounds/freedesktop/stereo/complete.oga",
		"miss":    "/usr/share/sounds/freedesktop/stereo/dialog-warning.oga",
		"empty":   "/usr/share/sounds/freedesktop/stereo/suspend-error.oga",
	},
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	cfg := Config{Volume: 1}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	cue, err := cueFor(req.Event)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	played := false
	if !cfg.Mute {
		played = play(cue, cfg.Volume)
	}

	data, _ := json.Marshal(map[string]any{"cue": cue, "played": played})
	writeResponse(Response{Success: true, Data: data})
}

// cueFor picks the sound for an event.
func cueFor(ev Event) (string, error) {
	switch ev.Kind {
	case "released":
		return "release", nil
	case "hit":
		if ev.Points > 0 {
			return "hit", nil
		}
		return "miss", nil
	case "ammo_depleted":
		return "empty", nil
	default:
		return "", fmt.Errorf("unexpected event: %s", ev.Kind)
	}
}

// play starts the platform player without waiting for it. It reports
// whether a player and sound were found.
func play(cue string, volume float64) bool {
	path, ok := sounds[runtime.GOOS][cue]
	if !ok {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("afplay", "-v", strconv.FormatFloat(volume, 'f', 2, 64), path)
	case "linux":
		player, err := exec.LookPath("paplay")
		if err != nil {
			return false
		}
		cmd = exec.Command(player, "--volume", strconv.Itoa(int(volume*65536)), path)
	default:
		return false
	}

	if err := cmd.Start(); err != nil {
		return false
	}
	cmd.Process.Release()
	return true
}

// writeResponse writes a response to stdout.
func writeResponse(resp Response) {
	if err := json.NewEncoder(os.Stdout).Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode response: %v\n", err)
		os.Exit(1)
	}
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	writeResponse(Response{Success: false, Error: errMsg})
}

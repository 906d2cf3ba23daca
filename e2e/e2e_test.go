package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/handbow/internal/app"
	"github.com/ayusman/handbow/internal/capture"
	"github.com/ayusman/handbow/internal/config"
	"github.com/ayusman/handbow/internal/detector"
	"github.com/ayusman/handbow/internal/game"
	"github.com/ayusman/handbow/internal/geom"
	"github.com/ayusman/handbow/internal/plugin"
	"github.com/ayusman/handbow/internal/server"
	"github.com/ayusman/handbow/internal/store"
)

// stack is a running game wired the way main wires it, minus the tray.
type stack struct {
	store *store.Store
	app   *app.App
	srv   *server.Server
	ts    *httptest.Server
}

func startStack(t *testing.T, c app.Capture) *stack {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	a, err := app.New(app.Config{Settings: config.Default(), Capture: c})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	srv := server.New(server.Config{
		Store:    s,
		Game:     a,
		Tuner:    a,
		Switcher: a,
		Status:   func() any { return a.Status() },
	})
	a.AddSink(srv.Hub())

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})

	return &stack{store: s, app: a, srv: srv, ts: ts}
}

func (st *stack) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(st.ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitEvent reads live messages until an event of the given kind.
func waitEvent(t *testing.T, conn *websocket.Conn, kind game.EventKind, timeout time.Duration) game.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		var msg server.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s event: %v", kind, err)
		}
		if msg.Type == server.MsgEvent && msg.Event != nil && msg.Event.Kind == kind {
			return *msg.Event
		}
	}
}

// shoot pulls the mouse back 120px and lets go, leaving a few ticks
// between each step.
func shoot(send func(x, y float64, down bool)) {
	send(400, 400, true)
	time.Sleep(50 * time.Millisecond)
	send(280, 400, true)
	time.Sleep(100 * time.Millisecond)
	send(280, 400, false)
}

func TestE2E_MouseRound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	st := startStack(t, nil)
	conn := st.dial(t)

	shoot(func(x, y float64, down bool) {
		if err := conn.WriteJSON(server.Command{Type: server.MsgMouse, X: x, Y: y, Down: down}); err != nil {
			t.Fatalf("WriteJSON() error = %v", err)
		}
	})

	released := waitEvent(t, conn, game.EventReleased, 3*time.Second)
	if released.Remaining != 9 {
		t.Errorf("arrows after release = %d, want 9", released.Remaining)
	}
	if released.Power < 10 || released.Power > 100 {
		t.Errorf("power = %v, want within [10, 100]", released.Power)
	}

	hit := waitEvent(t, conn, game.EventHit, 10*time.Second)
	if hit.Score != hit.Points {
		t.Errorf("score %d should equal the first arrow's points %d", hit.Score, hit.Points)
	}

	t.Run("Reset", func(t *testing.T) {
		resp, err := st.ts.Client().Post(st.ts.URL+"/api/reset", "application/json", nil)
		if err != nil {
			t.Fatalf("POST /api/reset error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
		}

		waitEvent(t, conn, game.EventReset, 2*time.Second)

		resp, err = st.ts.Client().Get(st.ts.URL + "/api/state")
		if err != nil {
			t.Fatalf("GET /api/state error = %v", err)
		}
		defer resp.Body.Close()
		var snap game.Snapshot
		json.NewDecoder(resp.Body).Decode(&snap)
		if snap.ArrowsRemaining != 10 || snap.Score != 0 {
			t.Errorf("state after reset = %d arrows, score %d", snap.ArrowsRemaining, snap.Score)
		}
	})
}

func TestE2E_TuningIsAppliedAndSaved(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	st := startStack(t, nil)

	req, _ := http.NewRequest(http.MethodPut, st.ts.URL+"/api/tuning", strings.NewReader(`{"pull_threshold": 55, "abandon_ticks": 6}`))
	resp, err := st.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT /api/tuning error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if got := st.app.Tuning(); got.PullThreshold != 55 || got.AbandonTicks != 6 {
		t.Errorf("app tuning = %+v", got)
	}

	var saved config.Tuning
	if err := st.store.Settings().GetJSON(store.SettingTuning, &saved); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if saved != st.app.Tuning() {
		t.Errorf("saved %+v, app has %+v", saved, st.app.Tuning())
	}

	// A restart overlays the saved values on the file configuration.
	cfg := config.Default()
	cfg.SetTuning(saved)
	if cfg.BowConfig().PullThreshold != 55 {
		t.Errorf("restored pull threshold = %v", cfg.BowConfig().PullThreshold)
	}
}

func TestE2E_PluginsReceiveEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	pluginsDir := t.TempDir()
	dir := filepath.Join(pluginsDir, "recorder")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	script := "#!/bin/sh\ncat >> events.log\necho >> events.log\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "record.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	manifest := `{"name": "recorder", "version": "1.0.0", "executable": "record.sh", "events": ["released", "hit"]}`
	if err := os.WriteFile(filepath.Join(dir, plugin.ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	mgr := plugin.NewManager(pluginsDir)
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	dispatcher := plugin.NewDispatcher(mgr, plugin.NewExecutor(5*time.Second), 16)

	st := startStack(t, nil)
	st.app.AddSink(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	shoot(func(x, y float64, down bool) {
		st.app.SetMouse(geom.Vec2{X: x, Y: y}, down)
	})

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) && dispatcher.Stats().Delivered < 2 {
		time.Sleep(20 * time.Millisecond)
	}

	data, err := os.ReadFile(filepath.Join(dir, "events.log"))
	if err != nil {
		t.Fatalf("plugin never ran: %v", err)
	}
	log := string(data)
	if !strings.Contains(log, `"kind":"released"`) || !strings.Contains(log, `"kind":"hit"`) {
		t.Errorf("plugin log = %s", log)
	}
	if strings.Contains(log, `"kind":"draw_started"`) {
		t.Error("plugin received an event it did not subscribe to")
	}
}

func TestE2E_CameraTakesOver(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	// Alternating frames keep the motion gate open.
	black := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	white := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))
	defer black.Close()
	defer white.Close()

	cam := capture.NewMockCamera([]*gocv.Mat{&black, &white}, true)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.PointingLandmarks(0.5, 0.5)})

	worker := capture.NewWorker(cam, det, capture.WorkerConfig{IdleFPS: 60, ActiveFPS: 60})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()
	// Stop reading before the frames are released.
	defer func() {
		cancel()
		<-done
	}()

	st := startStack(t, worker)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && st.app.Status().Input != "camera" {
		time.Sleep(10 * time.Millisecond)
	}
	if got := st.app.Status().Input; got != "camera" {
		t.Fatalf("input = %q, want camera", got)
	}

	resp, err := st.ts.Client().Get(st.ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()
	var health struct {
		Status  string     `json:"status"`
		Capture app.Status `json:"capture"`
	}
	json.NewDecoder(resp.Body).Decode(&health)
	if health.Capture.Input != "camera" {
		t.Errorf("health capture = %+v", health.Capture)
	}
}

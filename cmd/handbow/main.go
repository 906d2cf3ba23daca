package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/ayusman/handbow/internal/app"
	"github.com/ayusman/handbow/internal/capture"
	"github.com/ayusman/handbow/internal/config"
	"github.com/ayusman/handbow/internal/detector"
	"github.com/ayusman/handbow/internal/plugin"
	"github.com/ayusman/handbow/internal/server"
	"github.com/ayusman/handbow/internal/store"
	"github.com/ayusman/handbow/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	cameraFlag := flag.String("camera", "", "camera source: device index, rtsp:// URL, mooer, auto or a video file")
	headless := flag.Bool("headless", false, "run without the system tray")
	flag.Parse()

	fmt.Println("Handbow - hand-tracked archery")

	if err := config.LoadEnv(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *cameraFlag != "" {
		cfg.Camera.Source = *cameraFlag
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	loadTuning(st, cfg)

	src, err := activeSource(st, cfg)
	if err != nil {
		log.Fatalf("Invalid camera source: %v", err)
	}
	log.Printf("Using camera %s", src)

	// Try MediaPipe first, fall back to mock detector
	var det detector.Detector
	if mp, err := detector.NewMediaPipeDetector(cfg.Camera.Detector); err == nil {
		det = mp
		log.Println("Using MediaPipe hand detection")
	} else {
		log.Printf("MediaPipe not available (%v), using mock detector; the mouse drives the bow", err)
		det = detector.NewMockDetector()
	}
	defer det.Close()

	worker := capture.NewWorker(capture.NewCamera(src), det, cfg.WorkerConfig())

	application, err := app.New(app.Config{Settings: cfg, Capture: worker})
	if err != nil {
		log.Fatalf("Failed to create game: %v", err)
	}

	webDir := cfg.Server.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Game:      application,
		Preview:   worker.Preview(),
		Tuner:     application,
		Switcher:  application,
		MooerURL:  cfg.MooerURL(),
		Status: func() any {
			return map[string]any{
				"worker": worker.Stats(),
				"game":   application.Status(),
			}
		},
	})
	application.AddSink(srv.Hub())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("%s stopped: %v", name, err)
				stop()
			}
		}()
	}

	if d := startPlugins(cfg); d != nil {
		application.AddSink(d)
		goRun("plugins", func(ctx context.Context) error {
			d.Run(ctx)
			return nil
		})
	}

	goRun("capture", worker.Run)
	goRun("game loop", application.Run)
	goRun("server", func(ctx context.Context) error {
		return srv.Run(ctx, cfg.Server.Addr)
	})

	if *headless {
		<-ctx.Done()
	} else {
		t := tray.New(cfg.Session.Arrows)
		t.OnPause(application.SetPaused)
		t.OnReset(application.Reset)
		t.OnOpen(func() { openBrowser(localURL(cfg.Server.Addr)) })
		t.OnQuit(stop)
		application.AddSink(t)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// Blocks on the main thread until Quit.
		t.Run()
		stop()
	}

	log.Println("Shutting down")
	wg.Wait()
}

// loadTuning applies the tuning saved through the API over the file values.
func loadTuning(st *store.Store, cfg *config.Config) {
	var t config.Tuning
	err := st.Settings().GetJSON(store.SettingTuning, &t)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return
	case err != nil:
		log.Printf("Ignoring saved tuning: %v", err)
		return
	}
	if err := t.Validate(); err != nil {
		log.Printf("Ignoring saved tuning: %v", err)
		return
	}
	cfg.SetTuning(t)
	log.Println("Loaded saved tuning")
}

// activeSource prefers the source activated through the API, then the
// configured one.
func activeSource(st *store.Store, cfg *config.Config) (capture.Source, error) {
	cs, err := st.Sources().GetActive()
	if err == nil {
		return cs.Source, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("Failed to read active camera source: %v", err)
	}
	return cfg.Source()
}

// startPlugins discovers event plugins. It returns nil when there are none.
func startPlugins(cfg *config.Config) *plugin.Dispatcher {
	mgr := plugin.NewManager(cfg.Plugins.Dir)
	if err := mgr.Discover(); err != nil {
		log.Printf("Failed to discover plugins in %s: %v", cfg.Plugins.Dir, err)
		return nil
	}
	plugins := mgr.List()
	if len(plugins) == 0 {
		return nil
	}
	for _, p := range plugins {
		log.Printf("Loaded plugin %s %s", p.Manifest.Name, p.Manifest.Version)
	}
	return plugin.NewDispatcher(mgr, plugin.NewExecutor(cfg.Plugins.Timeout), cfg.Plugins.QueueSize)
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}

// localURL turns a listen address into a browser URL.
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

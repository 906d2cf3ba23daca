package capture

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handbow/internal/control"
	"github.com/ayusman/handbow/internal/detector"
	"github.com/ayusman/handbow/internal/geom"
)

// Worker timing defaults.
const (
	// DefaultIdleFPS is the frame rate while no hand has been seen for a while.
	DefaultIdleFPS = 5
	// DefaultActiveFPS is the frame rate while a hand is being tracked.
	DefaultActiveFPS = 30
	// DefaultIdleAfter is how long without a hand before dropping to idle.
	DefaultIdleAfter = 2 * time.Second
	// DefaultStaleAfter is how long without a frame before the camera
	// counts as inactive.
	DefaultStaleAfter = 3 * time.Second
	// DefaultPreviewQuality is the JPEG quality of preview frames.
	DefaultPreviewQuality = 70
	// maxBackoff caps the wait between failed opens and reads.
	maxBackoff = 5 * time.Second
	// reopenAfter is the number of consecutive read failures that reopen the camera.
	reopenAfter = 30
)

// WorkerConfig holds the capture worker settings.
type WorkerConfig struct {
	IdleFPS         int
	ActiveFPS       int
	IdleAfter       time.Duration
	StaleAfter      time.Duration
	MotionThreshold float64 // percent of changed pixels that wakes detection
	PreviewQuality  int     // 0 disables the preview
}

// DefaultWorkerConfig returns the default worker settings.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		IdleFPS:         DefaultIdleFPS,
		ActiveFPS:       DefaultActiveFPS,
		IdleAfter:       DefaultIdleAfter,
		StaleAfter:      DefaultStaleAfter,
		MotionThreshold: DefaultMotionThreshold,
		PreviewQuality:  DefaultPreviewQuality,
	}
}

// WorkerStats counts what the worker has done.
type WorkerStats struct {
	Camera     string `json:"camera"`
	Frames     uint64 `json:"frames"`
	Detections uint64 `json:"detections"`
	Sightings  uint64 `json:"sightings"`
	Errors     uint64 `json:"errors"`
	Dropped    uint64 `json:"dropped"`
	Active     bool   `json:"active"`
	Tracking   bool   `json:"tracking"`
}

// Worker reads frames on its own goroutine, runs hand detection and
// publishes the newest sighting and preview frame. The game loop reads
// them through Sightings and Preview without ever blocking.
type Worker struct {
	cfg      WorkerConfig
	detector detector.Detector
	motion   *MotionDetector

	mu      sync.Mutex
	camera  Camera
	pending Camera

	sightings Latest[control.Sighting]
	preview   Latest[[]byte]

	lastFrame  atomic.Int64 // unix nanoseconds
	tracking   atomic.Bool
	frames     atomic.Uint64
	detections atomic.Uint64
	errs       atomic.Uint64
	now        func() time.Time
}

// NewWorker creates a worker for cam using det for hand detection.
func NewWorker(cam Camera, det detector.Detector, cfg WorkerConfig) *Worker {
	def := DefaultWorkerConfig()
	if cfg.IdleFPS <= 0 {
		cfg.IdleFPS = def.IdleFPS
	}
	if cfg.ActiveFPS <= 0 {
		cfg.ActiveFPS = def.ActiveFPS
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.MotionThreshold <= 0 {
		cfg.MotionThreshold = def.MotionThreshold
	}
	return &Worker{
		cfg:      cfg,
		detector: det,
		motion:   NewMotionDetector(cfg.MotionThreshold),
		camera:   cam,
		now:      time.Now,
	}
}

// Sightings is the handoff slot for detector results.
func (w *Worker) Sightings() *Latest[control.Sighting] {
	return &w.sightings
}

// Preview is the handoff slot for JPEG preview frames.
func (w *Worker) Preview() *Latest[[]byte] {
	return &w.preview
}

// Camera returns the camera in use.
func (w *Worker) Camera() Camera {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.camera
}

// Swap replaces the camera. The switch happens between two reads; the old
// camera is closed by the worker.
func (w *Worker) Swap(cam Camera) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = cam
}

// Active reports whether a frame arrived recently.
func (w *Worker) Active() bool {
	last := w.lastFrame.Load()
	if last == 0 {
		return false
	}
	return w.now().Sub(time.Unix(0, last)) < w.cfg.StaleAfter
}

// Tracking reports whether a hand was seen within IdleAfter. It stays
// false while the detector finds nothing, however many frames arrive.
func (w *Worker) Tracking() bool {
	return w.Active() && w.tracking.Load()
}

// Stats returns the worker counters.
func (w *Worker) Stats() WorkerStats {
	_, dropped := w.sightings.Stats()
	return WorkerStats{
		Camera:     w.Camera().Name(),
		Frames:     w.frames.Load(),
		Detections: w.detections.Load(),
		Sightings:  w.sightings.Seq(),
		Errors:     w.errs.Load(),
		Dropped:    dropped,
		Active:     w.Active(),
		Tracking:   w.Tracking(),
	}
}

// Run captures until ctx is cancelled. Camera and detector failures are
// logged and retried; Run only returns when ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	defer w.shutdown()

	cam := w.Camera()
	fps := w.cfg.IdleFPS
	lastHand := time.Time{}
	failures := 0
	backoff := 200 * time.Millisecond

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	setFPS := func(next int) {
		if next == fps {
			return
		}
		fps = next
		cam.SetFPS(fps)
		ticker.Reset(time.Second / time.Duration(fps))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if next := w.takeSwap(); next != nil {
			if err := cam.Close(); err != nil {
				log.Printf("Error closing camera %s: %v", cam.Name(), err)
			}
			cam = next
			w.motion.Reset()
			w.sightings.Publish(control.Sighting{})
			failures = 0
			log.Printf("Camera switched to %s", cam.Name())
		}

		if !cam.IsOpen() {
			if err := cam.Open(); err != nil {
				w.errs.Add(1)
				log.Printf("Failed to open camera %s: %v", cam.Name(), err)
				if !sleep(ctx, backoff) {
					return ctx.Err()
				}
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			cam.SetFPS(fps)
			width, height := cam.Resolution()
			log.Printf("Camera %s opened (%dx%d)", cam.Name(), width, height)
			backoff = 200 * time.Millisecond
		}

		frame, err := cam.ReadFrame()
		if err != nil {
			w.errs.Add(1)
			failures++
			if failures == 1 {
				log.Printf("Error reading frame from %s: %v", cam.Name(), err)
			}
			if failures >= reopenAfter {
				log.Printf("Camera %s failed %d reads, reopening", cam.Name(), failures)
				cam.Close()
				failures = 0
			}
			continue
		}
		if failures > 0 {
			log.Printf("Camera %s recovered after %d failed reads", cam.Name(), failures)
			failures = 0
		}

		w.frames.Add(1)
		w.lastFrame.Store(w.now().UnixNano())
		w.publishPreview(frame)

		if w.now().Sub(lastHand) >= w.cfg.IdleAfter {
			if w.tracking.Swap(false) {
				log.Println("Hand lost, back to idle")
				setFPS(w.cfg.IdleFPS)
			}
			// Idle: only wake detection when something moves.
			if moved, _ := w.motion.Detect(frame); !moved {
				frame.Close()
				continue
			}
		}

		sighting, err := w.detect(frame)
		frame.Close()
		if err != nil {
			w.errs.Add(1)
			log.Printf("Error detecting hands: %v", err)
			continue
		}

		w.sightings.Publish(sighting)
		if sighting.Present {
			lastHand = w.now()
			if !w.tracking.Swap(true) {
				log.Println("Hand found, tracking")
				setFPS(w.cfg.ActiveFPS)
			}
		}
	}
}

// detect runs the detector and reduces the result to the fingertip of the
// most confident hand.
func (w *Worker) detect(frame *gocv.Mat) (control.Sighting, error) {
	if w.detector == nil {
		return control.Sighting{}, errors.New("no hand detector")
	}
	hands, err := w.detector.Detect(frame)
	if err != nil {
		return control.Sighting{}, err
	}
	w.detections.Add(1)

	best, ok := detector.Best(hands)
	if !ok {
		return control.Sighting{}, nil
	}
	tip := best.IndexTip()
	return control.Sighting{
		Point:      geom.Vec2{X: tip.X, Y: tip.Y},
		Confidence: best.Score,
		Present:    true,
	}, nil
}

func (w *Worker) publishPreview(frame *gocv.Mat) {
	if w.cfg.PreviewQuality <= 0 {
		return
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{gocv.IMWriteJpegQuality, w.cfg.PreviewQuality})
	if err != nil {
		return
	}
	defer buf.Close()
	// GetBytes aliases the native buffer freed by Close.
	w.preview.Publish(bytes.Clone(buf.GetBytes()))
}

func (w *Worker) takeSwap() Camera {
	w.mu.Lock()
	defer w.mu.Unlock()
	next := w.pending
	if next != nil {
		w.camera = next
		w.pending = nil
	}
	return next
}

func (w *Worker) shutdown() {
	if err := w.Camera().Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	w.motion.Close()
	log.Println("Capture worker stopped")
}

// sleep waits for d or until ctx ends, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

package capture

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handbow/internal/detector"
)

// flickerFrames returns a black and a white frame so the motion gate
// always sees movement.
func flickerFrames(t *testing.T) []*gocv.Mat {
	t.Helper()
	black := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	white := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))
	t.Cleanup(func() {
		black.Close()
		white.Close()
	})
	return []*gocv.Mat{&black, &white}
}

func fastWorkerConfig() WorkerConfig {
	cfg := DefaultWorkerConfig()
	cfg.IdleFPS = 100
	cfg.ActiveFPS = 100
	return cfg
}

func startWorker(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("worker did not stop")
		}
	})
}

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWorker_PublishesFingertip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera(flickerFrames(t), true)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.PointingLandmarks(0.3, 0.6)})

	w := NewWorker(cam, det, fastWorkerConfig())
	if w.Active() {
		t.Error("worker should not be active before any frame")
	}
	startWorker(t, w)

	waitFor(t, "a sighting", func() bool { return w.Sightings().Seq() > 0 })

	s, ok := w.Sightings().Take()
	if !ok || !s.Present {
		t.Fatalf("Take() = %+v, %v, want a present sighting", s, ok)
	}
	if math.Abs(s.Point.X-0.3) > 1e-9 || math.Abs(s.Point.Y-0.6) > 1e-9 {
		t.Errorf("sighting point = %v, want (0.3, 0.6)", s.Point)
	}
	if s.Confidence != 0.95 {
		t.Errorf("confidence = %f, want 0.95", s.Confidence)
	}

	if preview, ok := w.Preview().Peek(); !ok || len(preview) == 0 {
		t.Error("worker should publish a JPEG preview")
	}
	waitFor(t, "tracking", w.Tracking)
	if !w.Active() {
		t.Error("worker should be active while frames arrive")
	}
	if st := w.Stats(); st.Frames == 0 || st.Detections == 0 || st.Camera != "mock" {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestWorker_NoHandPublishesAbsence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera(flickerFrames(t), true)
	w := NewWorker(cam, detector.NewMockDetector(), fastWorkerConfig())
	startWorker(t, w)

	waitFor(t, "a sighting", func() bool { return w.Sightings().Seq() > 0 })
	if s, ok := w.Sightings().Take(); ok && s.Present {
		t.Errorf("sighting = %+v, want absent", s)
	}
	if !w.Active() || w.Tracking() {
		t.Errorf("Active() = %v, Tracking() = %v, want frames without tracking", w.Active(), w.Tracking())
	}
}

func TestWorker_PreviewOutlivesEncoder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera(flickerFrames(t), true)
	w := NewWorker(cam, detector.NewMockDetector(), fastWorkerConfig())
	startWorker(t, w)

	waitFor(t, "a preview", func() bool { return w.Preview().Seq() > 0 })
	jpeg, _ := w.Preview().Peek()
	held := w.Preview().Seq()
	waitFor(t, "later previews", func() bool { return w.Preview().Seq() > held+3 })

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		t.Fatalf("IMDecode() error = %v", err)
	}
	defer img.Close()
	if img.Empty() || img.Cols() != 160 || img.Rows() != 120 {
		t.Errorf("decoded preview is %dx%d, want 160x120", img.Cols(), img.Rows())
	}
}

func TestWorker_SurvivesErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera(flickerFrames(t), true)
	det := detector.NewMockDetector()
	det.SetError(errors.New("model crashed"))

	w := NewWorker(cam, det, fastWorkerConfig())
	startWorker(t, w)

	waitFor(t, "detector errors", func() bool { return w.Stats().Errors >= 3 })

	// Recovery: the same worker starts publishing once the detector works.
	det.SetError(nil)
	det.SetHands([]detector.HandLandmarks{detector.PointingLandmarks(0.5, 0.5)})
	waitFor(t, "a sighting after recovery", func() bool {
		s, ok := w.Sightings().Peek()
		return ok && s.Present
	})
}

func TestWorker_RetriesOpen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera(flickerFrames(t), true)
	cam.SetOpenError(errors.New("device busy"))

	w := NewWorker(cam, detector.NewMockDetector(), fastWorkerConfig())
	startWorker(t, w)

	waitFor(t, "an open failure", func() bool { return w.Stats().Errors >= 1 })
	cam.SetOpenError(nil)
	waitFor(t, "frames after the camera came back", func() bool { return w.Stats().Frames > 0 })
}

func TestWorker_SwapCamera(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	first := NewMockCamera(flickerFrames(t), true)
	second := NewMockCamera(flickerFrames(t), true)
	second.SetName("second")

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.PointingLandmarks(0.5, 0.5)})

	w := NewWorker(first, det, fastWorkerConfig())
	startWorker(t, w)

	waitFor(t, "the first camera to open", first.IsOpen)
	w.Swap(second)
	waitFor(t, "reads from the second camera", func() bool { return second.Reads() > 0 })

	if first.IsOpen() {
		t.Error("the replaced camera should be closed")
	}
	if w.Camera().Name() != "second" {
		t.Errorf("Camera().Name() = %q, want second", w.Camera().Name())
	}
}

func TestWorker_GoesStale(t *testing.T) {
	w := NewWorker(NewMockCamera(nil, false), detector.NewMockDetector(), DefaultWorkerConfig())

	now := time.Now()
	w.now = func() time.Time { return now }
	w.lastFrame.Store(now.UnixNano())
	if !w.Active() {
		t.Fatal("worker with a fresh frame should be active")
	}

	now = now.Add(DefaultStaleAfter)
	if w.Active() {
		t.Error("worker should go inactive after three seconds without frames")
	}
}

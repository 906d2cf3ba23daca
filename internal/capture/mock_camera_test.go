package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

// solidFrames returns n frames of the given size, each filled with a
// different gray level so playback order can be checked.
func solidFrames(t *testing.T, n, rows, cols int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
		level := float64(40 * (i + 1))
		m.SetTo(gocv.NewScalar(level, level, level, 0))
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, m := range frames {
			m.Close()
		}
	})
	return frames
}

// grayAt reads the blue channel of the top-left pixel.
func grayAt(m *gocv.Mat) uint8 {
	return m.GetUCharAt(0, 0)
}

func TestMockCamera_PlaysFramesInOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tests := []struct {
		name  string
		loop  bool
		reads int
		want  []uint8 // gray level per read; 0 means the read fails
	}{
		{name: "once", loop: false, reads: 3, want: []uint8{40, 80, 0}},
		{name: "looping", loop: true, reads: 5, want: []uint8{40, 80, 40, 80, 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewMockCamera(solidFrames(t, 2, 12, 16), tt.loop)
			if err := cam.Open(); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer cam.Close()

			for i := 0; i < tt.reads; i++ {
				f, err := cam.ReadFrame()
				if tt.want[i] == 0 {
					if err == nil {
						f.Close()
						t.Fatalf("read %d: expected an error once the frames ran out", i)
					}
					continue
				}
				if err != nil {
					t.Fatalf("read %d: ReadFrame() error = %v", i, err)
				}
				if got := grayAt(f); got != tt.want[i] {
					t.Errorf("read %d: gray = %d, want %d", i, got, tt.want[i])
				}
				f.Close()
			}
			if cam.Reads() != tt.reads {
				t.Errorf("Reads() = %d, want %d", cam.Reads(), tt.reads)
			}
		})
	}
}

func TestMockCamera_ReadFrameIsACopy(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frames := solidFrames(t, 1, 12, 16)
	cam := NewMockCamera(frames, true)
	cam.Open()
	defer cam.Close()

	f, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	f.SetTo(gocv.NewScalar(255, 255, 255, 0))
	f.Close()

	if got := grayAt(frames[0]); got != 40 {
		t.Errorf("source frame changed to %d by a reader", got)
	}
}

func TestMockCamera_OpenAndReadErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera(solidFrames(t, 1, 12, 16), true)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() before Open error = %v, want ErrCameraNotOpen", err)
	}

	busy := errors.New("device busy")
	cam.SetOpenError(busy)
	if err := cam.Open(); !errors.Is(err, busy) {
		t.Fatalf("Open() error = %v, want %v", err, busy)
	}
	if cam.IsOpen() {
		t.Error("camera should stay closed after a failed Open")
	}

	cam.SetOpenError(nil)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	unplugged := errors.New("unplugged")
	cam.SetReadError(unplugged)
	if _, err := cam.ReadFrame(); !errors.Is(err, unplugged) {
		t.Errorf("ReadFrame() error = %v, want %v", err, unplugged)
	}

	cam.SetReadError(nil)
	f, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() after clearing the error = %v", err)
	}
	f.Close()

	cam.Close()
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() after Close error = %v, want ErrCameraNotOpen", err)
	}
}

func TestMockCamera_EmptyPlayback(t *testing.T) {
	cam := NewMockCamera(nil, true)
	cam.Open()
	defer cam.Close()

	if _, err := cam.ReadFrame(); err == nil {
		t.Error("ReadFrame() with no frames should fail")
	}
	if w, h := cam.Resolution(); w != 0 || h != 0 {
		t.Errorf("Resolution() = %dx%d, want 0x0", w, h)
	}
}

func TestMockCamera_Settings(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera(solidFrames(t, 1, 48, 64), false)

	if w, h := cam.Resolution(); w != 64 || h != 48 {
		t.Errorf("Resolution() = %dx%d, want 64x48", w, h)
	}

	if cam.FPS() != DefaultFPS {
		t.Errorf("FPS() = %d, want %d", cam.FPS(), DefaultFPS)
	}
	for _, tt := range []struct {
		set, want int
	}{
		{set: 5, want: 5},
		{set: 0, want: 5},
		{set: -3, want: 5},
		{set: 60, want: 60},
	} {
		cam.SetFPS(tt.set)
		if cam.FPS() != tt.want {
			t.Errorf("after SetFPS(%d) FPS() = %d, want %d", tt.set, cam.FPS(), tt.want)
		}
	}

	if cam.Name() != "mock" {
		t.Errorf("Name() = %q, want mock", cam.Name())
	}
	cam.SetName("side")
	if cam.Name() != "side" {
		t.Errorf("Name() = %q, want side", cam.Name())
	}
}

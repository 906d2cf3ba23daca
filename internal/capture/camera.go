// Package capture reads frames from local and network cameras using GoCV
// (OpenCV) and hands the newest results to the game loop.
package capture

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	// Resolution returns the negotiated frame size, or zeros when closed.
	Resolution() (width, height int)
	// Name describes the camera for logs and the API.
	Name() string
}

// cameraImpl captures from any source OpenCV can open.
type cameraImpl struct {
	src     Source
	capture *gocv.VideoCapture
	opened  string
	mu      sync.Mutex
	running bool
	fps     int
}

// NewCamera creates a Camera for src. Nothing is opened until Open.
func NewCamera(src Source) Camera {
	src = src.withDefaults()
	return &cameraImpl{
		src: src,
		fps: src.FPS,
	}
}

// Open opens the source and applies the capture size, rate and a one-frame
// buffer so reads always return the newest frame.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if err := c.src.Validate(); err != nil {
		return err
	}

	capture, name, err := c.open()
	if err != nil {
		return err
	}

	// Network streams and files keep their native size.
	if strings.HasPrefix(name, string(SourceUSB)+":") {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.src.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.src.Height))
	}
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	c.capture = capture
	c.opened = name
	c.running = true

	return nil
}

func (c *cameraImpl) open() (*gocv.VideoCapture, string, error) {
	switch c.src.Kind {
	case SourceUSB:
		return openDevice(c.src.Device)
	case SourceRTSP, SourceMooer:
		return openStream(c.src)
	case SourceFile:
		capture, err := gocv.OpenVideoCapture(c.src.URL)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", c.src, err)
		}
		return capture, c.src.String(), nil
	default:
		return c.openAuto()
	}
}

// openAuto tries the first few USB devices and then the pan-tilt camera.
func (c *cameraImpl) openAuto() (*gocv.VideoCapture, string, error) {
	for id := 0; id < DefaultAutoProbes; id++ {
		capture, name, err := openDevice(id)
		if err != nil {
			continue
		}
		if probe(capture) {
			return capture, name, nil
		}
		capture.Close()
	}

	if c.src.URL != "" {
		capture, name, err := openStream(Source{Kind: SourceMooer, URL: c.src.URL})
		if err == nil && probe(capture) {
			return capture, name, nil
		}
		if capture != nil {
			capture.Close()
		}
	}
	return nil, "", fmt.Errorf("%w: no usable camera found", ErrCameraNotOpen)
}

func openDevice(id int) (*gocv.VideoCapture, string, error) {
	capture, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, "", fmt.Errorf("open usb:%d: %w", id, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, "", fmt.Errorf("open usb:%d: %w", id, ErrCameraNotOpen)
	}
	return capture, Source{Kind: SourceUSB, Device: id}.String(), nil
}

// openStream prefers the FFmpeg backend for network streams.
func openStream(src Source) (*gocv.VideoCapture, string, error) {
	capture, err := gocv.OpenVideoCaptureWithAPI(src.URL, gocv.VideoCaptureFFmpeg)
	if err != nil || !capture.IsOpened() {
		if capture != nil {
			capture.Close()
		}
		capture, err = gocv.OpenVideoCapture(src.URL)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", src, err)
		}
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, "", fmt.Errorf("open %s: %w", src, ErrCameraNotOpen)
	}
	return capture, src.String(), nil
}

// probe reports whether the capture delivers a frame.
func probe(capture *gocv.VideoCapture) bool {
	mat := gocv.NewMat()
	defer mat.Close()
	return capture.Read(&mat) && !mat.Empty()
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("read frame from %s failed", c.opened)
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

func (c *cameraImpl) Resolution() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return 0, 0
	}
	return int(c.capture.Get(gocv.VideoCaptureFrameWidth)), int(c.capture.Get(gocv.VideoCaptureFrameHeight))
}

func (c *cameraImpl) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opened != "" {
		return c.opened
	}
	return c.src.String()
}

package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many frames were analyzed.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// PointingLandmarks returns a right hand pointing with the index finger,
// its tip at (x, y) in normalized frame coordinates.
func PointingLandmarks(x, y float64) HandLandmarks {
	lm := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	// Knuckles sit below and behind the fingertip.
	lm.Points[Wrist] = Point3D{X: x + 0.02, Y: y + 0.25}
	lm.Points[ThumbCMC] = Point3D{X: x + 0.06, Y: y + 0.22}
	lm.Points[ThumbMCP] = Point3D{X: x + 0.08, Y: y + 0.18}
	lm.Points[ThumbIP] = Point3D{X: x + 0.09, Y: y + 0.14}
	lm.Points[ThumbTip] = Point3D{X: x + 0.09, Y: y + 0.11}

	// Index finger extended up to the tip
	lm.Points[IndexMCP] = Point3D{X: x + 0.03, Y: y + 0.15}
	lm.Points[IndexPIP] = Point3D{X: x + 0.02, Y: y + 0.09}
	lm.Points[IndexDIP] = Point3D{X: x + 0.01, Y: y + 0.04}
	lm.Points[IndexTip] = Point3D{X: x, Y: y}

	// Remaining fingers curled into the palm
	for i, base := range []int{MiddleMCP, RingMCP, PinkyMCP} {
		off := float64(i) * 0.03
		lm.Points[base] = Point3D{X: x - off, Y: y + 0.16}
		lm.Points[base+1] = Point3D{X: x - off, Y: y + 0.12, Z: -0.04}
		lm.Points[base+2] = Point3D{X: x - off + 0.01, Y: y + 0.15, Z: -0.03}
		lm.Points[base+3] = Point3D{X: x - off + 0.02, Y: y + 0.18, Z: -0.01}
	}

	return lm
}

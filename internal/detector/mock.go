package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	faces []Detection
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]Detection(nil), m.faces...), nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// FrontalFace returns a detection whose landmarks sit on the canonical
// 112x112 alignment template shifted by (dx, dy) and scaled by s, with a
// box around them.
func FrontalFace(dx, dy, s float32) Detection {
	ref := [NumLandmarks]Point{
		{X: 38.2946, Y: 51.6963},
		{X: 73.5318, Y: 51.5014},
		{X: 56.0252, Y: 71.7366},
		{X: 41.5493, Y: 92.3655},
		{X: 70.7299, Y: 92.2041},
	}
	det := Detection{
		Box: Box{
			X1: dx,
			Y1: dy,
			X2: dx + 112*s,
			Y2: dy + 112*s,
		},
		Score: 0.99,
	}
	for i, p := range ref {
		det.Landmarks[i] = Point{X: dx + p.X*s, Y: dy + p.Y*s}
	}
	return det
}

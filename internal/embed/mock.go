package embed

import (
	"sync"

	"github.com/ayusman/facegate/internal/match"
	"gocv.io/x/gocv"
)

// MockExtractor returns queued features in order, repeating the last one.
type MockExtractor struct {
	mu       sync.Mutex
	features []match.Feature
	err      error
	calls    int
}

// NewMockExtractor creates a MockExtractor that returns features in turn.
func NewMockExtractor(features ...match.Feature) *MockExtractor {
	return &MockExtractor{features: features}
}

// Push appends features to the queue.
func (m *MockExtractor) Push(features ...match.Feature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = append(m.features, features...)
}

// SetError makes Extract fail with err.
func (m *MockExtractor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Extract ran.
func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Extract implements Extractor.
func (m *MockExtractor) Extract(face gocv.Mat) (match.Feature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if face.Empty() {
		return nil, ErrEmptyFace
	}
	if len(m.features) == 0 {
		return nil, ErrExtract
	}
	f := m.features[0]
	if len(m.features) > 1 {
		m.features = m.features[1:]
	}
	return append(match.Feature(nil), f...), nil
}

// Close is a no-op.
func (m *MockExtractor) Close() error {
	return nil
}

package engine

import (
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// MockBackend returns canned tensors. It counts concurrent Run calls so
// tests can check that Session serializes them.
type MockBackend struct {
	mu      sync.Mutex
	tensors []Tensor
	err     error

	active    atomic.Int32
	maxActive atomic.Int32
	runs      atomic.Int32
	closed    atomic.Bool

	// Hold, when set, is called inside Run while it is marked active.
	Hold func()
}

// NewMockBackend creates a MockBackend returning tensors.
func NewMockBackend(tensors ...Tensor) *MockBackend {
	return &MockBackend{tensors: tensors}
}

// SetTensors replaces the tensors returned by Run.
func (m *MockBackend) SetTensors(tensors ...Tensor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tensors = tensors
}

// SetError makes Run fail with err.
func (m *MockBackend) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Run implements Backend.
func (m *MockBackend) Run(blob gocv.Mat) ([]Tensor, error) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		peak := m.maxActive.Load()
		if n <= peak || m.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	m.runs.Add(1)

	if m.Hold != nil {
		m.Hold()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Tensor, len(m.tensors))
	for i, t := range m.tensors {
		out[i] = Tensor{
			Name:  t.Name,
			Shape: append([]int(nil), t.Shape...),
			Data:  append([]float32(nil), t.Data...),
		}
	}
	return out, nil
}

// Close implements Backend.
func (m *MockBackend) Close() error {
	m.closed.Store(true)
	return nil
}

// MaxConcurrent returns the highest number of overlapping Run calls seen.
func (m *MockBackend) MaxConcurrent() int {
	return int(m.maxActive.Load())
}

// Runs returns the number of Run calls.
func (m *MockBackend) Runs() int {
	return int(m.runs.Load())
}

// Closed reports whether Close was called.
func (m *MockBackend) Closed() bool {
	return m.closed.Load()
}

// Package engine runs neural network models behind a serialized session.
//
// Inference runtimes hold mutable per-model state between setting an input
// and reading the outputs, so a Backend must never be driven from two
// goroutines at once. Session owns one Backend and exposes the only entry
// point into it.
package engine

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrClosed is returned by Infer after Close.
	ErrClosed = errors.New("engine: session closed")

	// ErrOutputMissing is returned when a named output is not produced.
	ErrOutputMissing = errors.New("engine: output missing")

	// ErrUnknownBackend is returned by NewBackend for an unsupported name.
	ErrUnknownBackend = errors.New("engine: unknown backend")
)

// Tensor is a named float32 output copied out of the runtime.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// Backend runs a model on a preprocessed NCHW float32 blob. Implementations
// are not safe for concurrent use.
type Backend interface {
	Run(blob gocv.Mat) ([]Tensor, error)
	Close() error
}

// Session serializes access to a Backend. The "set input, run, read
// outputs" sequence happens under one lock and the returned tensors are
// copies owned by the caller.
type Session struct {
	mu      sync.Mutex
	backend Backend
	closed  bool
}

// NewSession wraps backend. The session takes ownership and closes the
// backend on Close.
func NewSession(backend Backend) *Session {
	return &Session{backend: backend}
}

// Infer runs the model on blob. Concurrent callers are queued.
func (s *Session) Infer(blob gocv.Mat) ([]Tensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.backend.Run(blob)
}

// Close waits for a running inference and releases the backend.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.backend.Close()
}

// Find returns the tensor called name.
func Find(tensors []Tensor, name string) (Tensor, error) {
	for _, t := range tensors {
		if t.Name == name {
			return t, nil
		}
	}
	return Tensor{}, errors.Wrapf(ErrOutputMissing, "%q", name)
}

// OutputSpec names a model output and its shape. The shape is only needed
// by runtimes that preallocate outputs.
type OutputSpec struct {
	Name  string
	Shape []int64
}

// ModelConfig selects and configures a backend for one model file.
type ModelConfig struct {
	// Backend is "dnn" (OpenCV) or "ort" (onnxruntime).
	Backend   string
	Path      string
	InputName string
	// InputShape is NCHW and is required by the ort backend.
	InputShape []int64
	Outputs    []OutputSpec
	// Threads caps intra-op threads for ort; 0 keeps the runtime default.
	Threads int
}

func (c ModelConfig) outputNames() []string {
	names := make([]string, len(c.Outputs))
	for i, o := range c.Outputs {
		names[i] = o.Name
	}
	return names
}

// NewBackend opens cfg.Path with the backend named by cfg.Backend.
func NewBackend(cfg ModelConfig) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "dnn", "opencv":
		return NewDNNBackend(cfg)
	case "ort", "onnxruntime":
		return NewORTBackend(cfg)
	}
	return nil, errors.Wrap(ErrUnknownBackend, cfg.Backend)
}

// Open is NewBackend wrapped in a Session.
func Open(cfg ModelConfig) (*Session, error) {
	b, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return NewSession(b), nil
}

// Package embed turns aligned face crops into L2-normalized feature vectors.
package embed

import (
	"errors"
	"fmt"
	"image"

	"github.com/ayusman/facegate/internal/engine"
	"github.com/ayusman/facegate/internal/match"
	"gocv.io/x/gocv"
)

var (
	// ErrEmptyFace is returned when Extract is given an empty Mat.
	ErrEmptyFace = errors.New("empty face image")

	// ErrExtract is returned when the model output is not a usable feature.
	ErrExtract = errors.New("feature extraction failed")
)

// Extractor computes the feature vector of an aligned face.
type Extractor interface {
	Extract(face gocv.Mat) (match.Feature, error)
	Close() error
}

// Config describes the embedding model.
type Config struct {
	// Dim is the length of the feature vector the model produces.
	Dim int `yaml:"dim"`

	// Size is the square input resolution.
	Size int `yaml:"size"`

	// Output names the embedding tensor. Empty takes the first output.
	Output string `yaml:"output"`

	Mean   float64 `yaml:"mean"`
	Scale  float64 `yaml:"scale"`
	SwapRB bool    `yaml:"swap_rb"`
}

// DefaultConfig returns the settings of a 112x112 ArcFace-style model.
func DefaultConfig() Config {
	return Config{
		Dim:    512,
		Size:   112,
		Output: "output",
		Mean:   127.5,
		Scale:  1 / 127.5,
		SwapRB: true,
	}
}

// Net extracts features with a model run through an engine.Session.
type Net struct {
	session *engine.Session
	cfg     Config
}

// NewNet builds an extractor around session and takes ownership of it.
func NewNet(session *engine.Session, cfg Config) (*Net, error) {
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dim)
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("input size must be positive, got %d", cfg.Size)
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	return &Net{session: session, cfg: cfg}, nil
}

// ModelConfig returns the engine config for an embedding model at path.
func ModelConfig(backend, path string, cfg Config) engine.ModelConfig {
	s := int64(cfg.Size)
	return engine.ModelConfig{
		Backend:    backend,
		Path:       path,
		InputName:  "input",
		InputShape: []int64{1, 3, s, s},
		Outputs:    []engine.OutputSpec{{Name: cfg.Output, Shape: []int64{1, int64(cfg.Dim)}}},
	}
}

// Dim returns the feature length.
func (n *Net) Dim() int {
	return n.cfg.Dim
}

// Extract implements Extractor.
func (n *Net) Extract(face gocv.Mat) (match.Feature, error) {
	if face.Empty() {
		return nil, ErrEmptyFace
	}

	size := image.Pt(n.cfg.Size, n.cfg.Size)
	mean := gocv.NewScalar(n.cfg.Mean, n.cfg.Mean, n.cfg.Mean, 0)
	blob := gocv.BlobFromImage(face, n.cfg.Scale, size, mean, n.cfg.SwapRB, false)
	defer blob.Close()

	tensors, err := n.session.Infer(blob)
	if err != nil {
		return nil, fmt.Errorf("embedding inference: %w", err)
	}

	out, err := n.output(tensors)
	if err != nil {
		return nil, err
	}
	return Finish(out.Data, n.cfg.Dim)
}

func (n *Net) output(tensors []engine.Tensor) (engine.Tensor, error) {
	if n.cfg.Output != "" {
		if t, err := engine.Find(tensors, n.cfg.Output); err == nil {
			return t, nil
		}
	}
	if len(tensors) == 0 {
		return engine.Tensor{}, fmt.Errorf("%w: model produced no output", ErrExtract)
	}
	return tensors[0], nil
}

// Finish validates a raw model output of the expected dimension and
// returns it normalized.
func Finish(raw []float32, dim int) (match.Feature, error) {
	if len(raw) != dim {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrExtract, len(raw), dim)
	}
	f := match.Feature(raw)
	if !f.Finite() {
		return nil, fmt.Errorf("%w: non-finite feature values", ErrExtract)
	}
	if f.Norm() < 1e-6 {
		return nil, fmt.Errorf("%w: zero feature vector", ErrExtract)
	}
	return match.Normalize(f), nil
}

// Close releases the inference session.
func (n *Net) Close() error {
	return n.session.Close()
}

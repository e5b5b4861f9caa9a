package engine

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// SharedLibraryEnv names the variable that points at libonnxruntime.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var (
	ortOnce sync.Once
	ortErr  error
)

// initORT loads the onnxruntime shared library once per process.
func initORT() error {
	ortOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if p := os.Getenv(SharedLibraryEnv); p != "" {
			if _, err := os.Stat(p); err != nil {
				ortErr = errors.Wrapf(err, "engine: onnxruntime library %s", p)
				return
			}
			ort.SetSharedLibraryPath(p)
		}
		ortErr = errors.Wrap(ort.InitializeEnvironment(), "engine: initialize onnxruntime")
	})
	return ortErr
}

// ORTBackend runs an ONNX model with onnxruntime. Input and output tensors
// are allocated once with fixed shapes and reused for every run.
type ORTBackend struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
	names   []string
}

// NewORTBackend creates an onnxruntime session for cfg. cfg.InputShape and
// every output shape must be set.
func NewORTBackend(cfg ModelConfig) (*ORTBackend, error) {
	if len(cfg.InputShape) == 0 {
		return nil, errors.New("engine: ort backend needs an input shape")
	}
	if len(cfg.Outputs) == 0 {
		return nil, errors.New("engine: ort backend needs output specs")
	}
	if err := initORT(); err != nil {
		return nil, err
	}

	b := &ORTBackend{names: cfg.outputNames()}

	var err error
	b.input, err = ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape...))
	if err != nil {
		return nil, errors.Wrap(err, "engine: create input tensor")
	}

	values := make([]ort.Value, 0, len(cfg.Outputs))
	for _, o := range cfg.Outputs {
		if len(o.Shape) == 0 {
			b.Close()
			return nil, errors.Errorf("engine: output %s has no shape", o.Name)
		}
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(o.Shape...))
		if err != nil {
			b.Close()
			return nil, errors.Wrapf(err, "engine: create output tensor %s", o.Name)
		}
		b.outputs = append(b.outputs, t)
		values = append(values, t)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		b.Close()
		return nil, errors.Wrap(err, "engine: create session options")
	}
	defer options.Destroy()

	if cfg.Threads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.Threads); err != nil {
			b.Close()
			return nil, errors.Wrap(err, "engine: set intra-op threads")
		}
	}

	inputName := cfg.InputName
	if inputName == "" {
		inputName = "input"
	}

	b.session, err = ort.NewAdvancedSession(
		cfg.Path,
		[]string{inputName},
		b.names,
		[]ort.Value{b.input},
		values,
		options,
	)
	if err != nil {
		b.Close()
		return nil, errors.Wrapf(err, "engine: create session for %s", cfg.Path)
	}

	return b, nil
}

// Run implements Backend.
func (b *ORTBackend) Run(blob gocv.Mat) ([]Tensor, error) {
	src, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "engine: read input blob")
	}
	dst := b.input.GetData()
	if len(src) != len(dst) {
		return nil, errors.Errorf("engine: input blob has %d values, model expects %d", len(src), len(dst))
	}
	copy(dst, src)

	if err := b.session.Run(); err != nil {
		return nil, errors.Wrap(err, "engine: run")
	}

	tensors := make([]Tensor, len(b.outputs))
	for i, t := range b.outputs {
		shape := t.GetShape()
		dims := make([]int, len(shape))
		for j, d := range shape {
			dims[j] = int(d)
		}
		tensors[i] = Tensor{
			Name:  b.names[i],
			Shape: dims,
			Data:  append([]float32(nil), t.GetData()...),
		}
	}
	return tensors, nil
}

// Close implements Backend. It is safe on a partially built backend.
func (b *ORTBackend) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if b.session != nil {
		keep(b.session.Destroy())
		b.session = nil
	}
	if b.input != nil {
		keep(b.input.Destroy())
		b.input = nil
	}
	for _, t := range b.outputs {
		keep(t.Destroy())
	}
	b.outputs = nil
	return first
}

package detector

import (
	"errors"
	"fmt"
	"image"

	"github.com/ayusman/facegate/internal/engine"
	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when Detect is given an empty Mat.
var ErrEmptyFrame = errors.New("empty frame")

// RetinaFace detects faces with a RetinaFace model run through an
// engine.Session. The anchor table is built once for the configured input
// size.
type RetinaFace struct {
	session *engine.Session
	cfg     Config
	anchors *Anchors
}

// NewRetinaFace builds a detector around session. The detector takes
// ownership of the session.
func NewRetinaFace(session *engine.Session, cfg Config) (*RetinaFace, error) {
	anchors, err := NewAnchors(cfg.Anchors)
	if err != nil {
		return nil, err
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	return &RetinaFace{session: session, cfg: cfg, anchors: anchors}, nil
}

// ModelConfig returns the engine config matching the detector's layout.
// The output shapes are only used by runtimes that preallocate outputs.
func ModelConfig(backend, path string, cfg Config) engine.ModelConfig {
	n := int64(AnchorCount(cfg.Anchors))
	return engine.ModelConfig{
		Backend:    backend,
		Path:       path,
		InputName:  "input",
		InputShape: []int64{1, 3, int64(cfg.Anchors.Height), int64(cfg.Anchors.Width)},
		Outputs: []engine.OutputSpec{
			{Name: cfg.LocOutput, Shape: []int64{1, n, locWidth}},
			{Name: cfg.ConfOutput, Shape: []int64{1, n, confWidth}},
			{Name: cfg.LandmOutput, Shape: []int64{1, n, landmWidth}},
		},
	}
}

// Anchors returns the detector's anchor table.
func (r *RetinaFace) Anchors() *Anchors {
	return r.anchors
}

// Detect implements Detector.
func (r *RetinaFace) Detect(frame *gocv.Mat) ([]Detection, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	size := image.Pt(r.cfg.Anchors.Width, r.cfg.Anchors.Height)
	mean := gocv.NewScalar(r.cfg.Mean[0], r.cfg.Mean[1], r.cfg.Mean[2], 0)
	blob := gocv.BlobFromImage(*frame, r.cfg.Scale, size, mean, r.cfg.SwapRB, false)
	defer blob.Close()

	tensors, err := r.session.Infer(blob)
	if err != nil {
		return nil, fmt.Errorf("retinaface inference: %w", err)
	}

	out, err := r.outputs(tensors)
	if err != nil {
		return nil, err
	}

	cands, err := Decode(out, r.anchors, frame.Cols(), frame.Rows(), r.cfg.Decode)
	if err != nil {
		return nil, fmt.Errorf("retinaface decode: %w", err)
	}
	return Suppress(cands, r.cfg.IoUThreshold), nil
}

func (r *RetinaFace) outputs(tensors []engine.Tensor) (Outputs, error) {
	loc, err := engine.Find(tensors, r.cfg.LocOutput)
	if err != nil {
		return Outputs{}, err
	}
	conf, err := engine.Find(tensors, r.cfg.ConfOutput)
	if err != nil {
		return Outputs{}, err
	}
	landm, err := engine.Find(tensors, r.cfg.LandmOutput)
	if err != nil {
		return Outputs{}, err
	}
	return Outputs{Loc: loc.Data, Conf: conf.Data, Landm: landm.Data}, nil
}

// Close releases the inference session.
func (r *RetinaFace) Close() error {
	return r.session.Close()
}

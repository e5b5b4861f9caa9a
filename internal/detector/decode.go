package detector

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

var (
	// ErrTensorShape is returned when an output tensor does not line up
	// with the anchor table.
	ErrTensorShape = errors.New("tensor shape does not match anchors")

	// ErrInvalidFrame is returned for a frame with non-positive dimensions.
	ErrInvalidFrame = errors.New("invalid frame size")
)

// Per-anchor widths of the three RetinaFace outputs.
const (
	locWidth   = 4
	confWidth  = 2
	landmWidth = 2 * NumLandmarks
)

// Outputs holds the raw RetinaFace tensors, flattened row-major:
// Loc is [N,4] (dx, dy, dw, dh), Conf is [N,2] (background, face) and
// Landm is [N,10] (five dx, dy pairs).
type Outputs struct {
	Loc   []float32
	Conf  []float32
	Landm []float32
}

// DecodeParams controls box decoding.
type DecodeParams struct {
	// Variance is the (center, size) scaling used when the model was trained.
	Variance [2]float32

	// ConfThreshold is the minimum face score a candidate must reach.
	ConfThreshold float32
}

// DefaultDecodeParams returns the RetinaFace training variances and a 0.5
// confidence cut.
func DefaultDecodeParams() DecodeParams {
	return DecodeParams{
		Variance:      [2]float32{0.1, 0.2},
		ConfThreshold: 0.5,
	}
}

func checkWidth(name string, got, n, width int) error {
	if got != n*width {
		return fmt.Errorf("%w: %s has %d values, want %d (%d anchors x %d)",
			ErrTensorShape, name, got, n*width, n, width)
	}
	return nil
}

// Decode converts the model outputs into candidate detections in the pixel
// space of a frameW x frameH frame. Only anchors whose face score reaches
// p.ConfThreshold are emitted, in anchor order.
func Decode(out Outputs, anchors *Anchors, frameW, frameH int, p DecodeParams) ([]Detection, error) {
	if frameW <= 0 || frameH <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, frameW, frameH)
	}

	if anchors == nil {
		return nil, fmt.Errorf("%w: no anchor table", ErrTensorShape)
	}

	n := anchors.Len()
	if err := checkWidth("loc", len(out.Loc), n, locWidth); err != nil {
		return nil, err
	}
	if err := checkWidth("conf", len(out.Conf), n, confWidth); err != nil {
		return nil, err
	}
	if err := checkWidth("landm", len(out.Landm), n, landmWidth); err != nil {
		return nil, err
	}

	scaleW := float32(frameW)
	scaleH := float32(frameH)
	v0, v1 := p.Variance[0], p.Variance[1]

	var dets []Detection
	for i := 0; i < n; i++ {
		score := out.Conf[i*confWidth+1]
		// NaN scores fail this comparison too.
		if !(score >= p.ConfThreshold) {
			continue
		}

		a := anchors.At(i)
		loc := out.Loc[i*locWidth : (i+1)*locWidth]

		cx := a.CX + loc[0]*v0*a.W
		cy := a.CY + loc[1]*v0*a.H
		w := a.W * math32.Exp(loc[2]*v1)
		h := a.H * math32.Exp(loc[3]*v1)

		x1 := (cx - w/2) * scaleW
		y1 := (cy - h/2) * scaleH

		det := Detection{
			Box: Box{
				X1: x1,
				Y1: y1,
				X2: x1 + w*scaleW,
				Y2: y1 + h*scaleH,
			},
			Score: clamp01(score),
		}

		landm := out.Landm[i*landmWidth : (i+1)*landmWidth]
		for k := 0; k < NumLandmarks; k++ {
			det.Landmarks[k] = Point{
				X: (a.CX + landm[2*k]*v0*a.W) * scaleW,
				Y: (a.CY + landm[2*k+1]*v0*a.H) * scaleH,
			}
		}

		dets = append(dets, det)
	}

	return dets, nil
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Package align warps a detected face onto the canonical 112x112 pose
// expected by the embedding model.
package align

import (
	"image"
	"image/color"

	"github.com/ayusman/facegate/internal/detector"
	"gocv.io/x/gocv"
)

// FaceSize is the side of the aligned face in pixels.
const FaceSize = 112

// Reference holds the canonical landmark positions in a FaceSize x FaceSize
// crop, in detector landmark order.
var Reference = detector.Landmarks{
	{X: 38.2946, Y: 51.6963},
	{X: 73.5318, Y: 51.5014},
	{X: 56.0252, Y: 71.7366},
	{X: 41.5493, Y: 92.3655},
	{X: 70.7299, Y: 92.2041},
}

// Aligner produces aligned face crops. The zero value is not usable; use
// New.
type Aligner struct {
	size      int
	reference detector.Landmarks
}

// New returns an Aligner targeting Reference at FaceSize.
func New() *Aligner {
	return &Aligner{size: FaceSize, reference: Reference}
}

// Size returns the side of the produced crops.
func (a *Aligner) Size() int {
	return a.size
}

// Estimate returns the transform from lm to the reference template.
func (a *Aligner) Estimate(lm detector.Landmarks) (Transform, bool) {
	return EstimateSimilarity(lm, a.reference)
}

// Align resamples frame so that lm lands on the reference template. The
// returned Mat is size x size, owned by the caller, who must Close it.
// The boolean is false when the frame is empty or the landmarks cannot be
// fitted; the Mat is then empty but must still be closed.
func (a *Aligner) Align(frame gocv.Mat, lm detector.Landmarks) (gocv.Mat, bool) {
	if frame.Empty() {
		return gocv.NewMat(), false
	}
	t, ok := a.Estimate(lm)
	if !ok {
		return gocv.NewMat(), false
	}
	return a.Warp(frame, t), true
}

// Warp applies t to frame with bilinear sampling and a black border.
func (a *Aligner) Warp(frame gocv.Mat, t Transform) gocv.Mat {
	m := t.Matrix()
	mat := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer mat.Close()
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			mat.SetDoubleAt(r, c, m[r][c])
		}
	}

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(frame, &dst, mat, image.Pt(a.size, a.size),
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	return dst
}

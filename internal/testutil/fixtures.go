// Package testutil builds synthetic model outputs, frames and embeddings
// for tests.
package testutil

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"

	"gocv.io/x/gocv"
)

// Tensors is a flattened set of RetinaFace outputs for n anchors. Every
// anchor starts as confident background with zero regression.
type Tensors struct {
	N     int
	Loc   []float32
	Conf  []float32
	Landm []float32
}

// NewTensors returns background-only outputs for n anchors.
func NewTensors(n int) *Tensors {
	t := &Tensors{
		N:     n,
		Loc:   make([]float32, n*4),
		Conf:  make([]float32, n*2),
		Landm: make([]float32, n*10),
	}
	for i := 0; i < n; i++ {
		t.Conf[i*2] = 1
	}
	return t
}

// SetFace gives anchor i a face score.
func (t *Tensors) SetFace(i int, score float32) *Tensors {
	t.Conf[i*2] = 1 - score
	t.Conf[i*2+1] = score
	return t
}

// SetLoc sets the box regression of anchor i.
func (t *Tensors) SetLoc(i int, dx, dy, dw, dh float32) *Tensors {
	copy(t.Loc[i*4:], []float32{dx, dy, dw, dh})
	return t
}

// SetLandm sets the landmark regression of anchor i.
func (t *Tensors) SetLandm(i int, offsets [10]float32) *Tensors {
	copy(t.Landm[i*10:], offsets[:])
	return t
}

// Frame returns a w x h BGR frame with a horizontal gradient and a bright
// disc in the middle, so warps and blobs have something to move.
func Frame(w, h int) gocv.Mat {
	m := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / max(w-1, 1))
			m.SetUCharAt3(y, x, 0, v)
			m.SetUCharAt3(y, x, 1, uint8(y*255/max(h-1, 1)))
			m.SetUCharAt3(y, x, 2, 128)
		}
	}
	gocv.Circle(&m, image.Pt(w/2, h/2), min(w, h)/6, color.RGBA{255, 255, 255, 0}, -1)
	return m
}

// BlankFrame returns a black w x h BGR frame.
func BlankFrame(w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8UC3)
}

// EncodeJPEG encodes m as JPEG bytes.
func EncodeJPEG(m gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, m)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Feature returns a deterministic unit vector of length dim.
func Feature(dim int, seed int64) []float32 {
	r := rand.New(rand.NewSource(seed))
	f := make([]float32, dim)
	var sum float64
	for i := range f {
		v := r.Float64()*2 - 1
		f[i] = float32(v)
		sum += v * v
	}
	n := math.Sqrt(sum)
	for i := range f {
		f[i] = float32(float64(f[i]) / n)
	}
	return f
}

// Axis returns the unit vector along axis i of a dim-dimensional space.
// Distinct axes are orthogonal.
func Axis(dim, i int) []float32 {
	f := make([]float32, dim)
	f[i] = 1
	return f
}

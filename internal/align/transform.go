package align

import (
	"math"

	"github.com/ayusman/facegate/internal/detector"
)

// degenerateEps bounds how flat the landmark spread may be, relative to its
// size, before the fit is refused.
const degenerateEps = 1e-6

// Transform is a 2D similarity: uniform scale, rotation and translation.
//
//	x' = A*x - B*y + TX
//	y' = B*x + A*y + TY
type Transform struct {
	A, B   float64
	TX, TY float64
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{A: 1}
}

// Apply maps p through the transform.
func (t Transform) Apply(p detector.Point) detector.Point {
	x, y := float64(p.X), float64(p.Y)
	return detector.Point{
		X: float32(t.A*x - t.B*y + t.TX),
		Y: float32(t.B*x + t.A*y + t.TY),
	}
}

// Scale returns the uniform scale factor.
func (t Transform) Scale() float64 {
	return math.Hypot(t.A, t.B)
}

// Angle returns the rotation in radians.
func (t Transform) Angle() float64 {
	return math.Atan2(t.B, t.A)
}

// Matrix returns the 2x3 affine matrix in OpenCV layout.
func (t Transform) Matrix() [2][3]float64 {
	return [2][3]float64{
		{t.A, -t.B, t.TX},
		{t.B, t.A, t.TY},
	}
}

// EstimateSimilarity fits the similarity transform that maps src onto dst
// with the least squared error. It returns false when src is degenerate:
// coincident or collinear points, non-finite coordinates, or a fit without
// a usable scale.
func EstimateSimilarity(src, dst [detector.NumLandmarks]detector.Point) (Transform, bool) {
	const n = float64(detector.NumLandmarks)

	var msx, msy, mdx, mdy float64
	for i := range src {
		sx, sy := float64(src[i].X), float64(src[i].Y)
		dx, dy := float64(dst[i].X), float64(dst[i].Y)
		if !finite(sx) || !finite(sy) || !finite(dx) || !finite(dy) {
			return Transform{}, false
		}
		msx += sx
		msy += sy
		mdx += dx
		mdy += dy
	}
	msx /= n
	msy /= n
	mdx /= n
	mdy /= n

	// Centered sums. sxx, syy and sxy describe the source spread; num*
	// are the cross terms of the normal equations.
	var sxx, syy, sxy, numA, numB float64
	for i := range src {
		sx := float64(src[i].X) - msx
		sy := float64(src[i].Y) - msy
		dx := float64(dst[i].X) - mdx
		dy := float64(dst[i].Y) - mdy

		sxx += sx * sx
		syy += sy * sy
		sxy += sx * sy
		numA += sx*dx + sy*dy
		numB += sx*dy - sy*dx
	}

	spread := sxx + syy
	if spread <= 0 {
		return Transform{}, false
	}
	// The smaller principal axis of the points collapses for a line.
	if sxx*syy-sxy*sxy <= degenerateEps*spread*spread {
		return Transform{}, false
	}

	t := Transform{
		A: numA / spread,
		B: numB / spread,
	}
	t.TX = mdx - (t.A*msx - t.B*msy)
	t.TY = mdy - (t.B*msx + t.A*msy)

	s := t.Scale()
	if !finite(s) || s < degenerateEps {
		return Transform{}, false
	}
	return t, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Package match compares face embeddings and applies the enroll and
// recognize policies against a collection of stored faces.
package match

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chewxy/math32"
)

// minNorm is the norm below which a vector is treated as zero.
const minNorm = 1e-6

// Feature is a face embedding. Stored and compared features are
// L2-normalized.
type Feature []float32

// Dim returns the dimensionality of f.
func (f Feature) Dim() int {
	return len(f)
}

// Finite reports whether every value of f is a finite number.
func (f Feature) Finite() bool {
	for _, v := range f {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Norm returns the Euclidean norm of f.
func (f Feature) Norm() float32 {
	var sum float32
	for _, v := range f {
		sum += v * v
	}
	return math32.Sqrt(sum)
}

// Normalize returns a unit-length copy of f. A zero vector is returned as
// a zero copy.
func Normalize(f Feature) Feature {
	out := make(Feature, len(f))
	n := f.Norm()
	if n < minNorm {
		copy(out, f)
		return out
	}
	for i, v := range f {
		out[i] = v / n
	}
	return out
}

// cosine returns the cosine similarity of a and b and whether it is
// defined for them.
func cosine(a, b Feature) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if !finite(dot) || !finite(na) || !finite(nb) {
		return 0, false
	}
	na = math.Sqrt(na)
	nb = math.Sqrt(nb)
	if na < minNorm || nb < minNorm {
		return 0, false
	}

	s := dot / (na * nb)
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return s, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Similarity returns the cosine similarity of a and b in [-1, 1]. It is 0
// when either vector is empty, near zero or not finite, or when their
// lengths differ.
func Similarity(a, b Feature) float64 {
	s, _ := cosine(a, b)
	return s
}

// EncodeFeature packs f as little-endian float32 values.
func EncodeFeature(f Feature) []byte {
	buf := make([]byte, 4*len(f))
	for i, v := range f {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeFeature unpacks a blob written by EncodeFeature.
func DecodeFeature(b []byte) (Feature, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("feature blob of %d bytes is not a float32 array", len(b))
	}
	f := make(Feature, len(b)/4)
	for i := range f {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return f, nil
}

package detector

import (
	"sort"

	"github.com/chewxy/math32"
)

// DefaultIoUThreshold is the overlap above which a lower-scoring box is
// suppressed.
const DefaultIoUThreshold float32 = 0.4

// IoU returns the intersection-over-union of two boxes, or 0 when their
// union is empty.
func IoU(a, b Box) float32 {
	ix1 := math32.Max(a.X1, b.X1)
	iy1 := math32.Max(a.Y1, b.Y1)
	ix2 := math32.Min(a.X2, b.X2)
	iy2 := math32.Min(a.Y2, b.Y2)

	inter := math32.Max(0, ix2-ix1) * math32.Max(0, iy2-iy1)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Suppress applies greedy non-maximum suppression. Candidates are ranked by
// descending score, equal scores keeping their input order, and a candidate
// is dropped when its IoU with an already kept box exceeds iouThreshold.
// The result is in descending score order; cands is left untouched.
func Suppress(cands []Detection, iouThreshold float32) []Detection {
	if len(cands) == 0 {
		return nil
	}

	sorted := make([]Detection, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	kept := make([]Detection, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && IoU(sorted[i].Box, sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

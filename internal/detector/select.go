package detector

import (
	"fmt"
	"strings"
)

// SelectionPolicy decides which face of a frame is used for enrollment or
// recognition.
type SelectionPolicy int

const (
	// SelectLargest picks the face with the largest box, the one closest
	// to the camera in a single-subject kiosk.
	SelectLargest SelectionPolicy = iota
	// SelectMostConfident picks the face with the highest score.
	SelectMostConfident
	// SelectNearestCenter picks the face whose box center is closest to
	// the frame center.
	SelectNearestCenter
)

// String returns the config name of the policy.
func (p SelectionPolicy) String() string {
	switch p {
	case SelectLargest:
		return "largest"
	case SelectMostConfident:
		return "confidence"
	case SelectNearestCenter:
		return "center"
	}
	return fmt.Sprintf("SelectionPolicy(%d)", int(p))
}

// ParseSelectionPolicy maps a config name to a policy. An empty name
// selects SelectLargest.
func ParseSelectionPolicy(s string) (SelectionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "largest", "area":
		return SelectLargest, nil
	case "confidence", "score":
		return SelectMostConfident, nil
	case "center", "centre":
		return SelectNearestCenter, nil
	}
	return SelectLargest, fmt.Errorf("unknown selection policy %q", s)
}

// Select returns the detection chosen by policy. Ties go to the detection
// that comes first. The boolean is false when dets is empty, which means
// there is no face in the frame. frameW and frameH are only used by
// SelectNearestCenter.
func Select(dets []Detection, policy SelectionPolicy, frameW, frameH int) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}

	best := 0
	switch policy {
	case SelectMostConfident:
		for i := 1; i < len(dets); i++ {
			if dets[i].Score > dets[best].Score {
				best = i
			}
		}
	case SelectNearestCenter:
		fc := Point{X: float32(frameW) / 2, Y: float32(frameH) / 2}
		bestDist := centerDist2(dets[0], fc)
		for i := 1; i < len(dets); i++ {
			if d := centerDist2(dets[i], fc); d < bestDist {
				best, bestDist = i, d
			}
		}
	default:
		for i := 1; i < len(dets); i++ {
			if dets[i].Box.Area() > dets[best].Box.Area() {
				best = i
			}
		}
	}
	return dets[best], true
}

func centerDist2(d Detection, p Point) float32 {
	c := d.Box.Center()
	dx := c.X - p.X
	dy := c.Y - p.Y
	return dx*dx + dy*dy
}

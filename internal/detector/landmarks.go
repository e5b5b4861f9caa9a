// Package detector turns RetinaFace output tensors into face detections.
package detector

import (
	"image"

	"github.com/chewxy/math32"
)

// Face landmark indices in RetinaFace output order.
const (
	LeftEye      = 0
	RightEye     = 1
	Nose         = 2
	LeftMouth    = 3
	RightMouth   = 4
	NumLandmarks = 5
)

// Point is a 2D point in pixel coordinates.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Landmarks holds the five facial keypoints of a detection.
type Landmarks [NumLandmarks]Point

// Box is an axis-aligned rectangle given by its top-left and bottom-right corners.
type Box struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// Width returns the box width, or 0 for an inverted box.
func (b Box) Width() float32 {
	return math32.Max(0, b.X2-b.X1)
}

// Height returns the box height, or 0 for an inverted box.
func (b Box) Height() float32 {
	return math32.Max(0, b.Y2-b.Y1)
}

// Area returns the box area.
func (b Box) Area() float32 {
	return b.Width() * b.Height()
}

// Center returns the box center.
func (b Box) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Rect rounds the box to an integer rectangle, for drawing.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math32.Round(b.X1)), int(math32.Round(b.Y1)),
		int(math32.Round(b.X2)), int(math32.Round(b.Y2)),
	)
}

// Detection is a single face found in a frame.
type Detection struct {
	Box       Box       `json:"box"`
	Score     float32   `json:"score"`
	Landmarks Landmarks `json:"landmarks"`
}

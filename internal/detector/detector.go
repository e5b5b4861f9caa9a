package detector

import "gocv.io/x/gocv"

// Detector defines the interface for face detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the faces found in it,
	// after suppression, in descending score order. Returns an empty
	// slice if no faces are detected.
	Detect(frame *gocv.Mat) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face detection.
type Config struct {
	// Anchors is the model input layout.
	Anchors AnchorConfig

	// Decode holds the variances and the confidence threshold (default 0.5).
	Decode DecodeParams

	// IoUThreshold is the suppression overlap threshold (default 0.4).
	IoUThreshold float32

	// Mean is subtracted per channel before inference. Scale multiplies
	// the result. SwapRB converts BGR frames to RGB.
	Mean   [3]float64
	Scale  float64
	SwapRB bool

	// Output names of the location, score and landmark tensors.
	LocOutput   string
	ConfOutput  string
	LandmOutput string
}

// DefaultConfig returns a Config for the 320x320 RetinaFace ONNX export.
func DefaultConfig() Config {
	return Config{
		Anchors:      DefaultAnchorConfig(),
		Decode:       DefaultDecodeParams(),
		IoUThreshold: DefaultIoUThreshold,
		Mean:         [3]float64{104, 117, 123},
		Scale:        1.0,
		SwapRB:       false,
		LocOutput:    "loc",
		ConfOutput:   "conf",
		LandmOutput:  "landms",
	}
}

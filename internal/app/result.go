package app

import (
	"fmt"
	"time"

	"github.com/ayusman/facegate/internal/detector"
)

// Kind is the operation that produced a Result.
type Kind string

const (
	KindEnroll    Kind = "enroll"
	KindRecognize Kind = "recognize"
)

// Outcome is the decision reached for one enroll or recognize request.
type Outcome int

const (
	// OutcomeNotReady means a model or the face store is unavailable.
	OutcomeNotReady Outcome = iota
	// OutcomeNoFace means the detector found nothing in the frame.
	OutcomeNoFace
	// OutcomeAlignFailed means the selected face's landmarks were unusable.
	OutcomeAlignFailed
	// OutcomeExtractFailed means the embedding model gave no usable feature.
	OutcomeExtractFailed
	// OutcomeDuplicate means an enrollment matched an existing face.
	OutcomeDuplicate
	// OutcomeEnrolled means a new face was stored.
	OutcomeEnrolled
	// OutcomeUnknown means no stored face matched.
	OutcomeUnknown
	// OutcomeRecognized means a stored face matched.
	OutcomeRecognized
	// OutcomeError means the request failed for another reason.
	OutcomeError
)

var outcomeNames = [...]string{
	OutcomeNotReady:      "not_ready",
	OutcomeNoFace:        "no_face",
	OutcomeAlignFailed:   "align_failed",
	OutcomeExtractFailed: "extract_failed",
	OutcomeDuplicate:     "duplicate",
	OutcomeEnrolled:      "enrolled",
	OutcomeUnknown:       "unknown",
	OutcomeRecognized:    "recognized",
	OutcomeError:         "error",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome name.
func (o *Outcome) UnmarshalText(b []byte) error {
	for i, name := range outcomeNames {
		if name == string(b) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// Success reports whether the request reached its goal.
func (o Outcome) Success() bool {
	return o == OutcomeEnrolled || o == OutcomeRecognized
}

// Result is what an enroll or recognize request produced.
type Result struct {
	Kind       Kind                `json:"kind"`
	Outcome    Outcome             `json:"outcome"`
	FaceID     int64               `json:"face_id"`
	Similarity float64             `json:"similarity"`
	Detection  *detector.Detection `json:"detection,omitempty"`
	Message    string              `json:"message"`
	Time       time.Time           `json:"time"`
}

// message is the prompt shown to the person in front of the camera.
func message(kind Kind, o Outcome, faceID int64) string {
	switch o {
	case OutcomeNotReady:
		return "System is not ready, please check the setup"
	case OutcomeNoFace:
		if kind == KindEnroll {
			return "No face detected, please move closer and face the camera"
		}
		return "No face detected, please face the camera"
	case OutcomeAlignFailed:
		return "Face could not be aligned, please face the camera"
	case OutcomeExtractFailed:
		return "Feature extraction failed, please try again"
	case OutcomeDuplicate:
		return "Please do not enroll twice"
	case OutcomeEnrolled:
		return fmt.Sprintf("Enrolled as number %d", faceID)
	case OutcomeUnknown:
		return "Not enrolled, please enroll first"
	case OutcomeRecognized:
		return fmt.Sprintf("You are number %d", faceID)
	}
	return "Something went wrong, please try again"
}

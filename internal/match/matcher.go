package match

import (
	"errors"
	"fmt"
)

// DefaultThreshold is the similarity at or above which two faces are the
// same person.
const DefaultThreshold = 0.6

var (
	// ErrEmptyFeature is returned for a query without values.
	ErrEmptyFeature = errors.New("empty feature vector")

	// ErrInvalidFeature is returned for a query holding NaN or infinite
	// values.
	ErrInvalidFeature = errors.New("feature vector is not finite")

	// ErrNotReady is returned when the collection is not initialized.
	ErrNotReady = errors.New("face collection not ready")

	// ErrDimensionMismatch is returned when a query and the stored faces
	// have different dimensions.
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
)

// Record is a stored face.
type Record struct {
	ID      int64   `json:"id"`
	Feature Feature `json:"-"`
}

// Collection stores enrolled faces. Ids are positive, assigned by Insert,
// and never reused. All must return a consistent snapshot and Insert must
// be atomic for a single record.
type Collection interface {
	Ready() bool
	Count() (int, error)
	All() ([]Record, error)
	Insert(f Feature) (int64, error)
	Clear() error
}

// Match is the closest stored face to a query. ID is -1 when there is none.
type Match struct {
	ID         int64   `json:"id"`
	Similarity float64 `json:"similarity"`
}

// NoMatch is the result of a search that found nothing comparable.
var NoMatch = Match{ID: -1}

// EnrollResult is the outcome of Enroll. When Duplicate is set nothing was
// written and Match holds the existing face.
type EnrollResult struct {
	ID        int64 `json:"id"`
	Duplicate bool  `json:"duplicate"`
	Match     Match `json:"match"`
}

// RecognizeResult is the outcome of Recognize.
type RecognizeResult struct {
	Matched bool  `json:"matched"`
	Match   Match `json:"match"`
}

// Matcher applies the enrollment and recognition policies to a Collection.
// It holds no state of its own.
//
// Enroll checks for a duplicate and then inserts without holding a lock
// across both steps, so two concurrent enrollments of the same face can
// both succeed. Callers that need the guarantee must serialize Enroll.
type Matcher struct {
	faces     Collection
	Threshold float64
}

// NewMatcher creates a Matcher over faces. A non-positive threshold selects
// DefaultThreshold.
func NewMatcher(faces Collection, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{faces: faces, Threshold: threshold}
}

// Collection returns the underlying collection.
func (m *Matcher) Collection() Collection {
	return m.faces
}

func (m *Matcher) check(query Feature) error {
	if len(query) == 0 {
		return ErrEmptyFeature
	}
	if !query.Finite() {
		return ErrInvalidFeature
	}
	if m.faces == nil || !m.faces.Ready() {
		return ErrNotReady
	}
	return nil
}

// FindBestMatch scans every stored face and returns the most similar one.
// It returns NoMatch for an empty collection or when no stored face has a
// defined similarity to query.
func (m *Matcher) FindBestMatch(query Feature) (Match, error) {
	if err := m.check(query); err != nil {
		return NoMatch, err
	}

	records, err := m.faces.All()
	if err != nil {
		return NoMatch, fmt.Errorf("load faces: %w", err)
	}

	best := NoMatch
	for _, r := range records {
		if len(r.Feature) != len(query) {
			return NoMatch, fmt.Errorf("%w: query has %d values, face %d has %d",
				ErrDimensionMismatch, len(query), r.ID, len(r.Feature))
		}
		s, ok := cosine(query, r.Feature)
		if !ok {
			continue
		}
		if best.ID == -1 || s > best.Similarity {
			best = Match{ID: r.ID, Similarity: s}
		}
	}
	return best, nil
}

// Enroll stores query as a new face unless it matches an existing one.
func (m *Matcher) Enroll(query Feature) (EnrollResult, error) {
	best, err := m.FindBestMatch(query)
	if err != nil {
		return EnrollResult{ID: -1, Match: best}, err
	}
	if best.Similarity >= m.Threshold && best.ID > 0 {
		return EnrollResult{ID: -1, Duplicate: true, Match: best}, nil
	}

	id, err := m.faces.Insert(Normalize(query))
	if err != nil {
		return EnrollResult{ID: -1, Match: best}, fmt.Errorf("insert face: %w", err)
	}
	return EnrollResult{ID: id, Match: best}, nil
}

// Recognize looks query up. An unknown face is Matched == false, not an
// error.
func (m *Matcher) Recognize(query Feature) (RecognizeResult, error) {
	best, err := m.FindBestMatch(query)
	if err != nil {
		return RecognizeResult{Match: best}, err
	}
	return RecognizeResult{
		Matched: best.ID > 0 && best.Similarity >= m.Threshold,
		Match:   best,
	}, nil
}

package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Presence detection constants
const (
	// BlurSize is the Gaussian kernel applied before differencing.
	BlurSize = 21
	// DiffThreshold is the per-pixel intensity change that counts as motion.
	DiffThreshold = 25
	// DefaultHold is how long presence lasts after the last motion.
	DefaultHold = 2 * time.Second
)

// PresenceDetector decides whether someone is in front of the camera by
// differencing consecutive blurred grayscale frames. Presence starts on
// motion and ends once no motion has been seen for the hold duration.
type PresenceDetector struct {
	mu         sync.Mutex
	threshold  float64
	hold       time.Duration
	prevGray   gocv.Mat
	hasPrev    bool
	present    bool
	lastMotion time.Time
	now        func() time.Time
}

// NewPresenceDetector creates a detector that reports motion when more
// than threshold (a fraction in [0, 1]) of the pixels change.
func NewPresenceDetector(threshold float64, hold time.Duration) *PresenceDetector {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &PresenceDetector{
		threshold: threshold,
		hold:      hold,
		prevGray:  gocv.NewMat(),
		now:       time.Now,
	}
}

// Observe feeds the next frame and returns whether someone is present and
// the fraction of pixels that changed since the previous frame. The first
// frame only sets the baseline.
func (p *PresenceDetector) Observe(frame *gocv.Mat) (bool, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frame == nil || frame.Empty() {
		return p.present, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(BlurSize, BlurSize), 0, 0, gocv.BorderDefault)

	if !p.hasPrev || p.prevGray.Rows() != blurred.Rows() || p.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&p.prevGray)
		p.hasPrev = true
		return p.present, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, p.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols())
	blurred.CopyTo(&p.prevGray)

	now := p.now()
	if changed > p.threshold {
		p.lastMotion = now
		p.present = true
	} else if p.present && now.Sub(p.lastMotion) > p.hold {
		p.present = false
	}

	return p.present, changed
}

// Present returns the current presence state.
func (p *PresenceDetector) Present() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present
}

// Reset forgets the baseline frame and the presence state.
func (p *PresenceDetector) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *PresenceDetector) resetLocked() {
	if !p.prevGray.Empty() {
		p.prevGray.Close()
		p.prevGray = gocv.NewMat()
	}
	p.hasPrev = false
	p.present = false
}

// Close releases the baseline frame. Close may be called more than once.
func (p *PresenceDetector) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

// SetThreshold changes the motion fraction. Values outside (0, 1] are ignored.
func (p *PresenceDetector) SetThreshold(threshold float64) {
	if threshold <= 0 || threshold > 1 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.threshold = threshold
}

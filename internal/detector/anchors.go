package detector

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidAnchorConfig is returned for a resolution or stride layout that
// cannot produce an anchor grid.
var ErrInvalidAnchorConfig = errors.New("invalid anchor config")

// Anchor is a prior box in coordinates normalized to the model input.
type Anchor struct {
	CX float32
	CY float32
	W  float32
	H  float32
}

// AnchorConfig describes the model input resolution and its scale levels.
// MinSizes[k] lists the anchor sizes, in input pixels, emitted per cell at
// Strides[k].
type AnchorConfig struct {
	Width    int         `yaml:"width"`
	Height   int         `yaml:"height"`
	Strides  []int       `yaml:"strides"`
	MinSizes [][]float32 `yaml:"min_sizes"`
}

// DefaultAnchorConfig returns the 320x320 RetinaFace layout.
func DefaultAnchorConfig() AnchorConfig {
	return AnchorConfig{
		Width:   320,
		Height:  320,
		Strides: []int{8, 16, 32},
		MinSizes: [][]float32{
			{16, 32},
			{64, 128},
			{256, 512},
		},
	}
}

// Validate reports whether the config can produce anchors.
func (c AnchorConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: resolution %dx%d", ErrInvalidAnchorConfig, c.Width, c.Height)
	}
	if len(c.Strides) == 0 {
		return fmt.Errorf("%w: no strides", ErrInvalidAnchorConfig)
	}
	if len(c.Strides) != len(c.MinSizes) {
		return fmt.Errorf("%w: %d strides but %d min size levels",
			ErrInvalidAnchorConfig, len(c.Strides), len(c.MinSizes))
	}
	for k, s := range c.Strides {
		if s <= 0 {
			return fmt.Errorf("%w: stride %d at level %d", ErrInvalidAnchorConfig, s, k)
		}
		if len(c.MinSizes[k]) == 0 {
			return fmt.Errorf("%w: level %d has no min sizes", ErrInvalidAnchorConfig, k)
		}
		for _, m := range c.MinSizes[k] {
			if m <= 0 {
				return fmt.Errorf("%w: min size %v at level %d", ErrInvalidAnchorConfig, m, k)
			}
		}
	}
	return nil
}

func gridSize(dim, stride int) int {
	return int(math.Ceil(float64(dim) / float64(stride)))
}

// AnchorCount returns the number of anchors the config produces without
// building them: the sum over levels of ceil(W/s)*ceil(H/s)*len(minSizes).
func AnchorCount(c AnchorConfig) int {
	n := 0
	for k, s := range c.Strides {
		if s <= 0 || k >= len(c.MinSizes) {
			continue
		}
		n += gridSize(c.Width, s) * gridSize(c.Height, s) * len(c.MinSizes[k])
	}
	return n
}

// Anchors is an immutable anchor table for one input resolution. The
// decoder indexes model outputs positionally against it, so its order
// must never change once built.
type Anchors struct {
	cfg     AnchorConfig
	anchors []Anchor
}

// NewAnchors builds the anchor table for cfg. Levels are emitted in stride
// order, cells in row-major order and sizes in the order given.
func NewAnchors(cfg AnchorConfig) (*Anchors, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := float32(cfg.Width)
	h := float32(cfg.Height)
	anchors := make([]Anchor, 0, AnchorCount(cfg))

	for k, stride := range cfg.Strides {
		rows := gridSize(cfg.Height, stride)
		cols := gridSize(cfg.Width, stride)
		s := float32(stride)
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				cx := (float32(col) + 0.5) * s / w
				cy := (float32(row) + 0.5) * s / h
				for _, m := range cfg.MinSizes[k] {
					anchors = append(anchors, Anchor{CX: cx, CY: cy, W: m / w, H: m / h})
				}
			}
		}
	}

	// The table must not share slices with the caller.
	owned := AnchorConfig{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Strides:  append([]int(nil), cfg.Strides...),
		MinSizes: make([][]float32, len(cfg.MinSizes)),
	}
	for k := range cfg.MinSizes {
		owned.MinSizes[k] = append([]float32(nil), cfg.MinSizes[k]...)
	}

	return &Anchors{cfg: owned, anchors: anchors}, nil
}

// NewAnchorsFromSlice wraps a hand-built anchor list. It is meant for tests
// and tools that feed the decoder synthetic priors.
func NewAnchorsFromSlice(anchors []Anchor) *Anchors {
	return &Anchors{anchors: append([]Anchor(nil), anchors...)}
}

// Len returns the number of anchors.
func (a *Anchors) Len() int {
	return len(a.anchors)
}

// At returns the i-th anchor.
func (a *Anchors) At(i int) Anchor {
	return a.anchors[i]
}

// Config returns the layout the table was built from. It is the zero value
// for tables made with NewAnchorsFromSlice.
func (a *Anchors) Config() AnchorConfig {
	return a.cfg
}

// Matches reports whether the table was built for the given input size.
func (a *Anchors) Matches(width, height int) bool {
	return a.cfg.Width == width && a.cfg.Height == height
}

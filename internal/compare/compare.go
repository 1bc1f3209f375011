// Package compare implements the pixel-exact baseline comparison and diff
// image rendering.
package compare

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/starford/vizbase/internal/imagecodec"
	"github.com/starford/vizbase/internal/models"
)

const (
	// DefaultThreshold is the largest differing-pixel ratio that still matches.
	DefaultThreshold = 0.02
	// DefaultDimensionTolerance is how far (in pixels) width or height may
	// drift before the images are considered structurally different.
	DefaultDimensionTolerance = 3
	// DefaultMarkerHex is the colour differing pixels are painted with.
	DefaultMarkerHex = "#ff0000"
)

// DefaultMarker is DefaultMarkerHex as an opaque colour.
var DefaultMarker = color.NRGBA{R: 255, A: 255}

// Option configures a Comparator.
type Option func(*Comparator)

// WithDimensionTolerance overrides DefaultDimensionTolerance.
func WithDimensionTolerance(px int) Option {
	return func(c *Comparator) {
		if px >= 0 {
			c.tolerance = px
		}
	}
}

// WithMarker overrides the colour used for differing pixels.
func WithMarker(m color.NRGBA) Option {
	return func(c *Comparator) {
		c.marker = m
	}
}

// Comparator compares two decoded images. It holds no mutable state and is
// safe for concurrent use.
type Comparator struct {
	tolerance int
	marker    color.NRGBA
}

// New returns a Comparator with the given options applied over the defaults.
func New(opts ...Option) *Comparator {
	c := &Comparator{
		tolerance: DefaultDimensionTolerance,
		marker:    DefaultMarker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DimensionTolerance returns the configured tolerance in pixels.
func (c *Comparator) DimensionTolerance() int {
	return c.tolerance
}

// Compare decides whether current matches baseline within threshold.
//
// When the result does not match and the dimensions were close enough to
// scan, a freshly allocated diff grid with the baseline's dimensions is
// returned: differing pixels carry the marker colour, the rest are copied
// from the baseline. Pixels of the baseline that fall outside a smaller
// current image count as differing, and such a comparison never matches
// whatever the threshold.
func (c *Comparator) Compare(baseline, current *imagecodec.PixelGrid, threshold float64) (models.ComparisonResult, *imagecodec.PixelGrid, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return models.ComparisonResult{}, nil, err
	}
	if !valid(baseline) || !valid(current) {
		return models.ComparisonResult{}, nil, fmt.Errorf("compare: invalid pixel grid")
	}

	res := models.ComparisonResult{
		BaselineWidth:  baseline.Width,
		BaselineHeight: baseline.Height,
		CurrentWidth:   current.Width,
		CurrentHeight:  current.Height,
	}

	if absInt(baseline.Width-current.Width) > c.tolerance || absInt(baseline.Height-current.Height) > c.tolerance {
		res.DimensionMismatch = true
		res.DifferingPixelRatio = 1
		return res, nil, nil
	}

	diff := imagecodec.NewGrid(baseline.Width, baseline.Height)
	diffPixels := 0
	for y := 0; y < baseline.Height; y++ {
		for x := 0; x < baseline.Width; x++ {
			bi := baseline.Offset(x, y)
			bp := baseline.Pix[bi : bi+4 : bi+4]
			dp := diff.Pix[bi : bi+4 : bi+4]

			same := false
			if x < current.Width && y < current.Height {
				ci := current.Offset(x, y)
				cp := current.Pix[ci : ci+4 : ci+4]
				same = bp[0] == cp[0] && bp[1] == cp[1] && bp[2] == cp[2] && bp[3] == cp[3]
			}

			if same {
				copy(dp, bp)
				continue
			}
			diffPixels++
			dp[0], dp[1], dp[2], dp[3] = c.marker.R, c.marker.G, c.marker.B, c.marker.A
		}
	}

	res.DiffPixels = diffPixels
	res.TotalPixels = baseline.Width * baseline.Height
	res.DifferingPixelRatio = float64(diffPixels) / float64(res.TotalPixels)
	// A capture that does not cover the whole baseline never matches.
	covered := current.Width >= baseline.Width && current.Height >= baseline.Height
	res.Matched = covered && res.DifferingPixelRatio <= threshold
	if res.Matched {
		return res, nil, nil
	}
	return res, diff, nil
}

// ValidateThreshold rejects thresholds outside [0, 1].
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("compare: threshold %v outside [0,1]", t)
	}
	return nil
}

// ParseMarker parses a hex colour ("#f00" or "#ff0000") into an opaque marker.
func ParseMarker(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("compare: marker colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

func valid(g *imagecodec.PixelGrid) bool {
	return g != nil && g.Width > 0 && g.Height > 0 && len(g.Pix) == g.Width*g.Height*4
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

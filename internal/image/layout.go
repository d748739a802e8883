package imagepkg

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

var (
	ErrInvalidPreset   = errors.New("invalid print preset")
	ErrInvalidQuadrant = errors.New("quadrant must be between 1 and 4")
	ErrOutOfBounds     = errors.New("placement exceeds page bounds")
)

// Preset selects how large the label is printed on the page.
type Preset string

const (
	PresetSmall Preset = "Small"
	PresetLarge Preset = "Large"
)

// ParsePreset accepts "small"/"large" in any case. Empty means Small.
func ParsePreset(s string) (Preset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "small":
		return PresetSmall, nil
	case "large":
		return PresetLarge, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPreset, s)
	}
}

// Quadrant positions for the Small preset.
const (
	QuadrantTopLeft     = 1
	QuadrantTopRight    = 2
	QuadrantBottomLeft  = 3
	QuadrantBottomRight = 4
)

// PlacementRequest is what the user picks in the print dialog.
type PlacementRequest struct {
	Preset   Preset `json:"preset"`
	Quadrant int    `json:"quadrant"`
}

// Placement is the destination rectangle on the page, in device pixels.
type Placement struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bounds rounds the placement to whole pixels.
func (p Placement) Bounds() image.Rectangle {
	x := int(math.Round(p.X))
	y := int(math.Round(p.Y))
	return image.Rect(x, y, x+int(math.Round(p.Width)), y+int(math.Round(p.Height)))
}

// Layout holds the page geometry in inches and the output resolution.
type Layout struct {
	DPI               float64
	PageWidthIn       float64
	PageHeightIn      float64
	LargeMarginIn     float64
	SmallPageMarginIn float64
	QuadrantWidthIn   float64
	QuadrantHeightIn  float64
	// ColumnNudgeIn pushes the left column further left and the right column
	// further right. Empirical print calibration, not derived from the page.
	ColumnNudgeIn float64
}

const (
	DefaultDPI           = 300
	letterWidthIn        = 8.5
	letterHeightIn       = 11.0
	largeMarginIn        = 0.2
	smallPageMarginIn    = 0.5
	quadrantWidthIn      = 3.75
	quadrantHeightIn     = 5.0
	DefaultColumnNudgeIn = 0.228
)

// DefaultLayout is US letter at 300 dpi.
func DefaultLayout() Layout {
	return Layout{
		DPI:               DefaultDPI,
		PageWidthIn:       letterWidthIn,
		PageHeightIn:      letterHeightIn,
		LargeMarginIn:     largeMarginIn,
		SmallPageMarginIn: smallPageMarginIn,
		QuadrantWidthIn:   quadrantWidthIn,
		QuadrantHeightIn:  quadrantHeightIn,
		ColumnNudgeIn:     DefaultColumnNudgeIn,
	}
}

func (l Layout) px(in float64) float64 { return in * l.DPI }

// PageSize returns the page canvas dimensions in pixels.
func (l Layout) PageSize() (int, int) {
	return int(math.Round(l.px(l.PageWidthIn))), int(math.Round(l.px(l.PageHeightIn)))
}

// Place computes the destination rectangle for req.
func (l Layout) Place(req PlacementRequest) (Placement, error) {
	var p Placement
	switch req.Preset {
	case PresetLarge:
		p = l.large()
	case PresetSmall:
		if req.Quadrant < QuadrantTopLeft || req.Quadrant > QuadrantBottomRight {
			return Placement{}, fmt.Errorf("%w: got %d", ErrInvalidQuadrant, req.Quadrant)
		}
		p = l.small(req.Quadrant)
	default:
		return Placement{}, fmt.Errorf("%w: %q", ErrInvalidPreset, req.Preset)
	}
	if !l.fits(p) {
		return Placement{}, fmt.Errorf("%w: %+v", ErrOutOfBounds, p)
	}
	return p, nil
}

func (l Layout) large() Placement {
	m := l.px(l.LargeMarginIn)
	return Placement{
		X:      m,
		Y:      m,
		Width:  l.px(l.PageWidthIn) - 2*m,
		Height: l.px(l.PageHeightIn) - 2*m,
	}
}

func (l Layout) small(quadrant int) Placement {
	pm := l.px(l.SmallPageMarginIn)
	qw := l.px(l.QuadrantWidthIn)
	qh := l.px(l.QuadrantHeightIn)
	nudge := l.px(l.ColumnNudgeIn)

	usableW := l.px(l.PageWidthIn) - 2*pm
	usableH := l.px(l.PageHeightIn) - 2*pm
	hGap := (usableW - 2*qw) / 3
	vGap := (usableH - 2*qh) / 3

	leftX := pm + hGap - nudge
	rightX := pm + qw + 2*hGap + nudge
	topY := pm + vGap
	bottomY := pm + qh + 2*vGap

	p := Placement{Width: qw, Height: qh}
	switch quadrant {
	case QuadrantTopLeft:
		p.X, p.Y = leftX, topY
	case QuadrantTopRight:
		p.X, p.Y = rightX, topY
	case QuadrantBottomLeft:
		p.X, p.Y = leftX, bottomY
	case QuadrantBottomRight:
		p.X, p.Y = rightX, bottomY
	}
	return p
}

// fits allows a tiny epsilon so float noise on exact page edges passes.
func (l Layout) fits(p Placement) bool {
	const eps = 1e-6
	w, h := l.px(l.PageWidthIn), l.px(l.PageHeightIn)
	return p.Width > 0 && p.Height > 0 &&
		p.X >= -eps && p.Y >= -eps &&
		p.X+p.Width <= w+eps && p.Y+p.Height <= h+eps
}

// Validate checks that every preset and quadrant lands on the page.
func (l Layout) Validate() error {
	if l.DPI <= 0 {
		return fmt.Errorf("dpi must be positive, got %v", l.DPI)
	}
	if l.PageWidthIn <= 0 || l.PageHeightIn <= 0 {
		return fmt.Errorf("page size must be positive, got %vx%v in", l.PageWidthIn, l.PageHeightIn)
	}
	reqs := []PlacementRequest{{Preset: PresetLarge}}
	for q := QuadrantTopLeft; q <= QuadrantBottomRight; q++ {
		reqs = append(reqs, PlacementRequest{Preset: PresetSmall, Quadrant: q})
	}
	for _, r := range reqs {
		if _, err := l.Place(r); err != nil {
			return fmt.Errorf("layout %s/%d: %w", r.Preset, r.Quadrant, err)
		}
	}
	return nil
}

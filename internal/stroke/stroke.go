// Package stroke holds the resolution-independent stroke representation and
// the pure conversions between canvas-pixel space and normalized space.
package stroke

import "math"

const (
	SourceManual       = "manual"
	SourceAISuggestion = "ai-suggestion"
)

const (
	DefaultCanvasWidth  = 800
	DefaultCanvasHeight = 600
)

// Point is a stroke sample. In normalized form X and Y are in [0,1] relative
// to the canvas dimensions; T is the capture timestamp or sequence number.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t,omitempty"`
}

// Stroke is an ordered polyline with a width. Width in normalized form is
// relative to the smaller canvas dimension, so a thick stroke on a small
// canvas and a thin one on a large canvas compare meaningfully.
type Stroke struct {
	Points []Point `json:"points"`
	Width  float64 `json:"width"`
	Source string  `json:"source,omitempty"`
}

type Dims struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// orDefault substitutes 800x600 for missing dimensions and floors both at 1px.
func (d Dims) orDefault() Dims {
	if d.Width <= 0 {
		d.Width = DefaultCanvasWidth
	}
	if d.Height <= 0 {
		d.Height = DefaultCanvasHeight
	}
	if d.Width < 1 {
		d.Width = 1
	}
	if d.Height < 1 {
		d.Height = 1
	}
	return d
}

func (d Dims) min() float64 {
	return math.Min(d.Width, d.Height)
}

// Normalize converts a canvas-pixel stroke into normalized form. The second
// return is false when the stroke has fewer than 2 points.
func Normalize(raw Stroke, canvas Dims) (Stroke, bool) {
	if len(raw.Points) < 2 {
		return Stroke{}, false
	}
	canvas = canvas.orDefault()

	points := make([]Point, len(raw.Points))
	for i, p := range raw.Points {
		points[i] = Point{
			X: p.X / canvas.Width,
			Y: p.Y / canvas.Height,
			T: p.T,
		}
	}

	source := raw.Source
	if source == "" {
		source = SourceManual
	}

	return Stroke{
		Points: points,
		Width:  raw.Width / canvas.min(),
		Source: source,
	}, true
}

// Denormalize scales a normalized stroke into the caller's viewport. X and Y
// scale independently: relative placement is preserved across aspect-ratio
// changes rather than the stroke's own aspect ratio.
func Denormalize(s Stroke, viewport Dims) ([]Point, float64) {
	viewport = viewport.orDefault()

	points := make([]Point, len(s.Points))
	for i, p := range s.Points {
		points[i] = Point{
			X: clamp01(p.X) * viewport.Width,
			Y: clamp01(p.Y) * viewport.Height,
			T: p.T,
		}
	}

	// A stored width above 1 cannot be a ratio; legacy records kept pixel
	// widths, so rescale those through the viewport's smaller dimension.
	width := s.Width
	if width > 1 {
		width = width / viewport.min()
	}
	width = width * viewport.min()
	if width < 1 {
		width = 1
	}

	return points, width
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

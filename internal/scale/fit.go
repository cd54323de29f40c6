// Package scale computes the uniform zoom that fits the arranged spread into a viewport.
package scale

import "math"

// Box is a measured width and height in CSS pixels.
type Box struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b Box) valid() bool {
	return finite(b.Width) && finite(b.Height) && b.Width > 0 && b.Height > 0
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Fit returns min((vw-2m)/cw, (vh-2m)/ch). The second result is false when the
// measurement is degenerate (zero or negative boxes, non-finite values, or a
// margin that leaves no room) and the scale must not be applied.
func Fit(content, viewport Box, margin float64) (float64, bool) {
	if !content.valid() || !viewport.valid() || !finite(margin) || margin < 0 {
		return 0, false
	}
	s := math.Min((viewport.Width-2*margin)/content.Width, (viewport.Height-2*margin)/content.Height)
	if !finite(s) || s <= 0 {
		return 0, false
	}
	return s, true
}

// Fitter retains the last good scale across measurements.
type Fitter struct {
	margin float64
	scale  float64
}

// NewFitter returns a fitter with scale 1 that keeps margin pixels on every side.
func NewFitter(margin float64) *Fitter {
	return &Fitter{margin: margin, scale: 1}
}

// Update recomputes the scale from a new measurement. A degenerate measurement
// leaves the previous scale in place and reports false.
func (f *Fitter) Update(content, viewport Box) (float64, bool) {
	s, ok := Fit(content, viewport, f.margin)
	if ok {
		f.scale = s
	}
	return f.scale, ok
}

// Scale returns the last good scale.
func (f *Fitter) Scale() float64 { return f.scale }

// Margin returns the configured margin.
func (f *Fitter) Margin() float64 { return f.margin }

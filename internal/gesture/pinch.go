// Package gesture turns two-finger touch input into zoom changes.
package gesture

import "math"

// Sensitivity is the zoom change per pixel of pinch distance change.
const Sensitivity = 0.01

// Point is one active contact position in screen pixels.
type Point struct {
	X, Y float64
}

// Zoomer is the zoom surface of a capture session. SetZoom clamps.
type Zoomer interface {
	Zoom() float64
	SetZoom(level float64)
}

// Pinch converts pinch distance deltas into zoom deltas. The only state it
// keeps is the last observed distance of the current gesture.
type Pinch struct {
	target      Zoomer
	sensitivity float64
	last        float64
	tracking    bool
}

// NewPinch constructs an interpreter forwarding to target.
func NewPinch(target Zoomer) *Pinch {
	return &Pinch{target: target, sensitivity: Sensitivity}
}

// Update consumes the current set of contacts. Only exactly two contacts
// drive zoom; fewer end the gesture, more are ignored.
func (p *Pinch) Update(points []Point) {
	switch {
	case len(points) < 2:
		p.Reset()
		return
	case len(points) > 2:
		return
	}

	d := math.Hypot(points[1].X-points[0].X, points[1].Y-points[0].Y)
	if !p.tracking {
		p.last, p.tracking = d, true
		return
	}
	delta := (d - p.last) * p.sensitivity
	p.last = d
	if delta != 0 {
		p.target.SetZoom(p.target.Zoom() + delta)
	}
}

// Reset forgets the last distance.
func (p *Pinch) Reset() {
	p.last, p.tracking = 0, false
}

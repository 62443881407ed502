// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: portal/geometry.go
// Summary: Geometry synchronizer: derives a surface's target frame and hidden
// state from its anchor's bounds and the host container.
// Usage: Pure computation, no portal state; the host applies the decision.

package portal

import "math"

const (
	// frameEpsilon is the minimum per-edge movement that justifies writing a
	// new physical frame. Redundant writes are skipped.
	frameEpsilon = 0.5

	// minRealDimension: frames at or below this size are treated as
	// transitional layout noise, not a real size. A legitimately 1-unit
	// surface would be suppressed by this; kept to match shipped behavior.
	minRealDimension = 1.0
)

// Rect is an axis-aligned rectangle in window coordinates. Coordinates are
// float64 because layout ratios resolve fractionally; degenerate layouts can
// produce NaN or infinite edges, which the synchronizer treats as hidden.
type Rect struct {
	X, Y, W, H float64
}

// Finite reports whether every coordinate is a finite number.
func (r Rect) Finite() bool {
	for _, v := range [4]float64{r.X, r.Y, r.W, r.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Intersects reports whether r and o overlap at all.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Contains reports whether the point (x, y) lies inside r.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// movedBeyond reports whether any edge of r differs from o by more than eps.
func (r Rect) movedBeyond(o Rect, eps float64) bool {
	return math.Abs(r.X-o.X) > eps || math.Abs(r.Y-o.Y) > eps ||
		math.Abs(r.W-o.W) > eps || math.Abs(r.H-o.H) > eps
}

// resizedBeyond reports whether width or height differs by more than eps.
func (r Rect) resizedBeyond(o Rect, eps float64) bool {
	return math.Abs(r.W-o.W) > eps || math.Abs(r.H-o.H) > eps
}

// frameDecision is the outcome of one geometry evaluation for a binding.
type frameDecision struct {
	// indeterminate: the anchor (or its window) is missing while visibility
	// was pre-declared. Nothing may be touched; a remount is in progress and
	// force-hiding here causes a visible flash.
	indeterminate bool

	hidden bool

	// writeFrame: the physical frame moved beyond the epsilon and should be
	// applied. frame is in window coordinates, local is overlay-local.
	writeFrame   bool
	notifyResize bool
	frame        Rect
	local        Rect
}

// evaluateGeometry computes the target frame and hidden state for one entry
// against the host container's bounds (window coordinates).
func evaluateGeometry(e *bindingEntry, container Rect) frameDecision {
	a := e.anchor

	missing := a == nil || !a.Alive()
	if !missing {
		if _, ok := a.Window(); !ok {
			missing = true
		}
	}
	var frame Rect
	if !missing {
		b, ok := a.BoundsInWindow()
		if !ok {
			missing = true
		} else {
			frame = b
		}
	}
	if missing {
		// Hide only when the caller asked for it. A pre-declared "about to
		// become visible" must survive the gap before its new anchor exists.
		if !e.visibleRequested {
			return frameDecision{hidden: true}
		}
		return frameDecision{indeterminate: true}
	}

	hidden := !e.visibleRequested ||
		a.EffectivelyHidden() ||
		!frame.Finite() ||
		frame.W <= minRealDimension || frame.H <= minRealDimension ||
		!frame.Intersects(container)

	d := frameDecision{hidden: hidden, frame: frame}
	if !frame.Finite() {
		// Never apply a non-finite frame.
		return d
	}
	if !e.hasFrame || frame.movedBeyond(e.lastFrame, frameEpsilon) {
		d.writeFrame = true
		d.notifyResize = !e.hasFrame || frame.resizedBeyond(e.lastFrame, frameEpsilon)
		d.local = Rect{X: frame.X - container.X, Y: frame.Y - container.Y, W: frame.W, H: frame.H}
	}
	return d
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package curve implements the time-keyed breakpoint lists used for region
// envelopes and fades: a small ordered list of (when, value) points sampled
// with either linear or Catmull-Rom ("curved") interpolation.
package curve

import (
	"sort"
	"sync"
)

// Interpolation selects how SampleInto fills the gaps between breakpoints.
type Interpolation int

const (
	// Linear interpolates directly between neighboring breakpoints.
	Linear Interpolation = iota
	// Curved fits a Catmull-Rom spline through neighboring breakpoints
	// (repeating the end values past either end of the curve), falling
	// back to linear when the curve has fewer than four points.
	Curved
)

// Point is a single breakpoint: a sample offset and a gain value.
type Point struct {
	When  int64
	Value float32
}

// Curve is an ordered, monotone list of breakpoints with an interpolation
// mode. It is safe for concurrent read/sample and serialized write.
type Curve struct {
	mu     sync.RWMutex
	points []Point
	interp Interpolation

	freezeDepth int
	dirty       bool
	onChange    func()
}

// New creates an empty curve with the given interpolation mode.
func New(interp Interpolation) *Curve {
	return &Curve{interp: interp}
}

// OnChange installs a callback invoked whenever the curve's breakpoints
// change outside of a freeze/thaw span (the thaw itself fires it once).
func (c *Curve) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Interpolation reports the curve's current interpolation mode.
func (c *Curve) Interpolation() Interpolation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interp
}

// SetInterpolation changes the interpolation mode used by SampleInto.
func (c *Curve) SetInterpolation(interp Interpolation) {
	c.mu.Lock()
	c.interp = interp
	c.mu.Unlock()
}

// Len reports the number of breakpoints.
func (c *Curve) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points)
}

// Add inserts a breakpoint in monotone time order, replacing any existing
// point at the same time.
func (c *Curve) Add(when int64, value float32) {
	c.mu.Lock()
	c.addLocked(when, value)
	c.notifyLocked()
	c.mu.Unlock()
}

func (c *Curve) addLocked(when int64, value float32) {
	idx := sort.Search(len(c.points), func(i int) bool { return c.points[i].When >= when })
	if idx < len(c.points) && c.points[idx].When == when {
		c.points[idx].Value = value
		return
	}
	c.points = append(c.points, Point{})
	copy(c.points[idx+1:], c.points[idx:])
	c.points[idx] = Point{When: when, Value: value}
}

// FastAdd appends a breakpoint directly to the end of the list without the
// monotone-insert or change-notification machinery. Used by bulk
// construction (fade generation) which already produces time-ordered
// points and defers notification until the whole shape is built.
func (c *Curve) FastAdd(when int64, value float32) {
	c.mu.Lock()
	c.points = append(c.points, Point{When: when, Value: value})
	c.mu.Unlock()
}

// Clear removes all breakpoints.
func (c *Curve) Clear() {
	c.mu.Lock()
	c.points = c.points[:0]
	c.notifyLocked()
	c.mu.Unlock()
}

// Freeze defers change notifications until a matching Thaw. Freeze/Thaw
// pairs nest; only the outermost Thaw fires the notification.
func (c *Curve) Freeze() {
	c.mu.Lock()
	c.freezeDepth++
	c.mu.Unlock()
}

// Thaw resumes change notifications, firing one if edits occurred while
// frozen.
func (c *Curve) Thaw() {
	c.mu.Lock()
	if c.freezeDepth > 0 {
		c.freezeDepth--
	}
	fire := c.freezeDepth == 0 && c.dirty
	if fire {
		c.dirty = false
	}
	cb := c.onChange
	c.mu.Unlock()
	if fire && cb != nil {
		cb()
	}
}

// notifyLocked fires the change callback, or defers it until Thaw if the
// curve is currently frozen. Caller must hold c.mu.
func (c *Curve) notifyLocked() {
	if c.freezeDepth > 0 {
		c.dirty = true
		return
	}
	if c.onChange != nil {
		c.onChange()
	}
}

// CopyEvents replaces this curve's breakpoints with src's, without firing
// change notifications (used when building a shape in a scratch curve and
// then installing it).
func (c *Curve) CopyEvents(src *Curve) {
	src.mu.RLock()
	pts := make([]Point, len(src.points))
	copy(pts, src.points)
	src.mu.RUnlock()

	c.mu.Lock()
	c.points = pts
	c.mu.Unlock()
}

// EndpointWhen returns the time of the first (first=true) or last breakpoint.
func (c *Curve) EndpointWhen(first bool) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.points) == 0 {
		return 0
	}
	if first {
		return c.points[0].When
	}
	return c.points[len(c.points)-1].When
}

// EndpointValue returns the value of the first (first=true) or last
// breakpoint.
func (c *Curve) EndpointValue(first bool) float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.points) == 0 {
		return 0
	}
	if first {
		return c.points[0].Value
	}
	return c.points[len(c.points)-1].Value
}

// TruncateEnd adjusts the final breakpoint so the curve's domain becomes
// exactly [0, t], interpolating the value at t from the existing curve
// when t falls strictly between breakpoints. Reports whether anything
// changed.
func (c *Curve) TruncateEnd(t int64) bool {
	return c.resizeEnd(t)
}

// ExtendTo behaves identically to TruncateEnd: both shrinking and growing
// the curve's domain are "extend to a new final time" in the original
// implementation (AutomationList::extend_to covers both directions).
func (c *Curve) ExtendTo(t int64) bool {
	return c.resizeEnd(t)
}

func (c *Curve) resizeEnd(t int64) bool {
	c.mu.Lock()
	if len(c.points) == 0 {
		c.points = []Point{{When: 0, Value: 0}, {When: t, Value: 0}}
		c.notifyLocked()
		c.mu.Unlock()
		return true
	}

	last := c.points[len(c.points)-1].When
	if last == t {
		c.mu.Unlock()
		return false
	}

	value := c.valueAtLocked(t)

	// Drop any points beyond the new end, then fix the final point.
	kept := c.points[:0:0]
	for _, p := range c.points {
		if p.When < t {
			kept = append(kept, p)
		}
	}
	kept = append(kept, Point{When: t, Value: value})
	c.points = kept

	c.notifyLocked()
	c.mu.Unlock()
	return true
}

// valueAtLocked interpolates the curve's value at t using its current
// interpolation mode. Caller must hold c.mu.
func (c *Curve) valueAtLocked(t int64) float32 {
	n := len(c.points)
	if n == 0 {
		return 0
	}
	if t <= c.points[0].When {
		return c.points[0].Value
	}
	if t >= c.points[n-1].When {
		return c.points[n-1].Value
	}

	idx := sort.Search(n, func(i int) bool { return c.points[i].When >= t })
	if c.points[idx].When == t {
		return c.points[idx].Value
	}
	lo, hi := idx-1, idx
	return c.interpolateAtLocked(lo, hi, t)
}

// SampleInto computes n interpolated values at t0, t0+delta, ..., t1 and
// writes them into out[0:n]. delta = (t1-t0)/(n-1) for n > 1.
func (c *Curve) SampleInto(out []float32, t0, t1 int64, n int) {
	if n <= 0 {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n == 1 {
		out[0] = c.valueAtLocked(t0)
		return
	}

	span := float64(t1 - t0)
	for i := 0; i < n; i++ {
		t := t0 + int64(span*float64(i)/float64(n-1))
		out[i] = c.valueAtLocked(t)
	}
}

// interpolateAtLocked interpolates strictly between points[lo] and
// points[hi] (hi == lo+1) at time t. Caller must hold c.mu (read or write).
func (c *Curve) interpolateAtLocked(lo, hi int, t int64) float32 {
	p0, p1 := c.points[lo], c.points[hi]
	if p1.When == p0.When {
		return p1.Value
	}
	frac := float64(t-p0.When) / float64(p1.When-p0.When)

	if c.interp == Linear || len(c.points) < 4 {
		return lerp(p0.Value, p1.Value, frac)
	}

	// Catmull-Rom using neighboring points where available, clamped to the
	// curve's ends otherwise.
	var pm1, p2 Point
	if lo-1 >= 0 {
		pm1 = c.points[lo-1]
	} else {
		pm1 = Point{When: p0.When - (p1.When - p0.When), Value: p0.Value}
	}
	if hi+1 < len(c.points) {
		p2 = c.points[hi+1]
	} else {
		p2 = Point{When: p1.When + (p1.When - p0.When), Value: p1.Value}
	}

	return catmullRom(pm1.Value, p0.Value, p1.Value, p2.Value, frac)
}

func lerp(a, b float32, frac float64) float32 {
	return a + float32(frac)*(b-a)
}

func catmullRom(p0, p1, p2, p3 float32, frac float64) float32 {
	t := frac
	t2 := t * t
	t3 := t2 * t

	a0 := -0.5*float64(p0) + 1.5*float64(p1) - 1.5*float64(p2) + 0.5*float64(p3)
	a1 := float64(p0) - 2.5*float64(p1) + 2.0*float64(p2) - 0.5*float64(p3)
	a2 := -0.5*float64(p0) + 0.5*float64(p2)
	a3 := float64(p1)

	return float32(a0*t3 + a1*t2 + a2*t + a3)
}

// Points returns a copy of the curve's breakpoints, oldest first.
func (c *Curve) Points() []Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out
}

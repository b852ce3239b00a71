/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package fade builds region fade-in/fade-out curves from a shape and a
// length, and tracks the activation/suspend state of a single fade.
package fade

import (
	"math"
	"sync"

	"github.com/friendsincode/regionengine/internal/region/curve"
)

// Shape selects the gain-ramp algorithm used to build a fade curve.
type Shape int

const (
	Linear Shape = iota
	Fast
	Slow
	ConstantPower
	Symmetric
)

// GainSmall is the non-zero floor used at a fade's quiet endpoint, keeping
// logarithmic rendering (dB meters, plugin input) well defined.
const GainSmall float32 = 0.00001

// MinLength is the shortest a fade may be clamped to.
const MinLength int64 = 64

const buildSteps = 32

func dbToCoeff(db float64) float64 {
	return math.Pow(10, db/20)
}

// BuildFadeOut constructs the canonical decaying curve (1.0 at t=0 down to
// a shape-dependent floor at t=length) for the given shape.
func BuildFadeOut(shape Shape, length int64) *curve.Curve {
	switch shape {
	case Fast:
		return buildDBDecay(length, 60)
	case Slow:
		return buildSlowDecay(length)
	case ConstantPower:
		return buildConstantPowerDecay(length)
	case Symmetric:
		return buildSymmetricDecay(length)
	default:
		return buildLinearDecay(length)
	}
}

// BuildFadeIn constructs the fade-in curve as the time reversal of the
// fade-out curve for the same shape and length.
func BuildFadeIn(shape Shape, length int64) *curve.Curve {
	return reverseCurve(BuildFadeOut(shape, length), length)
}

// BuildInverse constructs the curve a crossfade caller applies to material
// underneath this fade. Fast and Slow use the equal-power complement;
// everything else uses the time-reversed curve (which is equal-power only
// for ConstantPower).
func BuildInverse(shape Shape, primary *curve.Curve, length int64) *curve.Curve {
	switch shape {
	case Fast, Slow:
		return inversePowerCurve(primary)
	default:
		return reverseCurve(primary, length)
	}
}

func buildLinearDecay(length int64) *curve.Curve {
	c := curve.New(curve.Curved)
	c.FastAdd(0, 1.0)
	c.FastAdd(length, GainSmall)
	return c
}

func buildDBDecay(length int64, dbDrop float64) *curve.Curve {
	c := curve.New(curve.Curved)
	for i := 0; i <= buildSteps; i++ {
		when := length * int64(i) / buildSteps
		db := -dbDrop * float64(i) / float64(buildSteps)
		c.FastAdd(when, float32(dbToCoeff(db)))
	}
	return c
}

// buildSlowDecay merges a -1dB and a -80dB linear-in-dB decay, blending
// the two in the dB domain with weight k/N favouring the steep curve as
// the fade progresses.
func buildSlowDecay(length int64) *curve.Curve {
	const dbSlow = -1.0
	const dbFast = -80.0
	c := curve.New(curve.Curved)
	for i := 0; i <= buildSteps; i++ {
		when := length * int64(i) / buildSteps
		k := float64(i) / float64(buildSteps)
		v1 := dbSlow * k
		v2 := dbFast * k
		blended := v1*(1-k) + v2*k
		c.FastAdd(when, float32(dbToCoeff(blended)))
	}
	return c
}

func buildConstantPowerDecay(length int64) *curve.Curve {
	c := curve.New(curve.Curved)
	for i := 0; i <= buildSteps; i++ {
		when := length * int64(i) / buildSteps
		x := float64(i) / float64(buildSteps)
		c.FastAdd(when, float32(math.Cos(math.Pi*x/2)))
	}
	return c
}

// buildSymmetricDecay runs a linear segment down to 0.6 at the midpoint,
// then seven breakpoints placed linearly between breakpoint*length and
// length, each dropping by a further halving of (1-breakpoint).
func buildSymmetricDecay(length int64) *curve.Curve {
	const breakpoint = 0.7
	c := curve.New(curve.Curved)
	c.FastAdd(0, 1.0)

	half := length / 2
	c.FastAdd(half, 0.6)

	for i := 2; i <= 8; i++ {
		when := int64(float64(length) * (breakpoint + (1-breakpoint)*float64(i)/9.0))
		coeff := (1 - breakpoint) * math.Pow(0.5, float64(i))
		c.FastAdd(when, float32(coeff))
	}
	c.FastAdd(length, GainSmall)
	return c
}

func reverseCurve(src *curve.Curve, length int64) *curve.Curve {
	pts := src.Points()
	out := curve.New(src.Interpolation())
	for i := len(pts) - 1; i >= 0; i-- {
		out.FastAdd(length-pts[i].When, pts[i].Value)
	}
	return out
}

func inversePowerCurve(src *curve.Curve) *curve.Curve {
	pts := src.Points()
	out := curve.New(src.Interpolation())
	for _, p := range pts {
		v := float64(p.Value)
		iv := 1 - v*v
		if iv < 0 {
			iv = 0
		}
		out.FastAdd(p.When, float32(math.Sqrt(iv)))
	}
	return out
}

// Fade wraps a primary curve and its inverse with the activation/default/
// suspend bookkeeping a region needs for one boundary (in or out). A Fade
// is fixed to one boundary for its lifetime: out controls whether
// setShapeLocked builds a descending (fade-out) or ascending (fade-in)
// primary curve.
type Fade struct {
	mu sync.Mutex

	shape   Shape
	out     bool
	primary *curve.Curve
	inverse *curve.Curve

	active       bool
	isDefault    bool
	suspendCount int
}

// NewDefaultIn builds a fade-in Fade at MinLength using shape, flagged as
// default.
func NewDefaultIn(shape Shape) *Fade {
	return newDefault(shape, false)
}

// NewDefaultOut builds a fade-out Fade at MinLength using shape, flagged
// as default.
func NewDefaultOut(shape Shape) *Fade {
	return newDefault(shape, true)
}

func newDefault(shape Shape, out bool) *Fade {
	f := &Fade{active: true, out: out}
	f.setShapeLocked(shape, MinLength, true)
	return f
}

// SetShape regenerates the fade at the given length, clearing the default
// flag.
func (f *Fade) SetShape(shape Shape, length int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setShapeLocked(shape, clampLength(length), false)
}

// SetDefault regenerates the fade at MinLength using shape and resets the
// suspend counter, as the original does when reverting to session
// defaults.
func (f *Fade) SetDefault(shape Shape) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspendCount = 0
	f.setShapeLocked(shape, MinLength, true)
}

func (f *Fade) setShapeLocked(shape Shape, length int64, isDefault bool) {
	f.shape = shape
	if f.out {
		f.primary = BuildFadeOut(shape, length)
	} else {
		f.primary = BuildFadeIn(shape, length)
	}
	f.inverse = BuildInverse(shape, f.primary, length)
	f.isDefault = isDefault
}

// SetLength clamps length to [MinLength, regionLength-1], extends or
// truncates the existing curve and inverse to the new length (ExtendTo;
// the shape is not rebuilt), and clears the default flag.
func (f *Fade) SetLength(length, regionLength int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clamped := clampAgainstRegion(length, regionLength)
	f.primary.ExtendTo(clamped)
	f.inverse.ExtendTo(clamped)
	f.isDefault = false
}

func clampLength(length int64) int64 {
	if length < MinLength {
		return MinLength
	}
	return length
}

// ClampLength applies the same [MinLength, regionLength-1] clamp SetLength
// uses, for callers that need to pre-clamp a length before calling
// SetShape (which does not know the owning region's length).
func ClampLength(length, regionLength int64) int64 {
	return clampAgainstRegion(length, regionLength)
}

// DBToCoeff converts a decibel value to a linear amplitude coefficient.
func DBToCoeff(db float64) float64 {
	return dbToCoeff(db)
}

func clampAgainstRegion(length, regionLength int64) int64 {
	max := regionLength - 1
	if max < MinLength {
		max = MinLength
	}
	clamped := clampLength(length)
	if clamped > max {
		clamped = max
	}
	return clamped
}

// IsDefault reports whether the curve still matches the two-point, 64
// sample shape installed by SetDefault.
func (f *Fade) IsDefault() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isDefault && f.primary.Len() == 2 && f.primary.EndpointWhen(true) == 0 && f.primary.EndpointWhen(false) == MinLength
}

// Active reports whether the fade currently applies.
func (f *Fade) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// SetActive sets the fade's active gate directly (the caller's explicit
// on/off control, independent of suspend/resume).
func (f *Fade) SetActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = active
}

// Suspend increments the suspend counter; on the 0->1 transition, a
// default fade is deactivated.
func (f *Fade) Suspend() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspendCount++
	if f.suspendCount == 1 && f.isDefault {
		f.active = false
	}
}

// Resume decrements the suspend counter. Reactivation is gated on the
// counter having been above zero before this call (not just reaching
// zero after it) and the fade still being flagged default. This mirrors
// the original's observed behaviour rather than the more obvious
// "reactivate whenever the counter reaches zero" rule; preserved
// intentionally rather than corrected (see Open Questions).
func (f *Fade) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	wasSuspended := f.suspendCount > 0
	if f.suspendCount > 0 {
		f.suspendCount--
	}
	if wasSuspended && f.suspendCount == 0 && f.isDefault {
		f.active = true
	}
}

// Restore installs a primary/inverse curve pair and flags directly,
// bypassing shape construction. Used when rehydrating a fade from
// persisted state, where the document may carry either "default=yes"
// (regenerate at MinLength from the session's shape) or an explicit
// breakpoint list captured at whatever length was last set.
func (f *Fade) Restore(shape Shape, primary, inverse *curve.Curve, isDefault, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shape = shape
	f.primary = primary
	f.inverse = inverse
	f.isDefault = isDefault
	f.active = active
}

// Curve returns the fade's primary gain curve.
func (f *Fade) Curve() *curve.Curve {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.primary
}

// Inverse returns the curve a crossfade caller applies beneath this fade.
func (f *Fade) Inverse() *curve.Curve {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inverse
}

// Shape reports the fade's current shape.
func (f *Fade) Shape() Shape {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shape
}

// EndTimeSamples reports the fade's length in samples (F_in / F_out in the
// read-at-position algorithm).
func (f *Fade) EndTimeSamples() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.primary.EndpointWhen(false)
}

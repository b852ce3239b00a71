/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package region implements the audio region read engine: a bounded,
// gain/envelope/fade-decorated view over one or more audio sources, with
// an optional in-region plugin chain and a read cache that amortises the
// chain's cost across per-channel calls.
package region

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/friendsincode/regionengine/internal/region/cache"
	"github.com/friendsincode/regionengine/internal/region/curve"
	"github.com/friendsincode/regionengine/internal/region/fade"
	"github.com/friendsincode/regionengine/internal/region/fx"
	"github.com/friendsincode/regionengine/internal/region/source"
)

// ErrChannelMismatch is returned when sources and masterSources disagree
// on channel count.
var ErrChannelMismatch = errors.New("region: sources and master sources must have the same channel count")

// ErrNoChannels is returned by New when given an empty source list.
var ErrNoChannels = errors.New("region: at least one channel is required")

// Config carries the region engine's few knobs. DefaultConfig supplies
// built-in values; nothing in this module reads them from the
// environment or from internal/config.
type Config struct {
	// ReplicateMissingChannels, when true, resolves a read at a channel
	// index beyond the region's channel count to chan%n_chan instead of
	// silence.
	ReplicateMissingChannels bool
	// UseRegionFades globally gates whether fade-in/fade-out are applied
	// at all, independent of each fade's own active flag.
	UseRegionFades bool
	// DefaultFadeShape is the shape used by SetDefaultFadeIn/Out and by
	// New's initial fades.
	DefaultFadeShape fade.Shape
}

// DefaultConfig returns the engine's built-in defaults.
func DefaultConfig() Config {
	return Config{
		ReplicateMissingChannels: false,
		UseRegionFades:           true,
		DefaultFadeShape:         fade.Linear,
	}
}

// ChangeMask is a bitmask of region property tags, replacing the
// deep-inheritance signal/slot property-change notifications of the
// original with a plain value plus a subscription list kept outside this
// package (see ChangeNotifier).
type ChangeMask uint32

const (
	ChangePosition ChangeMask = 1 << iota
	ChangeLength
	ChangeStart
	ChangeScaleAmplitude
	ChangeEnvelope
	ChangeFadeIn
	ChangeFadeOut
	ChangeFadeBeforeFx
	ChangePlugins
	ChangeOpaque
)

// ChangeNotifier receives a region's change-set on every mutation. A
// region has at most one; callers wanting multiple subscribers fan out
// from their own Publish implementation (see internal/events for the
// station's subscription-list-keyed-by-tag bus).
type ChangeNotifier interface {
	Publish(regionID string, mask ChangeMask)
}

// Region is a named, time-positioned view over one or more audio
// sources, decorated with gain scaling, gain envelope, fade-in,
// fade-out, and an optional in-region plugin chain.
type Region struct {
	mu sync.RWMutex

	id  string
	cfg Config

	position int64
	length   int64
	start    int64

	sources       []source.Source
	masterSources []source.Source

	scaleAmplitude float32
	envelopeActive bool
	envelope       *curve.Curve

	fadeIn  *fade.Fade
	fadeOut *fade.Fade

	inverseFadeInOverride  *curve.Curve
	inverseFadeOutOverride *curve.Curve

	fadeBeforeFx bool
	opaque       bool

	chain *fx.Chain
	cache *cache.Cache

	invalidated atomic.Bool

	notifier ChangeNotifier
}

// New creates a region from a source list. masterSources parallels
// sources and is used by ReadRaw, which bypasses gain/fades.
func New(id string, sources, masterSources []source.Source, position, start, length int64, cfg Config) (*Region, error) {
	if len(sources) == 0 {
		return nil, ErrNoChannels
	}
	if len(sources) != len(masterSources) {
		return nil, fmt.Errorf("region %s: %d sources vs %d master sources: %w", id, len(sources), len(masterSources), ErrChannelMismatch)
	}

	envelope := curve.New(curve.Linear)
	envelope.FastAdd(0, 1.0)
	envelope.FastAdd(length, 1.0)

	r := &Region{
		id:             id,
		cfg:            cfg,
		position:       position,
		start:          start,
		length:         length,
		sources:        append([]source.Source(nil), sources...),
		masterSources:  append([]source.Source(nil), masterSources...),
		scaleAmplitude: 1.0,
		envelopeActive: false,
		envelope:       envelope,
		fadeIn:         fade.NewDefaultIn(cfg.DefaultFadeShape),
		fadeOut:        fade.NewDefaultOut(cfg.DefaultFadeShape),
		fadeBeforeFx:   false,
		opaque:         true,
		chain:          fx.NewChain(),
		cache:          cache.New(),
	}
	return r, nil
}

// Copy creates a new region sharing this region's sources, offset in
// session time by delta samples. The copy starts with its own default
// fades and an empty plugin chain; callers that want to preserve those
// should do so explicitly after Copy returns.
func (r *Region) Copy(newID string, delta int64) (*Region, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return New(newID, r.sources, r.masterSources, r.position+delta, r.start, r.length, r.cfg)
}

// SetNotifier installs the region's change notifier.
func (r *Region) SetNotifier(n ChangeNotifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifier = n
}

// ID returns the region's stable identifier.
func (r *Region) ID() string { return r.id }

func (r *Region) Position() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.position
}

func (r *Region) Length() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.length
}

func (r *Region) Start() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.start
}

func (r *Region) NumChannels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

func (r *Region) ScaleAmplitude() float32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scaleAmplitude
}

func (r *Region) Opaque() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opaque
}

// EnvelopeActive reports whether the gain envelope curve is applied.
func (r *Region) EnvelopeActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.envelopeActive
}

// FadeBeforeFx reports whether fades apply before the plugin chain.
func (r *Region) FadeBeforeFx() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fadeBeforeFx
}

// InverseFadeInOverride returns the explicit inverse fade-in curve
// installed by SetInverseFadeIn, or nil if the fade's own computed
// inverse is in effect.
func (r *Region) InverseFadeInOverride() *curve.Curve {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inverseFadeInOverride
}

// InverseFadeOutOverride is the fade-out analogue of
// InverseFadeInOverride.
func (r *Region) InverseFadeOutOverride() *curve.Curve {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inverseFadeOutOverride
}

// invalidate sets the atomic invalidated flag (observed and cleared by
// the next read on channel 0) and forwards the change to the notifier,
// if any.
func (r *Region) invalidate(mask ChangeMask) {
	r.invalidated.Store(true)
	r.notify(mask)
}

// notify forwards a change without touching the invalidated flag, for
// mutations that don't affect cached render output (e.g. opaque).
func (r *Region) notify(mask ChangeMask) {
	if r.notifier != nil {
		r.notifier.Publish(r.id, mask)
	}
}

// SetPosition moves the region in session time.
func (r *Region) SetPosition(pos int64) {
	r.mu.Lock()
	r.position = pos
	r.mu.Unlock()
	r.invalidate(ChangePosition)
}

// SetStart changes the region's offset into its sources.
func (r *Region) SetStart(start int64) {
	r.mu.Lock()
	r.start = start
	r.mu.Unlock()
	r.invalidate(ChangeStart)
}

// SetLength changes the region's nominal duration, extending the
// envelope's domain to match (invariant: envelope's domain equals
// [0, length] at all times).
func (r *Region) SetLength(length int64) {
	r.mu.Lock()
	r.length = length
	r.envelope.ExtendTo(length)
	r.mu.Unlock()
	r.invalidate(ChangeLength | ChangeEnvelope)
}

// SetScaleAmplitude sets the region's scalar gain (negative inverts
// phase).
func (r *Region) SetScaleAmplitude(v float32) {
	r.mu.Lock()
	r.scaleAmplitude = v
	r.mu.Unlock()
	r.invalidate(ChangeScaleAmplitude)
}

// SetEnvelopeActive gates whether the envelope curve is applied.
func (r *Region) SetEnvelopeActive(active bool) {
	r.mu.Lock()
	r.envelopeActive = active
	r.mu.Unlock()
	r.invalidate(ChangeEnvelope)
}

// Envelope returns the region's gain envelope curve.
func (r *Region) Envelope() *curve.Curve {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.envelope
}

// SetFadeBeforeFx selects whether fades apply before the plugin chain
// (fade-before-fx) or to the final mixdown.
func (r *Region) SetFadeBeforeFx(before bool) {
	r.mu.Lock()
	r.fadeBeforeFx = before
	r.mu.Unlock()
	r.invalidate(ChangeFadeBeforeFx)
}

// SetOpaque sets whether the region attenuates material beneath it.
// Unlike the other setters, this does not invalidate the read cache: the
// cache holds pre-mix samples and opaque only affects the mix step.
func (r *Region) SetOpaque(opaque bool) {
	r.mu.Lock()
	r.opaque = opaque
	r.mu.Unlock()
	r.notify(ChangeOpaque)
}

// SetFadeIn rebuilds the fade-in curve from shape and length, clamping
// length to [fade.MinLength, region.length-1].
func (r *Region) SetFadeIn(shape fade.Shape, length int64) {
	r.mu.Lock()
	clamped := fade.ClampLength(length, r.length)
	r.fadeIn.SetShape(shape, clamped)
	r.mu.Unlock()
	r.invalidate(ChangeFadeIn)
}

// SetFadeOut rebuilds the fade-out curve from shape and length.
func (r *Region) SetFadeOut(shape fade.Shape, length int64) {
	r.mu.Lock()
	clamped := fade.ClampLength(length, r.length)
	r.fadeOut.SetShape(shape, clamped)
	r.mu.Unlock()
	r.invalidate(ChangeFadeOut)
}

// SetFadeInLength re-clamps and extends the fade-in curve to a new
// length without changing its shape.
func (r *Region) SetFadeInLength(length int64) {
	r.mu.RLock()
	regionLength := r.length
	r.mu.RUnlock()
	r.fadeIn.SetLength(length, regionLength)
	r.invalidate(ChangeFadeIn)
}

// SetFadeOutLength is the fade-out analogue of SetFadeInLength.
func (r *Region) SetFadeOutLength(length int64) {
	r.mu.RLock()
	regionLength := r.length
	r.mu.RUnlock()
	r.fadeOut.SetLength(length, regionLength)
	r.invalidate(ChangeFadeOut)
}

// SetDefaultFadeIn reverts the fade-in to the session default shape at
// fade.MinLength.
func (r *Region) SetDefaultFadeIn() {
	r.fadeIn.SetDefault(r.cfg.DefaultFadeShape)
	r.invalidate(ChangeFadeIn)
}

// SetDefaultFadeOut is the fade-out analogue of SetDefaultFadeIn.
func (r *Region) SetDefaultFadeOut() {
	r.fadeOut.SetDefault(r.cfg.DefaultFadeShape)
	r.invalidate(ChangeFadeOut)
}

// SetFadeInActive gates whether the fade-in applies.
func (r *Region) SetFadeInActive(active bool) {
	r.fadeIn.SetActive(active)
	r.invalidate(ChangeFadeIn)
}

// SetFadeOutActive gates whether the fade-out applies.
func (r *Region) SetFadeOutActive(active bool) {
	r.fadeOut.SetActive(active)
	r.invalidate(ChangeFadeOut)
}

// SuspendFadeIn increments the fade-in's suspend counter; a default fade
// is deactivated on the 0->1 transition.
func (r *Region) SuspendFadeIn() { r.fadeIn.Suspend() }

// ResumeFadeIn decrements the fade-in's suspend counter. See
// fade.Fade.Resume for the deliberately preserved reactivation guard.
func (r *Region) ResumeFadeIn() { r.fadeIn.Resume() }

// SuspendFadeOut is the fade-out analogue of SuspendFadeIn.
func (r *Region) SuspendFadeOut() { r.fadeOut.Suspend() }

// ResumeFadeOut is the fade-out analogue of ResumeFadeIn.
func (r *Region) ResumeFadeOut() { r.fadeOut.Resume() }

// FadeIn returns the region's fade-in.
func (r *Region) FadeIn() *fade.Fade { return r.fadeIn }

// FadeOut returns the region's fade-out.
func (r *Region) FadeOut() *fade.Fade { return r.fadeOut }

// SetInverseFadeIn installs an explicit inverse fade-in curve for
// crossfade callers, overriding the fade's own computed inverse.
func (r *Region) SetInverseFadeIn(c *curve.Curve) {
	r.mu.Lock()
	r.inverseFadeInOverride = c
	r.mu.Unlock()
	r.invalidate(ChangeFadeIn)
}

// SetInverseFadeOut is the fade-out analogue of SetInverseFadeIn.
func (r *Region) SetInverseFadeOut(c *curve.Curve) {
	r.mu.Lock()
	r.inverseFadeOutOverride = c
	r.mu.Unlock()
	r.invalidate(ChangeFadeOut)
}

// AddPlugin appends a plugin to the region's chain, rejecting it if it
// cannot be configured at the region's channel count.
func (r *Region) AddPlugin(p fx.Plugin) error {
	if err := r.chain.Add(p, r.NumChannels()); err != nil {
		return err
	}
	r.invalidate(ChangePlugins)
	return nil
}

// RemovePlugin drops p from the region's chain.
func (r *Region) RemovePlugin(p fx.Plugin) {
	r.chain.Remove(p)
	r.invalidate(ChangePlugins)
}

// ReorderPlugins replaces the chain's plugin order.
func (r *Region) ReorderPlugins(order []fx.Plugin) {
	r.chain.Reorder(order)
	r.invalidate(ChangePlugins)
}

// Plugins returns a snapshot of the region's plugin chain.
func (r *Region) Plugins() []fx.Plugin {
	return r.chain.Plugins()
}

// BodyRange returns the region-local range of content excluding the
// fade-in and fade-out extents.
func (r *Region) BodyRange() (start, end int64) {
	r.mu.RLock()
	length := r.length
	r.mu.RUnlock()
	start = r.fadeIn.EndTimeSamples()
	end = length - r.fadeOut.EndTimeSamples()
	if end < start {
		end = start
	}
	return start, end
}

// ClampCrossfadeLength clamps a proposed crossfade length against the
// bounds of the single other region overlapping the given boundary
// (start=true for this region's start boundary, false for its end). The
// caller is responsible for establishing that other is the one region
// overlapping that boundary; this helper performs no orchestration.
func (r *Region) ClampCrossfadeLength(other *Region, proposed int64, start bool) int64 {
	r.mu.RLock()
	pos, length := r.position, r.length
	r.mu.RUnlock()
	other.mu.RLock()
	oPos, oLength := other.position, other.length
	other.mu.RUnlock()

	var maxLen int64
	if start {
		if oEnd := oPos + oLength; oEnd > pos {
			maxLen = oEnd - pos
		}
	} else {
		if end := pos + length; oPos < end {
			maxLen = end - oPos
		}
	}
	if maxLen <= 0 {
		return 0
	}
	if proposed > maxLen {
		proposed = maxLen
	}
	return fade.ClampLength(proposed, length)
}

// Normalize sets scale_amplitude so that maxAmplitude maps to targetDB,
// mirroring the original's epsilon nudge away from exact unity gain.
func (r *Region) Normalize(maxAmplitude float32, targetDB float64) {
	const float32Epsilon float32 = 1.1920929e-7

	target := float32(fade.DBToCoeff(targetDB))
	if target == 1.0 {
		target -= float32Epsilon
	}
	if maxAmplitude < fade.GainSmall || maxAmplitude == target {
		return
	}
	r.SetScaleAmplitude(target / maxAmplitude)
}

func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func clampNonNeg(a, b int64) int64 {
	v := a
	if b < v {
		v = b
	}
	if v < 0 {
		v = 0
	}
	return v
}

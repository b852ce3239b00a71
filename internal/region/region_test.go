/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package region

import (
	"math"
	"testing"

	"github.com/friendsincode/regionengine/internal/region/fade"
	"github.com/friendsincode/regionengine/internal/region/source"
)

func makeSamples(n int, base float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = base + float32(i)
	}
	return out
}

func newMonoRegion(t *testing.T, samples []float32, length int64) *Region {
	t.Helper()
	src := source.NewMemorySource(samples, 48000)
	r, err := New("r1", []source.Source{src}, []source.Source{src}, 0, 0, length, DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func approx(t *testing.T, got, want, eps float32) {
	t.Helper()
	d := float64(got - want)
	if math.Abs(d) > float64(eps) {
		t.Fatalf("got %v, want %v (eps %v)", got, want, eps)
	}
}

// Scenario 1: region of 1000 samples, scale 0.5, no fades, opaque.
func TestReadAtScaleOnlyNoFades(t *testing.T) {
	samples := makeSamples(1000, 1.0)
	r := newMonoRegion(t, samples, 1000)
	r.SetFadeInActive(false)
	r.SetFadeOutActive(false)
	r.SetScaleAmplitude(0.5)

	buf := make([]float32, 1000)
	mix := make([]float32, 1000)
	gain := make([]float32, 1000)

	n, err := r.ReadAt(buf, mix, gain, 0, 1000, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 1000 {
		t.Fatalf("n = %d, want 1000", n)
	}
	for i := range samples {
		approx(t, buf[i], 0.5*samples[i], 1e-5)
	}
}

// Scenario 2: same region with a linear fade-in of 100 and fade-out of 100.
func TestReadAtLinearFades(t *testing.T) {
	samples := makeSamples(1000, 1.0)
	r := newMonoRegion(t, samples, 1000)
	r.SetScaleAmplitude(0.5)
	r.SetFadeIn(fade.Linear, 100)
	r.SetFadeOut(fade.Linear, 100)

	buf := make([]float32, 1000)
	mix := make([]float32, 1000)
	gain := make([]float32, 1000)

	n, err := r.ReadAt(buf, mix, gain, 0, 1000, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 1000 {
		t.Fatalf("n = %d, want 1000", n)
	}

	approx(t, buf[0], fade.GainSmall*0.5*samples[0], 1e-4)
	approx(t, buf[999], fade.GainSmall*0.5*samples[999], 1e-4)
	approx(t, buf[500], 0.5*samples[500], 1e-4)
}

// Scenario 3: two-channel region with a latency-32, tail-0 plugin chain.
// The second channel's read at the same window must hit the cache (no
// further source read) and both channels must observe the same aligned
// plugin response.
func TestReadAtTwoChannelPluginCacheHit(t *testing.T) {
	samplesL := makeSamples(2000, 1.0)
	samplesR := makeSamples(2000, 2.0)
	srcL := source.NewMemorySource(samplesL, 48000)
	srcR := source.NewMemorySource(samplesR, 48000)

	r, err := New("r2", []source.Source{srcL, srcR}, []source.Source{srcL, srcR}, 0, 0, 1000, DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.SetFadeInActive(false)
	r.SetFadeOutActive(false)

	p := &passthroughPlugin{lat: 32}
	if err := r.AddPlugin(p); err != nil {
		t.Fatalf("AddPlugin: %v", err)
	}

	buf0 := make([]float32, 256)
	buf1 := make([]float32, 256)
	mix := make([]float32, 256)
	gain := make([]float32, 256)

	n0, err := r.ReadAt(buf0, mix, gain, 0, 256, 0)
	if err != nil {
		t.Fatalf("ReadAt chan 0: %v", err)
	}
	if n0 != 256 {
		t.Fatalf("n0 = %d, want 256", n0)
	}
	readsAfterFirst := srcR.ReadCount()

	n1, err := r.ReadAt(buf1, mix, gain, 0, 256, 1)
	if err != nil {
		t.Fatalf("ReadAt chan 1: %v", err)
	}
	if n1 != 256 {
		t.Fatalf("n1 = %d, want 256", n1)
	}
	if got := srcR.ReadCount(); got != readsAfterFirst {
		t.Fatalf("expected no further source read on cache hit, reads went from %d to %d", readsAfterFirst, got)
	}
}

// Scenario 4: non-opaque region with fade-in 50: buf is additively mixed
// over the fade window with no attenuation of existing content, and
// additively mixed (unscaled) over the body.
func TestReadAtNonOpaqueFadeInAdditive(t *testing.T) {
	samples := makeSamples(1000, 1.0)
	r := newMonoRegion(t, samples, 1000)
	r.SetOpaque(false)
	r.SetFadeIn(fade.Linear, 50)
	r.SetFadeOutActive(false)

	buf := make([]float32, 200)
	for i := range buf {
		buf[i] = 10.0
	}
	mix := make([]float32, 200)
	gain := make([]float32, 200)

	n, err := r.ReadAt(buf, mix, gain, 0, 200, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 200 {
		t.Fatalf("n = %d, want 200", n)
	}

	fadeInVals := make([]float32, 50)
	r.FadeIn().Curve().SampleInto(fadeInVals, 0, 49, 50)
	for i := 0; i < 50; i++ {
		want := 10.0 + samples[i]*fadeInVals[i]
		approx(t, buf[i], want, 1e-3)
	}
	for i := 50; i < 200; i++ {
		want := 10.0 + samples[i]
		approx(t, buf[i], want, 1e-3)
	}
}

// Scenario 5: opaque region with an explicit inverse_fade_in and a
// constant-value 1.0 input buffer: over [0, F_in), buf[i] ==
// inverse_fade_in(i) + mix[i]*fade_in(i).
func TestReadAtExplicitInverseFadeInCrossfade(t *testing.T) {
	samples := makeSamples(1000, 1.0)
	r := newMonoRegion(t, samples, 1000)
	r.SetFadeIn(fade.Linear, 100)
	r.SetFadeOutActive(false)

	inv := r.FadeIn().Inverse()
	r.SetInverseFadeIn(inv)

	buf := make([]float32, 200)
	for i := range buf {
		buf[i] = 1.0
	}
	mix := make([]float32, 200)
	gain := make([]float32, 200)

	n, err := r.ReadAt(buf, mix, gain, 0, 200, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 200 {
		t.Fatalf("n = %d, want 200", n)
	}

	invVals := make([]float32, 100)
	inv.SampleInto(invVals, 0, 99, 100)
	fadeInVals := make([]float32, 100)
	r.FadeIn().Curve().SampleInto(fadeInVals, 0, 99, 100)

	for i := 0; i < 100; i++ {
		want := invVals[i] + samples[i]*fadeInVals[i]
		approx(t, buf[i], want, 1e-3)
	}
}

// Scenario 6: region length 1000, plugin tail 200. Reading at
// region-local position 900 has only 100 samples of body left; with a
// 200-sample plugin tail, the read produces 100 + 200 = 300 samples
// total with no source read beyond the 100 body samples.
func TestReadAtPluginTail(t *testing.T) {
	samples := makeSamples(1000, 1.0)
	src := source.NewMemorySource(samples, 48000)

	r, err := New("r3", []source.Source{src}, []source.Source{src}, 1000, 0, 1000, DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.SetFadeInActive(false)
	r.SetFadeOutActive(false)
	r.SetFadeBeforeFx(true)

	p := &passthroughPlugin{tail: 200}
	if err := r.AddPlugin(p); err != nil {
		t.Fatalf("AddPlugin: %v", err)
	}

	buf := make([]float32, 300)
	mix := make([]float32, 300)
	gain := make([]float32, 300)

	readsBefore := src.ReadCount()
	n, err := r.ReadAt(buf, mix, gain, 1900, 300, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 300 {
		t.Fatalf("n = %d, want 300 (100 body + 200 tail)", n)
	}
	if got := src.ReadCount(); got != readsBefore+1 {
		t.Fatalf("expected exactly one source read (for the 100 body samples), got %d reads", got-readsBefore)
	}
	for i := 0; i < 100; i++ {
		approx(t, buf[i], samples[900+i], 1e-3)
	}
}

// passthroughPlugin is a test-only fx.Plugin implementation that leaves
// samples untouched, reporting a fixed latency and tail.
type passthroughPlugin struct {
	lat, tail int
	flushed   int
}

func (p *passthroughPlugin) CanSupportIO(in, out int) bool { return true }
func (p *passthroughPlugin) ConfigureIO(in, out int) bool  { return true }
func (p *passthroughPlugin) RequiredBuffers() int          { return 0 }
func (p *passthroughPlugin) SetBlockSize(n int)            {}
func (p *passthroughPlugin) EffectiveLatency() int         { return p.lat }
func (p *passthroughPlugin) EffectiveTailTime() int        { return p.tail }
func (p *passthroughPlugin) Flush()                        { p.flushed++ }
func (p *passthroughPlugin) Run(bufs [][]float32, cycleStart, cycleEnd, regionPos int64, n, offset int) bool {
	return true
}

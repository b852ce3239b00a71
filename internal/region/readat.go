/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package region

import (
	"fmt"
	"time"

	"github.com/friendsincode/regionengine/internal/region/cache"
	"github.com/friendsincode/regionengine/internal/region/curve"
	"github.com/friendsincode/regionengine/internal/region/fade"
	"github.com/friendsincode/regionengine/internal/region/source"
	"github.com/friendsincode/regionengine/internal/telemetry"
)

// effectiveChannel resolves a requested channel index against the
// region's actual channel count under the replicate-missing-channels
// policy: a channel beyond nChan either wraps (ch % nChan) when
// replication is enabled, or has no source (ok=false, caller fills
// silence). Used both by readFromSources (direct reads) and by the read
// cache's copy-out step, since both call sites apply the identical
// policy described once in the data model.
func effectiveChannel(ch, nChan int, replicate bool) (int, bool) {
	if ch < nChan {
		return ch, true
	}
	if !replicate {
		return 0, false
	}
	return ch % nChan, true
}

// readFromSources is the source reader adapter (component C): it reads
// at most cnt samples of channel ch at absolute session position
// posAbs, clamped to limit samples from the region start, applying the
// channel-replication policy and the all-or-nothing partial-read rule
// (any short read from the underlying source is reported as zero
// produced samples here, matching the engine's "partial read is a hard
// failure of this render" error policy).
func (r *Region) readFromSources(limit int64, buf []float32, posAbs int64, cnt int, ch int) (int, error) {
	r.mu.RLock()
	position := r.position
	start := r.start
	srcs := r.sources
	replicate := r.cfg.ReplicateMissingChannels
	r.mu.RUnlock()

	nChan := len(srcs)
	internal := posAbs - position
	if internal >= limit || cnt <= 0 {
		return 0, nil
	}

	effCh, ok := effectiveChannel(ch, nChan, replicate)
	if !ok {
		zero(buf[:cnt])
		return cnt, nil
	}

	toRead := int64(cnt)
	if remain := limit - internal; toRead > remain {
		toRead = remain
	}
	if toRead <= 0 {
		return 0, nil
	}

	n, err := srcs[effCh].Read(buf[:toRead], start+internal, int(toRead))
	if err != nil {
		return 0, fmt.Errorf("region: read from source: %w", err)
	}
	if int64(n) != toRead {
		return 0, nil
	}
	return n, nil
}

// ReadRaw reads cnt samples of channel ch directly from the region's
// master sources at source-absolute position posAbsSrc, bypassing gain,
// envelope and fades entirely.
func (r *Region) ReadRaw(buf []float32, posAbsSrc int64, cnt int, ch int) (int, error) {
	r.mu.RLock()
	srcs := r.masterSources
	replicate := r.cfg.ReplicateMissingChannels
	r.mu.RUnlock()

	effCh, ok := effectiveChannel(ch, len(srcs), replicate)
	if !ok {
		zero(buf[:cnt])
		return cnt, nil
	}
	n, err := srcs[effCh].Read(buf[:cnt], posAbsSrc, cnt)
	if err != nil {
		return 0, fmt.Errorf("region: read raw: %w", err)
	}
	return n, nil
}

// ReadPeaks fills out[0:nPeaks] with min/max peaks summarising cnt
// samples of channel ch starting at region-local offset, applying
// scale_amplitude (swapping min/max when the scale is negative, since a
// phase invert flips which bound is the true minimum).
func (r *Region) ReadPeaks(out []source.Peak, nPeaks int, offset int64, cnt int64, ch int, samplesPerPixel int) (int, error) {
	r.mu.RLock()
	srcs := r.sources
	replicate := r.cfg.ReplicateMissingChannels
	scale := r.scaleAmplitude
	start := r.start
	r.mu.RUnlock()

	effCh, ok := effectiveChannel(ch, len(srcs), replicate)
	if !ok {
		for i := range out[:nPeaks] {
			out[i] = source.Peak{}
		}
		return nPeaks, nil
	}

	if err := srcs[effCh].ReadPeaks(out[:nPeaks], nPeaks, start+offset, cnt, samplesPerPixel); err != nil {
		return 0, fmt.Errorf("region: read peaks: %w", err)
	}

	for i := range out[:nPeaks] {
		out[i].Min *= scale
		out[i].Max *= scale
	}
	if scale < 0 {
		for i := range out[:nPeaks] {
			out[i].Min, out[i].Max = out[i].Max, out[i].Min
		}
	}
	return nPeaks, nil
}

// ReadAt renders cnt samples of channel ch at absolute session position
// pos into buf, mixing into buf's existing contents under the
// opaque/fade/crossfade policy described by the region's mix step. mix
// and gain are caller-owned scratch buffers, each required to have
// length >= cnt; buf must have length >= cnt. It returns the number of
// samples actually written, always in [0, cnt].
//
// On a partial source read or a plugin failure the call returns (0,
// nil): the region's internal state (cache, invalidated flag) is left
// consistent for the caller to simply retry on the next tick, per the
// engine's no-throw error policy.
func (r *Region) ReadAt(buf, mix, gain []float32, pos int64, cnt int, ch int) (int, error) {
	start := time.Now()
	cacheResult := "miss"
	defer func() {
		telemetry.ReadDuration.WithLabelValues(cacheResult).Observe(time.Since(start).Seconds())
	}()

	r.mu.RLock()
	psamples := r.position
	lsamples := r.length
	nChan := len(r.sources)
	fadeBeforeFx := r.fadeBeforeFx
	opaque := r.opaque
	scaleAmplitude := r.scaleAmplitude
	envelopeActive := r.envelopeActive
	useRegionFades := r.cfg.UseRegionFades
	replicate := r.cfg.ReplicateMissingChannels
	envelope := r.envelope
	fadeIn, fadeOut := r.fadeIn, r.fadeOut
	inverseFadeInOverride := r.inverseFadeInOverride
	inverseFadeOutOverride := r.inverseFadeOutOverride
	r.mu.RUnlock()

	if cnt <= 0 {
		return 0, nil
	}

	havePlugins := !r.chain.Empty()
	var tsamples int64
	if fadeBeforeFx && havePlugins {
		tsamples = int64(r.chain.Tail())
	}

	internal := pos - psamples
	if internal < 0 {
		return 0, fmt.Errorf("region: read_at position %d precedes region start", pos)
	}
	if internal >= lsamples+tsamples {
		return 0, nil
	}

	var suffix int64
	if internal > lsamples {
		suffix = internal - lsamples
		internal = lsamples
	}

	toRead := clampNonNeg(int64(cnt), lsamples-internal)
	canRead := clampNonNeg(int64(cnt), lsamples-internal+tsamples)
	if canRead <= 0 {
		return 0, nil
	}

	var fadeInLimit int64
	if fadeIn.Active() && useRegionFades {
		if fIn := fadeIn.EndTimeSamples(); internal < fIn {
			fadeInLimit = minI64(toRead, fIn-internal)
		}
	}

	var fadeOutLimit, fadeOutOffset, fadeIntervalStart int64
	if fadeOut.Active() && useRegionFades {
		fOut := fadeOut.EndTimeSamples()
		start := maxI64(internal, lsamples-fOut)
		end := minI64(internal+toRead, lsamples)
		if end > start {
			fadeOutLimit = end - start
			fadeOutOffset = start - internal
			fadeIntervalStart = start
		}
	}

	startAbs := psamples + internal
	cacheKey := internal + suffix

	r.cache.Lock()
	if ch == 0 {
		if r.invalidated.CompareAndSwap(true, false) {
			r.cache.Clear()
		}
	}

	var mixSlice []float32
	var cacheTailVal int64
	nofx := false

	if nChan > 1 && r.cache.Valid() && r.cache.Contains(cacheKey, canRead) {
		cacheResult = "hit"
		telemetry.CacheHitsTotal.WithLabelValues("hit").Inc()
		_, _, cacheTailVal = r.cache.Range()
		effCh, ok := effectiveChannel(ch, r.cache.NumChannels(), replicate)
		n := minI64(canRead, int64(cnt))
		if ok {
			r.cache.CopyOut(effCh, cacheKey, mix[:n], n)
		} else {
			zero(mix[:n])
		}
		r.cache.Unlock()
		mixSlice = mix[:n]
	} else if !havePlugins {
		r.cache.Unlock()
		n, err := r.readFromSources(lsamples, mix[:toRead], startAbs, int(toRead), ch)
		if err != nil {
			return 0, err
		}
		if int64(n) != toRead {
			r.invalidated.Store(true)
			return 0, nil
		}
		applyGain(mix[:toRead], envelope, envelopeActive, scaleAmplitude, internal, toRead)
		nofx = true
		mixSlice = mix[:toRead]
	} else {
		telemetry.CacheHitsTotal.WithLabelValues("miss").Inc()
		n, err := r.fillFromSourcesAndFx(startAbs, internal, toRead, canRead, tsamples, ch, replicate,
			fadeBeforeFx, scaleAmplitude, envelopeActive, useRegionFades, envelope, fadeIn, fadeOut, mix)
		if err != nil {
			r.cache.Unlock()
			return 0, err
		}
		if n < 0 {
			telemetry.PluginFailuresTotal.WithLabelValues("chain").Inc()
			r.invalidated.Store(true)
			r.cache.Clear()
			r.cache.Unlock()
			return 0, nil
		}
		r.cache.Set(cacheKey, cacheKey+n, n-toRead)
		cacheTailVal = n - toRead
		r.cache.Unlock()
		mixSlice = mix[:n]
	}

	effFadeInLimit := fadeInLimit
	if fadeInLimit > 0 {
		fiVals := make([]float32, fadeInLimit)
		fadeIn.Curve().SampleInto(fiVals, 0, fadeInLimit-1, int(fadeInLimit))
		if opaque {
			if inverseFadeInOverride != nil {
				invVals := make([]float32, fadeInLimit)
				inverseFadeInOverride.SampleInto(invVals, 0, fadeInLimit-1, int(fadeInLimit))
				for i := int64(0); i < fadeInLimit; i++ {
					buf[i] *= invVals[i]
				}
			} else {
				for i := int64(0); i < fadeInLimit; i++ {
					buf[i] *= 1 - fiVals[i]
				}
			}
		}
		copy(gain[:fadeInLimit], fiVals)
		if !fadeBeforeFx || nofx {
			for i := int64(0); i < fadeInLimit; i++ {
				buf[i] += mixSlice[i] * gain[i]
			}
		} else {
			effFadeInLimit = 0
		}
	}

	effFadeOutLimit := fadeOutLimit
	if fadeOutLimit > 0 {
		fOut := fadeOut.EndTimeSamples()
		curveOffset := fadeIntervalStart - (lsamples - fOut)
		foVals := make([]float32, fadeOutLimit)
		fadeOut.Curve().SampleInto(foVals, curveOffset, curveOffset+fadeOutLimit, int(fadeOutLimit))

		bufSeg := buf[fadeOutOffset : fadeOutOffset+fadeOutLimit]
		mixSeg := mixSlice[fadeOutOffset : fadeOutOffset+fadeOutLimit]
		gainSeg := gain[fadeOutOffset : fadeOutOffset+fadeOutLimit]

		if opaque {
			if inverseFadeOutOverride != nil {
				invVals := make([]float32, fadeOutLimit)
				inverseFadeOutOverride.SampleInto(invVals, curveOffset, curveOffset+fadeOutLimit, int(fadeOutLimit))
				for i := int64(0); i < fadeOutLimit; i++ {
					bufSeg[i] *= invVals[i]
				}
			} else {
				for i := int64(0); i < fadeOutLimit; i++ {
					bufSeg[i] *= 1 - foVals[i]
				}
			}
		}
		copy(gainSeg, foVals)
		if !fadeBeforeFx || nofx {
			for i := int64(0); i < fadeOutLimit; i++ {
				bufSeg[i] += mixSeg[i] * gainSeg[i]
			}
		} else {
			effFadeOutLimit = 0
		}
	}

	bodyStart := effFadeInLimit
	bodyEnd := toRead - effFadeOutLimit
	if bodyEnd < bodyStart {
		bodyEnd = bodyStart
	}
	if opaque {
		copy(buf[bodyStart:bodyEnd], mixSlice[bodyStart:bodyEnd])
	} else {
		for i := bodyStart; i < bodyEnd; i++ {
			buf[i] += mixSlice[i]
		}
	}

	tailBudget := minI64(cacheTailVal, canRead)
	tailBudget = minI64(tailBudget, int64(cnt)-toRead)
	if tailBudget < 0 {
		tailBudget = 0
	}
	for i := int64(0); i < tailBudget; i++ {
		buf[toRead+i] += mixSlice[toRead+i]
	}

	return int(toRead + tailBudget), nil
}

// applyGain multiplies samples in place by scaleAmplitude, and by the
// envelope sampled over [offset, offset+n) when envelopeActive.
func applyGain(samples []float32, envelope *curve.Curve, envelopeActive bool, scale float32, offset, n int64) {
	if !envelopeActive {
		for i := range samples {
			samples[i] *= scale
		}
		return
	}
	g := make([]float32, n)
	envelope.SampleInto(g, offset, offset+n-1, int(n))
	for i := range samples {
		samples[i] *= g[i] * scale
	}
}

// fillFromSourcesAndFx implements the "plugins present" fill path
// (component G, steps 3-8): it reads every channel into the cache,
// applies envelope/scale and, when fade_before_fx is set, the fade
// curves, runs the plugin chain once across all channels, and copies
// the requested channel into mix. It returns the total number of
// samples now valid in the cache for this window (to_read + tail), or
// -1 if the fill failed (partial source read or plugin failure).
//
// Callers must hold r.cache's lock for the duration of this call.
func (r *Region) fillFromSourcesAndFx(
	startAbs, internal, toRead, canRead, tsamples int64,
	ch int, replicate bool,
	fadeBeforeFx bool, scaleAmplitude float32, envelopeActive, useRegionFades bool,
	envelope *curve.Curve, fadeIn, fadeOut *fade.Fade,
	mix []float32,
) (int64, error) {
	r.mu.RLock()
	lsamples := r.length
	srcs := r.sources
	r.mu.RUnlock()
	nChan := len(srcs)

	var nTail int64
	if tsamples > 0 && canRead > toRead {
		nTail = canRead - toRead
	}

	nRead := toRead
	fxLatency := int64(r.chain.Latency())
	_, cacheEnd, _ := r.cache.Range()
	contiguous := cacheEnd == internal+nTail
	latentRead := false
	if !contiguous && fxLatency > 0 {
		latentRead = true
		nRead = minI64(toRead+fxLatency, lsamples-internal)
	} else if fxLatency > 0 {
		startAbs += fxLatency
		internal += fxLatency
		nRead = maxI64(0, minI64(toRead, lsamples-internal))
	}
	nProc := nRead + nTail

	bufSize := cache.Size(toRead, fxLatency, tsamples)
	if bufSize < nProc {
		bufSize = nProc
	}
	r.cache.EnsureBuffers(nChan, bufSize)

	for i := 0; i < nChan; i++ {
		chBuf := r.cache.Channel(i)
		n, err := r.readFromSources(lsamples, chBuf[:nRead], startAbs, int(nRead), i)
		if err != nil {
			return 0, err
		}
		if int64(n) != nRead {
			return -1, nil
		}

		applyGain(chBuf[:nRead], envelope, envelopeActive, scaleAmplitude, internal, nRead)

		if fadeBeforeFx {
			if fadeIn.Active() && useRegionFades {
				fi := make([]float32, nRead)
				fadeIn.Curve().SampleInto(fi, internal, internal+nRead-1, int(nRead))
				for k := range chBuf[:nRead] {
					chBuf[k] *= fi[k]
				}
			}
			if fadeOut.Active() && useRegionFades {
				fo := make([]float32, nRead)
				fadeOut.Curve().SampleInto(fo, internal, internal+nRead-1, int(nRead))
				for k := range chBuf[:nRead] {
					chBuf[k] *= fo[k]
				}
			}
		}

		if nRead < nProc {
			zero(chBuf[nRead:nProc])
		}
	}

	bufs := make([][]float32, nChan)
	for i := range bufs {
		bufs[i] = r.cache.Channel(i)[:nProc]
	}
	endAbs := startAbs + nProc
	result, ok := r.chain.Apply(bufs, startAbs, endAbs, int(nProc), latentRead)
	if !ok {
		return -1, nil
	}
	nProc = int64(result)

	total := toRead + nTail
	copyLen := minI64(nProc, total)
	effCh, ok := effectiveChannel(ch, nChan, replicate)
	if ok {
		copy(mix[:copyLen], r.cache.Channel(effCh)[:copyLen])
	} else {
		zero(mix[:copyLen])
	}
	if copyLen < total {
		zero(mix[copyLen:total])
	}

	return total, nil
}

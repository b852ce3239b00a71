/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"context"
	"time"

	"github.com/friendsincode/regionengine/internal/cache"
	"github.com/friendsincode/regionengine/internal/events"
	"github.com/friendsincode/regionengine/internal/telemetry"
)

// publisher is the minimal events.Bus surface these driver functions
// need, matching the pattern internal/events.publisher uses to accept
// either a Bus or a NATS-backed equivalent.
type publisher interface {
	Publish(events.EventType, events.Payload)
}

func observeAnalysis(kind string, hit bool, start time.Time) {
	cacheLabel := "miss"
	if hit {
		cacheLabel = "hit"
	}
	telemetry.AnalysisDuration.WithLabelValues(kind, cacheLabel).Observe(time.Since(start).Seconds())
}

func publishAnalysisComplete(bus publisher, regionID, kind string) {
	if bus == nil {
		return
	}
	bus.Publish(events.EventRegionAnalysisComplete, events.Payload{
		"region_id": regionID,
		"kind":      kind,
	})
}

// DriveMaxAmplitude wraps MaxAmplitude with the cross-process result
// cache, analysis-duration telemetry and completion events a live
// session drives analysis through. c and bus may both be nil (as in a
// standalone regionfx invocation), in which case this degrades to a
// plain, uncached MaxAmplitude call.
func DriveMaxAmplitude(ctx context.Context, r rawReader, regionID string, c *cache.Cache, bus publisher, progress *Progress) (float32, error) {
	start := time.Now()
	if c != nil {
		if v, ok := c.GetMaxAmplitude(ctx, regionID); ok {
			observeAnalysis("max_amplitude", true, start)
			return v, nil
		}
	}
	v, err := MaxAmplitude(r, progress)
	if err != nil {
		return 0, err
	}
	observeAnalysis("max_amplitude", false, start)
	if c != nil {
		_ = c.SetMaxAmplitude(ctx, regionID, v)
	}
	publishAnalysisComplete(bus, regionID, "max_amplitude")
	return v, nil
}

// DriveRMS is the RMS analogue of DriveMaxAmplitude.
func DriveRMS(ctx context.Context, r rawReader, regionID string, c *cache.Cache, bus publisher, progress *Progress) (float64, error) {
	start := time.Now()
	if c != nil {
		if v, ok := c.GetRMS(ctx, regionID); ok {
			observeAnalysis("rms", true, start)
			return v, nil
		}
	}
	v, err := RMS(r, progress)
	if err != nil {
		return 0, err
	}
	observeAnalysis("rms", false, start)
	if c != nil {
		_ = c.SetRMS(ctx, regionID, v)
	}
	publishAnalysisComplete(bus, regionID, "rms")
	return v, nil
}

// DriveSilence is the silence-detection analogue of DriveMaxAmplitude,
// caching under the (regionID, thresholdDB, minLength) key the way
// cache.silenceCacheKey expects.
func DriveSilence(ctx context.Context, r rawReader, regionID string, thresholdDB float64, minLength, fadeLength int64, c *cache.Cache, bus publisher, progress *Progress) ([]Interval, error) {
	start := time.Now()
	if c != nil {
		if ranges, ok := c.GetSilence(ctx, regionID, thresholdDB, minLength); ok {
			observeAnalysis("silence", true, start)
			return cachedRangesToIntervals(ranges), nil
		}
	}
	intervals, err := FindSilence(r, thresholdDB, minLength, fadeLength, progress)
	if err != nil {
		return nil, err
	}
	observeAnalysis("silence", false, start)
	if c != nil {
		_ = c.SetSilence(ctx, regionID, thresholdDB, minLength, intervalsToCachedRanges(intervals))
	}
	publishAnalysisComplete(bus, regionID, "silence")
	return intervals, nil
}

// DriveLoudnessCached is the loudness analogue of DriveMaxAmplitude,
// wrapping DriveLoudness.
func DriveLoudnessCached(ctx context.Context, r rawReader, regionID string, sampleRate uint32, analyzer LoudnessAnalyzer, c *cache.Cache, bus publisher, progress *Progress) (Loudness, bool, error) {
	start := time.Now()
	if c != nil {
		if v, ok := c.GetLoudness(ctx, regionID); ok {
			observeAnalysis("loudness", true, start)
			return Loudness{
				IntegratedLUFS: v.IntegratedLUFS,
				ShortTermLUFS:  v.ShortTermLUFS,
				MomentaryLUFS:  v.MomentaryLUFS,
				TruePeakDBTP:   v.TruePeakDB,
			}, true, nil
		}
	}
	result, ok, err := DriveLoudness(ctx, r, sampleRate, analyzer, progress)
	if err != nil || !ok {
		return result, ok, err
	}
	observeAnalysis("loudness", false, start)
	if c != nil {
		_ = c.SetLoudness(ctx, regionID, cache.CachedLoudness{
			IntegratedLUFS: result.IntegratedLUFS,
			ShortTermLUFS:  result.ShortTermLUFS,
			MomentaryLUFS:  result.MomentaryLUFS,
			TruePeakDB:     result.TruePeakDBTP,
		})
	}
	publishAnalysisComplete(bus, regionID, "loudness")
	return result, true, nil
}

func intervalsToCachedRanges(intervals []Interval) []cache.CachedSilenceRange {
	ranges := make([]cache.CachedSilenceRange, len(intervals))
	for i, iv := range intervals {
		ranges[i] = cache.CachedSilenceRange{Start: iv.Start, End: iv.End}
	}
	return ranges
}

func cachedRangesToIntervals(ranges []cache.CachedSilenceRange) []Interval {
	intervals := make([]Interval, len(ranges))
	for i, rg := range ranges {
		intervals[i] = Interval{Start: rg.Start, End: rg.End}
	}
	return intervals
}

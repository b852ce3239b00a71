/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"context"
	"fmt"
)

// Loudness holds the EBU R128-style measurements the station's loudness
// analyser produces for a region.
type Loudness struct {
	IntegratedLUFS float64
	ShortTermLUFS  float64
	MomentaryLUFS  float64
	TruePeakDBTP   float64
}

// LoudnessAnalyzer is the external collaborator spec §1 places out of
// scope ("the loudness analyser"). This package only drives it with
// region samples and cancellation/progress; it implements no R128
// algorithm itself.
type LoudnessAnalyzer interface {
	Analyze(ctx context.Context, channels [][]float32, sampleRate uint32) (Loudness, error)
}

// DriveLoudness reads every channel of r in full, respecting
// cancellation at block boundaries, and hands the assembled buffers to
// analyzer. It returns ok=false (per spec §4.H's "false for loudness"
// cancellation sentinel) if progress is cancelled before the read
// completes.
func DriveLoudness(ctx context.Context, r rawReader, sampleRate uint32, analyzer LoudnessAnalyzer, progress *Progress) (Loudness, bool, error) {
	length := r.Length()
	nChan := r.NumChannels()
	if length <= 0 || nChan <= 0 {
		return Loudness{}, true, nil
	}

	channels := make([][]float32, nChan)
	for i := range channels {
		channels[i] = make([]float32, length)
	}

	var processed int64
	for processed < length {
		if progress != nil && progress.Cancelled() {
			return Loudness{}, false, nil
		}
		select {
		case <-ctx.Done():
			return Loudness{}, false, ctx.Err()
		default:
		}

		n := blockSize
		if remain := length - processed; int64(n) > remain {
			n = int(remain)
		}
		for ch := 0; ch < nChan; ch++ {
			got, err := r.ReadRaw(channels[ch][processed:processed+int64(n)], r.Start()+processed, n, ch)
			if err != nil {
				return Loudness{}, false, fmt.Errorf("analysis: loudness: %w", err)
			}
			if got < n {
				for i := got; i < n; i++ {
					channels[ch][processed+int64(i)] = 0
				}
			}
		}
		processed += int64(n)
		if progress != nil {
			progress.set(float64(processed) / float64(length))
		}
	}

	result, err := analyzer.Analyze(ctx, channels, sampleRate)
	if err != nil {
		return Loudness{}, false, fmt.Errorf("analysis: loudness analyzer: %w", err)
	}
	return result, true, nil
}

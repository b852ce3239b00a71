/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"fmt"

	"github.com/friendsincode/regionengine/internal/region/fade"
)

// Interval is a half-open region-local sample range, [Start, End).
type Interval struct {
	Start int64
	End   int64
}

// FindSilence streams r in blockSize blocks, taking the per-sample
// maximum absolute value across channels, and returns the half-open
// intervals where that value stays below thresholdDB for at least
// minLength samples, each then shrunk by fadeLength samples on both
// ends (the caller typically uses these to trim silent heads/tails
// without clipping into a following/preceding fade). Returns nil (not
// an error) if progress reports cancellation before completion,
// matching spec §4.H's "empty vector" cancellation sentinel.
func FindSilence(r rawReader, thresholdDB float64, minLength, fadeLength int64, progress *Progress) ([]Interval, error) {
	length := r.Length()
	nChan := r.NumChannels()
	if length <= 0 || nChan <= 0 {
		return nil, nil
	}

	threshold := float32(fade.DBToCoeff(thresholdDB))

	chanBufs := make([][]float32, nChan)
	for i := range chanBufs {
		chanBufs[i] = make([]float32, blockSize)
	}

	var raw []Interval
	var inSilence bool
	var silenceStart int64
	var processed int64

	closeRun := func(end int64) {
		if inSilence {
			raw = append(raw, Interval{Start: silenceStart, End: end})
			inSilence = false
		}
	}

	for processed < length {
		if progress != nil && progress.Cancelled() {
			return nil, nil
		}
		n := blockSize
		if remain := length - processed; int64(n) > remain {
			n = int(remain)
		}
		for ch := 0; ch < nChan; ch++ {
			got, err := r.ReadRaw(chanBufs[ch][:n], r.Start()+processed, n, ch)
			if err != nil {
				return nil, fmt.Errorf("analysis: find silence: %w", err)
			}
			if got < n {
				for i := got; i < n; i++ {
					chanBufs[ch][i] = 0
				}
			}
		}

		for i := 0; i < n; i++ {
			var maxAbs float32
			for ch := 0; ch < nChan; ch++ {
				v := chanBufs[ch][i]
				if v < 0 {
					v = -v
				}
				if v > maxAbs {
					maxAbs = v
				}
			}
			pos := processed + int64(i)
			silent := maxAbs < threshold
			switch {
			case silent && !inSilence:
				inSilence = true
				silenceStart = pos
			case !silent && inSilence:
				closeRun(pos)
			}
		}

		processed += int64(n)
		if progress != nil {
			progress.set(float64(processed) / float64(length))
		}
	}
	closeRun(length)

	var out []Interval
	for _, iv := range raw {
		if iv.End-iv.Start < minLength {
			continue
		}
		shrunk := Interval{Start: iv.Start + fadeLength, End: iv.End - fadeLength}
		if shrunk.End <= shrunk.Start {
			continue
		}
		out = append(out, shrunk)
	}
	return out, nil
}

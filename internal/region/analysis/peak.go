/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"fmt"
	"math"

	"github.com/friendsincode/regionengine/internal/region"
)

// rawReader is the subset of *region.Region the analysis passes drive.
// Narrowed to an interface so tests can exercise the streaming/block/
// cancellation logic against a fake without constructing a full Region.
type rawReader interface {
	Length() int64
	Start() int64
	NumChannels() int
	ReadRaw(buf []float32, posAbsSrc int64, cnt int, ch int) (int, error)
}

var _ rawReader = (*region.Region)(nil)

// MaxAmplitude streams r in blockSize-sample blocks through the raw
// reader for every channel, taking the absolute-value peak. It returns
// -1 if progress reports cancellation before completion.
func MaxAmplitude(r rawReader, progress *Progress) (float32, error) {
	length := r.Length()
	nChan := r.NumChannels()
	if length <= 0 || nChan <= 0 {
		return 0, nil
	}

	buf := make([]float32, blockSize)
	var peak float32
	var processed int64
	for processed < length {
		if progress != nil && progress.Cancelled() {
			return -1, nil
		}
		n := blockSize
		if remain := length - processed; int64(n) > remain {
			n = int(remain)
		}
		for ch := 0; ch < nChan; ch++ {
			got, err := r.ReadRaw(buf[:n], r.Start()+processed, n, ch)
			if err != nil {
				return 0, fmt.Errorf("analysis: max amplitude: %w", err)
			}
			for _, v := range buf[:got] {
				av := v
				if av < 0 {
					av = -av
				}
				if av > peak {
					peak = av
				}
			}
		}
		processed += int64(n)
		if progress != nil {
			progress.set(float64(processed) / float64(length))
		}
	}
	return peak, nil
}

// RMS streams r the same way MaxAmplitude does, reporting
// sqrt(2 * sum(x^2) / (N * n_chan)), matching the original's single-pass
// accumulation in double precision even though samples are float32.
func RMS(r rawReader, progress *Progress) (float64, error) {
	length := r.Length()
	nChan := r.NumChannels()
	if length <= 0 || nChan <= 0 {
		return 0, nil
	}

	buf := make([]float32, blockSize)
	var sumSquares float64
	var processed int64
	for processed < length {
		if progress != nil && progress.Cancelled() {
			return -1, nil
		}
		n := blockSize
		if remain := length - processed; int64(n) > remain {
			n = int(remain)
		}
		for ch := 0; ch < nChan; ch++ {
			got, err := r.ReadRaw(buf[:n], r.Start()+processed, n, ch)
			if err != nil {
				return 0, fmt.Errorf("analysis: rms: %w", err)
			}
			for _, v := range buf[:got] {
				fv := float64(v)
				sumSquares += fv * fv
			}
		}
		processed += int64(n)
		if progress != nil {
			progress.set(float64(processed) / float64(length))
		}
	}

	denom := float64(length) * float64(nChan)
	if denom <= 0 {
		return 0, nil
	}
	return math.Sqrt(2 * sumSquares / denom), nil
}

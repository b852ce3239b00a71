/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"context"
	"fmt"

	"github.com/friendsincode/regionengine/internal/events"
	"github.com/friendsincode/regionengine/internal/storage"
	"github.com/friendsincode/regionengine/internal/telemetry"
)

// exportChunkFrames is the interleave-then-write chunk size, matching
// the original's AudioGrapher::Interleaver loop.
const exportChunkFrames = 8192

// maxInt24 is the largest representable magnitude of a signed 24-bit
// sample.
const maxInt24 = 1<<23 - 1

// FlacWriter is the injected 24-bit FLAC encoder DoExport streams
// interleaved frames through. The encoder itself (frame/container
// format, checksums) is an external collaborator per spec §1; this
// package only performs the per-channel interleave.
type FlacWriter interface {
	// WriteFrames receives numFrames*numChannels interleaved 24-bit
	// samples (each held in the low 24 bits of an int32).
	WriteFrames(interleaved []int32, numFrames int) error
	// Close finalises the encoded stream and returns its bytes.
	Close() ([]byte, error)
}

// Export streams r's raw samples through writer in exportChunkFrames-frame
// chunks and uploads the finished file to store at key. On any failure
// it deletes whatever store may already hold at key (a FlacWriter may
// buffer internally, but a store that write-throughs per chunk would
// otherwise leave a truncated object behind) and returns the error.
func Export(ctx context.Context, r rawReader, writer FlacWriter, store storage.ObjectStore, key string) error {
	length := r.Length()
	nChan := r.NumChannels()
	if length <= 0 || nChan <= 0 {
		return fmt.Errorf("analysis: export: region has no content")
	}

	chanBufs := make([][]float32, nChan)
	for i := range chanBufs {
		chanBufs[i] = make([]float32, exportChunkFrames)
	}
	interleaved := make([]int32, exportChunkFrames*nChan)

	fail := func(err error) error {
		telemetry.ExportsTotal.WithLabelValues("failed").Inc()
		_ = store.Delete(ctx, key)
		return err
	}

	var processed int64
	for processed < length {
		select {
		case <-ctx.Done():
			return fail(ctx.Err())
		default:
		}

		n := exportChunkFrames
		if remain := length - processed; int64(n) > remain {
			n = int(remain)
		}
		for ch := 0; ch < nChan; ch++ {
			got, err := r.ReadRaw(chanBufs[ch][:n], r.Start()+processed, n, ch)
			if err != nil {
				return fail(fmt.Errorf("analysis: export: read channel %d: %w", ch, err))
			}
			if got < n {
				return fail(fmt.Errorf("analysis: export: short read on channel %d at offset %d", ch, processed))
			}
		}

		for i := 0; i < n; i++ {
			for ch := 0; ch < nChan; ch++ {
				interleaved[i*nChan+ch] = floatToInt24(chanBufs[ch][i])
			}
		}
		if err := writer.WriteFrames(interleaved[:n*nChan], n); err != nil {
			return fail(fmt.Errorf("analysis: export: write frames: %w", err))
		}
		processed += int64(n)
	}

	data, err := writer.Close()
	if err != nil {
		return fail(fmt.Errorf("analysis: export: close encoder: %w", err))
	}
	if err := store.Put(ctx, key, data); err != nil {
		return fail(fmt.Errorf("analysis: export: upload: %w", err))
	}

	telemetry.ExportsTotal.WithLabelValues("success").Inc()
	return nil
}

// ExportAndNotify calls Export and, on success, publishes
// EventRegionExported on bus (which may be nil, e.g. in a standalone
// regionfx invocation with no bus wired).
func ExportAndNotify(ctx context.Context, r rawReader, writer FlacWriter, store storage.ObjectStore, key, regionID string, bus publisher) error {
	if err := Export(ctx, r, writer, store, key); err != nil {
		return err
	}
	if bus != nil {
		bus.Publish(events.EventRegionExported, events.Payload{
			"region_id": regionID,
			"key":       key,
		})
	}
	return nil
}

func floatToInt24(v float32) int32 {
	scaled := float64(v) * float64(maxInt24)
	switch {
	case scaled > maxInt24:
		scaled = maxInt24
	case scaled < -maxInt24-1:
		scaled = -maxInt24 - 1
	}
	return int32(scaled)
}

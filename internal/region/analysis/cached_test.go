/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"context"
	"testing"

	"github.com/friendsincode/regionengine/internal/events"
)

type recordingBus struct {
	published []events.EventType
}

func (b *recordingBus) Publish(t events.EventType, _ events.Payload) {
	b.published = append(b.published, t)
}

func TestDriveMaxAmplitudePublishesWithoutCache(t *testing.T) {
	samples := []float32{0.1, -0.9, 0.5, -0.2}
	r := newRegion(t, samples)
	bus := &recordingBus{}

	got, err := DriveMaxAmplitude(context.Background(), r, "region-1", nil, bus, nil)
	if err != nil {
		t.Fatalf("DriveMaxAmplitude: %v", err)
	}
	if got <= 0 {
		t.Fatalf("got %v, want a positive peak", got)
	}
	if len(bus.published) != 1 || bus.published[0] != events.EventRegionAnalysisComplete {
		t.Fatalf("expected one analysis-complete event, got %+v", bus.published)
	}
}

func TestDriveSilenceWithoutCache(t *testing.T) {
	samples := make([]float32, 300)
	for i := 100; i < 200; i++ {
		samples[i] = 0.8
	}
	r := newRegion(t, samples)

	intervals, err := DriveSilence(context.Background(), r, "region-1", -60, 50, 10, nil, nil, nil)
	if err != nil {
		t.Fatalf("DriveSilence: %v", err)
	}
	if len(intervals) != 2 {
		t.Fatalf("got %d intervals, want 2", len(intervals))
	}
}

func TestExportAndNotifyPublishesOnSuccess(t *testing.T) {
	samples := []float32{0.5, -0.5, 1, -1}
	r := newRegion(t, samples)
	writer := &fakeFlacWriter{}
	store := newMemStore()
	bus := &recordingBus{}

	if err := ExportAndNotify(context.Background(), r, writer, store, "regions/r1.flac", "region-1", bus); err != nil {
		t.Fatalf("ExportAndNotify: %v", err)
	}
	if len(bus.published) != 1 || bus.published[0] != events.EventRegionExported {
		t.Fatalf("expected one exported event, got %+v", bus.published)
	}
}

func TestExportAndNotifySkipsEventOnFailure(t *testing.T) {
	samples := make([]float32, exportChunkFrames*3)
	r := newRegion(t, samples)
	writer := &fakeFlacWriter{failOn: 1}
	store := newMemStore()
	bus := &recordingBus{}

	if err := ExportAndNotify(context.Background(), r, writer, store, "regions/r1.flac", "region-1", bus); err == nil {
		t.Fatal("expected export to fail")
	}
	if len(bus.published) != 0 {
		t.Fatalf("expected no events on failure, got %+v", bus.published)
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/friendsincode/regionengine/internal/region"
	"github.com/friendsincode/regionengine/internal/region/source"
)

func newRegion(t *testing.T, samples []float32) *region.Region {
	t.Helper()
	src := source.NewMemorySource(samples, 48000)
	r, err := region.New("r1", []source.Source{src}, []source.Source{src}, 0, 0, int64(len(samples)), region.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestMaxAmplitude(t *testing.T) {
	samples := []float32{0.1, -0.9, 0.5, -0.2}
	r := newRegion(t, samples)
	got, err := MaxAmplitude(r, nil)
	if err != nil {
		t.Fatalf("MaxAmplitude: %v", err)
	}
	if math.Abs(float64(got)-0.9) > 1e-6 {
		t.Fatalf("got %v, want 0.9", got)
	}
}

func TestMaxAmplitudeCancelled(t *testing.T) {
	samples := make([]float32, 1)
	r := newRegion(t, samples)
	progress := NewProgress()
	progress.Cancel()
	got, err := MaxAmplitude(r, progress)
	if err != nil {
		t.Fatalf("MaxAmplitude: %v", err)
	}
	if got != -1 {
		t.Fatalf("got %v, want -1 sentinel", got)
	}
}

func TestRMS(t *testing.T) {
	samples := []float32{1, 1, 1, 1}
	r := newRegion(t, samples)
	got, err := RMS(r, nil)
	if err != nil {
		t.Fatalf("RMS: %v", err)
	}
	want := math.Sqrt(2.0)
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFindSilence(t *testing.T) {
	samples := make([]float32, 300)
	for i := 100; i < 200; i++ {
		samples[i] = 0.8
	}
	r := newRegion(t, samples)

	intervals, err := FindSilence(r, -60, 50, 10, nil)
	if err != nil {
		t.Fatalf("FindSilence: %v", err)
	}
	if len(intervals) != 2 {
		t.Fatalf("got %d intervals, want 2: %+v", len(intervals), intervals)
	}
	if intervals[0].Start != 10 || intervals[0].End != 90 {
		t.Fatalf("first interval = %+v, want [10,90)", intervals[0])
	}
	if intervals[1].Start != 210 || intervals[1].End != 290 {
		t.Fatalf("second interval = %+v, want [210,290)", intervals[1])
	}
}

func TestFindSilenceCancelledReturnsEmpty(t *testing.T) {
	samples := make([]float32, 10)
	r := newRegion(t, samples)
	progress := NewProgress()
	progress.Cancel()
	intervals, err := FindSilence(r, -60, 1, 0, progress)
	if err != nil {
		t.Fatalf("FindSilence: %v", err)
	}
	if intervals != nil {
		t.Fatalf("expected nil intervals on cancellation, got %+v", intervals)
	}
}

type fakeFlacWriter struct {
	frames [][]int32
	closed bool
	failOn int
	calls  int
}

func (f *fakeFlacWriter) WriteFrames(interleaved []int32, numFrames int) error {
	f.calls++
	if f.failOn != 0 && f.calls == f.failOn {
		return context.DeadlineExceeded
	}
	cp := make([]int32, len(interleaved))
	copy(cp, interleaved)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeFlacWriter) Close() ([]byte, error) {
	f.closed = true
	return []byte("flac-bytes"), nil
}

type memStore struct {
	objects map[string][]byte
	deleted []string
}

func newMemStore() *memStore { return &memStore{objects: make(map[string][]byte)} }

func (m *memStore) Put(ctx context.Context, key string, data []byte) error {
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	return m.objects[key], nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func TestExportSucceeds(t *testing.T) {
	samples := []float32{0.5, -0.5, 1, -1}
	r := newRegion(t, samples)
	writer := &fakeFlacWriter{}
	store := newMemStore()

	if err := Export(context.Background(), r, writer, store, "regions/r1.flac"); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !writer.closed {
		t.Fatal("expected writer to be closed")
	}
	if string(store.objects["regions/r1.flac"]) != "flac-bytes" {
		t.Fatalf("unexpected uploaded object: %q", store.objects["regions/r1.flac"])
	}
}

func TestExportDeletesPartialWriteOnFailure(t *testing.T) {
	samples := make([]float32, exportChunkFrames*3)
	r := newRegion(t, samples)
	writer := &fakeFlacWriter{failOn: 2}
	store := newMemStore()
	store.objects["regions/r1.flac"] = []byte("stale")

	err := Export(context.Background(), r, writer, store, "regions/r1.flac")
	if err == nil {
		t.Fatal("expected export to fail")
	}
	if _, ok := store.objects["regions/r1.flac"]; ok {
		t.Fatal("expected partial write to be deleted")
	}
	if len(store.deleted) != 1 || store.deleted[0] != "regions/r1.flac" {
		t.Fatalf("expected one delete of the export key, got %+v", store.deleted)
	}
}

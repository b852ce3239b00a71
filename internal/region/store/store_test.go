/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/regionengine/internal/models"
	"github.com/friendsincode/regionengine/internal/region"
	"github.com/friendsincode/regionengine/internal/region/fade"
	"github.com/friendsincode/regionengine/internal/region/source"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestStoreSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	s := New(db, zerolog.Nop())
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	samples := make([]float32, 1000)
	src := source.NewMemorySource(samples, 48000)
	r, err := region.New("region-1", []source.Source{src}, []source.Source{src}, 0, 0, 1000, region.DefaultConfig())
	if err != nil {
		t.Fatalf("region.New: %v", err)
	}
	r.SetScaleAmplitude(0.75)
	r.SetOpaque(true)
	r.SetFadeIn(fade.Fast, 200)

	ctx := context.Background()
	if err := s.Save(ctx, "station-1", "media-1", r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var m models.RegionState
	if err := db.First(&m, "id = ?", "region-1").Error; err != nil {
		t.Fatalf("fetch row: %v", err)
	}
	if m.StationID != "station-1" || m.MediaID != "media-1" {
		t.Fatalf("unexpected linkage columns: %+v", m)
	}
	if m.ChannelCount != 1 {
		t.Fatalf("got channel count %d, want 1", m.ChannelCount)
	}
	if m.ScaleAmplitude != 0.75 {
		t.Fatalf("got scale amplitude %v, want 0.75", m.ScaleAmplitude)
	}
	if m.Document == "" {
		t.Fatal("expected a non-empty persisted document")
	}

	loaded, err := s.Load(ctx, "region-1", []source.Source{src}, []source.Source{src}, region.DefaultConfig())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ScaleAmplitude() != r.ScaleAmplitude() {
		t.Fatalf("loaded scale amplitude %v, want %v", loaded.ScaleAmplitude(), r.ScaleAmplitude())
	}
	if loaded.Opaque() != r.Opaque() {
		t.Fatalf("loaded opaque %v, want %v", loaded.Opaque(), r.Opaque())
	}
	if loaded.FadeIn().EndTimeSamples() != r.FadeIn().EndTimeSamples() {
		t.Fatalf("loaded fade-in end %d, want %d", loaded.FadeIn().EndTimeSamples(), r.FadeIn().EndTimeSamples())
	}
	if loaded.FadeIn().Shape() != r.FadeIn().Shape() {
		t.Fatalf("loaded fade-in shape %v, want %v", loaded.FadeIn().Shape(), r.FadeIn().Shape())
	}

	if err := s.Delete(ctx, "region-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var count int64
	if err := db.Model(&models.RegionState{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 rows after delete, got %d", count)
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store persists region metadata with gorm, the same pattern
// internal/playout uses for models.MountPlayoutState
// (director_persist_test.go): a handful of typed columns for the fields
// a caller wants to query on, plus a single text column holding the
// heavyweight tree-structured document (envelope, fades, inverse fades)
// that internal/region/persist round-trips to and from XML.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/regionengine/internal/models"
	"github.com/friendsincode/regionengine/internal/region"
	"github.com/friendsincode/regionengine/internal/region/persist"
	"github.com/friendsincode/regionengine/internal/region/source"
)

// Store wraps a gorm.DB with region-shaped Save/Load/Delete operations.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New wraps db. Callers own opening the connection (sqlite in tests,
// postgres in production, matching internal/config.DatabaseBackend).
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates/updates the region_states table.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&models.RegionState{}); err != nil {
		return fmt.Errorf("store: automigrate: %w", err)
	}
	return nil
}

// Save serialises r's decoration via internal/region/persist and upserts
// the row.
func (s *Store) Save(ctx context.Context, stationID, mediaID string, r *region.Region) error {
	node := persist.ToNode(r)
	doc, err := persist.Encode(node)
	if err != nil {
		return fmt.Errorf("store: encode region %s: %w", r.ID(), err)
	}

	m := models.RegionState{
		ID:             r.ID(),
		StationID:      stationID,
		MediaID:        mediaID,
		ChannelCount:   r.NumChannels(),
		ScaleAmplitude: r.ScaleAmplitude(),
		Document:       string(doc),
	}
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("store: save region %s: %w", r.ID(), err)
	}
	s.logger.Debug().Str("region_id", r.ID()).Str("station_id", stationID).Msg("region state persisted")
	return nil
}

// Load fetches the row for id and rehydrates a *region.Region from its
// document, wiring in the given sources/masterSources/cfg (which the
// session layer owns, not the store).
func (s *Store) Load(ctx context.Context, id string, sources, masterSources []source.Source, cfg region.Config) (*region.Region, error) {
	var m models.RegionState
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: load region %s: %w", id, err)
	}

	node, err := persist.Decode([]byte(m.Document))
	if err != nil {
		return nil, fmt.Errorf("store: decode region %s: %w", id, err)
	}
	r, err := persist.FromNode(node, id, sources, masterSources, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: rehydrate region %s: %w", id, err)
	}
	return r, nil
}

// Delete removes the persisted row for id, if present.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&models.RegionState{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("store: delete region %s: %w", id, err)
	}
	return nil
}

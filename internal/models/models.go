/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models holds the gorm row types internal/region/store persists,
// the same layering the station uses for its own models package: a
// handful of typed columns plus a semi-structured blob, kept separate
// from the package that knows how to populate them.
package models

import "time"

// RegionState is the persisted row for one region: a handful of typed
// columns a caller can query on, plus Document, a text blob holding the
// region's envelope/fade/inverse-fade tree as encoded by
// internal/region/persist. Mirrors the station's ScheduleEntry, which
// pairs typed columns with a JSON metadata column the same way.
type RegionState struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	StationID      string `gorm:"type:uuid;index"`
	MediaID        string `gorm:"type:uuid;index"`
	ChannelCount   int
	ScaleAmplitude float32
	Document       string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName pins the table name independent of gorm's default
// pluralisation, the way models.ScheduleEntry and its siblings do.
func (RegionState) TableName() string {
	return "region_states"
}

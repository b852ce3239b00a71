/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/friendsincode/regionengine/internal/cache"
	"github.com/friendsincode/regionengine/internal/config"
	"github.com/friendsincode/regionengine/internal/eventbus"
	"github.com/friendsincode/regionengine/internal/storage"
)

// openAnalysisCache opens the cross-process analysis result cache.
// cache.New degrades to a disabled, always-miss cache on a Redis
// connection failure rather than erroring, so every subcommand can call
// this unconditionally.
func openAnalysisCache(cfg *config.Config) (*cache.Cache, error) {
	return cache.New(cache.Config{
		RedisAddr:      cfg.RedisAddr,
		RedisPassword:  cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		AnalysisTTL:    cache.DefaultAnalysisTTL,
		SilenceTTL:     cache.DefaultSilenceTTL,
		LoudnessTTL:    cache.DefaultLoudnessTTL,
		DisableOnError: true,
	}, zerolog.Nop())
}

// openExportStore picks an S3-backed ObjectStore when cfg carries a
// bucket, falling back to a filesystem store rooted at out's directory
// otherwise (e.g. local development, or tests with no S3 configured).
func openExportStore(out string) (storage.ObjectStore, error) {
	cfg := loadedConfig
	if cfg.S3Bucket == "" {
		return storage.NewFSStore(filepath.Dir(out), zerolog.Nop()), nil
	}
	return storage.NewS3Store(context.Background(), storage.S3Config{
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		Endpoint:        cfg.S3Endpoint,
		UsePathStyle:    cfg.S3UsePathStyle,
	}, zerolog.Nop())
}

// openEventBus bridges regionfx's completion/export events onto the
// station's NATS subject, falling back to an in-memory bus (whose
// publishes go nowhere outside this process) if NATS is unreachable.
func openEventBus(cfg *config.Config) (*eventbus.NATSBus, error) {
	natsCfg := eventbus.DefaultNATSConfig()
	if cfg.NATSURL != "" {
		natsCfg.URL = cfg.NATSURL
	}
	return eventbus.NewNATSBus(natsCfg, "regionfx", zerolog.Nop())
}

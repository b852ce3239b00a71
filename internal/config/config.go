/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package config reads the region engine tooling's process-level
// configuration from the environment, the way the station process
// itself loads its Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Database backend selection for internal/region/store.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers the standalone cmd/regionfx tool's environment, mirroring
// the naming and GRIMNIR_-prefixed convention of the station process's
// own Config so the two share operator documentation.
type Config struct {
	Environment string

	DBBackend DatabaseBackend
	DBDSN     string

	// S3 object storage, the storage.ObjectStore that analysis.Export uploads to.
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string
	S3UsePathStyle    bool

	// Redis, used by internal/cache for analysis result caching.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATS, used by internal/eventbus for cross-process cache
	// invalidation fan-out.
	NATSURL string

	MetricsBind string
}

// DefaultConfig returns Config populated with the tool's built-in
// defaults, before Load overlays environment variables.
func DefaultConfig() Config {
	return Config{
		Environment: "development",
		DBBackend:   DatabaseSQLite,
		DBDSN:       "regionfx.db",
		S3Region:    "us-east-1",
		RedisAddr:   "localhost:6379",
		NATSURL:     "nats://localhost:4222",
		MetricsBind: "127.0.0.1:9100",
	}
}

// Load reads environment variables, applies defaults, and validates the
// result.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	cfg.Environment = getEnv("GRIMNIR_ENV", cfg.Environment)
	cfg.DBBackend = DatabaseBackend(getEnv("GRIMNIR_DB_BACKEND", string(cfg.DBBackend)))
	cfg.DBDSN = getEnv("GRIMNIR_DB_DSN", cfg.DBDSN)

	cfg.S3AccessKeyID = getEnv("GRIMNIR_S3_ACCESS_KEY_ID", cfg.S3AccessKeyID)
	cfg.S3SecretAccessKey = getEnv("GRIMNIR_S3_SECRET_ACCESS_KEY", cfg.S3SecretAccessKey)
	cfg.S3Region = getEnv("GRIMNIR_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("GRIMNIR_S3_BUCKET", cfg.S3Bucket)
	cfg.S3Endpoint = getEnv("GRIMNIR_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3UsePathStyle = getEnvBool("GRIMNIR_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)

	cfg.RedisAddr = getEnv("GRIMNIR_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("GRIMNIR_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("GRIMNIR_REDIS_DB", cfg.RedisDB)

	cfg.NATSURL = getEnv("GRIMNIR_NATS_URL", cfg.NATSURL)
	cfg.MetricsBind = getEnv("GRIMNIR_METRICS_BIND", cfg.MetricsBind)

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("GRIMNIR_DB_DSN must be provided")
	}

	return &cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		v := strings.ToLower(strings.TrimSpace(val))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

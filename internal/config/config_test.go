/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import "testing"

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("expected default db backend sqlite, got %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected a default DB DSN")
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected default redis addr: %q", cfg.RedisAddr)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("GRIMNIR_DB_BACKEND", "postgres")
	t.Setenv("GRIMNIR_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("GRIMNIR_S3_BUCKET", "region-exports")
	t.Setenv("GRIMNIR_REDIS_DB", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabasePostgres {
		t.Fatalf("expected postgres backend, got %q", cfg.DBBackend)
	}
	if cfg.S3Bucket != "region-exports" {
		t.Fatalf("unexpected s3 bucket: %q", cfg.S3Bucket)
	}
	if cfg.RedisDB != 2 {
		t.Fatalf("unexpected redis db: %d", cfg.RedisDB)
	}
}

func TestLoadRejectsUnsupportedBackend(t *testing.T) {
	t.Setenv("GRIMNIR_DB_BACKEND", "mysql")
	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported backend to fail validation")
	}
}

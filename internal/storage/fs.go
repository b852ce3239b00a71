/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FSStore implements ObjectStore against the local filesystem, rooted at
// a directory, for tests and for operators running cmd/regionfx without
// S3 configured.
type FSStore struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFSStore returns an FSStore rooted at rootDir, which must already
// exist.
func NewFSStore(rootDir string, logger zerolog.Logger) *FSStore {
	return &FSStore{rootDir: rootDir, logger: logger}
}

func (f *FSStore) path(key string) string {
	return filepath.Join(f.rootDir, filepath.FromSlash(key))
}

// Put writes data to rootDir/key, creating parent directories as needed.
func (f *FSStore) Put(ctx context.Context, key string, data []byte) error {
	full := f.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("storage: fs mkdir for %s: %w", key, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("storage: fs write %s: %w", key, err)
	}
	f.logger.Debug().Str("path", full).Int("bytes", len(data)).Msg("region export written")
	return nil
}

// Get reads rootDir/key.
func (f *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return nil, fmt.Errorf("storage: fs read %s: %w", key, err)
	}
	return data, nil
}

// Delete removes rootDir/key, tolerating a missing file.
func (f *FSStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: fs delete %s: %w", key, err)
	}
	return nil
}

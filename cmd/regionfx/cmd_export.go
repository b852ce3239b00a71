/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/friendsincode/regionengine/internal/region/analysis"
)

var exportCmd = &cobra.Command{
	Use:   "export <path> <out>",
	Short: "Render a region to a 24-bit PCM container",
	Args:  cobra.ExactArgs(2),
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]

	r, handles, err := openWholeFileRegion(in)
	if err != nil {
		return err
	}
	defer closeAll(handles)

	writer := newPCMContainerWriter(handles[0].SampleRate(), r.NumChannels())
	store, err := openExportStore(out)
	if err != nil {
		return fmt.Errorf("open export destination: %w", err)
	}

	bus, err := openEventBus(loadedConfig)
	if err != nil {
		return fmt.Errorf("open event bus: %w", err)
	}
	defer bus.Close()

	key := filepath.Base(out)
	if err := analysis.ExportAndNotify(context.Background(), r, writer, store, key, r.ID(), bus); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Printf("exported %d channel(s), %d samples to %s\n", r.NumChannels(), r.Length(), out)
	return nil
}

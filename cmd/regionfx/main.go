/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Command regionfx drives the region read engine's analysis and export
// paths from the command line, the way cmd/mediascan drives a one-shot
// media pass outside the long-running station process.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/friendsincode/regionengine/internal/config"
	"github.com/friendsincode/regionengine/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "regionfx",
	Short: "Inspect, normalize and export audio regions",
	Long: `regionfx loads a single-file region (a WAV source spanning the whole file)
and runs the same analysis and export passes the region engine performs
against a live session, without needing a running station process.

Examples:
  regionfx analyze track.wav
  regionfx normalize track.wav -14.0
  regionfx export track.wav out/track.wav`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		loadedConfig = cfg
		logging.Setup(cfg.Environment)
		return nil
	},
}

// loadedConfig holds the config PersistentPreRunE loaded for this
// invocation, available to every subcommand's RunE.
var loadedConfig *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/friendsincode/regionengine/internal/region/analysis"
)

var (
	analyzeSilenceThresholdDB float64
	analyzeSilenceMinLength   int64
	analyzeSilenceFadeLength  int64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path>",
	Short: "Report max amplitude, RMS and silence intervals for a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().Float64Var(&analyzeSilenceThresholdDB, "silence-threshold-db", -60, "Silence detection threshold in dBFS")
	analyzeCmd.Flags().Int64Var(&analyzeSilenceMinLength, "silence-min-length", 4800, "Minimum silent run length, in samples")
	analyzeCmd.Flags().Int64Var(&analyzeSilenceFadeLength, "silence-fade-length", 480, "Samples trimmed off each end of a detected silent run")
}

type analyzeReport struct {
	Path             string              `json:"path"`
	Channels         int                 `json:"channels"`
	Length           int64               `json:"length_samples"`
	MaxAmplitude     float32             `json:"max_amplitude"`
	RMS              float64             `json:"rms"`
	SilenceIntervals []analysis.Interval `json:"silence_intervals"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	r, handles, err := openWholeFileRegion(args[0])
	if err != nil {
		return err
	}
	defer closeAll(handles)

	analysisCache, err := openAnalysisCache(loadedConfig)
	if err != nil {
		return fmt.Errorf("open analysis cache: %w", err)
	}
	defer analysisCache.Close()
	bus, err := openEventBus(loadedConfig)
	if err != nil {
		return fmt.Errorf("open event bus: %w", err)
	}
	defer bus.Close()

	ctx := context.Background()
	amp, err := analysis.DriveMaxAmplitude(ctx, r, r.ID(), analysisCache, bus, nil)
	if err != nil {
		return fmt.Errorf("max amplitude: %w", err)
	}
	rms, err := analysis.DriveRMS(ctx, r, r.ID(), analysisCache, bus, nil)
	if err != nil {
		return fmt.Errorf("rms: %w", err)
	}
	silence, err := analysis.DriveSilence(ctx, r, r.ID(), analyzeSilenceThresholdDB, analyzeSilenceMinLength, analyzeSilenceFadeLength, analysisCache, bus, nil)
	if err != nil {
		return fmt.Errorf("find silence: %w", err)
	}

	report := analyzeReport{
		Path:             args[0],
		Channels:         r.NumChannels(),
		Length:           r.Length(),
		MaxAmplitude:     amp,
		RMS:              rms,
		SilenceIntervals: silence,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

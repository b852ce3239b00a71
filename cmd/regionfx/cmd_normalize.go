/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/friendsincode/regionengine/internal/region/analysis"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <path> <target-dbfs>",
	Short: "Report the scale gain needed to bring a region's peak to a target level",
	Long: `normalize computes the region's current peak amplitude and the linear
scale gain that would bring it to target-dbfs. It reports the gain rather
than rewriting the file: DoExport intentionally performs a raw,
pre-gain/fade/plugin round trip (see the bit-exact export/re-import
contract), so applying a computed gain belongs on the region's
scale-gain property in a live session, not as a destructive rewrite here.`,
	Args: cobra.ExactArgs(2),
	RunE: runNormalize,
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	targetDB, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("parse target dBFS: %w", err)
	}

	r, handles, err := openWholeFileRegion(args[0])
	if err != nil {
		return err
	}
	defer closeAll(handles)

	peak, err := analysis.MaxAmplitude(r, nil)
	if err != nil {
		return fmt.Errorf("max amplitude: %w", err)
	}
	if peak <= 0 {
		return fmt.Errorf("normalize: region is silent, nothing to normalize")
	}

	targetLinear := math.Pow(10, targetDB/20)
	gain := targetLinear / float64(peak)

	fmt.Printf("peak:        %.6f (%.2f dBFS)\n", peak, 20*math.Log10(float64(peak)))
	fmt.Printf("target:      %.2f dBFS\n", targetDB)
	fmt.Printf("scale-gain:  %.6f\n", gain)
	return nil
}

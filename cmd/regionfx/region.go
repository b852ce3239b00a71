/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/friendsincode/regionengine/internal/region"
	"github.com/friendsincode/regionengine/internal/region/source"
)

// openWholeFileRegion opens every channel of the WAV at path and wraps
// them in a *region.Region spanning the file's full length at unity gain
// and default fades, the shape each regionfx subcommand needs before it
// can call into internal/region/analysis.
func openWholeFileRegion(path string) (*region.Region, []*source.WAVSource, error) {
	first, err := source.OpenWAVChannel(path, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}

	n := first.NumChannels()
	handles := make([]*source.WAVSource, n)
	handles[0] = first
	for ch := 1; ch < n; ch++ {
		h, err := source.OpenWAVChannel(path, ch)
		if err != nil {
			closeAll(handles[:ch])
			return nil, nil, fmt.Errorf("open %s channel %d: %w", path, ch, err)
		}
		handles[ch] = h
	}

	sources := make([]source.Source, n)
	for i, h := range handles {
		sources[i] = h
	}

	length := first.Length(0)
	r, err := region.New(path, sources, sources, 0, 0, length, region.DefaultConfig())
	if err != nil {
		closeAll(handles)
		return nil, nil, fmt.Errorf("build region for %s: %w", path, err)
	}
	return r, handles, nil
}

func closeAll(handles []*source.WAVSource) {
	for _, h := range handles {
		if h != nil {
			h.Close()
		}
	}
}

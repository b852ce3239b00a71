/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package fx

// gainPlugin is a reference in-process plugin: it scales every sample by
// a fixed factor and can simulate fixed latency/tail and induced
// failures, for exercising the chain runner in tests.
type gainPlugin struct {
	gain       float32
	latency    int
	tail       int
	blockSize  int
	flushCount int
	failAfter  int // fail the nth call to Run (0 = never)
	runCount   int
	maxChunk   int
}

func newGainPlugin(gain float32) *gainPlugin {
	return &gainPlugin{gain: gain}
}

func (g *gainPlugin) CanSupportIO(in, out int) bool  { return in == out }
func (g *gainPlugin) ConfigureIO(in, out int) bool    { return in == out }
func (g *gainPlugin) RequiredBuffers() int            { return 0 }
func (g *gainPlugin) SetBlockSize(n int)              { g.blockSize = n }
func (g *gainPlugin) EffectiveLatency() int           { return g.latency }
func (g *gainPlugin) EffectiveTailTime() int          { return g.tail }
func (g *gainPlugin) Flush()                          { g.flushCount++ }

func (g *gainPlugin) Run(bufs [][]float32, cycleStart, cycleEnd, regionPos int64, n, offset int) bool {
	g.runCount++
	if n > g.maxChunk {
		g.maxChunk = n
	}
	if g.failAfter > 0 && g.runCount >= g.failAfter {
		return false
	}
	for _, b := range bufs {
		for i := offset; i < offset+n && i < len(b); i++ {
			b[i] *= g.gain
		}
	}
	return true
}

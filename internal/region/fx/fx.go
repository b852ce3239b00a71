/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package fx runs a region's ordered in-process plugin chain, tracking
// aggregate latency and tail time and applying the latent-read buffer
// correction the read-at-position engine depends on.
package fx

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPluginRejected is returned by Chain.Add when a plugin cannot be
// configured at the chain's channel count.
var ErrPluginRejected = errors.New("fx: plugin rejected at this channel count")

// Plugin is the external in-process effect contract a region's chain
// drives. Implementations are not assumed to be concurrency-safe beyond
// one call at a time; the chain never runs two plugins concurrently.
type Plugin interface {
	CanSupportIO(in, out int) bool
	ConfigureIO(in, out int) bool
	RequiredBuffers() int
	SetBlockSize(n int)
	EffectiveLatency() int
	EffectiveTailTime() int
	// Run processes [offset:offset+n] of bufs in place for the cycle
	// [cycleStart, cycleEnd), given the region's absolute position
	// regionPos. It reports false on failure.
	Run(bufs [][]float32, cycleStart, cycleEnd, regionPos int64, n, offset int) bool
	Flush()
}

// LatencyNotifier is an optional Plugin extension: plugins whose latency
// or tail time can change asynchronously (e.g. a convolution plugin
// swapping impulse responses) may implement it so the chain can refresh
// its cached totals instead of waiting for the next Add/Remove.
type LatencyNotifier interface {
	OnLatencyChanged(func())
	OnTailTimeChanged(func())
}

// Chain runs an ordered plugin list across all of a region's channels at
// once, the way §4.E apply_region_fx does.
type Chain struct {
	mu sync.RWMutex

	plugins []Plugin

	blockSize        int
	appliedBlockSize int

	latency int
	tail    int

	fxPos      int64
	latentRead bool
}

// NewChain returns an empty plugin chain.
func NewChain() *Chain {
	return &Chain{fxPos: -1}
}

// Empty reports whether the chain has no plugins.
func (c *Chain) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.plugins) == 0
}

// Latency reports the chain's aggregate latency (sum over plugins).
func (c *Chain) Latency() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latency
}

// Tail reports the chain's tail time (max over plugins).
func (c *Chain) Tail() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tail
}

// SetBlockSize records the desired processing block size; it is
// propagated to plugins lazily, on the next Apply, mirroring the
// original's "if changed since last call" check.
func (c *Chain) SetBlockSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockSize = n
}

// Add appends a plugin configured for channelCount inputs/outputs.
// Rejects (and does not insert) a plugin that cannot be configured at
// that channel count.
func (c *Chain) Add(p Plugin, channelCount int) error {
	if !p.CanSupportIO(channelCount, channelCount) {
		return fmt.Errorf("add plugin: %w", ErrPluginRejected)
	}
	if !p.ConfigureIO(channelCount, channelCount) {
		return fmt.Errorf("configure plugin: %w", ErrPluginRejected)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := p.(LatencyNotifier); ok {
		n.OnLatencyChanged(c.refreshLocked)
		n.OnTailTimeChanged(c.refreshLocked)
	}
	c.plugins = append(c.plugins, p)
	c.recomputeLocked()
	return nil
}

// Remove drops p from the chain, if present.
func (c *Chain) Remove(p Plugin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.plugins {
		if existing == p {
			c.removeAtLocked(i)
			return
		}
	}
}

// Reorder replaces the chain's plugin order. newOrder must be a
// permutation of the chain's current plugins.
func (c *Chain) Reorder(newOrder []Plugin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plugins = append([]Plugin(nil), newOrder...)
	c.recomputeLocked()
}

// Plugins returns a snapshot of the chain's current plugin order.
func (c *Chain) Plugins() []Plugin {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Plugin, len(c.plugins))
	copy(out, c.plugins)
	return out
}

func (c *Chain) removeAtLocked(i int) {
	c.plugins = append(c.plugins[:i], c.plugins[i+1:]...)
	c.recomputeLocked()
}

func (c *Chain) refreshLocked() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recomputeLocked()
}

func (c *Chain) recomputeLocked() {
	var latency, tail int
	for _, p := range c.plugins {
		latency += p.EffectiveLatency()
		if t := p.EffectiveTailTime(); t > tail {
			tail = t
		}
	}
	c.latency = latency
	c.tail = tail
}

// Apply runs the chain once across all channels in bufs, covering the
// absolute range [startAbs, endAbs) and n logical samples. latentRead
// marks a fill that over-read by the chain's latency to prime it before
// the requested window begins. It returns the (possibly-shrunk) sample
// count actually aligned to the caller's window, and false if a plugin
// failed (in which case the failing plugin has already been removed and
// the caller should retry after the next invalidation).
func (c *Chain) Apply(bufs [][]float32, startAbs, endAbs int64, n int, latentRead bool) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.blockSize != c.appliedBlockSize {
		for _, p := range c.plugins {
			p.SetBlockSize(c.blockSize)
		}
		c.appliedBlockSize = c.blockSize
	}

	var latencyOffset int64
	remaining := n

	for i := 0; i < len(c.plugins); i++ {
		p := c.plugins[i]
		if startAbs != c.fxPos {
			p.Flush()
		}

		frameStart := startAbs - latencyOffset
		processed := 0
		for processed < remaining {
			chunk := remaining - processed
			if c.blockSize > 0 && chunk > c.blockSize {
				chunk = c.blockSize
			}
			cycleStart := frameStart + int64(processed)
			cycleEnd := cycleStart + int64(chunk)
			if !p.Run(bufs, cycleStart, cycleEnd, startAbs, chunk, processed) {
				c.removeAtLocked(i)
				return 0, false
			}
			processed += chunk
		}

		if lat := p.EffectiveLatency(); lat > 0 {
			if latentRead {
				shiftLeft(bufs, lat)
				remaining -= lat
				if remaining < 0 {
					remaining = 0
				}
			} else {
				latencyOffset += int64(lat)
			}
		}
	}

	c.fxPos = endAbs
	c.latentRead = false
	return remaining, true
}

// MarkLatentRead sets the flag that LatentRead reports. Apply takes its
// latent-read mode from its own argument, not from this flag, and clears
// the flag after a successful run.
func (c *Chain) MarkLatentRead(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latentRead = v
}

// LatentRead reports whether the chain is currently flagged as having
// performed a latent (priming) read.
func (c *Chain) LatentRead() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latentRead
}

// FxPos reports the absolute sample position the chain last ended at.
func (c *Chain) FxPos() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fxPos
}

func shiftLeft(bufs [][]float32, n int) {
	for _, b := range bufs {
		if len(b) <= n {
			for i := range b {
				b[i] = 0
			}
			continue
		}
		copy(b, b[n:])
	}
}

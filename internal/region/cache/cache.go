/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache implements the region read engine's per-channel read
// cache: scratch buffers keyed by a region-local offset range, holding
// post-envelope, post-fade-before-fx, post-plugin samples so that the
// first channel request for a window fills it once and later channel
// requests in the same window copy out directly.
package cache

import "sync"

// Cache holds one scratch buffer per channel plus the region-local range
// currently cached. The embedded mutex is the single "cache_lock" the
// read engine holds across both the fast-path hit check and the fill
// path — callers lock it explicitly rather than the cache hiding locking
// behind individual method calls, since a single logical operation here
// spans several cache method calls.
type Cache struct {
	sync.Mutex

	channels [][]float32
	start    int64
	end      int64
	tail     int64
}

// New returns an empty, invalid cache.
func New() *Cache {
	return &Cache{start: -1, end: -1}
}

// Valid reports whether the cache currently holds a usable range.
// Callers must hold the cache lock.
func (c *Cache) Valid() bool {
	return c.start >= 0
}

// Range reports the cached region-local range and tail length. Callers
// must hold the cache lock.
func (c *Cache) Range() (start, end, tail int64) {
	return c.start, c.end, c.tail
}

// Contains reports whether [offset, offset+count) is fully inside the
// cached range. Callers must hold the cache lock.
func (c *Cache) Contains(offset, count int64) bool {
	if !c.Valid() {
		return false
	}
	return offset >= c.start && offset+count <= c.end
}

// Clear invalidates the cache without necessarily discarding the
// underlying buffers (EnsureBuffers may still reuse their capacity).
// Callers must hold the cache lock.
func (c *Cache) Clear() {
	c.start = -1
	c.end = -1
	c.tail = 0
}

// Set installs the cached range after a fill. Callers must hold the
// cache lock.
func (c *Cache) Set(start, end, tail int64) {
	c.start = start
	c.end = end
	c.tail = tail
}

// Size computes the buffer size a fill should request, per the central
// sizing rule: max(toRead + fxLatency + fxTail, fxLatency).
func Size(toRead, fxLatency, fxTail int64) int64 {
	sized := toRead + fxLatency + fxTail
	if fxLatency > sized {
		return fxLatency
	}
	return sized
}

// EnsureBuffers grows the cache to numChannels channels of at least n
// samples each, reusing existing channel slices' capacity where
// possible. Callers must hold the cache lock.
func (c *Cache) EnsureBuffers(numChannels int, n int64) {
	for len(c.channels) < numChannels {
		c.channels = append(c.channels, nil)
	}
	c.channels = c.channels[:numChannels]

	for i := range c.channels {
		if int64(cap(c.channels[i])) >= n {
			c.channels[i] = c.channels[i][:n]
			continue
		}
		c.channels[i] = make([]float32, n)
	}
}

// Channel returns the scratch buffer for channel i. Callers must hold
// the cache lock.
func (c *Cache) Channel(i int) []float32 {
	return c.channels[i]
}

// NumChannels reports how many channel buffers the cache currently
// holds. Callers must hold the cache lock.
func (c *Cache) NumChannels() int {
	return len(c.channels)
}

// CopyOut copies count samples starting at region-local offset from
// channel's cached buffer into out, translating offset into the cache's
// local buffer coordinates. Callers must hold the cache lock and must
// have already verified Contains(offset, count).
func (c *Cache) CopyOut(channel int, offset int64, out []float32, count int64) {
	local := offset - c.start
	copy(out[:count], c.channels[channel][local:local+count])
}

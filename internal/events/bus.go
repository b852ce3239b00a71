/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package events implements a small in-process pubsub bus, and an
// adapter that lets a region.Region publish its change-set onto it.
package events

import (
	"sync"

	"github.com/friendsincode/regionengine/internal/region"
)

// EventType enumerates event categories published by the region engine
// and the tooling built on top of it.
type EventType string

const (
	// EventRegionInvalidated fires whenever a region mutation
	// invalidates its read cache (position, length, start, scale,
	// envelope, fades, fade_before_fx, or plugin chain).
	EventRegionInvalidated EventType = "region.invalidated"
	// EventRegionOpaqueChanged fires for mutations that affect the mix
	// step but not the cached render (SetOpaque).
	EventRegionOpaqueChanged EventType = "region.opaque_changed"
	// EventRegionAnalysisComplete fires when an analysis pass (max
	// amplitude, RMS, silence, loudness) finishes.
	EventRegionAnalysisComplete EventType = "region.analysis_complete"
	// EventRegionExported fires when DoExport finishes writing a region.
	EventRegionExported EventType = "region.exported"
)

// Payload is a generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}

// publisher is the minimal surface RegionNotifier needs, satisfied by
// both Bus and eventbus.NATSBus.
type publisher interface {
	Publish(EventType, Payload)
}

// RegionNotifier adapts a Bus (or NATS-backed equivalent) to the
// region.ChangeNotifier interface, translating a region's ChangeMask
// into an EventRegionInvalidated / EventRegionOpaqueChanged payload.
// The mask's individual bits are carried as a "mask" field rather than
// fanned out into separate event types, mirroring how the mask itself
// is a single published value rather than N distinct signals.
type RegionNotifier struct {
	bus publisher
}

// NewRegionNotifier wraps bus as a region.ChangeNotifier.
func NewRegionNotifier(bus publisher) *RegionNotifier {
	return &RegionNotifier{bus: bus}
}

// Publish implements region.ChangeNotifier.
func (n *RegionNotifier) Publish(regionID string, mask region.ChangeMask) {
	eventType := EventRegionInvalidated
	if mask == region.ChangeOpaque {
		eventType = EventRegionOpaqueChanged
	}
	n.bus.Publish(eventType, Payload{
		"region_id": regionID,
		"mask":      uint32(mask),
	})
}

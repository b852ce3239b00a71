/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry registers the region engine's Prometheus metrics and
// exposes them on an HTTP handler, the way internal/telemetry does for the
// rest of the station.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReadDuration observes ReadAt call latency, labelled by whether the
	// call hit the read cache.
	ReadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "regionengine_read_duration_seconds",
		Help:    "Duration of Region.ReadAt calls.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	}, []string{"cache"})

	// CacheHitsTotal counts read-cache hits and misses in the region
	// engine's per-channel fill cache.
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionengine_cache_hits_total",
		Help: "Read cache hits and misses in Region.ReadAt.",
	}, []string{"result"})

	// PluginFailuresTotal counts plugin chain failures that caused a
	// region render to return zero samples.
	PluginFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionengine_plugin_failures_total",
		Help: "Plugin Run() failures observed by the fx chain.",
	}, []string{"plugin"})

	// AnalysisDuration observes analysis pass latency (max amplitude,
	// RMS, silence detection, loudness), labelled by analysis kind and
	// whether the result was served from the analysis cache.
	AnalysisDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "regionengine_analysis_duration_seconds",
		Help:    "Duration of region analysis operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "cache"})

	// ExportsTotal counts completed and failed region exports.
	ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionengine_exports_total",
		Help: "Region exports, labelled by outcome.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		ReadDuration,
		CacheHitsTotal,
		PluginFailuresTotal,
		AnalysisDuration,
		ExportsTotal,
	)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

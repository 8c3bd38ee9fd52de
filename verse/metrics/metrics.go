// Package metrics exposes dispatcher and persistence health as
// Prometheus series via github.com/prometheus/client_golang, the
// observability library already present in the teacher's go.mod. The
// original C server only ever logged these numbers (v_print_log); this
// package gives them a scrape endpoint instead, grounded on the
// library's own promauto/promhttp idiom rather than any one example
// repo's usage (the retrieval pack only imports promhttp directly for
// its handler, not promauto).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every series verseserver publishes. Handlers call
// its methods directly rather than reaching for the global default
// registry, so multiple Cores (as in tests) don't collide.
type Registry struct {
	reg *prometheus.Registry

	SessionsConnected prometheus.Gauge
	DispatchWakeups   prometheus.Counter
	CommandsHandled   *prometheus.CounterVec
	OutQueueDepth     prometheus.Histogram
	FlushDuration     prometheus.Histogram
	FlushErrors       prometheus.Counter
	FollowerCount     prometheus.Gauge
}

// New builds a fresh Registry with every series registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		SessionsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "verse",
			Name:      "sessions_connected",
			Help:      "Number of sessions currently registered with the dispatcher.",
		}),
		DispatchWakeups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "verse",
			Name:      "dispatch_wakeups_total",
			Help:      "Number of times the dispatcher loop woke up to drain inbound queues.",
		}),
		CommandsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verse",
			Name:      "commands_handled_total",
			Help:      "Commands processed by the dispatcher, labeled by opcode name.",
		}, []string{"opcode"}),
		OutQueueDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "verse",
			Name:      "session_out_queue_depth",
			Help:      "Outbound queue depth observed per session per drain cycle.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "verse",
			Name:      "persist_flush_duration_seconds",
			Help:      "Wall-clock duration of a full FlushScene pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		FlushErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "verse",
			Name:      "persist_flush_errors_total",
			Help:      "Node/tag-group/layer saves that returned an error during a flush pass.",
		}),
		FollowerCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "verse",
			Name:      "follower_records",
			Help:      "Total outstanding create/destroy-ack follower records across the store.",
		}),
	}
}

// Handler returns the http.Handler that serves this Registry's series
// in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

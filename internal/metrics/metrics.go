// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

// Package metrics exposes Prometheus collectors for the recommendation
// pipeline and the store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the pipeline collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       prometheus.Counter
	RunFailures     prometheus.Counter
	PersistFailures prometheus.Counter
	ItemsSkipped    prometheus.Counter
	RecountFlagged  prometheus.Counter
	RunDuration     prometheus.Histogram
}

// New creates the collectors and registers them, along with the standard Go
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barhound",
			Name:      "agent_runs_total",
			Help:      "Completed recommendation runs.",
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barhound",
			Name:      "agent_run_failures_total",
			Help:      "Recommendation runs that failed before persisting.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barhound",
			Name:      "agent_persist_failures_total",
			Help:      "Runs discarded because the atomic write failed.",
		}),
		ItemsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barhound",
			Name:      "agent_items_skipped_total",
			Help:      "Items excluded from a run by a computation failure.",
		}),
		RecountFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barhound",
			Name:      "agent_recount_flagged_total",
			Help:      "Items flagged for a physical recount.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "barhound",
			Name:      "agent_run_duration_seconds",
			Help:      "Wall time of a full recommendation run.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RunsTotal,
		m.RunFailures,
		m.PersistFailures,
		m.ItemsSkipped,
		m.RecountFlagged,
		m.RunDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

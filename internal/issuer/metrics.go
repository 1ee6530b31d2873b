// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package issuer

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the issuer's Prometheus collectors backed by a
// dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal  *prometheus.CounterVec
	IssuedTotal    *prometheus.CounterVec
	RemovalsTotal  prometheus.Counter
	ResolveSeconds prometheus.Histogram
}

// NewMetrics creates and registers the issuer collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sponsorkit_issuer_requests_total",
			Help: "Number of HTTP requests by path and status code.",
		}, []string{"path", "status"}),
		IssuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sponsorkit_issuer_manifests_issued_total",
			Help: "Number of signed sponsor manifests issued by primary role.",
		}, []string{"role"}),
		RemovalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sponsorkit_issuer_removals_total",
			Help: "Number of acknowledged sponsor removal requests.",
		}),
		ResolveSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sponsorkit_issuer_resolve_duration_seconds",
			Help:    "Duration of sponsorship resolution against the GitHub graph.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(m.RequestsTotal, m.IssuedTotal, m.RemovalsTotal, m.ResolveSeconds)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

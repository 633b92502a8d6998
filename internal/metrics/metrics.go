// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package metrics exposes Prometheus instrumentation for the integrity checks.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "srcseal"

// Check names used as the "check" label.
const (
	CheckValidator = "validator"
	CheckSignature = "signature"
	CheckGate      = "gate"
)

// Cache outcomes used as the "outcome" label of the validator cache counter.
const (
	CacheHit     = "hit"
	CacheStale   = "stale"
	CacheChanged = "changed"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	scans        *prometheus.CounterVec
	scannedFiles *prometheus.CounterVec
	cache        *prometheus.CounterVec
	decisions    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_scans_total",
			Help:      "Full content re-hashes performed, by check.",
		}, []string{"check"}),
		scannedFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scanned_files_total",
			Help:      "Files hashed by full content scans, by check.",
		}, []string{"check"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validator_cache_total",
			Help:      "Cached validator lookups, by outcome.",
		}, []string{"outcome"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Integrity decisions, by check and result.",
		}, []string{"check", "result"}),
	}
	reg.MustRegister(m.scans, m.scannedFiles, m.cache, m.decisions)
	return m
}

// ScanObserver returns a callback suitable for digest.Engine.OnScan.
func (m *Metrics) ScanObserver(check string) func(files int) {
	return func(files int) {
		if m == nil {
			return
		}
		m.scans.WithLabelValues(check).Inc()
		m.scannedFiles.WithLabelValues(check).Add(float64(files))
	}
}

// CacheOutcome counts a validator cache lookup.
func (m *Metrics) CacheOutcome(outcome string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(outcome).Inc()
}

// Decision counts a pass or reject for check.
func (m *Metrics) Decision(check string, pass bool) {
	if m == nil {
		return
	}
	result := "reject"
	if pass {
		result = "pass"
	}
	m.decisions.WithLabelValues(check, result).Inc()
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

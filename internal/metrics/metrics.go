// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

// Package metrics provides Prometheus instrumentation for the forecasting
// pipeline: recalculation runs, prediction volumes, engine fallbacks and
// HTTP traffic. Collectors are registered on the default registry and
// served via promhttp on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts recalculation runs by engine and outcome
	// (ok, store_error, fatal).
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcast_runs_total",
			Help: "Total recalculation runs by engine and outcome",
		},
		[]string{"engine", "outcome"},
	)

	// RunDuration observes end-to-end recalculation latency.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillcast_run_duration_seconds",
			Help:    "Duration of recalculation runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine"},
	)

	// PredictionsTotal counts emitted predictions by level and engine.
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcast_predictions_total",
			Help: "Total predictions produced by level and engine",
		},
		[]string{"level", "engine"},
	)

	// RecommendationsTotal counts emitted recommendations by priority.
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcast_recommendations_total",
			Help: "Total recommendations produced by priority",
		},
		[]string{"priority"},
	)

	// EngineFallbacks counts whole-batch fallbacks to the rule scorer by
	// reason (unavailable, inference).
	EngineFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcast_engine_fallbacks_total",
			Help: "Whole-batch fallbacks to the rule scorer by reason",
		},
		[]string{"reason"},
	)

	// ContextsSkipped counts contexts dropped for missing reference data.
	ContextsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skillcast_contexts_skipped_total",
			Help: "Contexts skipped because reference data was missing",
		},
	)

	// ArtifactLoads counts model artifact load attempts by outcome.
	ArtifactLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcast_artifact_loads_total",
			Help: "Model artifact load attempts by outcome",
		},
		[]string{"outcome"},
	)

	// HTTPRequestDuration observes API latency by route, method and
	// status code.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillcast_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(duration.Seconds())
}

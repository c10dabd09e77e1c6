// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the HTTP routing tree.
//
// Middleware order matters: request IDs are assigned before anything
// logs, CORS is global so OPTIONS preflight never hits rate limits, and
// metrics wrap only the API routes so health-check scrapes do not skew
// latency histograms.
func NewRouter(handler *Handler, mw MiddlewareConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	// Permissive rate limiting for health probes: liveness checks run
	// every few seconds per orchestrator replica.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(mw.RateLimitHealthz())
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(PrometheusMetrics)

		r.Post("/forecast/recalculate", handler.Recalculate)

		r.Get("/runs", handler.ListRuns)
		r.Get("/runs/{runID}", handler.GetRun)
		r.Get("/runs/{runID}/predictions", handler.RunPredictions)
		r.Get("/runs/{runID}/recommendations", handler.RunRecommendations)

		r.Get("/predictions", handler.PredictionHistory)
		r.Get("/predictions/{predictionID}", handler.GetPrediction)
		r.Get("/predictions/{predictionID}/explanation", handler.ExplainPrediction)

		r.Get("/model", handler.ModelStatus)
		r.Get("/model/artifacts", handler.ListArtifacts)
		r.Post("/model/promote", handler.PromoteModel)
	})

	return r
}

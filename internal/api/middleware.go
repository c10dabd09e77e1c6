// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/skillcast/skillcast/internal/logging"
	"github.com/skillcast/skillcast/internal/metrics"
)

// MiddlewareConfig holds CORS and rate limit settings for the router.
type MiddlewareConfig struct {
	// CORS origins default to empty, requiring explicit configuration.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// RateLimitHealth is the separate, permissive budget for health
	// endpoints so monitoring is never throttled with the API traffic.
	RateLimitHealth int `koanf:"rate_limit_health"`
}

// DefaultMiddlewareConfig returns secure defaults.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		CORSAllowedOrigins: []string{},
		RateLimitRequests:  120,
		RateLimitWindow:    time.Minute,
		RateLimitHealth:    1000,
	}
}

// RequestID assigns each request an ID, stores it in the logging context,
// and echoes it in the X-Request-ID header. Inbound X-Request-ID values
// are trusted so callers can correlate across services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrometheusMetrics records request duration labeled by chi route pattern
// so path parameters don't explode the label cardinality.
func PrometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(route, r.Method, ww.Status(), time.Since(start))
	})
}

// CORS builds the CORS handler from configured origins.
func (cfg MiddlewareConfig) CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	})
}

// RateLimit limits API traffic per client IP.
func (cfg MiddlewareConfig) RateLimit() func(http.Handler) http.Handler {
	if cfg.RateLimitRequests <= 0 {
		return passthrough
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.LimitByIP(cfg.RateLimitRequests, window)
}

// RateLimitHealthz limits health endpoints with a separate budget.
func (cfg MiddlewareConfig) RateLimitHealthz() func(http.Handler) http.Handler {
	if cfg.RateLimitHealth <= 0 {
		return passthrough
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.LimitByIP(cfg.RateLimitHealth, window)
}

func passthrough(next http.Handler) http.Handler { return next }

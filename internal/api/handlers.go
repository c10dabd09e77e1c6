// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/skillcast/skillcast/internal/artifact"
	"github.com/skillcast/skillcast/internal/forecast"
	"github.com/skillcast/skillcast/internal/logging"
)

// Enqueuer hands recalculation requests to the async worker.
// Implemented by worker.Runner.
type Enqueuer interface {
	Enqueue(ctx context.Context, horizonYears int, triggeredBy string) (string, error)
}

// Handler serves the forecast API. The runner, model, and artifacts
// fields are optional; endpoints depending on them degrade to explicit
// errors when absent.
type Handler struct {
	engine    *forecast.Engine
	store     forecast.RunStore
	runner    Enqueuer
	model     *forecast.ModelWrapper
	artifacts *artifact.Store
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewHandler creates the API handler. engine and store are required.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(engine *forecast.Engine, store forecast.RunStore, runner Enqueuer,
	model *forecast.ModelWrapper, artifacts *artifact.Store, logger zerolog.Logger,
) (*Handler, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if store == nil {
		return nil, fmt.Errorf("run store is required")
	}
	return &Handler{
		engine:    engine,
		store:     store,
		runner:    runner,
		model:     model,
		artifacts: artifacts,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With().Str("component", "api").Logger(),
	}, nil
}

// RecalculateRequest triggers a forecast run.
type RecalculateRequest struct {
	HorizonYears int  `json:"horizon_years" validate:"required,min=1,max=30"`
	Async        bool `json:"async"`
}

// Recalculate handles POST /api/v1/forecast/recalculate. With async=true
// the request is queued and a 202 returned; otherwise the run executes
// within the request and the summary is returned.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var req RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		rw.ValidationFailed(err.Error())
		return
	}

	if req.Async {
		if h.runner == nil {
			rw.ServiceUnavailable("async recalculation is not enabled")
			return
		}
		requestID, err := h.runner.Enqueue(r.Context(), req.HorizonYears, "api")
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("enqueue recalculation failed")
			rw.InternalError("failed to enqueue recalculation")
			return
		}
		rw.Accepted(map[string]any{
			"request_id":    requestID,
			"horizon_years": req.HorizonYears,
		})
		return
	}

	summary, err := h.engine.Recalculate(r.Context(), req.HorizonYears, "api")
	if err != nil {
		switch {
		case errors.Is(err, forecast.ErrInsufficientData):
			rw.Conflict(err.Error())
		case forecast.IsFatal(err):
			logging.Ctx(r.Context()).Error().Err(err).Msg("recalculation aborted")
			rw.InternalError(err.Error())
		default:
			logging.Ctx(r.Context()).Error().Err(err).Msg("recalculation failed")
			rw.InternalError("recalculation failed")
		}
		return
	}
	rw.Success(summary)
}

// ListRuns handles GET /api/v1/runs?limit=N.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			rw.BadRequest("limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("list runs failed")
		rw.InternalError("failed to list runs")
		return
	}
	rw.Success(map[string]any{"runs": runs, "count": len(runs)})
}

// GetRun handles GET /api/v1/runs/{runID}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	runID := chi.URLParam(r, "runID")

	run, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, forecast.ErrRunNotFound) {
			rw.NotFound(err.Error())
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("get run failed")
		rw.InternalError("failed to get run")
		return
	}
	rw.Success(run)
}

// RunPredictions handles GET /api/v1/runs/{runID}/predictions.
func (h *Handler) RunPredictions(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	runID := chi.URLParam(r, "runID")

	preds, err := h.store.PredictionsByRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, forecast.ErrRunNotFound) {
			rw.NotFound(err.Error())
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("get run predictions failed")
		rw.InternalError("failed to get predictions")
		return
	}
	rw.Success(map[string]any{"predictions": preds, "count": len(preds)})
}

// RunRecommendations handles GET /api/v1/runs/{runID}/recommendations.
func (h *Handler) RunRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	runID := chi.URLParam(r, "runID")

	recs, err := h.store.RecommendationsByRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, forecast.ErrRunNotFound) {
			rw.NotFound(err.Error())
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("get run recommendations failed")
		rw.InternalError("failed to get recommendations")
		return
	}
	rw.Success(map[string]any{"recommendations": recs, "count": len(recs)})
}

// PredictionHistory handles GET /api/v1/predictions with optional
// job_role_id, skill_id, horizon_years and limit query parameters. It
// spans runs, so the same pair appears once per recalculation.
func (h *Handler) PredictionHistory(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	q := r.URL.Query()

	filter := forecast.PredictionFilter{
		JobRoleID: q.Get("job_role_id"),
		SkillID:   q.Get("skill_id"),
		Limit:     100,
	}
	if raw := q.Get("horizon_years"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			rw.BadRequest("horizon_years must be a positive integer")
			return
		}
		filter.HorizonYears = parsed
	}
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			rw.BadRequest("limit must be a non-negative integer")
			return
		}
		filter.Limit = parsed
	}

	preds, err := h.store.QueryPredictions(r.Context(), filter)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("query prediction history failed")
		rw.InternalError("failed to query predictions")
		return
	}
	rw.Success(map[string]any{"predictions": preds, "count": len(preds)})
}

// GetPrediction handles GET /api/v1/predictions/{predictionID}.
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	predictionID := chi.URLParam(r, "predictionID")

	pred, err := h.store.GetPrediction(r.Context(), predictionID)
	if err != nil {
		if errors.Is(err, forecast.ErrPredictionNotFound) {
			rw.NotFound(err.Error())
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("get prediction failed")
		rw.InternalError("failed to get prediction")
		return
	}
	rw.Success(pred)
}

// ExplainPrediction handles GET /api/v1/predictions/{predictionID}/explanation.
// The rationale is recomputed on demand from the stored context.
func (h *Handler) ExplainPrediction(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	predictionID := chi.URLParam(r, "predictionID")

	rationale, err := h.engine.ExplainPrediction(r.Context(), predictionID)
	if err != nil {
		switch {
		case errors.Is(err, forecast.ErrPredictionNotFound):
			rw.NotFound(err.Error())
		case errors.Is(err, forecast.ErrModelUnavailable):
			rw.ServiceUnavailable("the artifact that produced this prediction is not loadable")
		default:
			logging.Ctx(r.Context()).Error().Err(err).Msg("explain prediction failed")
			rw.InternalError("failed to explain prediction")
		}
		return
	}
	rw.Success(map[string]any{
		"prediction_id": predictionID,
		"rationale":     rationale,
	})
}

// ModelStatus handles GET /api/v1/model. It reports whether the ML engine
// is currently loadable and the metadata of the loaded artifact.
func (h *Handler) ModelStatus(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	if h.model == nil {
		rw.Success(map[string]any{"enabled": false, "available": false})
		return
	}

	status := map[string]any{"enabled": true, "available": h.model.IsAvailable()}
	if meta, err := h.model.Metadata(); err == nil {
		status["metadata"] = meta
		if id, idErr := h.model.EngineID(); idErr == nil {
			status["engine_id"] = id
		}
	}
	rw.Success(status)
}

// ListArtifacts handles GET /api/v1/model/artifacts.
func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	if h.artifacts == nil {
		rw.ServiceUnavailable("artifact registry is not configured")
		return
	}

	list, err := h.artifacts.List(r.Context(), artifact.ArtifactName)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("list artifacts failed")
		rw.InternalError("failed to list artifacts")
		return
	}

	response := map[string]any{"artifacts": list, "count": len(list)}
	if promoted, ok := h.artifacts.PromotedVersion(artifact.ArtifactName); ok {
		response["promoted_version"] = promoted
	}
	rw.Success(response)
}

// PromoteRequest selects an artifact version as the live model.
type PromoteRequest struct {
	Version int `json:"version" validate:"required,min=1"`
}

// PromoteModel handles POST /api/v1/model/promote. Prediction traffic
// sees either the old version or the new one, never a mix.
func (h *Handler) PromoteModel(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	if h.artifacts == nil {
		rw.ServiceUnavailable("artifact registry is not configured")
		return
	}

	var req PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		rw.ValidationFailed(err.Error())
		return
	}

	if err := h.artifacts.Promote(r.Context(), artifact.ArtifactName, req.Version); err != nil {
		rw.Conflict(err.Error())
		return
	}

	response := map[string]any{"promoted_version": req.Version}
	if h.model != nil {
		if err := h.model.Reload(); err != nil {
			// Promotion persisted; the wrapper retries on the next
			// availability check.
			logging.Ctx(r.Context()).Warn().Err(err).Msg("model reload after promotion failed")
			response["reloaded"] = false
		} else {
			response["reloaded"] = true
		}
	}
	rw.Success(response)
}

// HealthLive handles GET /healthz/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	newResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// HealthReady handles GET /healthz/ready. Readiness requires the run
// ledger to answer queries.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	if _, err := h.store.ListRuns(r.Context(), 1); err != nil {
		rw.ServiceUnavailable("run ledger unreachable: " + err.Error())
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

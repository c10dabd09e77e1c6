// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/skillcast/skillcast/internal/forecast"
	"github.com/skillcast/skillcast/internal/ledger"
	"github.com/skillcast/skillcast/internal/refdata"
)

// testAPI wires a router against in-memory reference data and ledger.
type testAPI struct {
	router http.Handler
	store  *ledger.MemoryStore
	engine *forecast.Engine
}

func newTestAPI(t *testing.T, runner Enqueuer) *testAPI {
	t.Helper()
	ctx := context.Background()

	refStore := refdata.NewMemoryStore()
	seed := refdata.Seed{
		JobRoles: []refdata.JobRole{
			{ID: "r1", Title: "Engineer", Department: "engineering", AvgSalaryK: 120},
			{ID: "r2", Title: "Analyst", Department: "finance", AvgSalaryK: 90},
		},
		Skills: []refdata.Skill{
			{ID: "s1", Name: "Go", Category: "technical"},
			{ID: "s2", Name: "Forecasting", Category: "analytical"},
		},
		RoleSkills: []refdata.RoleSkill{
			{JobRoleID: "r1", SkillID: "s1", InternalUsage: 0.8, TrainingRequests: 40},
			{JobRoleID: "r2", SkillID: "s2", InternalUsage: 0.3, TrainingRequests: 5},
		},
		MarketTrends: []refdata.MarketTrend{
			{SkillID: "s1", HorizonYears: 3, TrendScore: 0.9, ScarcityIndex: 0.8, HiringDifficulty: 0.8},
			{SkillID: "s2", HorizonYears: 3, TrendScore: 0.2, ScarcityIndex: 0.3, HiringDifficulty: 0.2},
		},
		EconomicReports: []refdata.EconomicReport{{HorizonYears: 3, Indicator: 0.5}},
	}
	if err := seed.Apply(ctx, refStore); err != nil {
		t.Fatalf("seed: %v", err)
	}

	runStore := ledger.NewMemoryStore()
	engine, err := forecast.NewEngine(
		forecast.DefaultConfig(),
		refdata.NewResolver(refStore, zerolog.Nop()),
		runStore,
		nil,
		zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	handler, err := NewHandler(engine, runStore, runner, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return &testAPI{
		router: NewRouter(handler, DefaultMiddlewareConfig()),
		store:  runStore,
		engine: engine,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

// runOnce triggers a synchronous recalculation and returns the run ID.
func (a *testAPI) runOnce(t *testing.T) string {
	t.Helper()
	summary, err := a.engine.Recalculate(context.Background(), 3, "test")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	return summary.RunID
}

func TestRecalculateSync(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodPost, "/api/v1/forecast/recalculate",
		RecalculateRequest{HorizonYears: 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp.Error)
	}

	var summary forecast.RunSummary
	raw, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(raw, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalPredictions != 2 {
		t.Errorf("TotalPredictions = %d, want 2", summary.TotalPredictions)
	}
	if summary.EngineUsed != forecast.EngineRules {
		t.Errorf("EngineUsed = %q, want %q", summary.EngineUsed, forecast.EngineRules)
	}
	if resp.Meta == nil || resp.Meta.RequestID == "" {
		t.Error("expected request ID in meta")
	}
}

func TestRecalculateValidation(t *testing.T) {
	a := newTestAPI(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing horizon", `{}`, http.StatusUnprocessableEntity},
		{"horizon too large", `{"horizon_years": 31}`, http.StatusUnprocessableEntity},
		{"negative horizon", `{"horizon_years": -1}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"horizon_years":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost,
				"/api/v1/forecast/recalculate", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			a.router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRecalculateInsufficientDataConflict(t *testing.T) {
	a := newTestAPI(t, nil)

	// No economic report exists for horizon 9.
	rec := a.do(t, http.MethodPost, "/api/v1/forecast/recalculate",
		RecalculateRequest{HorizonYears: 9})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != ErrCodeConflict {
		t.Errorf("error = %+v, want code %s", resp.Error, ErrCodeConflict)
	}
}

type stubEnqueuer struct {
	horizon int
	by      string
	err     error
}

func (s *stubEnqueuer) Enqueue(_ context.Context, horizonYears int, triggeredBy string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.horizon = horizonYears
	s.by = triggeredBy
	return "req-123", nil
}

func TestRecalculateAsync(t *testing.T) {
	enq := &stubEnqueuer{}
	a := newTestAPI(t, enq)

	rec := a.do(t, http.MethodPost, "/api/v1/forecast/recalculate",
		RecalculateRequest{HorizonYears: 3, Async: true})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	if enq.horizon != 3 || enq.by != "api" {
		t.Errorf("enqueued horizon=%d by=%q, want 3/api", enq.horizon, enq.by)
	}

	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]any)
	if !ok || data["request_id"] != "req-123" {
		t.Errorf("data = %+v, want request_id req-123", resp.Data)
	}
}

func TestRecalculateAsyncWithoutRunner(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodPost, "/api/v1/forecast/recalculate",
		RecalculateRequest{HorizonYears: 3, Async: true})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRunEndpoints(t *testing.T) {
	a := newTestAPI(t, nil)
	runID := a.runOnce(t)

	t.Run("list", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/v1/runs", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		resp := decodeResponse(t, rec)
		data := resp.Data.(map[string]any)
		if data["count"].(float64) != 1 {
			t.Errorf("count = %v, want 1", data["count"])
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/v1/runs/"+runID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
		}
	})

	t.Run("predictions", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/runs/%s/predictions", runID), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		resp := decodeResponse(t, rec)
		data := resp.Data.(map[string]any)
		if data["count"].(float64) != 2 {
			t.Errorf("prediction count = %v, want 2", data["count"])
		}
	})

	t.Run("recommendations", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/runs/%s/recommendations", runID), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		for _, path := range []string{
			"/api/v1/runs/nope",
			"/api/v1/runs/nope/predictions",
			"/api/v1/runs/nope/recommendations",
		} {
			rec := a.do(t, http.MethodGet, path, nil)
			if rec.Code != http.StatusNotFound {
				t.Errorf("%s status = %d, want 404", path, rec.Code)
			}
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/v1/runs?limit=banana", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestPredictionEndpoints(t *testing.T) {
	a := newTestAPI(t, nil)
	runID := a.runOnce(t)

	preds, err := a.store.PredictionsByRun(context.Background(), runID)
	if err != nil || len(preds) == 0 {
		t.Fatalf("PredictionsByRun: %v (%d)", err, len(preds))
	}
	predID := preds[0].ID

	rec := a.do(t, http.MethodGet, "/api/v1/predictions/"+predID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get prediction status = %d", rec.Code)
	}

	rec = a.do(t, http.MethodGet, "/api/v1/predictions/"+predID+"/explanation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("explanation status = %d (body %s)", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	rationale, _ := data["rationale"].(string)
	if rationale == "" {
		t.Error("expected non-empty rationale")
	}

	rec = a.do(t, http.MethodGet, "/api/v1/predictions/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing prediction status = %d, want 404", rec.Code)
	}
}

func TestPredictionHistory(t *testing.T) {
	a := newTestAPI(t, nil)
	a.runOnce(t)
	a.runOnce(t)

	rec := a.do(t, http.MethodGet, "/api/v1/predictions?skill_id=s1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	if data["count"].(float64) != 2 {
		t.Errorf("count = %v, want 2 (one per run)", data["count"])
	}

	rec = a.do(t, http.MethodGet, "/api/v1/predictions?skill_id=s1&limit=1", nil)
	resp = decodeResponse(t, rec)
	data = resp.Data.(map[string]any)
	if data["count"].(float64) != 1 {
		t.Errorf("limited count = %v, want 1", data["count"])
	}

	rec = a.do(t, http.MethodGet, "/api/v1/predictions?horizon_years=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad horizon status = %d, want 400", rec.Code)
	}
}

func TestModelStatusDisabled(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodGet, "/api/v1/model", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	if data["enabled"] != false || data["available"] != false {
		t.Errorf("data = %+v, want enabled=false available=false", data)
	}
}

func TestPromoteWithoutRegistry(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodPost, "/api/v1/model/promote", PromoteRequest{Version: 1})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	a := newTestAPI(t, nil)

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready"} {
		rec := a.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRequestIDPropagation(t *testing.T) {
	a := newTestAPI(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.Header.Set("X-Request-ID", "inbound-42")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "inbound-42" {
		t.Errorf("X-Request-ID = %q, want inbound-42", got)
	}
	resp := decodeResponse(t, rec)
	if resp.Meta == nil || resp.Meta.RequestID != "inbound-42" {
		t.Errorf("meta request ID = %+v, want inbound-42", resp.Meta)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected Go runtime metrics in output")
	}
}

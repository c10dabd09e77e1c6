// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skillcast/skillcast/internal/forecast"
)

func sampleRun(id string, runDate time.Time) (*forecast.RunRecord, []forecast.PredictionResult, []forecast.Recommendation) {
	sc := forecast.SkillContext{
		JobRoleID: "r1", SkillID: "s1", HorizonYears: 3,
		TrendScore: 0.8, InternalUsage: 0.6, TrainingRequests: 15,
		ScarcityIndex: 0.7, HiringDifficulty: 0.75, AvgSalaryK: 110,
		EconomicIndicator: 0.5, SkillCategory: "technical", JobDepartment: "engineering",
	}
	run := &forecast.RunRecord{
		ID:                   id,
		RunDate:              runDate,
		TriggeredBy:          "tester",
		HorizonYears:         3,
		EngineUsed:           forecast.EngineRules,
		TotalPredictions:     1,
		TotalRecommendations: 1,
		SkippedContexts:      2,
		Parameters:           map[string]string{"horizon_years": "3"},
	}
	preds := []forecast.PredictionResult{{
		ID:        id + "-p1",
		RunID:     id,
		Context:   sc,
		Level:     forecast.LevelHigh,
		Score:     0.82,
		EngineID:  forecast.EngineRules,
		CreatedAt: runDate,
	}}
	recs := []forecast.Recommendation{{
		ID:           id + "-rec1",
		RunID:        id,
		SkillID:      "s1",
		JobRoleID:    "r1",
		HorizonYears: 3,
		Priority:     forecast.LevelHigh,
		Action:       "invest in structured training program",
		BudgetHintK:  40,
		Rationale:    "HIGH demand predicted",
		CreatedAt:    runDate,
	}}
	return run, preds, recs
}

func TestMemoryStoreSaveAndRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	run, preds, recs := sampleRun("run-1", time.Now())

	if err := store.SaveRun(ctx, run, preds, recs); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.EngineUsed != forecast.EngineRules || got.SkippedContexts != 2 {
		t.Errorf("GetRun = %+v", got)
	}
	if got.Parameters["horizon_years"] != "3" {
		t.Errorf("parameters not preserved: %v", got.Parameters)
	}

	gotPreds, err := store.PredictionsByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("PredictionsByRun: %v", err)
	}
	if len(gotPreds) != 1 || gotPreds[0].Context.SkillID != "s1" {
		t.Errorf("PredictionsByRun = %+v", gotPreds)
	}

	gotRecs, err := store.RecommendationsByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("RecommendationsByRun: %v", err)
	}
	if len(gotRecs) != 1 || gotRecs[0].Priority != forecast.LevelHigh {
		t.Errorf("RecommendationsByRun = %+v", gotRecs)
	}

	pred, err := store.GetPrediction(ctx, "run-1-p1")
	if err != nil {
		t.Fatalf("GetPrediction: %v", err)
	}
	if pred.Level != forecast.LevelHigh || pred.Score != 0.82 {
		t.Errorf("GetPrediction = %+v", pred)
	}
}

func TestMemoryStoreAppendOnly(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	run, preds, recs := sampleRun("run-1", time.Now())

	if err := store.SaveRun(ctx, run, preds, recs); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := store.SaveRun(ctx, run, preds, recs); err == nil {
		t.Error("expected error re-saving an existing run ID")
	}
}

func TestMemoryStoreListRunsNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run, preds, recs := sampleRun(id, base.Add(time.Duration(i)*time.Minute))
		if err := store.SaveRun(ctx, run, preds, recs); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("ListRuns len = %d, want 3", len(runs))
	}
	if runs[0].ID != "run-c" || runs[2].ID != "run-a" {
		t.Errorf("runs not newest-first: %s, %s, %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}

	limited, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited len = %d, want 2", len(limited))
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.GetRun(ctx, "absent"); err == nil {
		t.Error("expected error for unknown run")
	}
	if _, err := store.GetPrediction(ctx, "absent"); !errors.Is(err, forecast.ErrPredictionNotFound) {
		t.Errorf("GetPrediction = %v, want ErrPredictionNotFound", err)
	}
	if _, err := store.PredictionsByRun(ctx, "absent"); err == nil {
		t.Error("expected error for predictions of unknown run")
	}
}

func TestMemoryStoreQueryPredictions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		run, preds, recs := sampleRun(id, base.Add(time.Duration(i)*time.Minute))
		if err := store.SaveRun(ctx, run, preds, recs); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	preds, err := store.QueryPredictions(ctx, forecast.PredictionFilter{SkillID: "s1"})
	if err != nil {
		t.Fatalf("QueryPredictions: %v", err)
	}
	if len(preds) != 3 {
		t.Fatalf("len = %d, want 3 (one per run)", len(preds))
	}
	if preds[0].RunID != "run-3" {
		t.Errorf("first result from %s, want run-3 (newest first)", preds[0].RunID)
	}

	preds, err = store.QueryPredictions(ctx, forecast.PredictionFilter{SkillID: "s1", Limit: 2})
	if err != nil {
		t.Fatalf("QueryPredictions with limit: %v", err)
	}
	if len(preds) != 2 {
		t.Errorf("limited len = %d, want 2", len(preds))
	}

	preds, err = store.QueryPredictions(ctx, forecast.PredictionFilter{SkillID: "other"})
	if err != nil {
		t.Fatalf("QueryPredictions no match: %v", err)
	}
	if len(preds) != 0 {
		t.Errorf("len = %d, want 0 for unmatched skill", len(preds))
	}

	preds, err = store.QueryPredictions(ctx, forecast.PredictionFilter{HorizonYears: 3, JobRoleID: "r1"})
	if err != nil {
		t.Fatalf("QueryPredictions combined filter: %v", err)
	}
	if len(preds) != 3 {
		t.Errorf("combined filter len = %d, want 3", len(preds))
	}
}

// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

// Package forecast implements the prediction and recommendation pipeline:
// rule-based and model-based demand scoring, whole-batch engine selection
// with fallback, explanation, and recommendation generation.
//
// The package has no dependency on the persistence or reference-data
// packages. The RunStore and ContextSource interfaces decouple it from the
// ledger and refdata layers without circular imports.
package forecast

import (
	"context"
	"time"
)

// Level classifies predicted demand for a skill.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Rank returns the ordering of a level, LOW lowest. Unknown levels rank -1.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 0
	case LevelMedium:
		return 1
	case LevelHigh:
		return 2
	default:
		return -1
	}
}

// Valid reports whether l is one of the three defined levels.
func (l Level) Valid() bool {
	return l.Rank() >= 0
}

// EngineRules is the engine ID recorded for rule-based predictions.
const EngineRules = "rules_v1"

// SkillContext is the immutable feature tuple for one (job role, skill,
// horizon) triple. Built fresh by the resolver for every recalculation and
// never mutated afterwards.
type SkillContext struct {
	JobRoleID    string `json:"job_role_id"`
	SkillID      string `json:"skill_id"`
	HorizonYears int    `json:"horizon_years"`

	// Numeric features. Ratio features are expected in [0,1]; the rule
	// scorer clamps before combining so out-of-range reference data cannot
	// push a score outside the contract.
	TrendScore        float64 `json:"trend_score"`
	InternalUsage     float64 `json:"internal_usage"`
	TrainingRequests  int     `json:"training_requests"`
	ScarcityIndex     float64 `json:"scarcity_index"`
	HiringDifficulty  float64 `json:"hiring_difficulty"`
	AvgSalaryK        float64 `json:"avg_salary_k"`
	EconomicIndicator float64 `json:"economic_indicator"`

	// Categorical context.
	SkillCategory string `json:"skill_category"`
	JobDepartment string `json:"job_department"`
}

// PredictionResult is one scored context. Immutable once created; persisted
// as one row per (job role, skill, horizon) per run.
type PredictionResult struct {
	ID       string       `json:"id"`
	RunID    string       `json:"run_id"`
	Context  SkillContext `json:"context"`
	Level    Level        `json:"level"`
	Score    float64      `json:"score"`
	EngineID string       `json:"engine_id"`

	// Rationale is lazily computed by the explanation engine and is empty
	// on freshly scored predictions.
	Rationale string    `json:"rationale,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recommendation is a prioritized HR action derived from one prediction.
// Recomputed wholesale each run; LOW predictions emit none.
type Recommendation struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	SkillID      string    `json:"skill_id"`
	JobRoleID    string    `json:"job_role_id"`
	HorizonYears int       `json:"horizon_years"`
	Priority     Level     `json:"priority"`
	Action       string    `json:"action"`
	BudgetHintK  float64   `json:"budget_hint_k"`
	Rationale    string    `json:"rationale"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunRecord is the append-only audit record of one recalculation.
// Never updated after creation.
type RunRecord struct {
	ID                   string            `json:"id"`
	RunDate              time.Time         `json:"run_date"`
	TriggeredBy          string            `json:"triggered_by"`
	HorizonYears         int               `json:"horizon_years"`
	EngineUsed           string            `json:"engine_used"`
	TotalPredictions     int               `json:"total_predictions"`
	TotalRecommendations int               `json:"total_recommendations"`
	SkippedContexts      int               `json:"skipped_contexts"`
	Parameters           map[string]string `json:"parameters,omitempty"`
}

// RunSummary is returned to the caller of Recalculate.
type RunSummary struct {
	RunID                string `json:"run_id"`
	EngineUsed           string `json:"engine_used"`
	TotalPredictions     int    `json:"total_predictions"`
	TotalRecommendations int    `json:"total_recommendations"`
	SkippedContexts      int    `json:"skipped_contexts"`
}

// ContextSource assembles the SkillContext batch for a horizon.
// Implemented by the refdata resolver. The skipped count reports contexts
// dropped because required reference data was missing.
type ContextSource interface {
	Contexts(ctx context.Context, horizonYears int) (batch []SkillContext, skipped int, err error)
}

// RunStore persists the output of one recalculation atomically and serves
// audit reads. Implemented by the ledger package.
type RunStore interface {
	// SaveRun writes the run record and all its predictions and
	// recommendations in one atomic operation. A failed save must leave no
	// partial state behind.
	SaveRun(ctx context.Context, run *RunRecord, preds []PredictionResult, recs []Recommendation) error

	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	GetPrediction(ctx context.Context, predictionID string) (*PredictionResult, error)
	PredictionsByRun(ctx context.Context, runID string) ([]PredictionResult, error)
	RecommendationsByRun(ctx context.Context, runID string) ([]Recommendation, error)

	// QueryPredictions returns prediction history across runs, newest
	// first, narrowed by the filter.
	QueryPredictions(ctx context.Context, filter PredictionFilter) ([]PredictionResult, error)
}

// PredictionFilter narrows prediction history queries. Zero-valued
// fields match everything; Limit 0 means no cap.
type PredictionFilter struct {
	JobRoleID    string
	SkillID      string
	HorizonYears int
	Limit        int
}

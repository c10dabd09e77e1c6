// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// RecommendationEngine maps a run's prediction set into prioritized action
// recommendations with budget hints. Generate is a pure transform over the
// full prediction set: recommendations are recomputed wholesale each run,
// never mutated incrementally.
type RecommendationEngine struct {
	highActions   map[string]string
	mediumActions map[string]string
}

// Action lookup tables keyed by skill category. Unknown categories fall
// back to the "" entry.
func defaultHighActions() map[string]string {
	return map[string]string{
		"technical":  "invest in structured training program",
		"soft":       "invest in coaching and mentoring",
		"leadership": "establish leadership development track",
		"analytical": "fund advanced analytics certification",
		"":           "prioritize targeted upskilling investment",
	}
}

func defaultMediumActions() map[string]string {
	return map[string]string{
		"technical":  "schedule internal workshops and pairing",
		"soft":       "encourage peer mentoring",
		"leadership": "rotate stretch assignments",
		"analytical": "provide self-paced course access",
		"":           "monitor demand and offer elective training",
	}
}

// NewRecommendationEngine creates a recommendation engine with the default
// action tables.
func NewRecommendationEngine() *RecommendationEngine {
	return &RecommendationEngine{
		highActions:   defaultHighActions(),
		mediumActions: defaultMediumActions(),
	}
}

// Generate derives recommendations from one run's predictions. HIGH and
// MEDIUM predictions each emit one recommendation; LOW predictions emit
// none, so the output is sparse rather than one-per-skill.
func (r *RecommendationEngine) Generate(runID string, predictions []PredictionResult) []Recommendation {
	now := time.Now()
	recs := make([]Recommendation, 0, len(predictions))

	for i := range predictions {
		pred := &predictions[i]
		if pred.Level == LevelLow {
			continue
		}

		recs = append(recs, Recommendation{
			ID:           uuid.New().String(),
			RunID:        runID,
			SkillID:      pred.Context.SkillID,
			JobRoleID:    pred.Context.JobRoleID,
			HorizonYears: pred.Context.HorizonYears,
			Priority:     pred.Level,
			Action:       r.action(pred.Level, pred.Context.SkillCategory),
			BudgetHintK:  budgetHint(pred.Level, pred.Context.AvgSalaryK, pred.Context.HiringDifficulty),
			Rationale:    rationaleFor(pred),
			CreatedAt:    now,
		})
	}

	return recs
}

// action resolves the recommended action for a level and skill category.
func (r *RecommendationEngine) action(level Level, category string) string {
	table := r.mediumActions
	if level == LevelHigh {
		table = r.highActions
	}
	if action, ok := table[category]; ok {
		return action
	}
	return table[""]
}

// budgetFactor per priority level, applied to the average salary.
const (
	highBudgetFactor   = 0.20
	mediumBudgetFactor = 0.08
	budgetBandK        = 5
)

// budgetHint derives an investment hint in $k from salary and hiring
// difficulty: the harder a skill is to hire for, the wider the band and the
// higher the hint. Values are rounded up to a $5k band.
func budgetHint(level Level, avgSalaryK, hiringDifficulty float64) float64 {
	factor := mediumBudgetFactor
	if level == LevelHigh {
		factor = highBudgetFactor
	}

	raw := avgSalaryK * factor * (1 + clamp01(hiringDifficulty))
	if raw <= 0 {
		return 0
	}
	return math.Ceil(raw/budgetBandK) * budgetBandK
}

// rationaleFor concatenates the triggering condition with the prediction's
// own rationale when one was precomputed.
func rationaleFor(pred *PredictionResult) string {
	text := fmt.Sprintf("%s demand predicted (score %.3f, engine %s)",
		pred.Level, pred.Score, pred.EngineID)
	if pred.Rationale != "" {
		text += ": " + pred.Rationale
	}
	return text
}

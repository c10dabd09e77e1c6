// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package forecast

import (
	"fmt"
	"strings"
)

// Explainer derives a human-readable rationale for a prediction. It is
// computed on demand because it is more expensive than scoring, and it is
// idempotent and side-effect-free: explaining the same prediction twice
// yields the same text and writes nothing.
type Explainer struct {
	rules *RuleScorer
	model *ModelWrapper
}

// NewExplainer creates an explainer over the two scoring engines. The
// model wrapper may be nil; explaining an ML prediction then fails with
// ErrModelUnavailable.
func NewExplainer(rules *RuleScorer, model *ModelWrapper) *Explainer {
	return &Explainer{rules: rules, model: model}
}

// Explain produces the rationale text for a prediction, dispatching on the
// engine that produced it.
func (x *Explainer) Explain(pred PredictionResult) (string, error) {
	if pred.EngineID == EngineRules {
		return x.explainRules(pred), nil
	}
	if strings.HasPrefix(pred.EngineID, "ml_v") {
		return x.explainModel(pred)
	}
	return "", fmt.Errorf("unknown engine %q on prediction %s", pred.EngineID, pred.ID)
}

// explainRules enumerates the weighted contribution of each input and any
// escalation rule that fired. The breakdown is recomputed from the stored
// context, so the rationale always matches the recorded score.
func (x *Explainer) explainRules(pred PredictionResult) string {
	c := x.rules.Contributions(pred.Context)
	cfg := x.rules.cfg

	var b strings.Builder
	fmt.Fprintf(&b, "Rule-based score %.3f for %s/%s over %d years: ",
		c.Score, pred.Context.JobRoleID, pred.Context.SkillID, pred.Context.HorizonYears)
	fmt.Fprintf(&b, "trend contributed %.3f of %.1f weight, ", c.Trend, cfg.TrendWeight)
	fmt.Fprintf(&b, "internal usage contributed %.3f of %.1f weight, ", c.Usage, cfg.UsageWeight)
	fmt.Fprintf(&b, "training demand contributed %.3f of %.1f weight (%d requests, cap %.0f). ",
		c.Training, cfg.TrainingWeight, pred.Context.TrainingRequests, cfg.TrainingCap)
	fmt.Fprintf(&b, "Base level %s.", c.BaseLevel)

	if c.Escalation != "" {
		fmt.Fprintf(&b, " Override: %s.", c.Escalation)
	}
	return b.String()
}

// explainModel reports the artifact's top-contributing features and the
// class probability margin.
func (x *Explainer) explainModel(pred PredictionResult) (string, error) {
	if x.model == nil {
		return "", fmt.Errorf("%w: no model wrapper configured", ErrModelUnavailable)
	}

	top, err := x.model.TopFeatures(pred.Context, pred.Level, 3)
	if err != nil {
		return "", err
	}
	margin, err := x.model.Margin(pred.Context)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Model %s classified %s/%s over %d years as %s with probability %.3f "+
		"(margin %.3f over the runner-up class). ",
		pred.EngineID, pred.Context.JobRoleID, pred.Context.SkillID,
		pred.Context.HorizonYears, pred.Level, pred.Score, margin)

	b.WriteString("Top contributing features: ")
	parts := make([]string, 0, len(top))
	for _, fi := range top {
		parts = append(parts, fmt.Sprintf("%s (%.3f)", fi.Name, fi.Contribution))
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(".")

	return b.String(), nil
}

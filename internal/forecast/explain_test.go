// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package forecast

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/skillcast/skillcast/internal/artifact"
)

func TestExplainRulesPrediction(t *testing.T) {
	scorer, err := NewRuleScorer(DefaultRuleConfig())
	if err != nil {
		t.Fatalf("NewRuleScorer: %v", err)
	}
	x := NewExplainer(scorer, nil)

	sc := baseContext()
	sc.TrendScore = 0.5
	sc.InternalUsage = 0.4
	sc.TrainingRequests = 10
	sc.ScarcityIndex = 0.75
	sc.HiringDifficulty = 0.8
	level, score := scorer.Score(sc)

	text, err := x.Explain(PredictionResult{
		ID:       "p1",
		Context:  sc,
		Level:    level,
		Score:    score,
		EngineID: EngineRules,
	})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}

	for _, want := range []string{"trend contributed", "internal usage contributed", "training demand contributed", "Base level MEDIUM", "Override:"} {
		if !strings.Contains(text, want) {
			t.Errorf("rationale missing %q:\n%s", want, text)
		}
	}
}

func TestExplainRulesNoEscalation(t *testing.T) {
	scorer, err := NewRuleScorer(DefaultRuleConfig())
	if err != nil {
		t.Fatalf("NewRuleScorer: %v", err)
	}
	x := NewExplainer(scorer, nil)

	sc := baseContext()
	level, score := scorer.Score(sc)
	text, err := x.Explain(PredictionResult{Context: sc, Level: level, Score: score, EngineID: EngineRules})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if strings.Contains(text, "Override:") {
		t.Errorf("unexpected override in rationale:\n%s", text)
	}
}

func TestExplainModelPrediction(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	if _, err := store.Save(context.Background(), smallModel(), artifact.Metadata{
		Name: artifact.ArtifactName, ModelVersion: "1.0",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	wrapper := NewModelWrapper(store, ModelConfig{Enabled: true}, zerolog.Nop())

	scorer, err := NewRuleScorer(DefaultRuleConfig())
	if err != nil {
		t.Fatalf("NewRuleScorer: %v", err)
	}
	x := NewExplainer(scorer, wrapper)

	sc := baseContext()
	level, score, err := wrapper.Score(sc)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	text, err := x.Explain(PredictionResult{
		ID:       "p1",
		Context:  sc,
		Level:    level,
		Score:    score,
		EngineID: "ml_v1.0",
	})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	for _, want := range []string{"Model ml_v1.0", "margin", "Top contributing features:"} {
		if !strings.Contains(text, want) {
			t.Errorf("rationale missing %q:\n%s", want, text)
		}
	}
}

func TestExplainModelWithoutWrapper(t *testing.T) {
	scorer, err := NewRuleScorer(DefaultRuleConfig())
	if err != nil {
		t.Fatalf("NewRuleScorer: %v", err)
	}
	x := NewExplainer(scorer, nil)

	_, err = x.Explain(PredictionResult{Context: baseContext(), Level: LevelHigh, EngineID: "ml_v1.0"})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Explain = %v, want ErrModelUnavailable", err)
	}
}

func TestExplainUnknownEngine(t *testing.T) {
	scorer, err := NewRuleScorer(DefaultRuleConfig())
	if err != nil {
		t.Fatalf("NewRuleScorer: %v", err)
	}
	x := NewExplainer(scorer, nil)

	if _, err := x.Explain(PredictionResult{EngineID: "mystery"}); err == nil {
		t.Error("expected error for unknown engine ID")
	}
}

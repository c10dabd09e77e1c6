// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package forecast

import (
	"fmt"
	"math"
)

// RuleConfig holds the weights and thresholds of the rule scorer.
// Defaults reproduce the published formula; overrides come from the
// configuration surface.
type RuleConfig struct {
	// Weights of the base score. Must sum to 1.
	TrendWeight    float64 `koanf:"trend_weight"`
	UsageWeight    float64 `koanf:"usage_weight"`
	TrainingWeight float64 `koanf:"training_weight"`

	// Level thresholds: score < Medium is LOW, score >= High is HIGH.
	MediumThreshold float64 `koanf:"medium_threshold"`
	HighThreshold   float64 `koanf:"high_threshold"`

	// TrainingCap is the request count at which normalized training demand
	// saturates at 1.
	TrainingCap float64 `koanf:"training_cap"`

	// Escalation gates. MEDIUM is upgraded to HIGH when both scarcity and
	// hiring difficulty exceed their gates; LOW is upgraded to MEDIUM when
	// scarcity and trend exceed the upgrade gates. Escalation never
	// downgrades.
	ScarcityHighGate   float64 `koanf:"scarcity_high_gate"`
	DifficultyHighGate float64 `koanf:"difficulty_high_gate"`
	ScarcityMediumGate float64 `koanf:"scarcity_medium_gate"`
	TrendMediumGate    float64 `koanf:"trend_medium_gate"`
}

// DefaultRuleConfig returns the standard weights and thresholds.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		TrendWeight:        0.5,
		UsageWeight:        0.3,
		TrainingWeight:     0.2,
		MediumThreshold:    0.4,
		HighThreshold:      0.7,
		TrainingCap:        50,
		ScarcityHighGate:   0.7,
		DifficultyHighGate: 0.7,
		ScarcityMediumGate: 0.6,
		TrendMediumGate:    0.6,
	}
}

// Validate checks internal consistency of the rule configuration.
func (c RuleConfig) Validate() error {
	sum := c.TrendWeight + c.UsageWeight + c.TrainingWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("rule weights must sum to 1, got %.4f", sum)
	}
	if c.TrendWeight < 0 || c.UsageWeight < 0 || c.TrainingWeight < 0 {
		return fmt.Errorf("rule weights must be non-negative")
	}
	if c.MediumThreshold <= 0 || c.HighThreshold >= 1 || c.MediumThreshold >= c.HighThreshold {
		return fmt.Errorf("thresholds must satisfy 0 < medium < high < 1, got %.2f/%.2f",
			c.MediumThreshold, c.HighThreshold)
	}
	if c.TrainingCap <= 0 {
		return fmt.Errorf("training cap must be positive, got %.2f", c.TrainingCap)
	}
	return nil
}

// RuleScorer is the deterministic weighted-formula classifier. It is a pure
// function of its inputs, always available, and safe for concurrent use.
type RuleScorer struct {
	cfg RuleConfig
}

// NewRuleScorer creates a rule scorer with the given configuration.
func NewRuleScorer(cfg RuleConfig) (*RuleScorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule config: %w", err)
	}
	return &RuleScorer{cfg: cfg}, nil
}

// EngineID identifies rule-based predictions on run records.
func (s *RuleScorer) EngineID() string {
	return EngineRules
}

// Contributions breaks the rule score down into its weighted parts.
// Score and the explanation engine both derive from this so the rationale
// always matches the numbers that produced the level.
type Contributions struct {
	Trend    float64 // weighted trend contribution
	Usage    float64 // weighted internal-usage contribution
	Training float64 // weighted normalized training-demand contribution

	Score     float64
	BaseLevel Level
	Level     Level

	// Escalation describes the override rule that fired, empty when none.
	Escalation string
}

// Score classifies one context. Inputs are clamped to the declared domain
// before combination, so Score cannot fail for any context values.
func (s *RuleScorer) Score(sc SkillContext) (Level, float64) {
	c := s.Contributions(sc)
	return c.Level, c.Score
}

// Contributions computes the full scoring breakdown for a context.
func (s *RuleScorer) Contributions(sc SkillContext) Contributions {
	trend := clamp01(sc.TrendScore)
	usage := clamp01(sc.InternalUsage)
	training := s.normalizeTraining(sc.TrainingRequests)

	c := Contributions{
		Trend:    s.cfg.TrendWeight * trend,
		Usage:    s.cfg.UsageWeight * usage,
		Training: s.cfg.TrainingWeight * training,
	}
	c.Score = c.Trend + c.Usage + c.Training
	c.BaseLevel = s.threshold(c.Score)
	c.Level = c.BaseLevel

	// Override rules run after the base classification and only ever
	// raise the level.
	scarcity := clamp01(sc.ScarcityIndex)
	difficulty := clamp01(sc.HiringDifficulty)

	switch c.BaseLevel {
	case LevelMedium:
		if scarcity > s.cfg.ScarcityHighGate && difficulty > s.cfg.DifficultyHighGate {
			c.Level = LevelHigh
			c.Escalation = fmt.Sprintf(
				"escalated MEDIUM to HIGH: scarcity %.2f > %.2f and hiring difficulty %.2f > %.2f",
				scarcity, s.cfg.ScarcityHighGate, difficulty, s.cfg.DifficultyHighGate)
		}
	case LevelLow:
		if scarcity > s.cfg.ScarcityMediumGate && trend > s.cfg.TrendMediumGate {
			c.Level = LevelMedium
			c.Escalation = fmt.Sprintf(
				"escalated LOW to MEDIUM: scarcity %.2f > %.2f and trend %.2f > %.2f",
				scarcity, s.cfg.ScarcityMediumGate, trend, s.cfg.TrendMediumGate)
		}
	case LevelHigh:
		// Already at the top level.
	}

	return c
}

// NormalizeTraining exposes the training-demand normalization used by the
// base formula: min(n/cap, 1).
func (s *RuleScorer) NormalizeTraining(requests int) float64 {
	return s.normalizeTraining(requests)
}

func (s *RuleScorer) normalizeTraining(requests int) float64 {
	if requests <= 0 {
		return 0
	}
	return math.Min(float64(requests)/s.cfg.TrainingCap, 1)
}

// threshold maps a base score to a level.
func (s *RuleScorer) threshold(score float64) Level {
	switch {
	case score >= s.cfg.HighThreshold:
		return LevelHigh
	case score >= s.cfg.MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// clamp01 clamps v to [0,1]. NaN maps to 0 so malformed reference data
// degrades to a harmless contribution instead of propagating.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package forecast

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillcast/skillcast/internal/metrics"
)

// Config holds the prediction engine configuration.
type Config struct {
	Rules RuleConfig  `koanf:"rules"`
	Model ModelConfig `koanf:"model"`

	// Workers is the scoring parallelism within one batch. Default 4.
	Workers int `koanf:"workers"`
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		Rules:   DefaultRuleConfig(),
		Workers: 4,
	}
}

// Engine orchestrates one recalculation: engine selection, batch scoring,
// recommendation generation and ledger recording. Safe for concurrent use;
// concurrent recalculations produce independent runs.
type Engine struct {
	cfg         Config
	rules       *RuleScorer
	model       *ModelWrapper
	source      ContextSource
	store       RunStore
	recommender *RecommendationEngine
	explainer   *Explainer
	logger      zerolog.Logger
}

// NewEngine creates a prediction engine. The model wrapper may be nil when
// the ML path is disabled outright.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEngine(cfg Config, source ContextSource, store RunStore, model *ModelWrapper, logger zerolog.Logger) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("context source not set")
	}
	if store == nil {
		return nil, fmt.Errorf("run store not set")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	rules, err := NewRuleScorer(cfg.Rules)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:         cfg,
		rules:       rules,
		model:       model,
		source:      source,
		store:       store,
		recommender: NewRecommendationEngine(),
		explainer:   NewExplainer(rules, model),
		logger:      logger.With().Str("component", "forecast").Logger(),
	}, nil
}

// selectedEngine is the tagged strategy chosen once per batch. Making the
// choice a value, not a per-item branch, is what enforces the no-mixed-
// engine invariant structurally.
type selectedEngine struct {
	id    string
	useML bool
}

// Recalculate runs one batch recalculation for a horizon and returns its
// run summary. It either records a complete, single-engine run or fails
// with no ledger side effects.
func (e *Engine) Recalculate(ctx context.Context, horizonYears int, triggeredBy string) (*RunSummary, error) {
	runID := uuid.New().String()
	start := time.Now()
	logger := e.logger.With().
		Str("run_id", runID).
		Int("horizon_years", horizonYears).
		Str("triggered_by", triggeredBy).
		Logger()

	if horizonYears <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizonYears)
	}

	batch, skipped, err := e.source.Contexts(ctx, horizonYears)
	if err != nil {
		return nil, fmt.Errorf("resolve contexts: %w", err)
	}
	if skipped > 0 {
		metrics.ContextsSkipped.Add(float64(skipped))
		logger.Debug().Int("skipped", skipped).Msg("contexts skipped for missing reference data")
	}

	for i := range batch {
		if err := validateContext(batch[i]); err != nil {
			return nil, &FatalEngineError{Reason: "malformed context", Err: err}
		}
	}

	// SELECT_ENGINE: decided once per batch, never re-evaluated per item
	// or per worker.
	engine := e.selectEngine(logger)

	// SCORE: any ML scoring failure degrades the entire batch to the rule
	// scorer and rescoring starts over, so a run is never part-ML.
	scored, err := e.scoreBatch(batch, engine)
	if err != nil && engine.useML {
		logger.Warn().Err(err).Msg("ml scoring failed, batch falls back to rule scorer")
		metrics.EngineFallbacks.WithLabelValues("inference").Inc()
		engine = selectedEngine{id: EngineRules}
		scored, err = e.scoreBatch(batch, engine)
	}
	if err != nil {
		// The rule scorer has no external dependencies; if it cannot run
		// the recalculation aborts with nothing written.
		metrics.RunsTotal.WithLabelValues(engine.id, "fatal").Inc()
		return nil, &FatalEngineError{Reason: "rule scorer failed", Err: err}
	}

	now := time.Now()
	predictions := make([]PredictionResult, len(batch))
	for i := range batch {
		predictions[i] = PredictionResult{
			ID:        uuid.New().String(),
			RunID:     runID,
			Context:   batch[i],
			Level:     scored[i].level,
			Score:     scored[i].score,
			EngineID:  engine.id,
			CreatedAt: now,
		}
		metrics.PredictionsTotal.WithLabelValues(string(scored[i].level), engine.id).Inc()
	}

	recommendations := e.recommender.Generate(runID, predictions)
	for i := range recommendations {
		metrics.RecommendationsTotal.WithLabelValues(string(recommendations[i].Priority)).Inc()
	}

	run := &RunRecord{
		ID:                   runID,
		RunDate:              now,
		TriggeredBy:          triggeredBy,
		HorizonYears:         horizonYears,
		EngineUsed:           engine.id,
		TotalPredictions:     len(predictions),
		TotalRecommendations: len(recommendations),
		SkippedContexts:      skipped,
		Parameters: map[string]string{
			"ml_enabled": fmt.Sprintf("%t", e.cfg.Model.Enabled),
			"workers":    fmt.Sprintf("%d", e.cfg.Workers),
		},
	}

	// RECORD: one atomic write covering the run and all its children.
	if err := e.store.SaveRun(ctx, run, predictions, recommendations); err != nil {
		metrics.RunsTotal.WithLabelValues(engine.id, "store_error").Inc()
		return nil, fmt.Errorf("record run: %w", err)
	}

	metrics.RunsTotal.WithLabelValues(engine.id, "ok").Inc()
	metrics.RunDuration.WithLabelValues(engine.id).Observe(time.Since(start).Seconds())

	logger.Info().
		Str("engine_used", engine.id).
		Int("predictions", len(predictions)).
		Int("recommendations", len(recommendations)).
		Int("skipped", skipped).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("recalculation complete")

	return &RunSummary{
		RunID:                runID,
		EngineUsed:           engine.id,
		TotalPredictions:     len(predictions),
		TotalRecommendations: len(recommendations),
		SkippedContexts:      skipped,
	}, nil
}

// selectEngine resolves the scoring strategy for the whole batch.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (e *Engine) selectEngine(logger zerolog.Logger) selectedEngine {
	if !e.cfg.Model.Enabled || e.model == nil {
		return selectedEngine{id: EngineRules}
	}

	if !e.model.IsAvailable() {
		logger.Info().Msg("ml enabled but artifact unavailable, using rule scorer")
		metrics.EngineFallbacks.WithLabelValues("unavailable").Inc()
		return selectedEngine{id: EngineRules}
	}

	id, err := e.model.EngineID()
	if err != nil {
		// Raced with an artifact eviction between the availability check
		// and the ID read; treat as unavailable.
		metrics.EngineFallbacks.WithLabelValues("unavailable").Inc()
		return selectedEngine{id: EngineRules}
	}
	return selectedEngine{id: id, useML: true}
}

// scoredItem is one per-context scoring outcome.
type scoredItem struct {
	level Level
	score float64
}

// scoreBatch scores every context with the selected engine. Scoring is
// embarrassingly parallel; the engine choice is a shared read made before
// any worker starts. The first scoring failure fails the whole batch.
func (e *Engine) scoreBatch(batch []SkillContext, engine selectedEngine) ([]scoredItem, error) {
	results := make([]scoredItem, len(batch))
	if len(batch) == 0 {
		return results, nil
	}

	workers := e.cfg.Workers
	if workers > len(batch) {
		workers = len(batch)
	}

	indexes := make(chan int)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
		failed   bool
		failMu   sync.RWMutex
	)

	setErr := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			failMu.Lock()
			failed = true
			failMu.Unlock()
		})
	}
	hasFailed := func() bool {
		failMu.RLock()
		defer failMu.RUnlock()
		return failed
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if hasFailed() {
					continue // drain remaining work after first failure
				}
				level, score, err := e.scoreOne(batch[i], engine)
				if err != nil {
					setErr(fmt.Errorf("score %s/%s: %w", batch[i].JobRoleID, batch[i].SkillID, err))
					continue
				}
				results[i] = scoredItem{level: level, score: score}
			}
		}()
	}

	for i := range batch {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// scoreOne scores a single context with the selected engine.
func (e *Engine) scoreOne(sc SkillContext, engine selectedEngine) (Level, float64, error) {
	if engine.useML {
		return e.model.Score(sc)
	}
	level, score := e.rules.Score(sc)
	return level, score, nil
}

// ExplainPrediction computes the rationale for a persisted prediction on
// demand. Idempotent and side-effect-free.
func (e *Engine) ExplainPrediction(ctx context.Context, predictionID string) (string, error) {
	pred, err := e.store.GetPrediction(ctx, predictionID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrPredictionNotFound, predictionID)
	}
	return e.explainer.Explain(*pred)
}

// Explainer returns the engine's explanation component.
func (e *Engine) Explainer() *Explainer {
	return e.explainer
}

// validateContext rejects contexts the resolver should never emit. A
// malformed context here means the upstream data path is broken, which is
// fatal for the recalculation.
func validateContext(sc SkillContext) error {
	if sc.JobRoleID == "" || sc.SkillID == "" {
		return fmt.Errorf("context missing role/skill identity")
	}
	for name, v := range map[string]float64{
		"trend_score":        sc.TrendScore,
		"internal_usage":     sc.InternalUsage,
		"scarcity_index":     sc.ScarcityIndex,
		"hiring_difficulty":  sc.HiringDifficulty,
		"avg_salary_k":       sc.AvgSalaryK,
		"economic_indicator": sc.EconomicIndicator,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("context %s/%s has non-finite %s", sc.JobRoleID, sc.SkillID, name)
		}
	}
	if sc.AvgSalaryK < 0 {
		return fmt.Errorf("context %s/%s has negative salary", sc.JobRoleID, sc.SkillID)
	}
	return nil
}

// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/skillcast/skillcast/internal/artifact"
)

// ModelConfig configures the model artifact wrapper.
type ModelConfig struct {
	// Enabled turns the ML scoring path on. With it off the prediction
	// engine always selects the rule scorer.
	Enabled bool `koanf:"enabled"`

	// Dir is the artifact registry directory.
	Dir string `koanf:"dir"`

	// Version pins a specific artifact version; 0 follows the promoted
	// version.
	Version int `koanf:"version"`

	// SkipRetry stops re-attempting a failed artifact load: the first
	// failure trips the breaker for the remaining process lifetime.
	SkipRetry bool `koanf:"skip_retry"`

	// BreakerFailures is the consecutive load failures tolerated before
	// the breaker opens. Default 3 (1 when SkipRetry).
	BreakerFailures uint32 `koanf:"breaker_failures"`

	// BreakerCooldown is how long an open breaker reports the model
	// unavailable before allowing another load attempt. Default 30s.
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// loadedArtifact is the immutable cached load result, shared read-only
// across scoring workers.
type loadedArtifact struct {
	model    *artifact.Model
	meta     *artifact.Metadata
	engineID string
}

// ModelWrapper loads the promoted classifier artifact lazily and caches it
// for the process lifetime. A failed load does not poison future calls:
// each availability check re-attempts, bounded by a circuit breaker so a
// persistently broken registry is not hammered on every batch.
type ModelWrapper struct {
	store   *artifact.Store
	version int
	logger  zerolog.Logger

	// loadMu serializes the slow path so concurrent recalculations do not
	// deserialize the artifact redundantly (double-checked load).
	loadMu  sync.Mutex
	current atomic.Pointer[loadedArtifact]

	breaker *gobreaker.CircuitBreaker[*loadedArtifact]
}

// NewModelWrapper creates a wrapper over the artifact registry.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewModelWrapper(store *artifact.Store, cfg ModelConfig, logger zerolog.Logger) *ModelWrapper {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 3
	}
	cooldown := cfg.BreakerCooldown
	if cooldown == 0 {
		cooldown = 30 * time.Second
	}
	if cfg.SkipRetry {
		failures = 1
		cooldown = 24 * 365 * time.Hour
	}

	w := &ModelWrapper{
		store:   store,
		version: cfg.Version,
		logger:  logger.With().Str("component", "model").Logger(),
	}
	w.breaker = gobreaker.NewCircuitBreaker[*loadedArtifact](gobreaker.Settings{
		Name:    "model-artifact",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	})
	return w
}

// IsAvailable reports whether a readable, parseable artifact is loadable at
// the configured version. A true result guarantees the loaded artifact is
// cached for subsequent Score calls.
func (w *ModelWrapper) IsAvailable() bool {
	_, err := w.load()
	return err == nil
}

// EngineID returns the engine identifier of the loaded artifact, e.g.
// "ml_v1.2". Fails with ErrModelUnavailable when no artifact can be loaded.
func (w *ModelWrapper) EngineID() (string, error) {
	la, err := w.load()
	if err != nil {
		return "", err
	}
	return la.engineID, nil
}

// Metadata returns the loaded artifact's metadata.
func (w *ModelWrapper) Metadata() (*artifact.Metadata, error) {
	la, err := w.load()
	if err != nil {
		return nil, err
	}
	return la.meta, nil
}

// Score classifies one context with the loaded artifact. It fails with
// ErrModelUnavailable when no artifact is loaded and with ErrInference when
// the artifact's feature contract rejects the context or the output is
// malformed.
func (w *ModelWrapper) Score(sc SkillContext) (Level, float64, error) {
	la, err := w.load()
	if err != nil {
		return "", 0, err
	}

	p, err := la.model.Predict(BuildFeatures(sc))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInference, err)
	}

	level := Level(p.Class)
	if !level.Valid() {
		return "", 0, fmt.Errorf("%w: artifact produced unknown class %q", ErrInference, p.Class)
	}
	if math.IsNaN(p.Probability) || p.Probability < 0 || p.Probability > 1 {
		return "", 0, fmt.Errorf("%w: artifact produced probability %v", ErrInference, p.Probability)
	}

	return level, p.Probability, nil
}

// TopFeatures exposes the artifact's importance ranking for a context,
// used by the explanation engine.
func (w *ModelWrapper) TopFeatures(sc SkillContext, level Level, k int) ([]artifact.FeatureImportance, error) {
	la, err := w.load()
	if err != nil {
		return nil, err
	}
	ranked, err := la.model.TopFeatures(string(level), BuildFeatures(sc), k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return ranked, nil
}

// Margin returns the class probability margin for a context.
func (w *ModelWrapper) Margin(sc SkillContext) (float64, error) {
	la, err := w.load()
	if err != nil {
		return 0, err
	}
	p, err := la.model.Predict(BuildFeatures(sc))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return p.Margin, nil
}

// Reload discards the cached artifact and loads the currently promoted
// version fresh. Used after a promotion, never by prediction calls.
func (w *ModelWrapper) Reload() error {
	w.loadMu.Lock()
	defer w.loadMu.Unlock()

	w.current.Store(nil)
	la, err := w.loadSlowLocked()
	if err != nil {
		return err
	}
	w.current.Store(la)
	return nil
}

// load returns the cached artifact, loading it on first use.
func (w *ModelWrapper) load() (*loadedArtifact, error) {
	if la := w.current.Load(); la != nil {
		return la, nil
	}

	w.loadMu.Lock()
	defer w.loadMu.Unlock()

	// Another caller may have completed the load while we waited.
	if la := w.current.Load(); la != nil {
		return la, nil
	}

	la, err := w.loadSlowLocked()
	if err != nil {
		return nil, err
	}
	w.current.Store(la)
	return la, nil
}

// loadSlowLocked performs the guarded load through the breaker.
// Must hold loadMu.
func (w *ModelWrapper) loadSlowLocked() (*loadedArtifact, error) {
	la, err := w.breaker.Execute(func() (*loadedArtifact, error) {
		model, meta, err := w.store.Load(context.Background(), artifact.ArtifactName, w.version)
		if err != nil {
			return nil, err
		}
		if err := model.Validate(); err != nil {
			return nil, fmt.Errorf("artifact failed validation: %w", err)
		}
		return &loadedArtifact{
			model:    model,
			meta:     meta,
			engineID: engineIDFor(meta),
		}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: load breaker open", ErrModelUnavailable)
		}
		w.logger.Warn().Err(err).Int("version", w.version).Msg("model artifact load failed")
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	w.logger.Info().
		Str("engine_id", la.engineID).
		Int("version", la.meta.Version).
		Time("trained_at", la.meta.TrainedAt).
		Msg("model artifact loaded")
	return la, nil
}

// engineIDFor derives the engine identifier recorded on predictions.
func engineIDFor(meta *artifact.Metadata) string {
	if meta.ModelVersion != "" {
		return "ml_v" + meta.ModelVersion
	}
	return fmt.Sprintf("ml_v%d.0", meta.Version)
}

// trainingCap is the fixed saturation point of the training-demand feature
// fed to the artifact. Part of the artifact's feature contract; unlike the
// rule scorer's cap it is not configurable, otherwise a config change would
// silently shift the distribution the model was trained on.
const trainingCap = 50

// salaryScale normalizes avg_salary_k into roughly [0,1].
const salaryScale = 200

// BuildFeatures converts a context into the named feature set consumed by
// classifier artifacts. Training and inference both use this single
// featurizer, so the artifact's feature contract stays aligned with the
// scoring path.
func BuildFeatures(sc SkillContext) artifact.Features {
	f := artifact.Features{
		"trend_score":        sc.TrendScore,
		"internal_usage":     sc.InternalUsage,
		"training_demand":    math.Min(float64(sc.TrainingRequests)/trainingCap, 1),
		"scarcity_index":     sc.ScarcityIndex,
		"hiring_difficulty":  sc.HiringDifficulty,
		"avg_salary_scaled":  sc.AvgSalaryK / salaryScale,
		"economic_indicator": sc.EconomicIndicator,
		"horizon_years":      float64(sc.HorizonYears),
	}
	if sc.SkillCategory != "" {
		f["skill_category="+sc.SkillCategory] = 1
	}
	if sc.JobDepartment != "" {
		f["job_department="+sc.JobDepartment] = 1
	}
	return f
}

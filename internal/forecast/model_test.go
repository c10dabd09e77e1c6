// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package forecast

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillcast/skillcast/internal/artifact"
)

func emptyRegistryWrapper(t *testing.T, cfg ModelConfig) *ModelWrapper {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	return NewModelWrapper(store, cfg, zerolog.Nop())
}

func TestModelUnavailableOnEmptyRegistry(t *testing.T) {
	w := emptyRegistryWrapper(t, ModelConfig{})

	if w.IsAvailable() {
		t.Error("wrapper reports available with no artifact")
	}
	if _, err := w.EngineID(); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("EngineID error = %v, want ErrModelUnavailable", err)
	}
	if _, _, err := w.Score(baseContext()); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Score error = %v, want ErrModelUnavailable", err)
	}
}

func TestModelAvailabilityReattempts(t *testing.T) {
	// A failed load must not poison the wrapper: once an artifact
	// appears, a later check succeeds.
	dir := t.TempDir()
	store, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	w := NewModelWrapper(store, ModelConfig{BreakerFailures: 10}, zerolog.Nop())

	if w.IsAvailable() {
		t.Fatal("empty registry reported available")
	}

	if _, err := store.Save(context.Background(), smallModel(), artifact.Metadata{
		Name: artifact.ArtifactName, ModelVersion: "2.1",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !w.IsAvailable() {
		t.Fatal("wrapper did not recover after artifact appeared")
	}
	id, err := w.EngineID()
	if err != nil {
		t.Fatalf("EngineID: %v", err)
	}
	if id != "ml_v2.1" {
		t.Errorf("EngineID = %s, want ml_v2.1", id)
	}
}

func TestModelSkipRetryTripsOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	w := NewModelWrapper(store, ModelConfig{SkipRetry: true}, zerolog.Nop())

	if w.IsAvailable() {
		t.Fatal("empty registry reported available")
	}

	// Even after an artifact appears, skip_retry keeps the breaker open.
	if _, err := store.Save(context.Background(), smallModel(), artifact.Metadata{
		Name: artifact.ArtifactName, ModelVersion: "1.0",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if w.IsAvailable() {
		t.Error("skip_retry wrapper re-attempted a failed load")
	}
	if _, _, err := w.Score(baseContext()); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Score error = %v, want ErrModelUnavailable", err)
	}
}

func TestModelBreakerCooldownRecovers(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	w := NewModelWrapper(store, ModelConfig{
		BreakerFailures: 1,
		BreakerCooldown: 20 * time.Millisecond,
	}, zerolog.Nop())

	if w.IsAvailable() {
		t.Fatal("empty registry reported available")
	}
	// Breaker is open now; an immediate retry short-circuits.
	if w.IsAvailable() {
		t.Fatal("open breaker allowed a load")
	}

	if _, err := store.Save(context.Background(), smallModel(), artifact.Metadata{
		Name: artifact.ArtifactName, ModelVersion: "1.0",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if !w.IsAvailable() {
		t.Error("breaker did not recover after cooldown")
	}
}

func TestModelCachesAcrossCalls(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	if _, err := store.Save(context.Background(), smallModel(), artifact.Metadata{
		Name: artifact.ArtifactName, ModelVersion: "1.0",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	w := NewModelWrapper(store, ModelConfig{}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := w.Score(baseContext()); err != nil {
				t.Errorf("concurrent Score: %v", err)
			}
		}()
	}
	wg.Wait()

	meta, err := w.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta.Version != 1 {
		t.Errorf("cached version = %d, want 1", meta.Version)
	}
}

func TestModelReloadPicksUpPromotion(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Save(ctx, smallModel(), artifact.Metadata{
		Name: artifact.ArtifactName, ModelVersion: "1.0",
	}); err != nil {
		t.Fatalf("Save v1: %v", err)
	}
	w := NewModelWrapper(store, ModelConfig{}, zerolog.Nop())

	id, err := w.EngineID()
	if err != nil {
		t.Fatalf("EngineID: %v", err)
	}
	if id != "ml_v1.0" {
		t.Fatalf("EngineID = %s, want ml_v1.0", id)
	}

	v2, err := store.Save(ctx, smallModel(), artifact.Metadata{
		Name: artifact.ArtifactName, ModelVersion: "1.1",
	})
	if err != nil {
		t.Fatalf("Save v2: %v", err)
	}
	if err := store.Promote(ctx, artifact.ArtifactName, v2); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	// The cached artifact stays pinned until an explicit reload.
	id, _ = w.EngineID()
	if id != "ml_v1.0" {
		t.Errorf("EngineID changed without Reload: %s", id)
	}

	if err := w.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	id, _ = w.EngineID()
	if id != "ml_v1.1" {
		t.Errorf("EngineID after Reload = %s, want ml_v1.1", id)
	}
}

func TestModelPinnedVersion(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Save(ctx, smallModel(), artifact.Metadata{
		Name: artifact.ArtifactName, ModelVersion: "1.0",
	}); err != nil {
		t.Fatalf("Save v1: %v", err)
	}
	if _, err := store.Save(ctx, smallModel(), artifact.Metadata{
		Name: artifact.ArtifactName, ModelVersion: "2.0",
	}); err != nil {
		t.Fatalf("Save v2: %v", err)
	}

	w := NewModelWrapper(store, ModelConfig{Version: 1}, zerolog.Nop())
	id, err := w.EngineID()
	if err != nil {
		t.Fatalf("EngineID: %v", err)
	}
	if id != "ml_v1.0" {
		t.Errorf("pinned EngineID = %s, want ml_v1.0", id)
	}
}

func TestModelCorruptArtifactUnavailable(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	if _, err := store.Save(context.Background(), smallModel(), artifact.Metadata{
		Name: artifact.ArtifactName, ModelVersion: "1.0",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path := filepath.Join(dir, artifact.ArtifactName+"_v1.gob.gz")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatalf("corrupt artifact: %v", err)
	}

	// Fresh store so the checksum is re-verified from disk.
	store2, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	w := NewModelWrapper(store2, ModelConfig{}, zerolog.Nop())
	if _, _, err := w.Score(baseContext()); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Score on corrupt artifact = %v, want ErrModelUnavailable", err)
	}
}

func TestModelScoreSchemaMismatch(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	broken := &artifact.Model{
		FeatureNames: []string{"trend_score", "nonexistent_feature"},
		Classes:      []string{"LOW", "MEDIUM", "HIGH"},
		Weights:      [][]float64{{1, 0}, {0, 1}, {1, 1}},
		Intercepts:   []float64{0, 0, 0},
	}
	if _, err := store.Save(context.Background(), broken, artifact.Metadata{
		Name: artifact.ArtifactName, ModelVersion: "1.0",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	w := NewModelWrapper(store, ModelConfig{}, zerolog.Nop())

	_, _, err = w.Score(baseContext())
	if !errors.Is(err, ErrInference) {
		t.Errorf("Score = %v, want ErrInference", err)
	}
}

func TestBuildFeatures(t *testing.T) {
	sc := baseContext()
	sc.TrainingRequests = 100
	sc.AvgSalaryK = 100
	sc.SkillCategory = "technical"
	sc.JobDepartment = "engineering"
	sc.HorizonYears = 3

	f := BuildFeatures(sc)
	if f["training_demand"] != 1 {
		t.Errorf("training_demand = %v, want saturated 1", f["training_demand"])
	}
	if f["avg_salary_scaled"] != 0.5 {
		t.Errorf("avg_salary_scaled = %v, want 0.5", f["avg_salary_scaled"])
	}
	if f["horizon_years"] != 3 {
		t.Errorf("horizon_years = %v, want 3", f["horizon_years"])
	}
	if f["skill_category=technical"] != 1 {
		t.Error("missing skill category indicator")
	}
	if f["job_department=engineering"] != 1 {
		t.Error("missing job department indicator")
	}
	for name := range f {
		if strings.Contains(name, " ") {
			t.Errorf("feature name %q contains whitespace", name)
		}
	}

	sc.SkillCategory = ""
	sc.JobDepartment = ""
	f = BuildFeatures(sc)
	for name := range f {
		if strings.Contains(name, "=") {
			t.Errorf("unexpected indicator %q for empty category fields", name)
		}
	}
}

// smallModel returns a minimal valid classifier over the standard
// feature set.
func smallModel() *artifact.Model {
	return &artifact.Model{
		FeatureNames: []string{"trend_score", "internal_usage", "training_demand"},
		Classes:      []string{"LOW", "MEDIUM", "HIGH"},
		Weights: [][]float64{
			{-2, -1, -0.5},
			{0.5, 0.5, 0.1},
			{2, 1, 0.5},
		},
		Intercepts: []float64{0.5, 0.1, -0.6},
	}
}

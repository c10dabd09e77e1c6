// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

// Package ledger persists the append-only record of forecast runs with
// their predictions and recommendations. Records are written once per run
// and never mutated; reruns append new records rather than replacing old
// ones, so the history of what was predicted when stays auditable.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/skillcast/skillcast/internal/forecast"
)

// MemoryStore implements forecast.RunStore in process memory for tests
// and ephemeral deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]forecast.RunRecord
	preds map[string][]forecast.PredictionResult
	recs  map[string][]forecast.Recommendation
	order []string
}

// NewMemoryStore creates an empty in-memory run ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[string]forecast.RunRecord),
		preds: make(map[string][]forecast.PredictionResult),
		recs:  make(map[string][]forecast.Recommendation),
	}
}

// SaveRun appends one run with its full prediction and recommendation
// sets. A run ID can only be written once.
func (m *MemoryStore) SaveRun(_ context.Context, run *forecast.RunRecord, preds []forecast.PredictionResult, recs []forecast.Recommendation) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run %s already recorded", run.ID)
	}

	m.runs[run.ID] = *run
	m.preds[run.ID] = append([]forecast.PredictionResult(nil), preds...)
	m.recs[run.ID] = append([]forecast.Recommendation(nil), recs...)
	m.order = append(m.order, run.ID)
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, runID string) (*forecast.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", forecast.ErrRunNotFound, runID)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first, up to limit (0 for all).
func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]forecast.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]forecast.RunRecord, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.runs[m.order[i]])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RunDate.After(out[j].RunDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) GetPrediction(_ context.Context, predictionID string) (*forecast.PredictionResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, preds := range m.preds {
		for i := range preds {
			if preds[i].ID == predictionID {
				pred := preds[i]
				return &pred, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", forecast.ErrPredictionNotFound, predictionID)
}

func (m *MemoryStore) PredictionsByRun(_ context.Context, runID string) ([]forecast.PredictionResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, fmt.Errorf("%w: %s", forecast.ErrRunNotFound, runID)
	}
	return append([]forecast.PredictionResult(nil), m.preds[runID]...), nil
}

func (m *MemoryStore) RecommendationsByRun(_ context.Context, runID string) ([]forecast.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, fmt.Errorf("%w: %s", forecast.ErrRunNotFound, runID)
	}
	return append([]forecast.Recommendation(nil), m.recs[runID]...), nil
}

// QueryPredictions returns prediction history across runs, newest first.
func (m *MemoryStore) QueryPredictions(_ context.Context, filter forecast.PredictionFilter) ([]forecast.PredictionResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []forecast.PredictionResult
	for i := len(m.order) - 1; i >= 0; i-- {
		for _, pred := range m.preds[m.order[i]] {
			if filter.JobRoleID != "" && pred.Context.JobRoleID != filter.JobRoleID {
				continue
			}
			if filter.SkillID != "" && pred.Context.SkillID != filter.SkillID {
				continue
			}
			if filter.HorizonYears > 0 && pred.Context.HorizonYears != filter.HorizonYears {
				continue
			}
			out = append(out, pred)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Close is a no-op for the in-memory ledger.
func (m *MemoryStore) Close() error { return nil }

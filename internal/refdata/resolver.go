// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package refdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/skillcast/skillcast/internal/forecast"
)

// Resolver joins reference data into scoring contexts. It implements
// forecast.ContextSource: one context per role-skill pair, in role-then-
// skill order so batches are reproducible.
//
// Pairs with incomplete data (missing role, skill, or trend for the
// requested horizon) are skipped and counted, never silently defaulted. A
// missing economic report for the horizon skips the whole batch: the
// indicator applies to every context, so without it no context is complete.
type Resolver struct {
	store  Store
	logger zerolog.Logger
}

// NewResolver creates a resolver over a reference data store.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewResolver(store Store, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With().Str("component", "refdata").Logger(),
	}
}

// Contexts resolves the full scoring batch for a horizon.
func (r *Resolver) Contexts(ctx context.Context, horizonYears int) ([]forecast.SkillContext, int, error) {
	links, err := r.store.ListRoleSkills(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list role skills: %w", err)
	}
	if len(links) == 0 {
		return nil, 0, fmt.Errorf("%w: no role-skill pairs configured", forecast.ErrInsufficientData)
	}

	report, err := r.store.GetEconomicReport(ctx, horizonYears)
	if errors.Is(err, ErrNotFound) {
		return nil, 0, fmt.Errorf("%w: no economic report for horizon %d",
			forecast.ErrInsufficientData, horizonYears)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get economic report: %w", err)
	}

	batch := make([]forecast.SkillContext, 0, len(links))
	skipped := 0
	for _, link := range links {
		sc, err := r.resolveOne(ctx, link, horizonYears, report.Indicator)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				skipped++
				r.logger.Debug().
					Str("job_role_id", link.JobRoleID).
					Str("skill_id", link.SkillID).
					Int("horizon_years", horizonYears).
					Err(err).
					Msg("skipping incomplete context")
				continue
			}
			return nil, 0, err
		}
		batch = append(batch, *sc)
	}

	if len(batch) == 0 {
		return nil, 0, fmt.Errorf("%w: all %d role-skill pairs incomplete for horizon %d",
			forecast.ErrInsufficientData, skipped, horizonYears)
	}
	return batch, skipped, nil
}

// resolveOne assembles a single context. ErrNotFound from any lookup marks
// the pair incomplete.
func (r *Resolver) resolveOne(ctx context.Context, link RoleSkill, horizonYears int, indicator float64) (*forecast.SkillContext, error) {
	role, err := r.store.GetJobRole(ctx, link.JobRoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("job role %s: %w", link.JobRoleID, err)
		}
		return nil, fmt.Errorf("get job role %s: %w", link.JobRoleID, err)
	}

	skill, err := r.store.GetSkill(ctx, link.SkillID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("skill %s: %w", link.SkillID, err)
		}
		return nil, fmt.Errorf("get skill %s: %w", link.SkillID, err)
	}

	trend, err := r.store.GetTrend(ctx, link.SkillID, horizonYears)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("trend for %s at horizon %d: %w", link.SkillID, horizonYears, err)
		}
		return nil, fmt.Errorf("get trend for %s: %w", link.SkillID, err)
	}

	return &forecast.SkillContext{
		JobRoleID:         role.ID,
		SkillID:           skill.ID,
		HorizonYears:      horizonYears,
		TrendScore:        trend.TrendScore,
		InternalUsage:     link.InternalUsage,
		TrainingRequests:  link.TrainingRequests,
		ScarcityIndex:     trend.ScarcityIndex,
		HiringDifficulty:  trend.HiringDifficulty,
		AvgSalaryK:        role.AvgSalaryK,
		EconomicIndicator: indicator,
		SkillCategory:     skill.Category,
		JobDepartment:     role.Department,
	}, nil
}

// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package refdata

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Seed is the JSON document format for bootstrapping a reference data
// store from a file.
type Seed struct {
	JobRoles        []JobRole        `json:"job_roles"`
	Skills          []Skill          `json:"skills"`
	RoleSkills      []RoleSkill      `json:"role_skills"`
	MarketTrends    []MarketTrend    `json:"market_trends"`
	EconomicReports []EconomicReport `json:"economic_reports"`
}

// LoadSeedFile parses a seed document from disk.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// Apply upserts every seed entity into the store. Existing entries with
// the same keys are overwritten, so re-applying a seed is idempotent.
func (s *Seed) Apply(ctx context.Context, store Store) error {
	for _, role := range s.JobRoles {
		if role.ID == "" {
			return fmt.Errorf("seed job role %q has no id", role.Title)
		}
		if err := store.UpsertJobRole(ctx, role); err != nil {
			return fmt.Errorf("seed job role %s: %w", role.ID, err)
		}
	}
	for _, skill := range s.Skills {
		if skill.ID == "" {
			return fmt.Errorf("seed skill %q has no id", skill.Name)
		}
		if err := store.UpsertSkill(ctx, skill); err != nil {
			return fmt.Errorf("seed skill %s: %w", skill.ID, err)
		}
	}
	for _, link := range s.RoleSkills {
		if link.JobRoleID == "" || link.SkillID == "" {
			return fmt.Errorf("seed role-skill link missing ids: %+v", link)
		}
		if err := store.UpsertRoleSkill(ctx, link); err != nil {
			return fmt.Errorf("seed role-skill %s/%s: %w", link.JobRoleID, link.SkillID, err)
		}
	}
	for _, trend := range s.MarketTrends {
		if trend.SkillID == "" {
			return fmt.Errorf("seed market trend missing skill id: %+v", trend)
		}
		if err := store.UpsertTrend(ctx, trend); err != nil {
			return fmt.Errorf("seed trend %s/%d: %w", trend.SkillID, trend.HorizonYears, err)
		}
	}
	for _, report := range s.EconomicReports {
		if err := store.UpsertEconomicReport(ctx, report); err != nil {
			return fmt.Errorf("seed economic report %d: %w", report.HorizonYears, err)
		}
	}
	return nil
}

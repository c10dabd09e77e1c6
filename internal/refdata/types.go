// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

// Package refdata holds the reference data the forecasting pipeline reads:
// job roles, skills, role-skill links, market trends, and economic reports.
// It provides an in-memory store for tests and small deployments and a
// BadgerDB-backed store for durable deployments, plus the resolver that
// joins reference data into scoring contexts.
package refdata

import "errors"

// ErrNotFound is returned when a requested reference entity does not exist.
var ErrNotFound = errors.New("refdata: not found")

// JobRole is an organizational role skills are forecast for.
type JobRole struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Department string  `json:"department"`
	AvgSalaryK float64 `json:"avg_salary_k"`
}

// Skill is a capability tracked across roles.
type Skill struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// RoleSkill links a role to a skill with the organization's internal
// signals for the pair.
type RoleSkill struct {
	JobRoleID        string  `json:"job_role_id"`
	SkillID          string  `json:"skill_id"`
	InternalUsage    float64 `json:"internal_usage"`
	TrainingRequests int     `json:"training_requests"`
}

// MarketTrend is the external market signal for a skill at a horizon.
type MarketTrend struct {
	SkillID          string  `json:"skill_id"`
	HorizonYears     int     `json:"horizon_years"`
	TrendScore       float64 `json:"trend_score"`
	ScarcityIndex    float64 `json:"scarcity_index"`
	HiringDifficulty float64 `json:"hiring_difficulty"`
}

// EconomicReport carries the macro indicator applied to every context at a
// horizon.
type EconomicReport struct {
	HorizonYears int     `json:"horizon_years"`
	Indicator    float64 `json:"indicator"`
}

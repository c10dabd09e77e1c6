// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package refdata

import (
	"context"
	"sort"
	"sync"
)

// Store is the reference data access contract shared by the in-memory and
// BadgerDB implementations. List methods return entries in a stable order
// so forecast runs over unchanged data are reproducible.
type Store interface {
	UpsertJobRole(ctx context.Context, role JobRole) error
	GetJobRole(ctx context.Context, id string) (*JobRole, error)
	ListJobRoles(ctx context.Context) ([]JobRole, error)

	UpsertSkill(ctx context.Context, skill Skill) error
	GetSkill(ctx context.Context, id string) (*Skill, error)
	ListSkills(ctx context.Context) ([]Skill, error)

	UpsertRoleSkill(ctx context.Context, link RoleSkill) error
	ListRoleSkills(ctx context.Context) ([]RoleSkill, error)

	UpsertTrend(ctx context.Context, trend MarketTrend) error
	GetTrend(ctx context.Context, skillID string, horizonYears int) (*MarketTrend, error)

	UpsertEconomicReport(ctx context.Context, report EconomicReport) error
	GetEconomicReport(ctx context.Context, horizonYears int) (*EconomicReport, error)

	Close() error
}

// MemoryStore is a map-backed Store for tests and single-process use.
type MemoryStore struct {
	mu         sync.RWMutex
	roles      map[string]JobRole
	skills     map[string]Skill
	roleSkills map[string]RoleSkill
	trends     map[string]MarketTrend
	reports    map[int]EconomicReport
}

// NewMemoryStore creates an empty in-memory reference data store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles:      make(map[string]JobRole),
		skills:     make(map[string]Skill),
		roleSkills: make(map[string]RoleSkill),
		trends:     make(map[string]MarketTrend),
		reports:    make(map[int]EconomicReport),
	}
}

func (m *MemoryStore) UpsertJobRole(_ context.Context, role JobRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[role.ID] = role
	return nil
}

func (m *MemoryStore) GetJobRole(_ context.Context, id string) (*JobRole, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &role, nil
}

func (m *MemoryStore) ListJobRoles(_ context.Context) ([]JobRole, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JobRole, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpsertSkill(_ context.Context, skill Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skills[skill.ID] = skill
	return nil
}

func (m *MemoryStore) GetSkill(_ context.Context, id string) (*Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	skill, ok := m.skills[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &skill, nil
}

func (m *MemoryStore) ListSkills(_ context.Context) ([]Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Skill, 0, len(m.skills))
	for _, skill := range m.skills {
		out = append(out, skill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpsertRoleSkill(_ context.Context, link RoleSkill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleSkills[roleSkillKey(link.JobRoleID, link.SkillID)] = link
	return nil
}

func (m *MemoryStore) ListRoleSkills(_ context.Context) ([]RoleSkill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoleSkill, 0, len(m.roleSkills))
	for _, link := range m.roleSkills {
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JobRoleID != out[j].JobRoleID {
			return out[i].JobRoleID < out[j].JobRoleID
		}
		return out[i].SkillID < out[j].SkillID
	})
	return out, nil
}

func (m *MemoryStore) UpsertTrend(_ context.Context, trend MarketTrend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trends[trendKey(trend.SkillID, trend.HorizonYears)] = trend
	return nil
}

func (m *MemoryStore) GetTrend(_ context.Context, skillID string, horizonYears int) (*MarketTrend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trend, ok := m.trends[trendKey(skillID, horizonYears)]
	if !ok {
		return nil, ErrNotFound
	}
	return &trend, nil
}

func (m *MemoryStore) UpsertEconomicReport(_ context.Context, report EconomicReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.HorizonYears] = report
	return nil
}

func (m *MemoryStore) GetEconomicReport(_ context.Context, horizonYears int) (*EconomicReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	report, ok := m.reports[horizonYears]
	if !ok {
		return nil, ErrNotFound
	}
	return &report, nil
}

func (m *MemoryStore) Close() error { return nil }

// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package refdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes for BadgerDB storage.
const (
	roleKeyPrefix      = "role:"
	skillKeyPrefix     = "skill:"
	roleSkillKeyPrefix = "roleskill:"
	trendKeyPrefix     = "trend:"
	reportKeyPrefix    = "econ:"
)

func roleSkillKey(roleID, skillID string) string {
	return roleID + ":" + skillID
}

func trendKey(skillID string, horizonYears int) string {
	return skillID + ":" + strconv.Itoa(horizonYears)
}

// BadgerStore implements Store on BadgerDB for persistence across
// restarts.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
}

// NewBadgerStore opens (or creates) a BadgerDB-backed reference data store
// at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Badger's own logging is too chatty for a config store
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for refdata: %w", err)
	}
	return &BadgerStore{db: db, ownsDB: true}, nil
}

// NewBadgerStoreFromDB wraps an already-open BadgerDB handle. The caller
// retains ownership of the handle; Close is then a no-op.
func NewBadgerStoreFromDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *BadgerStore) get(key string, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// scanPrefix decodes every value under a prefix via decode, which receives
// the raw value bytes.
func (s *BadgerStore) scanPrefix(prefix string, decode func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := it.Item().Value(decode); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) UpsertJobRole(_ context.Context, role JobRole) error {
	return s.put(roleKeyPrefix+role.ID, &role)
}

func (s *BadgerStore) GetJobRole(_ context.Context, id string) (*JobRole, error) {
	var role JobRole
	if err := s.get(roleKeyPrefix+id, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *BadgerStore) ListJobRoles(_ context.Context) ([]JobRole, error) {
	var out []JobRole
	err := s.scanPrefix(roleKeyPrefix, func(val []byte) error {
		var role JobRole
		if err := json.Unmarshal(val, &role); err != nil {
			return err
		}
		out = append(out, role)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list job roles: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *BadgerStore) UpsertSkill(_ context.Context, skill Skill) error {
	return s.put(skillKeyPrefix+skill.ID, &skill)
}

func (s *BadgerStore) GetSkill(_ context.Context, id string) (*Skill, error) {
	var skill Skill
	if err := s.get(skillKeyPrefix+id, &skill); err != nil {
		return nil, err
	}
	return &skill, nil
}

func (s *BadgerStore) ListSkills(_ context.Context) ([]Skill, error) {
	var out []Skill
	err := s.scanPrefix(skillKeyPrefix, func(val []byte) error {
		var skill Skill
		if err := json.Unmarshal(val, &skill); err != nil {
			return err
		}
		out = append(out, skill)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *BadgerStore) UpsertRoleSkill(_ context.Context, link RoleSkill) error {
	return s.put(roleSkillKeyPrefix+roleSkillKey(link.JobRoleID, link.SkillID), &link)
}

func (s *BadgerStore) ListRoleSkills(_ context.Context) ([]RoleSkill, error) {
	var out []RoleSkill
	err := s.scanPrefix(roleSkillKeyPrefix, func(val []byte) error {
		var link RoleSkill
		if err := json.Unmarshal(val, &link); err != nil {
			return err
		}
		out = append(out, link)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list role skills: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JobRoleID != out[j].JobRoleID {
			return out[i].JobRoleID < out[j].JobRoleID
		}
		return out[i].SkillID < out[j].SkillID
	})
	return out, nil
}

func (s *BadgerStore) UpsertTrend(_ context.Context, trend MarketTrend) error {
	return s.put(trendKeyPrefix+trendKey(trend.SkillID, trend.HorizonYears), &trend)
}

func (s *BadgerStore) GetTrend(_ context.Context, skillID string, horizonYears int) (*MarketTrend, error) {
	var trend MarketTrend
	if err := s.get(trendKeyPrefix+trendKey(skillID, horizonYears), &trend); err != nil {
		return nil, err
	}
	return &trend, nil
}

func (s *BadgerStore) UpsertEconomicReport(_ context.Context, report EconomicReport) error {
	return s.put(reportKeyPrefix+strconv.Itoa(report.HorizonYears), &report)
}

func (s *BadgerStore) GetEconomicReport(_ context.Context, horizonYears int) (*EconomicReport, error) {
	var report EconomicReport
	if err := s.get(reportKeyPrefix+strconv.Itoa(horizonYears), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Close closes the underlying BadgerDB handle when this store opened it.
func (s *BadgerStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

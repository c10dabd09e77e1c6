// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

// Package artifact provides the versioned, append-only registry of trained
// classifier artifacts and the offline training path that produces them.
//
// Artifacts are gob-encoded, gzip-compressed and checksummed. Files are
// immutable once written; a new training run always produces a new version.
// The registry tracks which version is currently promoted; the scoring path
// only ever consumes the promoted artifact.
package artifact

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// ArtifactName is the registry name of the demand classifier family.
const ArtifactName = "demand"

// promotedFile records the promoted version per artifact name.
const promotedFile = "promoted.json"

// Metadata describes a stored artifact.
type Metadata struct {
	// Name is the artifact family name (e.g. "demand").
	Name string `json:"name"`

	// Version is the registry version (monotonically increasing int).
	Version int `json:"version"`

	// ModelVersion is the semantic model version string ("major.minor")
	// suffixed onto the engine ID of ML predictions.
	ModelVersion string `json:"model_version"`

	TrainedAt time.Time `json:"trained_at"`
	SavedAt   time.Time `json:"saved_at"`

	// Training provenance.
	SampleCount     int                `json:"sample_count"`
	TrainingMetrics map[string]float64 `json:"training_metrics,omitempty"`

	// Checksum is the SHA-256 of the uncompressed artifact payload.
	Checksum  string `json:"checksum"`
	SizeBytes int64  `json:"size_bytes"`
}

// storedFile is the on-disk format.
type storedFile struct {
	Metadata       Metadata
	CompressedData []byte
}

// Store manages artifact persistence under a single directory.
// All operations are safe for concurrent use.
type Store struct {
	baseDir string
	mu      sync.RWMutex

	// latest version per artifact name, discovered at open time.
	versions map[string]int

	// promoted version per artifact name; empty entry means "latest".
	promoted map[string]int
}

// NewStore opens (or creates) an artifact registry at baseDir.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	s := &Store{
		baseDir:  baseDir,
		versions: make(map[string]int),
		promoted: make(map[string]int),
	}

	if err := s.scan(); err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	if err := s.readPromoted(); err != nil {
		return nil, fmt.Errorf("read promotion state: %w", err)
	}

	return s, nil
}

// scan discovers existing artifact files and their versions.
func (s *Store) scan() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, version, ok := parseFilename(entry.Name())
		if !ok {
			continue
		}
		if current, seen := s.versions[name]; !seen || version > current {
			s.versions[name] = version
		}
	}
	return nil
}

// parseFilename extracts name and version from "name_v3.gob.gz".
func parseFilename(filename string) (name string, version int, ok bool) {
	const suffix = ".gob.gz"
	if len(filename) <= len(suffix) || filename[len(filename)-len(suffix):] != suffix {
		return "", 0, false
	}
	stem := filename[:len(filename)-len(suffix)]

	for i := len(stem) - 1; i >= 1; i-- {
		if stem[i] == 'v' && stem[i-1] == '_' {
			if _, err := fmt.Sscanf(stem[i+1:], "%d", &version); err != nil {
				return "", 0, false
			}
			return stem[:i-1], version, true
		}
	}
	return "", 0, false
}

func (s *Store) readPromoted() error {
	data, err := os.ReadFile(filepath.Join(s.baseDir, promotedFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.promoted)
}

// writePromotedLocked persists promotion state. Must hold mu.
func (s *Store) writePromotedLocked() error {
	data, err := json.Marshal(s.promoted)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.baseDir, promotedFile), data, 0o640)
}

// Save stores a new artifact version. The version must be greater than any
// existing version of the same name; artifacts are never overwritten.
func (s *Store) Save(ctx context.Context, model *Model, meta Metadata) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.versions[meta.Name] + 1

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(model); err != nil {
		return 0, fmt.Errorf("encode artifact: %w", err)
	}
	raw := buf.Bytes()

	hash := sha256.Sum256(raw)
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw); err != nil {
		return 0, fmt.Errorf("compress artifact: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return 0, fmt.Errorf("finalize compression: %w", err)
	}

	meta.Version = version
	meta.SavedAt = time.Now()
	meta.SizeBytes = int64(compressed.Len())

	f, err := os.Create(s.path(meta.Name, version))
	if err != nil {
		return 0, fmt.Errorf("create artifact file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // close after write failure surfaces via Encode error

	sf := storedFile{Metadata: meta, CompressedData: compressed.Bytes()}
	if err := gob.NewEncoder(f).Encode(sf); err != nil {
		return 0, fmt.Errorf("write artifact file: %w", err)
	}

	s.versions[meta.Name] = version
	return version, nil
}

// Load reads an artifact by name and version. Version 0 loads the promoted
// version, falling back to the latest when nothing is promoted.
func (s *Store) Load(ctx context.Context, name string, version int) (*Model, *Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		version = s.resolveVersionLocked(name)
		if version == 0 {
			return nil, nil, fmt.Errorf("no artifact found for %q", name)
		}
	}

	f, err := os.Open(s.path(name, version))
	if err != nil {
		return nil, nil, fmt.Errorf("open artifact file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, nil, fmt.Errorf("read artifact file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress artifact: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed artifact: %w", err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return nil, nil, fmt.Errorf("artifact checksum mismatch: expected %s, got %s",
			sf.Metadata.Checksum, checksum)
	}

	var model Model
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&model); err != nil {
		return nil, nil, fmt.Errorf("decode artifact: %w", err)
	}

	return &model, &sf.Metadata, nil
}

// resolveVersionLocked returns the promoted version, or the latest when no
// promotion is recorded. Must hold mu.
func (s *Store) resolveVersionLocked(name string) int {
	if v, ok := s.promoted[name]; ok && v > 0 {
		return v
	}
	return s.versions[name]
}

// Promote marks a version as the one consumed by the scoring path.
func (s *Store) Promote(ctx context.Context, name string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version > s.versions[name] || version < 1 {
		return fmt.Errorf("cannot promote %s v%d: version does not exist", name, version)
	}
	s.promoted[name] = version
	return s.writePromotedLocked()
}

// PromotedVersion returns the version the scoring path resolves for name.
// The bool is false when no artifact exists at all.
func (s *Store) PromotedVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.resolveVersionLocked(name)
	return v, v > 0
}

// LatestVersion returns the highest stored version for name.
func (s *Store) LatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.versions[name]
	return v, ok
}

// List returns metadata for all stored artifact versions of name, newest
// first.
func (s *Store) List(ctx context.Context, name string) ([]Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}

	var metas []Metadata
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		entryName, version, ok := parseFilename(entry.Name())
		if !ok || entryName != name {
			continue
		}

		meta, err := s.readMetadataLocked(name, version)
		if err != nil {
			continue
		}
		metas = append(metas, *meta)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Version > metas[j].Version })
	return metas, nil
}

// readMetadataLocked reads only the metadata of one stored version.
func (s *Store) readMetadataLocked(name string, version int) (*Metadata, error) {
	f, err := os.Open(s.path(name, version))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, err
	}
	return &sf.Metadata, nil
}

// Prune removes old versions of name, keeping the newest keep versions.
// The promoted version is never pruned.
func (s *Store) Prune(ctx context.Context, name string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 1 {
		keep = 1
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("read artifact directory: %w", err)
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		entryName, version, ok := parseFilename(entry.Name())
		if ok && entryName == name {
			versions = append(versions, version)
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(versions)))

	promoted := s.promoted[name]
	for i := keep; i < len(versions); i++ {
		if versions[i] == promoted {
			continue
		}
		_ = os.Remove(s.path(name, versions[i])) //nolint:errcheck // best-effort cleanup
	}

	return nil
}

// path returns the file path for one version.
func (s *Store) path(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d.gob.gz", name, version))
}

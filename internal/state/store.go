// Package state persists per-document pipeline progress as a single JSON
// ledger. Every mutation is flushed to disk before returning so that the
// pipeline can resume after a crash without repeating completed work.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// PipelineVersion tags the on-disk state format.
const PipelineVersion = "1.0"

// ErrNotFound is returned when a document id is not present in the store.
var ErrNotFound = errors.New("document not found")

// fileState is the top-level shape of the persisted state file.
type fileState struct {
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       *time.Time         `json:"updated_at,omitempty"`
	PipelineVersion string             `json:"pipeline_version"`
	Documents       map[string]*Record `json:"documents"`
}

// Store is a file-backed document ledger. It is not safe for concurrent use;
// the pipeline processes documents strictly sequentially, and any concurrent
// extension must serialize load-mutate-save cycles itself.
type Store struct {
	path  string
	state fileState
	log   *slog.Logger
}

// Open loads the state file at path, or starts fresh when the file is
// missing, unreadable, or has an unrecognized shape. Corruption is traded
// for availability: the artifact-existence checks in each stage recover any
// progress the ledger lost.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, log: logger}

	data, err := os.ReadFile(path)
	if err == nil {
		var st fileState
		if jsonErr := json.Unmarshal(data, &st); jsonErr == nil && st.Documents != nil {
			s.state = st
			s.log.Debug("loaded pipeline state", "path", path, "documents", len(st.Documents))
			return s, nil
		}
		s.log.Debug("state file unreadable, starting fresh", "path", path)
	} else if !os.IsNotExist(err) {
		s.log.Debug("state file inaccessible, starting fresh", "path", path, "error", err)
	}

	s.state = fileState{
		CreatedAt:       time.Now().UTC(),
		PipelineVersion: PipelineVersion,
		Documents:       make(map[string]*Record),
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Save serializes the full ledger atomically: write to a temp file in the
// same directory, then rename over the previous version.
func (s *Store) Save() error {
	now := time.Now().UTC()
	s.state.UpdatedAt = &now

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Get returns the record for id, or ErrNotFound.
func (s *Store) Get(id string) (*Record, error) {
	rec, ok := s.state.Documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Has reports whether a record exists for id.
func (s *Store) Has(id string) bool {
	_, ok := s.state.Documents[id]
	return ok
}

// Len returns the number of documents in the store.
func (s *Store) Len() int {
	return len(s.state.Documents)
}

// Documents returns all document ids in sorted order.
func (s *Store) Documents() []string {
	ids := make([]string, 0, len(s.state.Documents))
	for id := range s.state.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Add inserts a new record and persists the ledger. Adding an existing id
// is a no-op, which is what makes registration idempotent.
func (s *Store) Add(id string, rec *Record) error {
	if _, ok := s.state.Documents[id]; ok {
		return nil
	}
	s.state.Documents[id] = rec
	return s.Save()
}

// UpdateStep sets the status and timestamp of one step, records the artifact
// path and error message when given, rederives the overall document status,
// and persists the ledger before returning.
func (s *Store) UpdateStep(id, step string, status Status, artifactPath, stepErr string) error {
	rec, ok := s.state.Documents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := time.Now().UTC()
	rec.Steps[step] = StepState{Status: status, Timestamp: &now}

	if artifactPath != "" {
		rec.Files[step] = artifactPath
	}
	if stepErr != "" {
		rec.Errors = append(rec.Errors, StepError{Step: step, Error: stepErr, Timestamp: now})
	}

	rec.Status = DeriveStatus(rec.Steps)
	return s.Save()
}

// FinalArtifacts maps each fully completed document id to its per-step
// artifact paths, keyed download/extract/structure.
func (s *Store) FinalArtifacts() map[string]map[string]string {
	out := make(map[string]map[string]string)
	for id, rec := range s.state.Documents {
		if rec.Status != StatusCompleted {
			continue
		}
		files := make(map[string]string, len(rec.Files))
		for step, path := range rec.Files {
			files[step] = path
		}
		out[id] = files
	}
	return out
}

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/avitools/aipflow/internal/state"
)

// DocumentResult is the terminal outcome of one document in a run.
type DocumentResult struct {
	Status state.Status `json:"status"`
	// Step names the stage at which a failed document stopped.
	Step string `json:"step,omitempty"`
	// Recovered marks documents already completed by a prior run.
	Recovered bool `json:"recovered,omitempty"`
}

// Summary aggregates the outcome of one pipeline run.
type Summary struct {
	RunID          string                    `json:"run_id"`
	StartedAt      time.Time                 `json:"started_at"`
	CompletedAt    time.Time                 `json:"completed_at"`
	TotalDocuments int                       `json:"total_documents"`
	Documents      map[string]DocumentResult `json:"documents"`
}

// NewSummary starts a summary for a run over total documents.
func NewSummary(total int) *Summary {
	return &Summary{
		RunID:          uuid.New().String(),
		StartedAt:      time.Now().UTC(),
		TotalDocuments: total,
		Documents:      make(map[string]DocumentResult, total),
	}
}

// Record stores the outcome for a document.
func (s *Summary) Record(id string, result DocumentResult) {
	s.Documents[id] = result
}

// Completed returns the number of completed documents.
func (s *Summary) Completed() int {
	return s.count(state.StatusCompleted)
}

// Failed returns the number of failed documents.
func (s *Summary) Failed() int {
	return s.count(state.StatusFailed)
}

func (s *Summary) count(status state.Status) int {
	n := 0
	for _, r := range s.Documents {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Write persists the summary as JSON at path.
func (s *Summary) Write(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Package pipeline drives documents through the three processing stages
// (download, extract, structure), recording per-step progress in the state
// store so interrupted runs resume without repeating completed work.
package pipeline

import (
	"context"
	"log/slog"
	"os"

	"github.com/avitools/aipflow/internal/state"
)

// Stage is one unit of pipeline work for a single document. Run checks its
// own preconditions, performs or skips the work, and records the terminal
// step status in the store before returning. The returned error is the
// orchestrator's signal to stop this document; it never propagates further.
type Stage interface {
	Name() string
	Run(ctx context.Context, id string) error
}

// failStep records a step failure on the ledger and hands the error back as
// the stage result. Ledger write failures are logged, not escalated: the
// step error is the one the caller needs.
func failStep(store *state.Store, log *slog.Logger, id, step string, err error) error {
	if uerr := store.UpdateStep(id, step, state.StatusFailed, "", err.Error()); uerr != nil {
		log.Error("failed to record step failure", "id", id, "step", step, "error", uerr)
	}
	return err
}

// fileExists reports whether path exists. Artifact presence is the
// authoritative "already done" signal for every stage.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avitools/aipflow/internal/batch"
	"github.com/avitools/aipflow/internal/registry"
	"github.com/avitools/aipflow/internal/state"
)

// stepRegister names the registration phase in run summaries. It is not a
// pipeline step; it only appears when a descriptor cannot be registered.
const stepRegister = "register"

// Orchestrator drives documents through the stages in order, stopping a
// document at its first failing stage while continuing with the rest of the
// batch. Documents are processed strictly sequentially.
type Orchestrator struct {
	store    *state.Store
	registry *registry.Registry
	stages   []Stage
	log      *slog.Logger
}

// NewOrchestrator assembles the pipeline from its stage executors. Stages
// run in the order given.
func NewOrchestrator(store *state.Store, reg *registry.Registry, stages []Stage, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{store: store, registry: reg, stages: stages, log: logger}
}

// Run registers and processes every descriptor in order and returns the run
// summary. Per-document failures are recorded in the summary, never
// returned as errors; cancellation stops the run between stages.
func (o *Orchestrator) Run(ctx context.Context, descriptors []batch.Descriptor) *Summary {
	summary := NewSummary(len(descriptors))

	for i, desc := range descriptors {
		if ctx.Err() != nil {
			o.log.Warn("run cancelled", "processed", i, "of", len(descriptors))
			break
		}

		id, err := o.registry.Ensure(desc)
		if err != nil {
			o.log.Error("failed to register document", "source", desc.Source, "error", err)
			// Descriptors without a source have no stable id; key them by
			// batch position so multiple invalid entries do not collapse
			// into one summary row.
			key := registry.DocumentID(desc.Source)
			if desc.Source == "" {
				key = fmt.Sprintf("batch_%d", i)
			}
			summary.Record(key, DocumentResult{
				Status: state.StatusFailed,
				Step:   stepRegister,
			})
			continue
		}

		rec, err := o.store.Get(id)
		if err != nil {
			summary.Record(id, DocumentResult{Status: state.StatusFailed, Step: stepRegister})
			continue
		}

		// A document completed by a prior run is skipped outright, without
		// re-invoking stages that would each re-check the filesystem.
		if rec.Status == state.StatusCompleted {
			o.log.Debug("document already completed, skipping", "id", id, "name", rec.OriginalFilename)
			summary.Record(id, DocumentResult{Status: state.StatusCompleted, Recovered: true})
			continue
		}

		o.log.Info("processing document", "id", id, "name", rec.OriginalFilename,
			"position", i+1, "total", len(descriptors))

		summary.Record(id, o.runStages(ctx, id))
	}

	summary.CompletedAt = time.Now().UTC()
	return summary
}

// RunURLs is the bare-locator variant of Run: each URL is registered with a
// display name derived from the locator itself.
func (o *Orchestrator) RunURLs(ctx context.Context, urls []string) *Summary {
	descriptors := make([]batch.Descriptor, 0, len(urls))
	for _, url := range urls {
		descriptors = append(descriptors, batch.Descriptor{
			Source: url,
			Name:   registry.FilenameFromURL(url),
		})
	}
	return o.Run(ctx, descriptors)
}

func (o *Orchestrator) runStages(ctx context.Context, id string) DocumentResult {
	for _, stage := range o.stages {
		if ctx.Err() != nil {
			return DocumentResult{Status: state.StatusFailed, Step: stage.Name()}
		}
		if err := stage.Run(ctx, id); err != nil {
			o.log.Error("stage failed", "id", id, "stage", stage.Name(), "error", err)
			return DocumentResult{Status: state.StatusFailed, Step: stage.Name()}
		}
	}
	o.log.Info("document completed", "id", id)
	return DocumentResult{Status: state.StatusCompleted}
}

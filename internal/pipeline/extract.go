package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/avitools/aipflow/internal/providers"
	"github.com/avitools/aipflow/internal/state"
	"github.com/avitools/aipflow/internal/workspace"
)

// ExtractStage runs the external extraction service over a downloaded PDF
// and persists the grounded content units as a JSON artifact.
type ExtractStage struct {
	store     *state.Store
	ws        *workspace.Dir
	extractor providers.Extractor
	log       *slog.Logger
}

// NewExtractStage creates the extract executor.
func NewExtractStage(store *state.Store, ws *workspace.Dir, extractor providers.Extractor, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{store: store, ws: ws, extractor: extractor, log: logger}
}

// Name returns the step name this stage reports under.
func (s *ExtractStage) Name() string {
	return state.StepExtract
}

// Run extracts content from the document's downloaded PDF.
func (s *ExtractStage) Run(ctx context.Context, id string) error {
	rec, err := s.store.Get(id)
	if err != nil {
		return err
	}

	if rec.StepStatus(state.StepDownload) != state.StatusCompleted {
		return failStep(s.store, s.log, id, state.StepExtract,
			errors.New("download step not completed"))
	}
	pdfPath, ok := rec.ArtifactPath(state.StepDownload)
	if !ok {
		return failStep(s.store, s.log, id, state.StepExtract,
			errors.New("download artifact path missing from ledger"))
	}

	dirs := s.ws.OutputDirsFor(rec.Metadata.OutputFolder)
	if err := dirs.EnsureExists(); err != nil {
		return failStep(s.store, s.log, id, state.StepExtract, err)
	}
	outPath := filepath.Join(dirs.Extracted, stemFor(rec.OriginalFilename)+".json")

	if fileExists(outPath) {
		// See DownloadStage: an already-Completed step is left untouched,
		// the ledger is written only to reconcile a missing Completed mark.
		if rec.StepStatus(state.StepExtract) == state.StatusCompleted {
			s.log.Debug("extract step already completed", "id", id, "file", filepath.Base(outPath))
			return nil
		}
		s.log.Info("extract artifact already exists", "id", id, "file", filepath.Base(outPath))
		return s.store.UpdateStep(id, state.StepExtract, state.StatusCompleted, outPath, "")
	}

	s.log.Info("extracting document", "id", id, "pdf", filepath.Base(pdfPath), "provider", s.extractor.Name())

	extraction, err := s.extractor.ExtractDocument(ctx, pdfPath)
	if err != nil {
		return failStep(s.store, s.log, id, state.StepExtract,
			fmt.Errorf("extraction failed: %w", err))
	}

	artifact := buildExtractArtifact(id, rec, pdfPath, extraction)
	if err := writeJSONAtomic(outPath, artifact); err != nil {
		return failStep(s.store, s.log, id, state.StepExtract, err)
	}

	s.log.Info("extraction completed", "id", id,
		"chunks", artifact.Metadata.TotalChunks, "figures", artifact.Metadata.TotalFigures)
	return s.store.UpdateStep(id, state.StepExtract, state.StatusCompleted, outPath, "")
}

// buildExtractArtifact separates figure units from ordinary units and
// normalizes the service's 0-indexed page grounding to the 1-indexed pages
// every later stage works in.
func buildExtractArtifact(id string, rec *state.Record, pdfPath string, ex *providers.Extraction) *ExtractArtifact {
	var chunks, figures []ContentUnit
	for _, ch := range ex.Chunks {
		unit := ContentUnit{
			Text: ch.Text,
			Type: ch.Type,
		}
		for _, g := range ch.Groundings {
			unit.Grounding = append(unit.Grounding, UnitGrounding{
				Page: g.Page + 1,
				BBox: g.Box,
			})
		}
		if ch.IsFigure {
			unit.ID = fmt.Sprintf("figure_%d", len(figures))
			figures = append(figures, unit)
		} else {
			unit.ID = fmt.Sprintf("chunk_%d", len(chunks))
			chunks = append(chunks, unit)
		}
	}

	return &ExtractArtifact{
		Metadata: ExtractMetadata{
			DocumentID:      id,
			SourceURL:       rec.URL,
			PDFPath:         pdfPath,
			ProcessedDate:   time.Now().UTC(),
			TotalChunks:     len(chunks),
			TotalFigures:    len(figures),
			TotalCharacters: len(ex.Markdown),
		},
		Document: ExtractDocument{
			ID:       id,
			Filename: rec.OriginalFilename,
			Markdown: ex.Markdown,
			Chunks:   chunks,
			Figures:  figures,
		},
	}
}

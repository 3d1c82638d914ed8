package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avitools/aipflow/internal/providers"
	"github.com/avitools/aipflow/internal/state"
	"github.com/avitools/aipflow/internal/workspace"
)

// Placeholder topic tags used when a page or figure record is synthesized
// locally instead of coming back from the structuring service.
var (
	pagePlaceholderTopics   = []string{"aviation", "navigation", "charts"}
	figurePlaceholderTopics = []string{"aeronautical_charts", "navigation"}
)

// Excerpt limits for fallback records.
const (
	pageExcerptLimit   = 500
	figureExcerptLimit = 200
)

// StructureStage regroups extracted content by page and asks the external
// structuring service for a normalized record per page and per figure.
// Per-page and per-figure failures degrade to placeholder records; the step
// fails only when the extract artifact cannot be read or the final artifact
// cannot be written.
type StructureStage struct {
	store         *state.Store
	ws            *workspace.Dir
	structurer    providers.Structurer
	extractorName string
	log           *slog.Logger
}

// NewStructureStage creates the structure executor. extractorName is
// recorded in the artifact's processing-stack provenance tags.
func NewStructureStage(store *state.Store, ws *workspace.Dir, structurer providers.Structurer, extractorName string, logger *slog.Logger) *StructureStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructureStage{
		store:         store,
		ws:            ws,
		structurer:    structurer,
		extractorName: extractorName,
		log:           logger,
	}
}

// Name returns the step name this stage reports under.
func (s *StructureStage) Name() string {
	return state.StepStructure
}

// Run builds the final per-page artifact for one document.
func (s *StructureStage) Run(ctx context.Context, id string) error {
	rec, err := s.store.Get(id)
	if err != nil {
		return err
	}

	if rec.StepStatus(state.StepExtract) != state.StatusCompleted {
		return failStep(s.store, s.log, id, state.StepStructure,
			errors.New("extract step not completed"))
	}
	extractPath, ok := rec.ArtifactPath(state.StepExtract)
	if !ok {
		return failStep(s.store, s.log, id, state.StepStructure,
			errors.New("extract artifact path missing from ledger"))
	}

	dirs := s.ws.OutputDirsFor(rec.Metadata.OutputFolder)
	if err := dirs.EnsureExists(); err != nil {
		return failStep(s.store, s.log, id, state.StepStructure, err)
	}
	outPath := filepath.Join(dirs.Structured, stemFor(rec.OriginalFilename)+".json")

	if fileExists(outPath) {
		// See DownloadStage: an already-Completed step is left untouched,
		// the ledger is written only to reconcile a missing Completed mark.
		if rec.StepStatus(state.StepStructure) == state.StatusCompleted {
			s.log.Debug("structure step already completed", "id", id, "file", filepath.Base(outPath))
			return nil
		}
		s.log.Info("structured artifact already exists", "id", id, "file", filepath.Base(outPath))
		return s.store.UpdateStep(id, state.StepStructure, state.StatusCompleted, outPath, "")
	}

	data, err := os.ReadFile(extractPath)
	if err != nil {
		return failStep(s.store, s.log, id, state.StepStructure,
			fmt.Errorf("failed to read extract artifact: %w", err))
	}
	var extract ExtractArtifact
	if err := json.Unmarshal(data, &extract); err != nil {
		return failStep(s.store, s.log, id, state.StepStructure,
			fmt.Errorf("failed to parse extract artifact: %w", err))
	}

	s.log.Info("structuring document", "id", id, "provider", s.structurer.Name())

	artifact := s.buildStructureArtifact(ctx, rec, &extract)
	if err := writeJSONAtomic(outPath, artifact); err != nil {
		return failStep(s.store, s.log, id, state.StepStructure, err)
	}

	s.log.Info("structuring completed", "id", id, "pages", artifact.Metadata.TotalPages)
	return s.store.UpdateStep(id, state.StepStructure, state.StatusCompleted, outPath, "")
}

func (s *StructureStage) buildStructureArtifact(ctx context.Context, rec *state.Record, extract *ExtractArtifact) *StructureArtifact {
	docName := stemFor(rec.OriginalFilename)
	meta := rec.Metadata

	pages := groupByPage(extract.Document.Chunks)
	figures := groupByPage(extract.Document.Figures)
	totalPages := maxPage(pages, figures)

	content := make([]PageContent, 0, totalPages)
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		pageText := joinTexts(pages[pageNum])

		structured := s.structurePage(ctx, docName, pageNum, pageText, meta)

		structuredImages := make([]*providers.StructuredRecord, 0)
		for i, fig := range figures[pageNum] {
			if strings.TrimSpace(fig.Text) == "" {
				continue
			}
			structuredImages = append(structuredImages, s.structureFigure(ctx, pageNum, i, fig.Text, meta))
		}

		content = append(content, PageContent{
			PageNumber:             pageNum,
			Text:                   pageText,
			StructuredPageContent:  structured,
			StructuredImageContent: structuredImages,
			TextEmbedding:          []float64{},
		})
	}

	return &StructureArtifact{
		Metadata: StructureMetadata{
			DocumentName:    docName,
			TotalPages:      totalPages,
			DocumentType:    meta.DocumentType,
			Source:          extract.Metadata.SourceURL,
			ProcessingStack: []string{s.extractorName, s.structurer.Name()},
			ProcessedDate:   time.Now().UTC(),
			Country:         meta.Country,
			Publisher:       meta.Publisher,
			Section:         meta.Section,
			Access:          meta.Access,
			Language:        meta.Language,
			TotalChunks:     len(extract.Document.Chunks),
			TotalFigures:    len(extract.Document.Figures),
		},
		Content: content,
	}
}

// structurePage returns the service's record for a page, a fixed placeholder
// for blank pages (no call made), or a fallback record when the call fails.
func (s *StructureStage) structurePage(ctx context.Context, docName string, pageNum int, pageText string, meta state.DocumentMeta) *providers.StructuredRecord {
	if strings.TrimSpace(pageText) == "" {
		return &providers.StructuredRecord{
			FileName:    docName,
			Topics:      pagePlaceholderTopics,
			Languages:   meta.Language,
			Description: "Empty page",
			OCRContents: map[string]any{},
		}
	}

	rec, err := s.structurer.StructurePage(ctx, providers.PageRequest{
		DocumentName: docName,
		Text:         pageText,
	})
	if err != nil {
		s.log.Warn("page structuring failed, using fallback", "page", pageNum, "error", err)
		return &providers.StructuredRecord{
			FileName:    docName,
			Topics:      pagePlaceholderTopics,
			Languages:   meta.Language,
			Description: "Page content from aeronautical document",
			OCRContents: map[string]any{"raw_content": truncate(pageText, pageExcerptLimit)},
		}
	}
	return rec
}

// structureFigure returns the service's record for a figure, or a fallback
// record when the call fails. Callers skip empty-text figures entirely.
func (s *StructureStage) structureFigure(ctx context.Context, pageNum, index int, text string, meta state.DocumentMeta) *providers.StructuredRecord {
	rec, err := s.structurer.StructureFigure(ctx, providers.FigureRequest{
		Text:  text,
		Page:  pageNum,
		Index: index,
	})
	if err != nil {
		s.log.Warn("figure structuring failed, using fallback", "page", pageNum, "index", index, "error", err)
		return &providers.StructuredRecord{
			FileName:    fmt.Sprintf("figure_p%d_i%d.jpg", pageNum, index),
			Topics:      figurePlaceholderTopics,
			Languages:   meta.Language,
			Description: "Image from aeronautical document",
			OCRContents: map[string]any{"raw_content": truncate(text, figureExcerptLimit)},
		}
	}
	return rec
}

// groupByPage indexes units by their 1-indexed grounding pages. A unit with
// no grounding is assigned to page 1 by convention; a unit grounded on
// several pages appears on each of them.
func groupByPage(units []ContentUnit) map[int][]ContentUnit {
	pages := make(map[int][]ContentUnit)
	for _, unit := range units {
		if len(unit.Grounding) == 0 {
			pages[1] = append(pages[1], unit)
			continue
		}
		for _, g := range unit.Grounding {
			pages[g.Page] = append(pages[g.Page], unit)
		}
	}
	return pages
}

func maxPage(maps ...map[int][]ContentUnit) int {
	max := 1
	for _, m := range maps {
		for page := range m {
			if page > max {
				max = page
			}
		}
	}
	return max
}

func joinTexts(units []ContentUnit) string {
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}
	return strings.Join(texts, "\n")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

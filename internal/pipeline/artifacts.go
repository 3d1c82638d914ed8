package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avitools/aipflow/internal/providers"
)

// ExtractArtifact is the durable output of the extract stage.
type ExtractArtifact struct {
	Metadata ExtractMetadata `json:"metadata"`
	Document ExtractDocument `json:"document"`
}

// ExtractMetadata describes one extraction run.
type ExtractMetadata struct {
	DocumentID      string    `json:"document_id"`
	SourceURL       string    `json:"source_url"`
	PDFPath         string    `json:"pdf_path"`
	ProcessedDate   time.Time `json:"processed_date"`
	TotalChunks     int       `json:"total_chunks"`
	TotalFigures    int       `json:"total_figures"`
	TotalCharacters int       `json:"total_characters"`
}

// ExtractDocument carries the extracted content. Figures are kept apart
// from ordinary chunks but share the same unit shape.
type ExtractDocument struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Markdown string        `json:"markdown"`
	Chunks   []ContentUnit `json:"chunks"`
	Figures  []ContentUnit `json:"figures"`
}

// ContentUnit is one persisted content unit with 1-indexed grounding.
type ContentUnit struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Type      string          `json:"type"`
	Grounding []UnitGrounding `json:"grounding,omitempty"`
}

// UnitGrounding locates a unit on a page. Page is 1-indexed here; the
// conversion from the extraction service's 0-indexed pages happens at the
// extract-stage boundary, never downstream.
type UnitGrounding struct {
	Page int            `json:"page"`
	BBox *providers.Box `json:"bbox,omitempty"`
}

// StructureArtifact is the durable output of the structure stage.
type StructureArtifact struct {
	Metadata StructureMetadata `json:"metadata"`
	Content  []PageContent     `json:"content"`
}

// StructureMetadata is the document-level header of the final artifact.
type StructureMetadata struct {
	DocumentName    string    `json:"document_name"`
	TotalPages      int       `json:"total_pages"`
	DocumentType    string    `json:"document_type"`
	Source          string    `json:"source"`
	ProcessingStack []string  `json:"processing_stack"`
	ProcessedDate   time.Time `json:"processed_date"`
	Country         string    `json:"country"`
	Publisher       string    `json:"publisher"`
	Section         string    `json:"section"`
	Access          string    `json:"access"`
	Language        []string  `json:"language"`
	TotalChunks     int       `json:"total_chunks"`
	TotalFigures    int       `json:"total_figures"`
}

// PageContent is one per-page object in the final artifact. TextEmbedding
// is reserved for a later enrichment stage and always written empty.
type PageContent struct {
	PageNumber             int                           `json:"page_number"`
	Text                   string                        `json:"text"`
	StructuredPageContent  *providers.StructuredRecord   `json:"structured_page_content"`
	StructuredImageContent []*providers.StructuredRecord `json:"structured_image_content"`
	TextEmbedding          []float64                     `json:"text_embedding"`
}

// writeJSONAtomic marshals v and writes it to path via a temp file and
// rename, so a crash mid-write never leaves a partial artifact that a later
// run would mistake for a completed one.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize artifact: %w", err)
	}
	return nil
}

// stemFor returns the artifact file stem for a display name: the original
// filename without its extension.
func stemFor(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

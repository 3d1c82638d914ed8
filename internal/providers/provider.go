// Package providers holds the clients for the two external services the
// pipeline sequences: document extraction and LLM structuring. Each service
// is abstracted behind a narrow interface (one method per call shape) so
// tests can substitute deterministic stubs.
package providers

import "context"

// Box is a bounding region within a page, in normalized coordinates.
type Box struct {
	Left   float64 `json:"l"`
	Top    float64 `json:"t"`
	Right  float64 `json:"r"`
	Bottom float64 `json:"b"`
}

// Grounding ties a content unit to its location in the source document.
// Page is 0-indexed as delivered by the extraction service; the extract
// stage converts it to 1-indexed before persisting.
type Grounding struct {
	Page int
	Box  *Box
}

// Chunk is one atomic unit of extracted content.
type Chunk struct {
	Text       string
	Type       string
	IsFigure   bool
	Groundings []Grounding
}

// Extraction is the full result of running the extraction service over a
// document.
type Extraction struct {
	Markdown string
	Chunks   []Chunk
}

// Extractor is the document-extraction service contract.
type Extractor interface {
	// Name returns the provider identifier (e.g., "agentic-doc").
	Name() string

	// ExtractDocument runs the extraction service over the file at pdfPath.
	ExtractDocument(ctx context.Context, pdfPath string) (*Extraction, error)
}

// StructuredRecord is the normalized per-page (or per-figure) record the
// structuring service produces.
type StructuredRecord struct {
	FileName    string         `json:"file_name"`
	Topics      []string       `json:"topics"`
	Languages   []string       `json:"languages"`
	Description string         `json:"description"`
	OCRContents map[string]any `json:"ocr_contents"`
}

// PageRequest asks the structuring service to normalize one page of text.
type PageRequest struct {
	DocumentName string
	Text         string
}

// FigureRequest asks the structuring service to normalize the captured text
// of one figure.
type FigureRequest struct {
	Text  string
	Page  int
	Index int
}

// Structurer is the language-model structuring service contract.
type Structurer interface {
	// Name returns the provider identifier (e.g., "mistral").
	Name() string

	// StructurePage normalizes the raw text of a page.
	StructurePage(ctx context.Context, req PageRequest) (*StructuredRecord, error)

	// StructureFigure normalizes the captured text of a figure.
	StructureFigure(ctx context.Context, req FigureRequest) (*StructuredRecord, error)
}

package providers

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

const MockName = "mock"

// MockExtractor is an Extractor for testing.
type MockExtractor struct {
	// Configurable behavior
	Result     *Extraction
	ShouldFail bool
	Err        error

	// State
	callCount atomic.Int64
}

// NewMockExtractor creates a mock extractor returning a small two-chunk
// document with one figure.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		Result: &Extraction{
			Markdown: "# Mock Document\n\nBody text.",
			Chunks: []Chunk{
				{
					Text:       "Body text.",
					Type:       "text",
					Groundings: []Grounding{{Page: 0, Box: &Box{Left: 0.1, Top: 0.1, Right: 0.9, Bottom: 0.3}}},
				},
				{
					Text:       "Figure caption.",
					Type:       "figure",
					IsFigure:   true,
					Groundings: []Grounding{{Page: 0}},
				},
			},
		},
	}
}

// Name returns the provider identifier.
func (m *MockExtractor) Name() string {
	return MockName
}

// Calls returns how many times ExtractDocument was invoked.
func (m *MockExtractor) Calls() int {
	return int(m.callCount.Load())
}

// ExtractDocument returns the configured result or failure.
func (m *MockExtractor) ExtractDocument(ctx context.Context, pdfPath string) (*Extraction, error) {
	m.callCount.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ShouldFail {
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, fmt.Errorf("mock extraction failure for %s", pdfPath)
	}
	return m.Result, nil
}

// MockStructurer is a Structurer for testing.
type MockStructurer struct {
	// FailTexts lists substrings; any request whose text contains one fails.
	FailTexts []string
	// ShouldFail fails every request.
	ShouldFail bool

	// State
	pageCalls   atomic.Int64
	figureCalls atomic.Int64
}

// NewMockStructurer creates a mock structurer that echoes the request back
// as a deterministic record.
func NewMockStructurer() *MockStructurer {
	return &MockStructurer{}
}

// Name returns the provider identifier.
func (m *MockStructurer) Name() string {
	return MockName
}

// PageCalls returns how many page requests were made.
func (m *MockStructurer) PageCalls() int {
	return int(m.pageCalls.Load())
}

// FigureCalls returns how many figure requests were made.
func (m *MockStructurer) FigureCalls() int {
	return int(m.figureCalls.Load())
}

// StructurePage returns a deterministic record derived from the request.
func (m *MockStructurer) StructurePage(ctx context.Context, req PageRequest) (*StructuredRecord, error) {
	m.pageCalls.Add(1)
	if err := m.maybeFail(ctx, req.Text); err != nil {
		return nil, err
	}
	return &StructuredRecord{
		FileName:    req.DocumentName,
		Topics:      []string{"mock"},
		Languages:   []string{"english"},
		Description: "mock structured page",
		OCRContents: map[string]any{"text": req.Text},
	}, nil
}

// StructureFigure returns a deterministic record derived from the request.
func (m *MockStructurer) StructureFigure(ctx context.Context, req FigureRequest) (*StructuredRecord, error) {
	m.figureCalls.Add(1)
	if err := m.maybeFail(ctx, req.Text); err != nil {
		return nil, err
	}
	return &StructuredRecord{
		FileName:    fmt.Sprintf("figure_p%d_i%d", req.Page, req.Index),
		Topics:      []string{"mock"},
		Languages:   []string{"english"},
		Description: "mock structured figure",
		OCRContents: map[string]any{"text": req.Text},
	}, nil
}

func (m *MockStructurer) maybeFail(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ShouldFail {
		return fmt.Errorf("mock structuring failure")
	}
	for _, frag := range m.FailTexts {
		if strings.Contains(text, frag) {
			return fmt.Errorf("mock structuring failure on %q", frag)
		}
	}
	return nil
}

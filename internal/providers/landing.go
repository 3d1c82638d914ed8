package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	AgenticDocName    = "agentic-doc"
	AgenticDocBaseURL = "https://api.va.landing.ai/v1"

	agenticDocAnalysisPath = "/tools/agentic-document-analysis"
)

// AgenticDocConfig holds configuration for the agentic document
// extraction client.
type AgenticDocConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// AgenticDocClient implements Extractor against the agentic document
// analysis API: upload a PDF, receive markdown plus grounded chunks.
type AgenticDocClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAgenticDocClient creates a new extraction client.
func NewAgenticDocClient(cfg AgenticDocConfig) *AgenticDocClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = AgenticDocBaseURL
	}
	if cfg.Timeout == 0 {
		// Document analysis of large PDFs is slow.
		cfg.Timeout = 600 * time.Second
	}
	return &AgenticDocClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (c *AgenticDocClient) Name() string {
	return AgenticDocName
}

type agenticDocResponse struct {
	Data struct {
		Markdown string            `json:"markdown"`
		Chunks   []agenticDocChunk `json:"chunks"`
	} `json:"data"`
}

type agenticDocChunk struct {
	Text      string `json:"text"`
	ChunkType string `json:"chunk_type"`
	Grounding []struct {
		Page int  `json:"page"`
		Box  *Box `json:"box"`
	} `json:"grounding"`
}

// ExtractDocument uploads the PDF at pdfPath and converts the service
// response into the provider-neutral Extraction shape. Page indices are
// passed through as received (0-indexed).
func (c *AgenticDocClient) ExtractDocument(ctx context.Context, pdfPath string) (*Extraction, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("pdf", filepath.Base(pdfPath))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+agenticDocAnalysisPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction API returned status %d: %s", resp.StatusCode, body)
	}

	var parsed agenticDocResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	out := &Extraction{
		Markdown: parsed.Data.Markdown,
		Chunks:   make([]Chunk, 0, len(parsed.Data.Chunks)),
	}
	for _, ch := range parsed.Data.Chunks {
		chunk := Chunk{
			Text:     ch.Text,
			Type:     ch.ChunkType,
			IsFigure: strings.Contains(strings.ToLower(ch.ChunkType), "figure"),
		}
		for _, g := range ch.Grounding {
			chunk.Groundings = append(chunk.Groundings, Grounding{Page: g.Page, Box: g.Box})
		}
		out.Chunks = append(out.Chunks, chunk)
	}
	return out, nil
}

package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/avitools/aipflow/internal/providers"
	"github.com/avitools/aipflow/internal/state"
)

// completeDownload marks the download step done against a stub PDF on disk.
func (e *testEnv) completeDownload(t *testing.T, id string) string {
	t.Helper()
	dirs := e.outputDirs(t)
	rec, err := e.store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	pdfPath := filepath.Join(dirs.PDFs, rec.OriginalFilename)
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4 stub"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.store.UpdateStep(id, state.StepDownload, state.StatusCompleted, pdfPath, ""); err != nil {
		t.Fatal(err)
	}
	return pdfPath
}

func readExtractArtifact(t *testing.T, path string) *ExtractArtifact {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var artifact ExtractArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	return &artifact
}

func TestExtractStage(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "https://example.com/gen.pdf", "gen.pdf")
	env.completeDownload(t, id)

	extractor := providers.NewMockExtractor()
	stage := NewExtractStage(env.store, env.ws, extractor, env.log)

	if err := stage.Run(context.Background(), id); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if extractor.Calls() != 1 {
		t.Errorf("extractor calls = %d, want 1", extractor.Calls())
	}
	env.mustStepStatus(t, id, state.StepExtract, state.StatusCompleted)

	rec, _ := env.store.Get(id)
	outPath, ok := rec.ArtifactPath(state.StepExtract)
	if !ok {
		t.Fatal("no extract artifact recorded")
	}
	if filepath.Base(outPath) != "gen.json" {
		t.Errorf("artifact name = %q, want gen.json", filepath.Base(outPath))
	}

	artifact := readExtractArtifact(t, outPath)
	if artifact.Metadata.DocumentID != id {
		t.Errorf("document_id = %q", artifact.Metadata.DocumentID)
	}
	if artifact.Metadata.TotalChunks != 1 || artifact.Metadata.TotalFigures != 1 {
		t.Errorf("totals = %d chunks, %d figures",
			artifact.Metadata.TotalChunks, artifact.Metadata.TotalFigures)
	}
	if artifact.Document.Markdown == "" {
		t.Error("markdown missing from artifact")
	}

	// The mock grounds everything on service page 0; the artifact must
	// carry it as page 1.
	chunk := artifact.Document.Chunks[0]
	if chunk.ID != "chunk_0" {
		t.Errorf("chunk id = %q", chunk.ID)
	}
	if len(chunk.Grounding) != 1 || chunk.Grounding[0].Page != 1 {
		t.Errorf("chunk grounding = %+v, want page 1", chunk.Grounding)
	}
	figure := artifact.Document.Figures[0]
	if figure.ID != "figure_0" {
		t.Errorf("figure id = %q", figure.ID)
	}
	if figure.Grounding[0].Page != 1 {
		t.Errorf("figure page = %d, want 1", figure.Grounding[0].Page)
	}
}

func TestExtractStageSkipsExistingArtifact(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "https://example.com/gen.pdf", "gen.pdf")
	env.completeDownload(t, id)

	dirs := env.outputDirs(t)
	existing := filepath.Join(dirs.Extracted, "gen.json")
	if err := os.WriteFile(existing, []byte(`{"metadata":{},"document":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	extractor := providers.NewMockExtractor()
	stage := NewExtractStage(env.store, env.ws, extractor, env.log)

	if err := stage.Run(context.Background(), id); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if extractor.Calls() != 0 {
		t.Errorf("extractor calls = %d, want 0", extractor.Calls())
	}
	env.mustStepStatus(t, id, state.StepExtract, state.StatusCompleted)
}

func TestExtractStageRequiresCompletedDownload(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "https://example.com/gen.pdf", "gen.pdf")

	extractor := providers.NewMockExtractor()
	stage := NewExtractStage(env.store, env.ws, extractor, env.log)

	if err := stage.Run(context.Background(), id); err == nil {
		t.Fatal("Run() succeeded without a completed download")
	}
	if extractor.Calls() != 0 {
		t.Errorf("extractor calls = %d, want 0", extractor.Calls())
	}
	env.mustStepStatus(t, id, state.StepExtract, state.StatusFailed)
}

func TestExtractStageProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "https://example.com/gen.pdf", "gen.pdf")
	env.completeDownload(t, id)

	extractor := providers.NewMockExtractor()
	extractor.ShouldFail = true
	stage := NewExtractStage(env.store, env.ws, extractor, env.log)

	if err := stage.Run(context.Background(), id); err == nil {
		t.Fatal("Run() succeeded despite provider failure")
	}
	env.mustStepStatus(t, id, state.StepExtract, state.StatusFailed)

	rec, _ := env.store.Get(id)
	if _, ok := rec.ArtifactPath(state.StepExtract); ok {
		t.Error("failed extraction must not record an artifact")
	}
}

func TestBuildExtractArtifactMultiPageGrounding(t *testing.T) {
	rec := &state.Record{URL: "https://example.com/enr.pdf", OriginalFilename: "enr.pdf"}
	ex := &providers.Extraction{
		Markdown: "body",
		Chunks: []providers.Chunk{
			{Text: "spans two pages", Type: "text", Groundings: []providers.Grounding{{Page: 2}, {Page: 3}}},
			{Text: "no grounding", Type: "text"},
			{Text: "chart", Type: "figure", IsFigure: true, Groundings: []providers.Grounding{{Page: 0}}},
		},
	}

	artifact := buildExtractArtifact("docid", rec, "/tmp/enr.pdf", ex)

	if len(artifact.Document.Chunks) != 2 || len(artifact.Document.Figures) != 1 {
		t.Fatalf("split = %d chunks, %d figures",
			len(artifact.Document.Chunks), len(artifact.Document.Figures))
	}

	spanning := artifact.Document.Chunks[0]
	if len(spanning.Grounding) != 2 || spanning.Grounding[0].Page != 3 || spanning.Grounding[1].Page != 4 {
		t.Errorf("spanning grounding = %+v", spanning.Grounding)
	}
	if got := artifact.Document.Chunks[1].Grounding; len(got) != 0 {
		t.Errorf("ungrounded chunk grounding = %+v, want none", got)
	}
	if artifact.Document.Figures[0].Grounding[0].Page != 1 {
		t.Errorf("figure page = %d", artifact.Document.Figures[0].Grounding[0].Page)
	}
	if artifact.Metadata.TotalCharacters != len("body") {
		t.Errorf("total_characters = %d", artifact.Metadata.TotalCharacters)
	}
}

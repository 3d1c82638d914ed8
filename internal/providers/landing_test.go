package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gen.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAgenticDocExtractDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != agenticDocAnalysisPath {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Basic test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart parse: %v", err)
		}
		f, header, err := r.FormFile("pdf")
		if err != nil {
			t.Errorf("missing pdf form file: %v", err)
		} else {
			f.Close()
			if header.Filename != "gen.pdf" {
				t.Errorf("uploaded filename = %q", header.Filename)
			}
		}
		w.Write([]byte(`{
			"data": {
				"markdown": "# GEN 1.1",
				"chunks": [
					{
						"text": "GEN 1.1 Designated authorities",
						"chunk_type": "text",
						"grounding": [{"page": 0, "box": {"l": 0.1, "t": 0.1, "r": 0.9, "b": 0.3}}]
					},
					{
						"text": "Aerodrome chart",
						"chunk_type": "figure",
						"grounding": [{"page": 1}]
					}
				]
			}
		}`))
	}))
	defer srv.Close()

	client := NewAgenticDocClient(AgenticDocConfig{APIKey: "test-key", BaseURL: srv.URL})
	ext, err := client.ExtractDocument(context.Background(), writePDF(t))
	if err != nil {
		t.Fatalf("ExtractDocument() error = %v", err)
	}

	if ext.Markdown != "# GEN 1.1" {
		t.Errorf("Markdown = %q", ext.Markdown)
	}
	if len(ext.Chunks) != 2 {
		t.Fatalf("len(Chunks) = %d, want 2", len(ext.Chunks))
	}

	text := ext.Chunks[0]
	if text.IsFigure {
		t.Error("text chunk flagged as figure")
	}
	if len(text.Groundings) != 1 || text.Groundings[0].Page != 0 {
		t.Errorf("text groundings = %+v", text.Groundings)
	}
	if text.Groundings[0].Box == nil || text.Groundings[0].Box.Right != 0.9 {
		t.Errorf("text box = %+v", text.Groundings[0].Box)
	}

	figure := ext.Chunks[1]
	if !figure.IsFigure {
		t.Error("figure chunk not flagged")
	}
	if figure.Groundings[0].Box != nil {
		t.Error("figure without box must carry nil box")
	}
}

func TestAgenticDocErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client := NewAgenticDocClient(AgenticDocConfig{BaseURL: srv.URL})
	if _, err := client.ExtractDocument(context.Background(), writePDF(t)); err == nil {
		t.Fatal("ExtractDocument() succeeded on error status")
	}
}

func TestAgenticDocMissingFile(t *testing.T) {
	client := NewAgenticDocClient(AgenticDocConfig{BaseURL: "http://unused"})
	if _, err := client.ExtractDocument(context.Background(), filepath.Join(t.TempDir(), "absent.pdf")); err == nil {
		t.Fatal("ExtractDocument() succeeded on missing file")
	}
}

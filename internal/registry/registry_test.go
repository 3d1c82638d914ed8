package registry

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avitools/aipflow/internal/batch"
	"github.com/avitools/aipflow/internal/state"
)

func testRegistry(t *testing.T) (*Registry, *state.Store) {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	return New(store, nil), store
}

func TestDocumentID(t *testing.T) {
	id := DocumentID("https://example.com/aip/gen.pdf")
	if len(id) != 12 {
		t.Fatalf("id length = %d, want 12", len(id))
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("id %q contains non-hex rune %q", id, r)
		}
	}
	if id != DocumentID("https://example.com/aip/gen.pdf") {
		t.Error("same URL must yield the same id")
	}
	if id == DocumentID("https://example.com/aip/enr.pdf") {
		t.Error("different URLs must yield different ids")
	}
}

func TestNormalizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"gen.pdf", "gen.pdf"},
		{"GEN.PDF", "GEN.PDF"},
		{"gen", "gen.pdf"},
		{"gen 2.1", "gen 2.1.pdf"},
	}
	for _, tt := range tests {
		if got := NormalizeFilename(tt.in); got != tt.want {
			t.Errorf("NormalizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		url, want string
	}{
		{"https://example.com/aip/GEN_2.1.pdf", "GEN_2.1.pdf"},
		{"https://example.com/aip/charts", "charts.pdf"},
		{"https://example.com/aip/x.PDF?v=3", "x.PDF"},
	}
	for _, tt := range tests {
		if got := FilenameFromURL(tt.url); got != tt.want {
			t.Errorf("FilenameFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}

	// No usable path segment: a generated name still ends in .pdf.
	if got := FilenameFromURL("https://example.com/"); !strings.HasSuffix(got, ".pdf") {
		t.Errorf("FilenameFromURL fallback = %q, want .pdf suffix", got)
	}
}

func TestEnsureAppliesDefaults(t *testing.T) {
	reg, store := testRegistry(t)

	id, err := reg.Ensure(batch.Descriptor{
		Source: "https://example.com/aip/gen.pdf",
		Name:   "gen",
	})
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	rec, err := store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.OriginalFilename != "gen.pdf" {
		t.Errorf("OriginalFilename = %q, want gen.pdf", rec.OriginalFilename)
	}
	if rec.Metadata.DocumentType != DefaultDocumentType {
		t.Errorf("DocumentType = %q", rec.Metadata.DocumentType)
	}
	if rec.Metadata.Access != DefaultAccess {
		t.Errorf("Access = %q", rec.Metadata.Access)
	}
	if rec.Metadata.Section != DefaultSection {
		t.Errorf("Section = %q", rec.Metadata.Section)
	}
	if len(rec.Metadata.Language) != 2 {
		t.Errorf("Language = %v, want defaults", rec.Metadata.Language)
	}
	if rec.Status != state.StatusPending {
		t.Errorf("Status = %v, want pending", rec.Status)
	}
}

func TestEnsureKeepsDescriptorValues(t *testing.T) {
	reg, store := testRegistry(t)

	id, err := reg.Ensure(batch.Descriptor{
		Source:       "https://example.com/aip/enr.pdf",
		Name:         "enr.pdf",
		DocumentType: "chart",
		Access:       "restricted",
		Language:     []string{"french"},
		Country:      "france",
		Publisher:    "sia",
		Section:      "ENR",
		OutputFolder: "_AIPs/france",
	})
	if err != nil {
		t.Fatal(err)
	}

	rec, _ := store.Get(id)
	if rec.Metadata.Country != "france" || rec.Metadata.Section != "ENR" {
		t.Errorf("metadata not preserved: %+v", rec.Metadata)
	}
	if len(rec.Metadata.Language) != 1 || rec.Metadata.Language[0] != "french" {
		t.Errorf("Language = %v", rec.Metadata.Language)
	}
	if rec.Metadata.OutputFolder != "_AIPs/france" {
		t.Errorf("OutputFolder = %q", rec.Metadata.OutputFolder)
	}
}

func TestEnsureIdempotent(t *testing.T) {
	reg, store := testRegistry(t)

	desc := batch.Descriptor{Source: "https://example.com/aip/gen.pdf", Name: "gen.pdf", Country: "spain"}
	id1, err := reg.Ensure(desc)
	if err != nil {
		t.Fatal(err)
	}

	// Re-registering with different metadata leaves the record untouched.
	desc.Country = "portugal"
	id2, err := reg.Ensure(desc)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %s vs %s", id1, id2)
	}
	rec, _ := store.Get(id1)
	if rec.Metadata.Country != "spain" {
		t.Errorf("Country = %q, want original value", rec.Metadata.Country)
	}
}

func TestEnsureValidation(t *testing.T) {
	reg, _ := testRegistry(t)

	if _, err := reg.Ensure(batch.Descriptor{Name: "gen.pdf"}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("missing source: err = %v", err)
	}
	if _, err := reg.Ensure(batch.Descriptor{Source: "https://example.com/gen.pdf"}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("missing name: err = %v", err)
	}
}

func TestEnsureURL(t *testing.T) {
	reg, store := testRegistry(t)

	id, err := reg.EnsureURL("https://example.com/aip/GEN_0.1.pdf")
	if err != nil {
		t.Fatal(err)
	}
	rec, err := store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.OriginalFilename != "GEN_0.1.pdf" {
		t.Errorf("OriginalFilename = %q", rec.OriginalFilename)
	}
	if rec.URL != "https://example.com/aip/GEN_0.1.pdf" {
		t.Errorf("URL = %q", rec.URL)
	}
}

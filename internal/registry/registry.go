// Package registry derives stable document identifiers and creates ledger
// records, keeping re-registration of the same source idempotent.
package registry

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/avitools/aipflow/internal/batch"
	"github.com/avitools/aipflow/internal/state"
)

// ErrInvalidDescriptor is returned when a batch descriptor lacks a required
// field.
var ErrInvalidDescriptor = errors.New("invalid document descriptor")

// Metadata defaults applied when a batch descriptor leaves a field empty.
const (
	DefaultDocumentType = "AIP"
	DefaultAccess       = "public"
	DefaultCountry      = "unknown"
	DefaultPublisher    = "unknown"
	DefaultSection      = "GEN"
)

// DefaultLanguages returns the languages assumed when none are declared.
func DefaultLanguages() []string {
	return []string{"english", "spanish"}
}

// DocumentID derives the stable identifier for a source locator: the first
// 12 hex characters of its md5 sum. The same locator always yields the same
// id, which is what makes re-registration idempotent.
func DocumentID(sourceURL string) string {
	sum := md5.Sum([]byte(sourceURL))
	return hex.EncodeToString(sum[:])[:12]
}

// NormalizeFilename ensures a display name carries the .pdf suffix.
func NormalizeFilename(name string) string {
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return name + ".pdf"
	}
	return name
}

// FilenameFromURL extracts a display name from the last path segment of a
// URL, falling back to a generated name, and normalizes the suffix.
func FilenameFromURL(sourceURL string) string {
	parsed, err := url.Parse(sourceURL)
	name := ""
	if err == nil {
		segments := strings.Split(parsed.Path, "/")
		name = segments[len(segments)-1]
	}
	if name == "" {
		name = fmt.Sprintf("document_%d.pdf", time.Now().Unix())
	}
	return NormalizeFilename(name)
}

// Registry creates ledger records in a state store.
type Registry struct {
	store *state.Store
	log   *slog.Logger
}

// New creates a Registry over the given store.
func New(store *state.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, log: logger}
}

// EnsureURL registers a bare source locator, deriving the display name from
// the URL. Returns the document id; existing records are left untouched.
func (r *Registry) EnsureURL(sourceURL string) (string, error) {
	id := DocumentID(sourceURL)
	if r.store.Has(id) {
		return id, nil
	}

	rec := state.NewRecord(sourceURL, FilenameFromURL(sourceURL), state.DocumentMeta{})
	if err := r.store.Add(id, rec); err != nil {
		return "", err
	}
	r.log.Info("document registered", "id", id, "filename", rec.OriginalFilename)
	return id, nil
}

// Ensure registers a document from a batch descriptor. Source and Name are
// required; classification fields default per the AIP conventions. Returns
// the document id; existing records are returned unchanged.
func (r *Registry) Ensure(desc batch.Descriptor) (string, error) {
	if desc.Source == "" {
		return "", fmt.Errorf("%w: missing source", ErrInvalidDescriptor)
	}
	if desc.Name == "" {
		return "", fmt.Errorf("%w: missing name for %s", ErrInvalidDescriptor, desc.Source)
	}

	id := DocumentID(desc.Source)
	if r.store.Has(id) {
		r.log.Debug("document already registered", "id", id, "name", desc.Name)
		return id, nil
	}

	meta := state.DocumentMeta{
		DocumentType: withDefault(desc.DocumentType, DefaultDocumentType),
		Access:       withDefault(desc.Access, DefaultAccess),
		Language:     desc.Language,
		Country:      withDefault(desc.Country, DefaultCountry),
		Publisher:    withDefault(desc.Publisher, DefaultPublisher),
		Section:      withDefault(desc.Section, DefaultSection),
		OutputFolder: desc.OutputFolder,
	}
	if len(meta.Language) == 0 {
		meta.Language = DefaultLanguages()
	}

	rec := state.NewRecord(desc.Source, NormalizeFilename(desc.Name), meta)
	if err := r.store.Add(id, rec); err != nil {
		return "", err
	}
	r.log.Info("document registered", "id", id, "name", rec.OriginalFilename,
		"country", meta.Country, "section", meta.Section)
	return id, nil
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

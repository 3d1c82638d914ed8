// Package batch loads and validates the JSON batch inputs that name the
// documents a pipeline run should process.
package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/avitools/aipflow/internal/workspace"
)

// ErrNoBatchFile is returned when no batch input can be discovered.
var ErrNoBatchFile = errors.New("no batch input file found")

// Descriptor is one document entry in a batch input file.
type Descriptor struct {
	Source       string   `json:"source"`
	Name         string   `json:"name"`
	DocumentType string   `json:"document_type,omitempty"`
	Access       string   `json:"access,omitempty"`
	Language     []string `json:"language,omitempty"`
	Country      string   `json:"country,omitempty"`
	Publisher    string   `json:"publisher,omitempty"`
	Section      string   `json:"section,omitempty"`
	OutputFolder string   `json:"output_folder,omitempty"`
}

// descriptorSchema validates batch inputs before any document is registered.
// Source and name are required; locators do not reliably carry a usable
// display name, so the batch must supply one.
const descriptorSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["source", "name"],
    "properties": {
      "source": {"type": "string", "minLength": 1},
      "name": {"type": "string", "minLength": 1},
      "document_type": {"type": "string"},
      "access": {"type": "string"},
      "language": {"type": "array", "items": {"type": "string"}},
      "country": {"type": "string"},
      "publisher": {"type": "string"},
      "section": {"type": "string"},
      "output_folder": {"type": "string"}
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("batch.json", descriptorSchema)

// Load reads a batch input file, validates it against the descriptor schema,
// and decodes it. Any failure here is a setup error: the run must abort
// before processing any document.
func Load(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch input: %w", err)
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid batch input JSON: %w", err)
	}

	if err := compiledSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("batch input failed validation: %w", err)
	}

	var docs []Descriptor
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode batch input: %w", err)
	}
	return docs, nil
}

// Discover scans the workspace for per-collection batch inputs at the
// conventional path and returns the first one found, in sorted collection
// order. Returns ErrNoBatchFile when nothing matches.
func Discover(ws *workspace.Dir) (path, collection string, err error) {
	entries, err := os.ReadDir(workspaceCollectionsDir(ws))
	if err != nil {
		return "", "", ErrNoBatchFile
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		candidate := ws.BatchPath(name)
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, name, nil
		}
	}
	return "", "", ErrNoBatchFile
}

func workspaceCollectionsDir(ws *workspace.Dir) string {
	return ws.CollectionDir("")
}

// CollectionFromFolder extracts the collection name from an output_folder
// value shaped like "_AIPs/<collection>". Returns "" when the folder does
// not follow the convention.
func CollectionFromFolder(outputFolder string) string {
	parts := strings.Split(strings.Trim(outputFolder, "/"), "/")
	if len(parts) == 2 && parts[0] == workspace.CollectionsDirName {
		return parts[1]
	}
	return ""
}

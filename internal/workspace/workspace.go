// Package workspace models the on-disk layout of an aipflow working directory.
//
// The layout groups documents by AIP collection:
//
//	<root>/_AIPs/<collection>/docs_to_process/<collection>_Docs_AIP_links.json
//	<root>/_AIPs/<collection>/state/pipeline_state.json
//	<root>/<output_folder>/{pdfs,extracted,structured}/
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultRoot is the default working directory name.
	DefaultRoot = "work"

	// CollectionsDirName groups per-collection state and batch inputs.
	CollectionsDirName = "_AIPs"

	// StateFileName is the pipeline state ledger within a state directory.
	StateFileName = "pipeline_state.json"

	// SummaryFileName is the run summary written next to the state file.
	SummaryFileName = "final_results.json"

	// LockFileName guards a state directory against concurrent runs.
	LockFileName = "pipeline.lock"

	// BatchDirName holds the batch input JSON for a collection.
	BatchDirName = "docs_to_process"
)

// Dir represents the aipflow working directory structure.
type Dir struct {
	root string
}

// New creates a Dir rooted at path. If path is empty, DefaultRoot is used.
func New(path string) *Dir {
	if path == "" {
		path = DefaultRoot
	}
	return &Dir{root: path}
}

// Root returns the working directory root.
func (d *Dir) Root() string {
	return d.root
}

// CollectionDir returns the directory for a named AIP collection.
func (d *Dir) CollectionDir(collection string) string {
	return filepath.Join(d.root, CollectionsDirName, collection)
}

// StateDir returns the state directory for a collection. An empty collection
// falls back to a centralized state directory under the root.
func (d *Dir) StateDir(collection string) string {
	if collection == "" {
		return filepath.Join(d.root, "state")
	}
	return filepath.Join(d.CollectionDir(collection), "state")
}

// StatePath returns the pipeline state file path for a collection.
func (d *Dir) StatePath(collection string) string {
	return filepath.Join(d.StateDir(collection), StateFileName)
}

// SummaryPath returns the run summary file path for a collection.
func (d *Dir) SummaryPath(collection string) string {
	return filepath.Join(d.StateDir(collection), SummaryFileName)
}

// LockPath returns the run lock file path for a collection.
func (d *Dir) LockPath(collection string) string {
	return filepath.Join(d.StateDir(collection), LockFileName)
}

// BatchPath returns the conventional batch input path for a collection.
func (d *Dir) BatchPath(collection string) string {
	return filepath.Join(d.CollectionDir(collection), BatchDirName,
		fmt.Sprintf("%s_Docs_AIP_links.json", collection))
}

// EnsureStateDir creates the state directory for a collection.
func (d *Dir) EnsureStateDir(collection string) error {
	if err := os.MkdirAll(d.StateDir(collection), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// OutputDirs holds the per-stage artifact directories for a document.
type OutputDirs struct {
	PDFs       string
	Extracted  string
	Structured string
}

// OutputDirsFor returns the artifact directories under outputFolder.
// An empty outputFolder falls back to directories directly under the root.
func (d *Dir) OutputDirsFor(outputFolder string) OutputDirs {
	base := d.root
	if outputFolder != "" {
		base = filepath.Join(d.root, filepath.FromSlash(outputFolder))
	}
	return OutputDirs{
		PDFs:       filepath.Join(base, "pdfs"),
		Extracted:  filepath.Join(base, "extracted"),
		Structured: filepath.Join(base, "structured"),
	}
}

// EnsureExists creates the artifact directories if they do not exist.
func (o OutputDirs) EnsureExists() error {
	for _, dir := range []string{o.PDFs, o.Extracted, o.Structured} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	return nil
}

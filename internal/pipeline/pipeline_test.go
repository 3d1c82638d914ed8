package pipeline

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/avitools/aipflow/internal/batch"
	"github.com/avitools/aipflow/internal/registry"
	"github.com/avitools/aipflow/internal/state"
	"github.com/avitools/aipflow/internal/workspace"
)

const testOutputFolder = "_AIPs/testland"

// testEnv bundles the workspace, ledger, and registry every stage test needs.
type testEnv struct {
	ws    *workspace.Dir
	store *state.Store
	reg   *registry.Registry
	log   *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ws := workspace.New(t.TempDir())
	store, err := state.Open(filepath.Join(t.TempDir(), "pipeline_state.json"), log)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{
		ws:    ws,
		store: store,
		reg:   registry.New(store, log),
		log:   log,
	}
}

// register adds a document pointing at source and returns its id.
func (e *testEnv) register(t *testing.T, source, name string) string {
	t.Helper()
	id, err := e.reg.Ensure(batch.Descriptor{
		Source:       source,
		Name:         name,
		OutputFolder: testOutputFolder,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func (e *testEnv) outputDirs(t *testing.T) workspace.OutputDirs {
	t.Helper()
	dirs := e.ws.OutputDirsFor(testOutputFolder)
	if err := dirs.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	return dirs
}

// mustStepStatus asserts the ledger status of one step.
func (e *testEnv) mustStepStatus(t *testing.T, id, step string, want state.Status) {
	t.Helper()
	rec, err := e.store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.StepStatus(step); got != want {
		t.Fatalf("step %s status = %v, want %v", step, got, want)
	}
}

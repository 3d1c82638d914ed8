package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/avitools/aipflow/internal/fetch"
	"github.com/avitools/aipflow/internal/state"
	"github.com/avitools/aipflow/internal/workspace"
)

// DownloadStage retrieves the source PDF for a document. An existing file
// at the expected path short-circuits to Completed without transferring.
type DownloadStage struct {
	store   *state.Store
	ws      *workspace.Dir
	fetcher *fetch.Client
	// validate runs a pdfcpu sanity check on fresh downloads, catching
	// HTML error pages served with a 200 status.
	validate bool
	log      *slog.Logger
}

// NewDownloadStage creates the download executor.
func NewDownloadStage(store *state.Store, ws *workspace.Dir, fetcher *fetch.Client, validate bool, logger *slog.Logger) *DownloadStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownloadStage{store: store, ws: ws, fetcher: fetcher, validate: validate, log: logger}
}

// Name returns the step name this stage reports under.
func (s *DownloadStage) Name() string {
	return state.StepDownload
}

// Run downloads the document's source PDF into its output namespace.
func (s *DownloadStage) Run(ctx context.Context, id string) error {
	rec, err := s.store.Get(id)
	if err != nil {
		return err
	}

	dirs := s.ws.OutputDirsFor(rec.Metadata.OutputFolder)
	if err := dirs.EnsureExists(); err != nil {
		return failStep(s.store, s.log, id, state.StepDownload, err)
	}
	dest := filepath.Join(dirs.PDFs, rec.OriginalFilename)

	if fileExists(dest) {
		// Completed steps keep their original timestamp on resume; the
		// ledger write happens only when the artifact is present but the
		// ledger does not yet say Completed (reconciliation after a crash
		// or a lost state file).
		if rec.StepStatus(state.StepDownload) == state.StatusCompleted {
			s.log.Debug("download step already completed", "id", id, "file", rec.OriginalFilename)
			return nil
		}
		s.log.Info("PDF already downloaded", "id", id, "file", rec.OriginalFilename)
		return s.store.UpdateStep(id, state.StepDownload, state.StatusCompleted, dest, "")
	}

	s.log.Info("downloading PDF", "id", id, "file", rec.OriginalFilename, "url", rec.URL)

	n, err := s.fetcher.Fetch(ctx, rec.URL, dest)
	if err != nil {
		return failStep(s.store, s.log, id, state.StepDownload, err)
	}

	if s.validate {
		if err := api.ValidateFile(dest, nil); err != nil {
			os.Remove(dest)
			return failStep(s.store, s.log, id, state.StepDownload,
				fmt.Errorf("downloaded file is not a valid PDF: %w", err))
		}
		if pages, err := api.PageCountFile(dest); err == nil {
			s.log.Debug("validated PDF", "id", id, "pages", pages)
		}
	}

	s.log.Info("PDF downloaded", "id", id, "file", rec.OriginalFilename, "bytes", n)
	return s.store.UpdateStep(id, state.StepDownload, state.StatusCompleted, dest, "")
}

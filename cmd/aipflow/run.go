package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/avitools/aipflow/internal/batch"
	"github.com/avitools/aipflow/internal/config"
	"github.com/avitools/aipflow/internal/fetch"
	"github.com/avitools/aipflow/internal/pipeline"
	"github.com/avitools/aipflow/internal/providers"
	"github.com/avitools/aipflow/internal/registry"
	"github.com/avitools/aipflow/internal/state"
	"github.com/avitools/aipflow/internal/workspace"
)

var (
	runCollection string
	runBatchPath  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a batch of documents through the pipeline",
	Long: `Run the download, extract, and structure stages over a batch of documents.

The batch input is a JSON array of document descriptors, each with at least
a source URL and a display name. It is located by --batch, by the collection
convention (--aip <collection> reads
<work-dir>/_AIPs/<collection>/docs_to_process/<collection>_Docs_AIP_links.json),
or by scanning the working directory for the first collection with a batch
file.

Documents and steps completed by a previous run are skipped. Individual
document failures are recorded in the run summary and do not affect the
exit status; only setup errors (missing or invalid batch input) fail the
command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := slog.Default()

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := mgr.Get()

		root := cfg.WorkDir
		if workDir != "" {
			root = workDir
		}
		ws := workspace.New(root)

		batchPath, collection, err := resolveBatch(ws)
		if err != nil {
			return err
		}

		docs, err := batch.Load(batchPath)
		if err != nil {
			return err
		}
		log.Info("loaded batch input", "path", batchPath, "documents", len(docs))

		if collection == "" && len(docs) > 0 {
			collection = batch.CollectionFromFolder(docs[0].OutputFolder)
		}
		if collection == "" {
			return errors.New("could not determine the AIP collection: pass --aip or set output_folder in the batch input")
		}

		if err := ws.EnsureStateDir(collection); err != nil {
			return err
		}

		// One pipeline run per collection at a time; concurrent runs would
		// race on the state ledger.
		lock := flock.New(ws.LockPath(collection))
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another aipflow run holds the lock for collection %s", collection)
		}
		defer lock.Unlock()

		store, err := state.Open(ws.StatePath(collection), log)
		if err != nil {
			return err
		}

		orch, extractorName, err := buildOrchestrator(cfg, store, ws, log)
		if err != nil {
			return err
		}
		log.Info("starting pipeline run", "collection", collection, "extractor", extractorName)

		summary := orch.Run(ctx, docs)

		summaryPath := ws.SummaryPath(collection)
		if err := summary.Write(summaryPath); err != nil {
			log.Error("failed to write run summary", "path", summaryPath, "error", err)
		} else {
			log.Info("run summary written", "path", summaryPath)
		}

		printSummary(os.Stdout, store, summary)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runCollection, "aip", "", "AIP collection to process (e.g. argentina)")
	runCmd.Flags().StringVarP(&runBatchPath, "batch", "d", "", "path to the batch input JSON (overrides --aip discovery)")
}

// resolveBatch locates the batch input: explicit path first, then the
// collection convention, then workspace discovery.
func resolveBatch(ws *workspace.Dir) (path, collection string, err error) {
	if runBatchPath != "" {
		if _, statErr := os.Stat(runBatchPath); statErr != nil {
			return "", "", fmt.Errorf("batch input not found: %s", runBatchPath)
		}
		return runBatchPath, runCollection, nil
	}

	if runCollection != "" {
		p := ws.BatchPath(runCollection)
		if _, statErr := os.Stat(p); statErr != nil {
			return "", "", fmt.Errorf("no batch input for collection %s (expected %s)", runCollection, p)
		}
		return p, runCollection, nil
	}

	path, collection, err = batch.Discover(ws)
	if err != nil {
		return "", "", fmt.Errorf("no batch input found under %s: pass --aip <collection> or --batch <path>", ws.Root())
	}
	slog.Default().Info("discovered batch input", "path", path, "collection", collection)
	return path, collection, nil
}

// buildOrchestrator wires the stage executors from configuration.
func buildOrchestrator(cfg *config.Config, store *state.Store, ws *workspace.Dir, log *slog.Logger) (*pipeline.Orchestrator, string, error) {
	exCfg, stCfg := cfg.ProviderConfigs()

	extractor, err := providers.NewExtractor(exCfg)
	if err != nil {
		return nil, "", err
	}
	structurer, err := providers.NewStructurer(stCfg)
	if err != nil {
		return nil, "", err
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:  time.Duration(cfg.DownloadTimeoutSeconds) * time.Second,
		Insecure: cfg.Insecure,
	})

	reg := registry.New(store, log)
	stages := []pipeline.Stage{
		pipeline.NewDownloadStage(store, ws, fetcher, cfg.ValidatePDFs, log),
		pipeline.NewExtractStage(store, ws, extractor, log),
		pipeline.NewStructureStage(store, ws, structurer, extractor.Name(), log),
	}
	return pipeline.NewOrchestrator(store, reg, stages, log), extractor.Name(), nil
}

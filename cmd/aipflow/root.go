package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/avitools/aipflow/version"
)

var (
	cfgFile string
	workDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "aipflow",
	Short: "AIP document pipeline: download, extract, and structure aeronautical publications",
	Long: `aipflow drives AIP (Aeronautical Information Publication) PDFs through a
three-stage pipeline with durable state, so interrupted runs resume where
they left off and expensive external calls are never repeated:

  1. download  - fetch the source PDF
  2. extract   - grounded content extraction via a document-analysis service
  3. structure - per-page normalization via an LLM structuring service

Progress is tracked per document and per step in a JSON state ledger under
the working directory.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.aipflow/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&workDir, "work-dir", "w", "", "working directory root (default: work)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

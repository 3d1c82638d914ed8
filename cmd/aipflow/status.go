package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/avitools/aipflow/internal/config"
	"github.com/avitools/aipflow/internal/state"
	"github.com/avitools/aipflow/internal/workspace"
)

var statusCollection string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-document pipeline progress for a collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusCollection == "" {
			return errors.New("--aip <collection> is required")
		}

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		root := mgr.Get().WorkDir
		if workDir != "" {
			root = workDir
		}
		ws := workspace.New(root)

		statePath := ws.StatePath(statusCollection)
		if _, err := os.Stat(statePath); err != nil {
			return fmt.Errorf("no pipeline state for collection %s (expected %s)", statusCollection, statePath)
		}

		store, err := state.Open(statePath, slog.Default())
		if err != nil {
			return err
		}

		rows := make([][]string, 0, store.Len())
		for _, id := range store.Documents() {
			rec, err := store.Get(id)
			if err != nil {
				continue
			}
			rows = append(rows, []string{
				id,
				rec.OriginalFilename,
				string(rec.StepStatus(state.StepDownload)),
				string(rec.StepStatus(state.StepExtract)),
				string(rec.StepStatus(state.StepStructure)),
				string(rec.Status),
			})
		}

		headers := []string{"ID", "NAME", "DOWNLOAD", "EXTRACT", "STRUCTURE", "STATUS"}
		if isTerminal(os.Stdout) {
			fmt.Println(renderTable(headers, rows))
		} else {
			for _, row := range rows {
				fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n", row[0], row[1], row[2], row[3], row[4], row[5])
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusCollection, "aip", "", "AIP collection to inspect")
}

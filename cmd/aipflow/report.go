package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"

	"github.com/avitools/aipflow/internal/pipeline"
	"github.com/avitools/aipflow/internal/state"
)

// printSummary reports the run outcome: per-document rows, aggregate counts,
// and the artifact paths of every fully completed document. Rows render as
// a table on a terminal and as plain tab-separated lines otherwise.
func printSummary(w io.Writer, store *state.Store, summary *pipeline.Summary) {
	ids := make([]string, 0, len(summary.Documents))
	for id := range summary.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		result := summary.Documents[id]
		name := ""
		if rec, err := store.Get(id); err == nil {
			name = rec.OriginalFilename
		}

		detail := ""
		switch {
		case result.Recovered:
			detail = "recovered"
		case result.Step != "":
			detail = "failed at " + result.Step
		}
		rows = append(rows, []string{id, name, string(result.Status), detail})
	}

	headers := []string{"ID", "NAME", "STATUS", "DETAIL"}
	if isTerminal(w) {
		fmt.Fprintln(w, renderTable(headers, rows))
	} else {
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row[0], row[1], row[2], row[3])
		}
	}

	fmt.Fprintf(w, "\nTotal: %d  Completed: %d  Failed: %d\n",
		summary.TotalDocuments, summary.Completed(), summary.Failed())

	artifacts := store.FinalArtifacts()
	if len(artifacts) == 0 {
		return
	}

	fmt.Fprintln(w, "\nGenerated artifacts:")
	docIDs := make([]string, 0, len(artifacts))
	for id := range artifacts {
		docIDs = append(docIDs, id)
	}
	sort.Strings(docIDs)
	for _, id := range docIDs {
		fmt.Fprintf(w, "\n%s:\n", id)
		for _, step := range state.Steps() {
			if path, ok := artifacts[id][step]; ok {
				fmt.Fprintf(w, "  %-9s %s\n", step+":", path)
			}
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

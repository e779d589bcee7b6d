package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/confirm-cli/internal/model"
	"github.com/sells-group/confirm-cli/internal/store"
)

var statusRunLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-field extraction and validation counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		summary, err := st.Summary(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		formatSummary(os.Stdout, summary)

		runs, err := st.ListRuns(ctx, statusRunLimit)
		if err != nil {
			return eris.Wrap(err, "status: list runs")
		}
		if len(runs) > 0 {
			fmt.Fprintln(os.Stdout)
			formatRuns(os.Stdout, runs)
		}
		return nil
	},
}

func formatSummary(out io.Writer, summary []store.FieldSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tSOURCED\tEXTRACTED\tPENDING\tMATCHED\tUNMATCHED")
	_, _ = fmt.Fprintln(w, "-----\t-------\t---------\t-------\t-------\t---------")
	for _, s := range summary {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
			s.Field, s.Sourced, s.Extracted, s.Pending(), s.Matched, s.Unmatched)
	}
	_ = w.Flush()
}

func formatRuns(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tKIND\tSTATUS\tSTARTED\tDURATION\tUPDATED\tFAILURES")
	_, _ = fmt.Fprintln(w, "---\t----\t------\t-------\t--------\t-------\t--------")
	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			shortID(r.ID), r.Kind, r.Status,
			r.StartedAt.Format("2006-01-02 15:04:05"), dur,
			r.FieldsUpdated, r.Failures)
	}
	_ = w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	statusCmd.Flags().IntVar(&statusRunLimit, "runs", 10, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}

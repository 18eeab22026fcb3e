package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/audit"
	"github.com/mercadototal/cvm-ingest/internal/model"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent ingestion audit rows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		rows, err := audit.Recent(ctx, pool, statusLimit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			zap.L().Info("no audit rows found, run a task first")
			return nil
		}

		formatAuditRows(cmd.OutOrStdout(), rows)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 50, "number of rows to show")
	rootCmd.AddCommand(statusCmd)
}

// formatAuditRows writes a tabular view of audit rows to out.
func formatAuditRows(out io.Writer, rows []model.IngestionAudit) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTASK\tKIND\tSUB-KIND\tYEAR\tSTATUS\tSTARTED\tDURATION\tREAD\tWRITTEN\tREJECTED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t--------\t----\t------\t-------\t--------\t----\t-------\t--------\t-----")

	for _, r := range rows {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		errMsg := ""
		if r.ErrorSummary != nil {
			errMsg = truncate(*r.ErrorSummary, 60)
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID,
			r.Task,
			r.ReportKind,
			r.SubKind,
			r.Year,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			r.RowsRead,
			r.RowsWritten,
			r.RowsRejected,
			errMsg,
		)
	}
	_ = w.Flush()
}

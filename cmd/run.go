package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/ingest"
	"github.com/mercadototal/cvm-ingest/internal/insider"
)

// runTask executes one ingestion task and prints its summary, also when the
// run stopped early.
func runTask(ctx context.Context, out io.Writer, opts ingest.RunOptions) error {
	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	builder, err := newBuilder(ctx, env)
	if err != nil {
		return err
	}

	engine := ingest.NewEngine(env.Pool, env.Archives, env.Catalog, env.Registry, builder, ingest.Config{
		StartYear:         cfg.Ingest.StartYear,
		FetchDelay:        cfg.Ingest.FetchDelay(),
		ChunkSize:         cfg.Ingest.ChunkSize,
		AutoAdmit:         cfg.Universe.AutoAdmit,
		ExtractInsiders:   cfg.Insider.Enabled,
		MaxDocuments:      cfg.Insider.MaxDocuments,
		InsiderCategories: cfg.Insider.Categories,
	})
	if cfg.Insider.Enabled {
		engine.WithExtractor(insider.NewPDFExtractor(env.HTTP, insider.NewPdfToText(cfg.Insider.PdfToTextPath), ""))
	}

	sum, err := engine.Run(ctx, opts)
	if sum != nil {
		printSummary(out, sum)
	}
	if err != nil {
		return err
	}
	if n := sum.Failed(); n > 0 {
		zap.L().Warn("run finished with failed units", zap.Int("failed", n), zap.String("run_id", sum.RunID))
	}
	return nil
}

// printSummary writes one line per audited unit followed by the totals.
func printSummary(out io.Writer, sum *ingest.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Task: %s  Run: %s\n\n", sum.Task, sum.RunID)
	_, _ = fmt.Fprintln(w, "KIND\tSUB-KIND\tYEAR\tREAD\tWRITTEN\tREJECTED\tSTATUS\tERROR")
	_, _ = fmt.Fprintln(w, "----\t--------\t----\t----\t-------\t--------\t------\t-----")
	for _, u := range sum.Units {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			u.ReportKind, u.SubKind, u.Year, u.RowsRead, u.RowsWritten, u.RowsRejected, u.Status, truncate(u.Error, 60))
	}
	read, written, rejected := sum.Totals()
	_, _ = fmt.Fprintf(w, "TOTAL\t\t\t%d\t%d\t%d\t%d failed\t\n", read, written, rejected, sum.Failed())
	_ = w.Flush()

	if sum.Admitted > 0 || sum.Queued > 0 {
		_, _ = fmt.Fprintf(out, "\nAdmitted: %d  Queued for admission: %d\n", sum.Admitted, sum.Queued)
	}
	if sum.Extracted > 0 {
		_, _ = fmt.Fprintf(out, "Insider documents extracted: %d\n", sum.Extracted)
	}
	if sum.Interrupted {
		_, _ = fmt.Fprintln(out, "\nRun interrupted; completed units are committed.")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mercadototal/cvm-ingest/internal/ingest"
	"github.com/mercadototal/cvm-ingest/internal/model"
)

func TestPrintSummary(t *testing.T) {
	sum := &ingest.Summary{
		RunID: "5f1c",
		Task:  ingest.HistoricalFinancials,
		Units: []ingest.UnitResult{
			{ReportKind: "DFP", SubKind: "BPA_con", Year: 2023, Status: model.UnitComplete, RowsRead: 100, RowsWritten: 98, RowsRejected: 2},
			{ReportKind: "ITR", SubKind: "archive", Year: 2023, Status: model.UnitFailed, Error: strings.Repeat("x", 80)},
		},
		Queued: 3,
	}

	var buf bytes.Buffer
	printSummary(&buf, sum)
	out := buf.String()

	assert.Contains(t, out, "historical-financials")
	assert.Contains(t, out, "BPA_con")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "Queued for admission: 3")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, strings.Repeat("x", 80))
	assert.NotContains(t, out, "interrupted")
}

func TestPrintSummary_Interrupted(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &ingest.Summary{Task: ingest.DailyUpdate, Interrupted: true})
	assert.Contains(t, buf.String(), "Run interrupted")
	assert.Contains(t, buf.String(), "SUB-KIND")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

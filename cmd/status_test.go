package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mercadototal/cvm-ingest/internal/model"
)

func TestFormatAuditRows_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatAuditRows(&buf, nil)

	out := buf.String()
	assert.Contains(t, out, "SUB-KIND")
	assert.Contains(t, out, "STATUS")
}

func TestFormatAuditRows(t *testing.T) {
	started := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	msg := "warehouse: write financial_statements year 2023: commit tx"

	rows := []model.IngestionAudit{
		{ID: 7, Task: "historical-financials", ReportKind: "DFP", SubKind: "BPA_con", Year: 2023,
			Status: model.UnitComplete, StartedAt: started, FinishedAt: &finished, RowsRead: 5000, RowsWritten: 4990, RowsRejected: 10},
		{ID: 8, Task: "historical-financials", ReportKind: "DFP", SubKind: "BPP_con", Year: 2023,
			Status: model.UnitRunning, StartedAt: started, ErrorSummary: &msg},
	}

	var buf bytes.Buffer
	formatAuditRows(&buf, rows)
	out := buf.String()

	assert.Contains(t, out, "BPA_con")
	assert.Contains(t, out, "2025-01-15 10:30")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "4990")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "commit tx")
}

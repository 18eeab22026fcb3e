package model

import (
	"encoding/json"
	"time"
)

// UnitStatus is the outcome of one (task, sub-kind, year) unit.
type UnitStatus string

const (
	UnitRunning      UnitStatus = "running"
	UnitComplete     UnitStatus = "complete"
	UnitFailed       UnitStatus = "failed"
	UnitNotPublished UnitStatus = "not-published"
	UnitSkipped      UnitStatus = "skipped"
)

// IngestionAudit is one row of ingestion_audit.
type IngestionAudit struct {
	ID           int64           `db:"id" json:"id"`
	RunID        string          `db:"run_id" json:"run_id"`
	Task         string          `db:"task" json:"task"`
	ReportKind   string          `db:"report_kind" json:"report_kind"`
	SubKind      string          `db:"sub_kind" json:"sub_kind"`
	Year         int             `db:"year" json:"year"`
	Status       UnitStatus      `db:"status" json:"status"`
	StartedAt    time.Time       `db:"started_at" json:"started_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	RowsRead     int64           `db:"rows_read" json:"rows_read"`
	RowsWritten  int64           `db:"rows_written" json:"rows_written"`
	RowsRejected int64           `db:"rows_rejected" json:"rows_rejected"`
	ErrorSummary *string         `db:"error_summary" json:"error_summary,omitempty"`
	Detail       json.RawMessage `db:"detail" json:"detail,omitempty"`
}

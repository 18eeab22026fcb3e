// Package audit records one ingestion_audit row per processed unit.
package audit

import (
	"context"
	"errors"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/mercadototal/cvm-ingest/internal/db"
	"github.com/mercadototal/cvm-ingest/internal/model"
)

// Universe audit rows carry the curated-universe fingerprint.
const (
	UniverseTask    = "masterlist"
	UniverseSubKind = "universe"
)

// Unit identifies one (report kind, sub-kind, year) of a task.
type Unit struct {
	ReportKind string
	SubKind    string
	Year       int
}

// Detail is the JSON payload of an audit row.
type Detail struct {
	Member      string         `json:"member,omitempty"`
	Rejects     map[string]int `json:"rejects,omitempty"`
	Unknown     []string       `json:"unknown_columns,omitempty"`
	ArchiveSize int64          `json:"archive_size,omitempty"`
	CacheHit    bool           `json:"cache_hit,omitempty"`
	Lenient     bool           `json:"lenient_parse,omitempty"`
	BadLines    int            `json:"bad_lines,omitempty"`
	Skipped     int            `json:"skipped,omitempty"`
	Pending     int            `json:"pending_admissions,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
}

// Result is the outcome passed to Finish.
type Result struct {
	RowsRead     int64
	RowsWritten  int64
	RowsRejected int64
	Detail       Detail
}

// Log writes the audit rows of one run.
type Log struct {
	pool  db.Pool
	runID string
	task  string
}

// New starts a run of task with a fresh run id.
func New(pool db.Pool, task string) *Log {
	return &Log{pool: pool, runID: uuid.NewString(), task: task}
}

// RunID returns the run's identifier.
func (l *Log) RunID() string { return l.runID }

// Task returns the task name.
func (l *Log) Task() string { return l.task }

// Start inserts a running row for u and returns its id.
func (l *Log) Start(ctx context.Context, u Unit) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO ingestion_audit (run_id, task, report_kind, sub_kind, year, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now()) RETURNING id`,
		l.runID, l.task, u.ReportKind, u.SubKind, u.Year, string(model.UnitRunning),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "audit: start %s/%s %d", u.ReportKind, u.SubKind, u.Year)
	}
	return id, nil
}

// Finish closes a running row with its final status.
func (l *Log) Finish(ctx context.Context, id int64, status model.UnitStatus, res Result, errMsg string) error {
	detail, err := json.Marshal(res.Detail)
	if err != nil {
		return eris.Wrap(err, "audit: marshal detail")
	}

	_, err = l.pool.Exec(ctx,
		`UPDATE ingestion_audit
		 SET status = $1, finished_at = now(), rows_read = $2, rows_written = $3,
		     rows_rejected = $4, error_summary = $5, detail = $6
		 WHERE id = $7`,
		string(status), res.RowsRead, res.RowsWritten, res.RowsRejected, nullable(errMsg), detail, id,
	)
	if err != nil {
		return eris.Wrapf(err, "audit: finish unit %d", id)
	}
	return nil
}

// Record writes an already finished unit in one statement, for units that
// never started work such as unpublished archives.
func (l *Log) Record(ctx context.Context, u Unit, status model.UnitStatus, res Result, errMsg string) error {
	detail, err := json.Marshal(res.Detail)
	if err != nil {
		return eris.Wrap(err, "audit: marshal detail")
	}

	_, err = l.pool.Exec(ctx,
		`INSERT INTO ingestion_audit
		 (run_id, task, report_kind, sub_kind, year, status, started_at, finished_at,
		  rows_read, rows_written, rows_rejected, error_summary, detail)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now(), $7, $8, $9, $10, $11)`,
		l.runID, l.task, u.ReportKind, u.SubKind, u.Year, string(status),
		res.RowsRead, res.RowsWritten, res.RowsRejected, nullable(errMsg), detail,
	)
	if err != nil {
		return eris.Wrapf(err, "audit: record %s/%s %d", u.ReportKind, u.SubKind, u.Year)
	}
	return nil
}

// Recent returns the latest audit rows, newest first.
func Recent(ctx context.Context, pool db.Pool, limit int) ([]model.IngestionAudit, error) {
	var rows []model.IngestionAudit
	err := pgxscan.Select(ctx, pool, &rows,
		`SELECT id, run_id::text AS run_id, task, report_kind, sub_kind, year, status, started_at, finished_at,
		        rows_read, rows_written, rows_rejected, error_summary, detail
		 FROM ingestion_audit ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "audit: list recent")
	}
	return rows, nil
}

// LastFingerprint returns the universe fingerprint of the latest successful
// master-list build, or "" when none was recorded.
func LastFingerprint(ctx context.Context, pool db.Pool) (string, error) {
	var fp *string
	err := pool.QueryRow(ctx,
		`SELECT detail->>'fingerprint' FROM ingestion_audit
		 WHERE task = $1 AND sub_kind = $2 AND status = $3
		 ORDER BY started_at DESC, id DESC LIMIT 1`,
		UniverseTask, UniverseSubKind, string(model.UnitComplete),
	).Scan(&fp)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "audit: last universe fingerprint")
	}
	if fp == nil {
		return "", nil
	}
	return *fp, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

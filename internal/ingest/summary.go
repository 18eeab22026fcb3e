package ingest

import (
	"github.com/mercadototal/cvm-ingest/internal/audit"
	"github.com/mercadototal/cvm-ingest/internal/model"
)

// UnitResult is one audited unit of a run.
type UnitResult struct {
	ReportKind   string
	SubKind      string
	Year         int
	Status       model.UnitStatus
	RowsRead     int64
	RowsWritten  int64
	RowsRejected int64
	Error        string
}

// Summary is what a run did, unit by unit.
type Summary struct {
	RunID       string
	Task        Task
	Units       []UnitResult
	Admitted    int
	Queued      int64
	Extracted   int
	Interrupted bool
}

func (s *Summary) add(u audit.Unit, status model.UnitStatus, res audit.Result, errMsg string) {
	s.Units = append(s.Units, UnitResult{
		ReportKind:   u.ReportKind,
		SubKind:      u.SubKind,
		Year:         u.Year,
		Status:       status,
		RowsRead:     res.RowsRead,
		RowsWritten:  res.RowsWritten,
		RowsRejected: res.RowsRejected,
		Error:        errMsg,
	})
}

// Failed counts failed units.
func (s *Summary) Failed() int {
	n := 0
	for _, u := range s.Units {
		if u.Status == model.UnitFailed {
			n++
		}
	}
	return n
}

// Totals sums the row counters over every unit.
func (s *Summary) Totals() (read, written, rejected int64) {
	for _, u := range s.Units {
		read += u.RowsRead
		written += u.RowsWritten
		rejected += u.RowsRejected
	}
	return read, written, rejected
}

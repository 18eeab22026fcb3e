// Package ingest runs the ingestion tasks: it walks years and report kinds,
// turns each archive member into typed rows and writes them year by year.
package ingest

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mercadototal/cvm-ingest/internal/catalog"
)

// ErrInvalidOptions marks a run request that cannot be honored as given.
var ErrInvalidOptions = eris.New("ingest: invalid options")

// Task is one of the closed set of ingestion tasks.
type Task string

// Tasks.
const (
	HistoricalFinancials    Task = "historical-financials"
	HistoricalReferenceForm Task = "historical-reference-form"
	DailyUpdate             Task = "daily-update"
	CompanyDeepDive         Task = "company-deep-dive"
)

var allKinds = []string{
	catalog.DFP, catalog.ITR, catalog.FRE, catalog.IPE, catalog.VLMO,
	catalog.Proventos, catalog.CapitalComp, catalog.CorporateEvent, catalog.Issuance,
}

var taskKinds = map[Task][]string{
	HistoricalFinancials:    {catalog.DFP, catalog.ITR},
	HistoricalReferenceForm: {catalog.FRE},
	DailyUpdate:             allKinds,
	CompanyDeepDive:         allKinds,
}

// Tasks lists every task name.
func Tasks() []Task {
	return []Task{HistoricalFinancials, HistoricalReferenceForm, DailyUpdate, CompanyDeepDive}
}

// ParseTask validates a task name.
func ParseTask(s string) (Task, error) {
	t := Task(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := taskKinds[t]; !ok {
		return "", eris.Wrapf(ErrInvalidOptions, "unknown task %q", s)
	}
	return t, nil
}

// Kinds returns the report kinds the task ingests.
func (t Task) Kinds() []string { return slices.Clone(taskKinds[t]) }

// extractsInsiders reports whether the task runs document extraction after
// the filings index.
func (t Task) extractsInsiders() bool {
	return t == DailyUpdate || t == CompanyDeepDive
}

// RunOptions select what a run ingests.
type RunOptions struct {
	Task    Task
	Year    int // zero means the task's default range
	CVMCode int // required by CompanyDeepDive
}

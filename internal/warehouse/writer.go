package warehouse

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/db"
	"github.com/mercadototal/cvm-ingest/internal/model"
)

// Writer performs transactional, scope-replacing writes.
type Writer struct {
	pool      db.Pool
	chunkSize int
	log       *zap.Logger
}

// NewWriter returns a Writer. A chunkSize <= 0 uses db.DefaultChunkSize.
func NewWriter(pool db.Pool, chunkSize int) *Writer {
	return &Writer{
		pool:      pool,
		chunkSize: chunkSize,
		log:       zap.L().With(zap.String("component", "warehouse")),
	}
}

// WriteYear stages the batch and, in one transaction, deletes the target rows
// in the batch's scope before inserting the staged rows. Natural-key tables
// are replaced row by row on their key. It returns the rows written.
func (w *Writer) WriteYear(ctx context.Context, b Batch, year int) (int64, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	scope := b.Spec.Scope
	if b.Spec.NaturalKey {
		scope = Scope{}
	}

	n, err := w.replace(ctx, b, scope)
	if err != nil {
		return 0, eris.Wrapf(err, "warehouse: write %s year %d", b.Spec.Name, year)
	}
	w.log.Debug("year written",
		zap.String("table", b.Spec.Name),
		zap.Int("year", year),
		zap.Int("staged", b.Len()),
		zap.Int64("written", n),
	)
	return n, nil
}

// ReplaceBy replaces every target row sharing the given columns with a
// staged row, whatever its year.
func (w *Writer) ReplaceBy(ctx context.Context, b Batch, cols ...string) (int64, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	n, err := w.replace(ctx, b, Scope{Columns: cols})
	if err != nil {
		return 0, eris.Wrapf(err, "warehouse: replace %s by %s", b.Spec.Name, strings.Join(cols, ","))
	}
	return n, nil
}

func (w *Writer) replace(ctx context.Context, b Batch, scope Scope) (int64, error) {
	spec := b.Spec
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	temp := db.TempTableName("write", spec.Name)
	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{temp}.Sanitize(), db.SanitizeTable(spec.Name))
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrap(err, "create staging table")
	}

	if _, err := db.CopyChunks(ctx, tx, temp, b.Columns, b.Rows, w.chunkSize); err != nil {
		return 0, eris.Wrap(err, "stage rows")
	}

	if del := deleteSQL(spec, temp, scope); del != "" {
		tag, err := tx.Exec(ctx, del)
		if err != nil {
			return 0, eris.Wrap(err, "delete scope")
		}
		w.log.Debug("scope cleared", zap.String("table", spec.Name), zap.Int64("deleted", tag.RowsAffected()))
	}

	tag, err := tx.Exec(ctx, insertSQL(spec, temp, b.Columns))
	if err != nil {
		return 0, eris.Wrap(err, "insert staged rows")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "commit tx")
	}
	return tag.RowsAffected(), nil
}

// deleteSQL removes target rows matching the scope of any staged row.
func deleteSQL(spec *Spec, temp string, scope Scope) string {
	if len(scope.Columns) == 0 && scope.DateColumn == "" {
		return ""
	}

	sel := make([]string, 0, len(scope.Columns)+1)
	conds := make([]string, 0, len(scope.Columns)+1)
	for _, c := range scope.Columns {
		q := pgx.Identifier{c}.Sanitize()
		sel = append(sel, q)
		conds = append(conds, fmt.Sprintf("t.%s IS NOT DISTINCT FROM s.%s", q, q))
	}
	if scope.DateColumn != "" {
		q := pgx.Identifier{scope.DateColumn}.Sanitize()
		sel = append(sel, fmt.Sprintf("EXTRACT(YEAR FROM %s)::int AS scope_year", q))
		conds = append(conds, fmt.Sprintf("EXTRACT(YEAR FROM t.%s)::int = s.scope_year", q))
	}

	return fmt.Sprintf("DELETE FROM %s t USING (SELECT DISTINCT %s FROM %s) s WHERE %s",
		db.SanitizeTable(spec.Name),
		strings.Join(sel, ", "),
		pgx.Identifier{temp}.Sanitize(),
		strings.Join(conds, " AND "),
	)
}

// insertSQL moves staged rows into the target. Rows outranked by a higher
// version are dropped, duplicates of the key keep the highest version, and a
// surviving conflict with an existing row updates it.
func insertSQL(spec *Spec, temp string, cols []string) string {
	qualified := make([]string, len(cols))
	for i, c := range cols {
		qualified[i] = "s." + pgx.Identifier{c}.Sanitize()
	}
	tempID := pgx.Identifier{temp}.Sanitize()

	var where string
	if spec.VersionColumn != "" && len(spec.Supersede) > 0 {
		v := pgx.Identifier{spec.VersionColumn}.Sanitize()
		conds := make([]string, 0, len(spec.Supersede)+1)
		for _, c := range spec.Supersede {
			q := pgx.Identifier{c}.Sanitize()
			conds = append(conds, fmt.Sprintf("n.%s IS NOT DISTINCT FROM s.%s", q, q))
		}
		conds = append(conds, fmt.Sprintf("COALESCE(n.%s, 0) > COALESCE(s.%s, 0)", v, v))
		where = fmt.Sprintf(" WHERE NOT EXISTS (SELECT 1 FROM %s n WHERE %s)", tempID, strings.Join(conds, " AND "))
	}

	if len(spec.Key) == 0 {
		return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s s%s",
			db.SanitizeTable(spec.Name), quoteJoin(cols), strings.Join(qualified, ", "), tempID, where)
	}

	keys := make([]string, len(spec.Key))
	for i, k := range spec.Key {
		keys[i] = "s." + pgx.Identifier{k}.Sanitize()
	}
	order := strings.Join(keys, ", ")
	if spec.VersionColumn != "" {
		order += ", s." + pgx.Identifier{spec.VersionColumn}.Sanitize() + " DESC NULLS LAST"
	}

	action := "DO NOTHING"
	var sets []string
	for _, c := range cols {
		if slices.Contains(spec.Key, c) {
			continue
		}
		q := pgx.Identifier{c}.Sanitize()
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	return fmt.Sprintf("INSERT INTO %s (%s) SELECT DISTINCT ON (%s) %s FROM %s s%s ORDER BY %s ON CONFLICT (%s) %s",
		db.SanitizeTable(spec.Name),
		quoteJoin(cols),
		strings.Join(keys, ", "),
		strings.Join(qualified, ", "),
		tempID,
		where,
		order,
		quoteJoin(spec.Key),
		action,
	)
}

// account codes feeding the flattened report aggregates
var reportAggregates = []struct {
	column string
	code   string
}{
	{"total_assets", "1"},
	{"current_assets", "1.01"},
	{"equity", "2.03"},
	{"revenue", "3.01"},
	{"gross_profit", "3.03"},
	{"operating_profit", "3.05"},
	{"net_income", "3.11"},
	{"operating_cash_flow", "6.01"},
	{"investing_cash_flow", "6.02"},
	{"financing_cash_flow", "6.03"},
}

func refreshReportsSQL() string {
	cols := make([]string, len(reportAggregates))
	aggs := make([]string, len(reportAggregates))
	sets := make([]string, len(reportAggregates))
	for i, a := range reportAggregates {
		cols[i] = a.column
		aggs[i] = fmt.Sprintf("max(s.value) FILTER (WHERE s.account_code = '%s')", a.code)
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", a.column, a.column)
	}

	return fmt.Sprintf(`INSERT INTO financial_reports
	(company_id, report_kind, consolidation, reference_date, version, accounts, %s, updated_at)
SELECT s.company_id, s.report_kind, s.consolidation, s.reference_date, s.version,
	jsonb_object_agg(s.account_code, jsonb_build_object('description', s.account_description, 'value', s.value)),
	%s,
	now()
FROM financial_statements s
WHERE s.report_kind = $1
	AND EXTRACT(YEAR FROM s.reference_date)::int = $2
	AND s.fiscal_order = 'last'
	AND s.column_label = ''
GROUP BY s.company_id, s.report_kind, s.consolidation, s.reference_date, s.version
ON CONFLICT (company_id, report_kind, consolidation, reference_date, version)
DO UPDATE SET accounts = EXCLUDED.accounts, %s, updated_at = now()`,
		strings.Join(cols, ", "), strings.Join(aggs, ",\n\t"), strings.Join(sets, ", "))
}

const orphanReportsSQL = `DELETE FROM financial_reports r
WHERE r.report_kind = $1
	AND EXTRACT(YEAR FROM r.reference_date)::int = $2
	AND NOT EXISTS (
		SELECT 1 FROM financial_statements s
		WHERE s.company_id = r.company_id
			AND s.report_kind = r.report_kind
			AND s.consolidation = r.consolidation
			AND s.reference_date = r.reference_date
			AND s.version = r.version
	)`

// RefreshReports rebuilds financial_reports from the statement lines of one
// report kind and year.
func (w *Writer) RefreshReports(ctx context.Context, reportKind string, year int) (int64, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "warehouse: refresh reports: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, orphanReportsSQL, reportKind, year); err != nil {
		return 0, eris.Wrapf(err, "warehouse: refresh reports: prune %s %d", reportKind, year)
	}
	tag, err := tx.Exec(ctx, refreshReportsSQL(), reportKind, year)
	if err != nil {
		return 0, eris.Wrapf(err, "warehouse: refresh reports: build %s %d", reportKind, year)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "warehouse: refresh reports: commit tx")
	}

	w.log.Info("reports refreshed",
		zap.String("report_kind", reportKind),
		zap.Int("year", year),
		zap.Int64("reports", tag.RowsAffected()),
	)
	return tag.RowsAffected(), nil
}

const availabilitySQL = `UPDATE companies c SET
	has_annual = EXISTS (SELECT 1 FROM financial_reports r WHERE r.company_id = c.id AND r.report_kind = 'annual'),
	has_quarterly = EXISTS (SELECT 1 FROM financial_reports r WHERE r.company_id = c.id AND r.report_kind = 'quarterly'),
	has_reference_form = EXISTS (SELECT 1 FROM shareholders s WHERE s.company_id = c.id)
		OR EXISTS (SELECT 1 FROM administrators a WHERE a.company_id = c.id)
		OR EXISTS (SELECT 1 FROM risk_factors f WHERE f.company_id = c.id),
	last_annual_year = (SELECT max(EXTRACT(YEAR FROM r.reference_date))::int FROM financial_reports r
		WHERE r.company_id = c.id AND r.report_kind = 'annual'),
	last_quarterly_period = (SELECT max(r.reference_date) FROM financial_reports r
		WHERE r.company_id = c.id AND r.report_kind = 'quarterly'),
	updated_at = now()`

// RefreshAvailability recomputes every company's availability flags.
func (w *Writer) RefreshAvailability(ctx context.Context) (int64, error) {
	tag, err := w.pool.Exec(ctx, availabilitySQL)
	if err != nil {
		return 0, eris.Wrap(err, "warehouse: refresh availability")
	}
	return tag.RowsAffected(), nil
}

// SetActivityDescriptions stores the business description of each company.
func (w *Writer) SetActivityDescriptions(ctx context.Context, descriptions map[int64]string) (int64, error) {
	if len(descriptions) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(descriptions))
	for id := range descriptions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	texts := make([]string, len(ids))
	for i, id := range ids {
		texts[i] = descriptions[id]
	}

	tag, err := w.pool.Exec(ctx, `UPDATE companies c
SET activity_description = v.description, updated_at = now()
FROM unnest($1::bigint[], $2::text[]) AS v(id, description)
WHERE c.id = v.id AND c.activity_description IS DISTINCT FROM v.description`, ids, texts)
	if err != nil {
		return 0, eris.Wrap(err, "warehouse: set activity descriptions")
	}
	return tag.RowsAffected(), nil
}

// EnqueuePending records issuers awaiting admission. Already queued
// issuers keep their first sighting.
func (w *Writer) EnqueuePending(ctx context.Context, pending []model.PendingAdmission) (int64, error) {
	b := AdmissionQueue.Bind(pending)
	n, err := db.BulkUpsert(ctx, w.pool, db.UpsertConfig{
		Table:        AdmissionQueue.Name,
		Columns:      b.Columns,
		ConflictKeys: AdmissionQueue.Key,
		UpdateCols:   []string{},
	}, b.Rows)
	if err != nil {
		return 0, eris.Wrap(err, "warehouse: enqueue pending admissions")
	}
	return n, nil
}

// ExtractionBacklog lists filings in the given categories whose insider
// transactions were never extracted, oldest first. A companyID of zero
// selects every company.
func (w *Writer) ExtractionBacklog(ctx context.Context, categories []string, companyID int64, limit int) ([]model.Filing, error) {
	patterns := make([]string, len(categories))
	for i, c := range categories {
		patterns[i] = "%" + c + "%"
	}

	var filings []model.Filing
	err := pgxscan.Select(ctx, w.pool, &filings, `SELECT company_id, reference_date, delivery_date, protocol,
	coalesce(category, '') AS category, coalesce(doc_type, '') AS doc_type, coalesce(species, '') AS species,
	coalesce(subject, '') AS subject, coalesce(source_url, '') AS source_url, source, transactions_extracted, version
FROM filings
WHERE transactions_extracted IS NULL
	AND source_url IS NOT NULL
	AND category ILIKE ANY ($1::text[])
	AND ($2::bigint = 0 OR company_id = $2)
ORDER BY reference_date, protocol
LIMIT $3`, patterns, companyID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: list extraction backlog")
	}
	return filings, nil
}

// MarkExtracted records how many transactions a filing yielded.
func (w *Writer) MarkExtracted(ctx context.Context, protocol string, n int) error {
	if _, err := w.pool.Exec(ctx, "UPDATE filings SET transactions_extracted = $2 WHERE protocol = $1", protocol, n); err != nil {
		return eris.Wrapf(err, "warehouse: mark %s extracted", protocol)
	}
	return nil
}

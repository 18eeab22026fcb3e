package warehouse

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mercadototal/cvm-ingest/internal/model"
)

const companyRef = "companies(id)"

func companyID[T any](get func(*T) int64) Field[T] {
	return field("company_id", "bigint", func(r *T) any { return get(r) }, notNull, references(companyRef))
}

func serialID[T any]() Field[T] {
	return field[T]("id", "bigserial", nil, primaryKey)
}

func createdAt[T any]() Field[T] {
	return field[T]("created_at", "timestamptz", nil, notNull, def("now()"))
}

// Companies is the master list.
var Companies = define(Spec{
	Name: "companies",
	Key:  []string{"cnpj"},
},
	serialID[model.Company](),
	field("cvm_code", "integer", func(c *model.Company) any { return int32(c.CVMCode) }, notNull, unique),
	field("cnpj", "varchar(14)", func(c *model.Company) any { return c.CNPJ }, notNull),
	field("company_name", "text", func(c *model.Company) any { return c.CompanyName }, notNull),
	field("trade_name", "text", func(c *model.Company) any { return nullText(c.TradeName) }),
	field("status", "varchar(16)", func(c *model.Company) any { return string(c.Status) }, notNull, def("'active'")),
	field("origin", "varchar(16)", func(c *model.Company) any {
		if c.Origin == "" {
			return string(model.OriginUniverse)
		}
		return string(c.Origin)
	}, notNull, def("'universe'")),
	field("sector", "text", func(c *model.Company) any { return nullText(c.Sector) }),
	field("sector_tag", "varchar(64)", func(c *model.Company) any { return nullText(c.SectorTag) }),
	field("tickers", "text[]", func(c *model.Company) any {
		if c.Tickers == nil {
			return []string{}
		}
		return c.Tickers
	}, notNull, def("'{}'")),
	field("primary_ticker", "varchar(12)", func(c *model.Company) any { return nullText(c.PrimaryTicker) }),
	field("website", "varchar(255)", func(c *model.Company) any { return nullText(c.Website) }),
	field("registered_at", "date", func(c *model.Company) any { return nullDate(c.RegisteredAt) }),
	field[model.Company]("activity_description", "text", nil),
	field[model.Company]("has_annual", "boolean", nil, notNull, def("false")),
	field[model.Company]("has_quarterly", "boolean", nil, notNull, def("false")),
	field[model.Company]("has_reference_form", "boolean", nil, notNull, def("false")),
	field[model.Company]("last_annual_year", "integer", nil),
	field[model.Company]("last_quarterly_period", "date", nil),
	createdAt[model.Company](),
	field("updated_at", "timestamptz", func(c *model.Company) any { return stamp(c.UpdatedAt) }, notNull, def("now()")),
)

// Statements holds one row per account line of the structured forms. The
// scope carries version, so a newer version never removes an older one.
var Statements = define(Spec{
	Name: "financial_statements",
	Key: []string{"company_id", "report_kind", "statement_type", "consolidation", "reference_date",
		"version", "fiscal_order", "fiscal_year_start", "account_code", "column_label"},
	Scope: Scope{
		Columns:    []string{"company_id", "report_kind", "statement_type", "consolidation", "version"},
		DateColumn: "reference_date",
	},
},
	serialID[model.StatementLine](),
	companyID(func(s *model.StatementLine) int64 { return s.CompanyID }),
	field("report_kind", "varchar(16)", func(s *model.StatementLine) any { return s.ReportKind }, notNull),
	field("statement_type", "varchar(8)", func(s *model.StatementLine) any { return s.StatementType }, notNull),
	field("consolidation", "varchar(16)", func(s *model.StatementLine) any { return s.Consolidation }, notNull),
	field("reference_date", "date", func(s *model.StatementLine) any { return date(s.ReferenceDate) }, notNull),
	field("fiscal_year_start", "date", func(s *model.StatementLine) any { return nullDate(s.FiscalYearStart) }),
	field("fiscal_year_end", "date", func(s *model.StatementLine) any { return date(s.FiscalYearEnd) }, notNull),
	field("version", "integer", func(s *model.StatementLine) any { return int32(s.Version) }, notNull),
	field("fiscal_order", "varchar(16)", func(s *model.StatementLine) any { return s.FiscalOrder }, notNull),
	field("account_code", "varchar(32)", func(s *model.StatementLine) any { return s.AccountCode }, notNull),
	field("account_description", "text", func(s *model.StatementLine) any { return nullText(s.AccountDescription) }),
	field("column_label", "text", func(s *model.StatementLine) any { return s.ColumnLabel }, notNull, def("''")),
	field("value", "numeric", func(s *model.StatementLine) any { return numeric(s.Value) }, notNull),
	field("currency", "varchar(8)", func(s *model.StatementLine) any { return nullText(s.Currency) }),
	field("currency_scale", "varchar(16)", func(s *model.StatementLine) any { return nullText(s.CurrencyScale) }),
	field("is_fixed_account", "boolean", func(s *model.StatementLine) any { return nullBool(s.IsFixedAccount) }),
	createdAt[model.StatementLine](),
)

// Reports is rebuilt in SQL from Statements; see Writer.RefreshReports.
var Reports = define(Spec{
	Name: "financial_reports",
	Key:  []string{"company_id", "report_kind", "consolidation", "reference_date", "version"},
},
	serialID[model.FinancialReport](),
	companyID(func(r *model.FinancialReport) int64 { return r.CompanyID }),
	field("report_kind", "varchar(16)", func(r *model.FinancialReport) any { return r.ReportKind }, notNull),
	field("consolidation", "varchar(16)", func(r *model.FinancialReport) any { return r.Consolidation }, notNull),
	field("reference_date", "date", func(r *model.FinancialReport) any { return date(r.ReferenceDate) }, notNull),
	field("version", "integer", func(r *model.FinancialReport) any { return int32(r.Version) }, notNull),
	field[model.FinancialReport]("accounts", "jsonb", nil, notNull, def("'{}'")),
	field("total_assets", "numeric", func(r *model.FinancialReport) any { return nullNumeric(r.TotalAssets) }),
	field("current_assets", "numeric", func(r *model.FinancialReport) any { return nullNumeric(r.CurrentAssets) }),
	field("equity", "numeric", func(r *model.FinancialReport) any { return nullNumeric(r.Equity) }),
	field("revenue", "numeric", func(r *model.FinancialReport) any { return nullNumeric(r.Revenue) }),
	field("gross_profit", "numeric", func(r *model.FinancialReport) any { return nullNumeric(r.GrossProfit) }),
	field("operating_profit", "numeric", func(r *model.FinancialReport) any { return nullNumeric(r.OperatingProfit) }),
	field("net_income", "numeric", func(r *model.FinancialReport) any { return nullNumeric(r.NetIncome) }),
	field("operating_cash_flow", "numeric", func(r *model.FinancialReport) any { return nullNumeric(r.OperatingCashFlow) }),
	field("investing_cash_flow", "numeric", func(r *model.FinancialReport) any { return nullNumeric(r.InvestingCashFlow) }),
	field("financing_cash_flow", "numeric", func(r *model.FinancialReport) any { return nullNumeric(r.FinancingCashFlow) }),
	field[model.FinancialReport]("updated_at", "timestamptz", nil, notNull, def("now()")),
)

// CapitalEvents merges four sources; source is part of both key and scope.
var CapitalEvents = define(Spec{
	Name:          "capital_events",
	Key:           []string{"company_id", "approval_date", "event_type", "source"},
	Scope:         Scope{Columns: []string{"company_id", "source"}, DateColumn: "approval_date"},
	VersionColumn: "version",
	Supersede:     []string{"company_id", "source", "reference_date"},
},
	serialID[model.CapitalEvent](),
	companyID(func(e *model.CapitalEvent) int64 { return e.CompanyID }),
	field("approval_date", "date", func(e *model.CapitalEvent) any { return date(e.ApprovalDate) }, notNull),
	field("event_type", "varchar(32)", func(e *model.CapitalEvent) any { return e.EventType }, notNull),
	field("value", "numeric", func(e *model.CapitalEvent) any { return nullNumeric(e.Value) }),
	field("quantity_common", "bigint", func(e *model.CapitalEvent) any { return nullBigint(e.QuantityCommon) }),
	field("quantity_preferred", "bigint", func(e *model.CapitalEvent) any { return nullBigint(e.QuantityPreferred) }),
	field("quantity_total", "bigint", func(e *model.CapitalEvent) any { return nullBigint(e.QuantityTotal) }),
	field("source", "varchar(32)", func(e *model.CapitalEvent) any { return e.Source }, notNull),
	field("reference_date", "date", func(e *model.CapitalEvent) any { return nullDate(e.ReferenceDate) }),
	field("version", "integer", func(e *model.CapitalEvent) any { return nullInt(e.Version) }),
	createdAt[model.CapitalEvent](),
)

// reference-form tables: one filing per company and reference date, the
// highest version replacing lower ones
var formScope = Scope{Columns: []string{"company_id"}, DateColumn: "reference_date"}
var formSupersede = []string{"company_id", "reference_date"}

var Shareholders = define(Spec{
	Name:          "shareholders",
	Scope:         formScope,
	VersionColumn: "version",
	Supersede:     formSupersede,
},
	serialID[model.Shareholder](),
	companyID(func(s *model.Shareholder) int64 { return s.CompanyID }),
	field("reference_date", "date", func(s *model.Shareholder) any { return date(s.ReferenceDate) }, notNull),
	field("version", "integer", func(s *model.Shareholder) any { return nullInt(s.Version) }),
	field("name", "text", func(s *model.Shareholder) any { return s.Name }, notNull),
	field("person_type", "varchar(16)", func(s *model.Shareholder) any { return nullText(s.PersonType) }),
	field("document", "varchar(14)", func(s *model.Shareholder) any { return nullText(s.Document) }),
	field("is_controller", "boolean", func(s *model.Shareholder) any { return nullBool(s.IsController) }),
	field("pct_common", "numeric", func(s *model.Shareholder) any { return nullNumeric(s.PctCommon) }),
	field("pct_preferred", "numeric", func(s *model.Shareholder) any { return nullNumeric(s.PctPreferred) }),
	field("pct_total", "numeric", func(s *model.Shareholder) any { return nullNumeric(s.PctTotal) }),
	createdAt[model.Shareholder](),
)

// Administrators come from two reference-form members; body tells them apart
// in both scope and supersede.
var Administrators = define(Spec{
	Name:          "administrators",
	Scope:         Scope{Columns: []string{"company_id", "body"}, DateColumn: "reference_date"},
	VersionColumn: "version",
	Supersede:     []string{"company_id", "body", "reference_date"},
},
	serialID[model.Administrator](),
	companyID(func(a *model.Administrator) int64 { return a.CompanyID }),
	field("body", "varchar(64)", func(a *model.Administrator) any { return a.Body }, notNull, def("''")),
	field("reference_date", "date", func(a *model.Administrator) any { return date(a.ReferenceDate) }, notNull),
	field("version", "integer", func(a *model.Administrator) any { return nullInt(a.Version) }),
	field("name", "text", func(a *model.Administrator) any { return a.Name }, notNull),
	field("position", "text", func(a *model.Administrator) any { return nullText(a.Position) }),
	field("role", "text", func(a *model.Administrator) any { return nullText(a.Role) }),
	field("election_date", "date", func(a *model.Administrator) any { return nullDate(a.ElectionDate) }),
	field("term_of_office", "text", func(a *model.Administrator) any { return nullText(a.TermOfOffice) }),
	field("biography", "text", func(a *model.Administrator) any { return nullText(a.Biography) }),
	createdAt[model.Administrator](),
)

var RiskFactors = define(Spec{
	Name:          "risk_factors",
	Scope:         formScope,
	VersionColumn: "version",
	Supersede:     formSupersede,
},
	serialID[model.RiskFactor](),
	companyID(func(r *model.RiskFactor) int64 { return r.CompanyID }),
	field("reference_date", "date", func(r *model.RiskFactor) any { return date(r.ReferenceDate) }, notNull),
	field("version", "integer", func(r *model.RiskFactor) any { return nullInt(r.Version) }),
	field("risk_type", "text", func(r *model.RiskFactor) any { return nullText(r.RiskType) }),
	field("description", "text", func(r *model.RiskFactor) any { return r.Description }, notNull),
	field("mitigation", "text", func(r *model.RiskFactor) any { return nullText(r.Mitigation) }),
	createdAt[model.RiskFactor](),
)

// Filings are replaced by protocol. transactions_extracted is owned by the
// insider extraction step and never bound here.
var Filings = define(Spec{
	Name:          "filings",
	Key:           []string{"protocol"},
	NaturalKey:    true,
	VersionColumn: "version",
},
	serialID[model.Filing](),
	companyID(func(f *model.Filing) int64 { return f.CompanyID }),
	field("reference_date", "date", func(f *model.Filing) any { return date(f.ReferenceDate) }, notNull),
	field("delivery_date", "date", func(f *model.Filing) any { return nullDate(f.DeliveryDate) }),
	field("protocol", "varchar(64)", func(f *model.Filing) any { return f.Protocol }, notNull),
	field("category", "text", func(f *model.Filing) any { return nullText(f.Category) }),
	field("doc_type", "text", func(f *model.Filing) any { return nullText(f.DocType) }),
	field("species", "text", func(f *model.Filing) any { return nullText(f.Species) }),
	field("subject", "text", func(f *model.Filing) any { return nullText(f.Subject) }),
	field("source_url", "text", func(f *model.Filing) any { return nullText(f.SourceURL) }),
	field("source", "varchar(8)", func(f *model.Filing) any { return f.Source }, notNull),
	field[model.Filing]("transactions_extracted", "integer", nil),
	field("version", "integer", func(f *model.Filing) any { return nullInt(f.Version) }),
	createdAt[model.Filing](),
)

// InsiderTransactions from the monthly archive are scoped by source; rows
// extracted from documents are replaced per filing protocol instead.
var InsiderTransactions = define(Spec{
	Name:          "insider_transactions",
	Scope:         Scope{Columns: []string{"company_id", "source"}, DateColumn: "reference_date"},
	VersionColumn: "version",
	Supersede:     []string{"company_id", "source", "reference_date"},
},
	serialID[model.InsiderTransaction](),
	field("filing_protocol", "varchar(64)", func(t *model.InsiderTransaction) any { return t.FilingProtocol }),
	companyID(func(t *model.InsiderTransaction) int64 { return t.CompanyID }),
	field("person_group", "text", func(t *model.InsiderTransaction) any { return nullText(t.PersonGroup) }),
	field("movement_type", "text", func(t *model.InsiderTransaction) any { return nullText(t.MovementType) }),
	field("transaction_date", "date", func(t *model.InsiderTransaction) any { return nullDate(t.TransactionDate) }),
	field("reference_date", "date", func(t *model.InsiderTransaction) any { return date(t.ReferenceDate) }, notNull),
	field("asset_type", "text", func(t *model.InsiderTransaction) any { return nullText(t.AssetType) }),
	field("asset_characteristic", "text", func(t *model.InsiderTransaction) any { return nullText(t.AssetCharacteristic) }),
	field("operation_type", "varchar(8)", func(t *model.InsiderTransaction) any { return t.OperationType }, notNull),
	field("quantity", "bigint", func(t *model.InsiderTransaction) any { return t.Quantity }, notNull),
	field("raw_quantity", "numeric", func(t *model.InsiderTransaction) any { return nullNumeric(t.RawQuantity) }),
	field("unit_price", "numeric", func(t *model.InsiderTransaction) any { return nullNumeric(t.UnitPrice) }),
	field("total_value", "numeric", func(t *model.InsiderTransaction) any { return nullNumeric(t.TotalValue) }),
	field("intermediary", "text", func(t *model.InsiderTransaction) any { return nullText(t.Intermediary) }),
	field("source", "varchar(8)", func(t *model.InsiderTransaction) any { return t.Source }, notNull),
	field("version", "integer", func(t *model.InsiderTransaction) any { return nullInt(t.Version) }),
	createdAt[model.InsiderTransaction](),
)

var Dividends = define(Spec{
	Name:  "dividends",
	Key:   []string{"company_id", "ex_date", "event_type", "ticker", "share_class"},
	Scope: Scope{Columns: []string{"company_id"}, DateColumn: "ex_date"},
},
	serialID[model.Dividend](),
	companyID(func(d *model.Dividend) int64 { return d.CompanyID }),
	field("ticker", "varchar(12)", func(d *model.Dividend) any { return d.Ticker }, notNull, def("''")),
	field("ex_date", "date", func(d *model.Dividend) any { return date(d.ExDate) }, notNull),
	field("payment_date", "date", func(d *model.Dividend) any { return nullDate(d.PaymentDate) }),
	field("declaration_date", "date", func(d *model.Dividend) any { return nullDate(d.DeclarationDate) }),
	field("event_type", "varchar(24)", func(d *model.Dividend) any { return d.EventType }, notNull),
	field("amount_per_share", "numeric", func(d *model.Dividend) any { return numeric(d.AmountPerShare) }, notNull),
	field("total_amount", "numeric", func(d *model.Dividend) any { return nullNumeric(d.TotalAmount) }),
	field("share_class", "varchar(16)", func(d *model.Dividend) any { return d.ShareClass }, notNull, def("''")),
	createdAt[model.Dividend](),
)

// Audit rows are inserted and updated by the audit package one unit at a time.
var Audit = define(Spec{Name: "ingestion_audit"},
	serialID[model.IngestionAudit](),
	field("run_id", "uuid", func(a *model.IngestionAudit) any { return a.RunID }, notNull),
	field("task", "varchar(32)", func(a *model.IngestionAudit) any { return a.Task }, notNull),
	field("report_kind", "varchar(32)", func(a *model.IngestionAudit) any { return a.ReportKind }, notNull),
	field("sub_kind", "varchar(64)", func(a *model.IngestionAudit) any { return a.SubKind }, notNull),
	field("year", "integer", func(a *model.IngestionAudit) any { return int32(a.Year) }, notNull),
	field("status", "varchar(16)", func(a *model.IngestionAudit) any { return string(a.Status) }, notNull),
	field("started_at", "timestamptz", func(a *model.IngestionAudit) any { return stamp(a.StartedAt) }, notNull, def("now()")),
	field("finished_at", "timestamptz", func(a *model.IngestionAudit) any { return nullStamp(a.FinishedAt) }),
	field("rows_read", "bigint", func(a *model.IngestionAudit) any { return a.RowsRead }, notNull, def("0")),
	field("rows_written", "bigint", func(a *model.IngestionAudit) any { return a.RowsWritten }, notNull, def("0")),
	field("rows_rejected", "bigint", func(a *model.IngestionAudit) any { return a.RowsRejected }, notNull, def("0")),
	field("error_summary", "text", func(a *model.IngestionAudit) any { return a.ErrorSummary }),
	field("detail", "jsonb", func(a *model.IngestionAudit) any { return []byte(a.Detail) }),
)

// AdmissionQueue holds issuers seen by ingestion but missing from the master list.
var AdmissionQueue = define(Spec{
	Name: "company_admission_queue",
	Key:  []string{"cnpj"},
},
	field("cnpj", "varchar(14)", func(p *model.PendingAdmission) any { return p.CNPJ }, notNull),
	field("cvm_code", "integer", func(p *model.PendingAdmission) any { return nullInt(p.CVMCode) }),
	field("company_name", "text", func(p *model.PendingAdmission) any { return nullText(p.CompanyName) }),
	field("first_seen_task", "varchar(32)", func(p *model.PendingAdmission) any { return p.FirstSeenTask }, notNull),
	field("first_seen_at", "timestamptz", func(p *model.PendingAdmission) any { return stamp(p.FirstSeenAt) }, notNull, def("now()")),
	field("admitted_at", "timestamptz", func(p *model.PendingAdmission) any { return nullStamp(p.AdmittedAt) }),
)

// Tables lists every table in creation order.
var Tables = []*Spec{
	&Companies.Spec,
	&Statements.Spec,
	&Reports.Spec,
	&CapitalEvents.Spec,
	&Shareholders.Spec,
	&Administrators.Spec,
	&RiskFactors.Spec,
	&Filings.Spec,
	&InsiderTransactions.Spec,
	&Dividends.Spec,
	&Audit.Spec,
	&AdmissionQueue.Spec,
}

func stamp(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		t = time.Now()
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func nullStamp(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report kinds of the structured financial forms.
const (
	ReportAnnual    = "annual"
	ReportQuarterly = "quarterly"
)

// StatementLine is one account line of a financial statement.
type StatementLine struct {
	CompanyID          int64
	ReportKind         string
	StatementType      string
	Consolidation      string
	ReferenceDate      time.Time
	FiscalYearStart    *time.Time
	FiscalYearEnd      time.Time
	Version            int
	FiscalOrder        string
	AccountCode        string
	AccountDescription string
	ColumnLabel        string
	Value              decimal.Decimal
	Currency           string
	CurrencyScale      string
	IsFixedAccount     *bool
}

// FinancialReport is the per-filing projection rebuilt from statement lines.
type FinancialReport struct {
	CompanyID         int64               `db:"company_id"`
	ReportKind        string              `db:"report_kind"`
	Consolidation     string              `db:"consolidation"`
	ReferenceDate     time.Time           `db:"reference_date"`
	Version           int                 `db:"version"`
	TotalAssets       decimal.NullDecimal `db:"total_assets"`
	CurrentAssets     decimal.NullDecimal `db:"current_assets"`
	Equity            decimal.NullDecimal `db:"equity"`
	Revenue           decimal.NullDecimal `db:"revenue"`
	GrossProfit       decimal.NullDecimal `db:"gross_profit"`
	OperatingProfit   decimal.NullDecimal `db:"operating_profit"`
	NetIncome         decimal.NullDecimal `db:"net_income"`
	OperatingCashFlow decimal.NullDecimal `db:"operating_cash_flow"`
	InvestingCashFlow decimal.NullDecimal `db:"investing_cash_flow"`
	FinancingCashFlow decimal.NullDecimal `db:"financing_cash_flow"`
}

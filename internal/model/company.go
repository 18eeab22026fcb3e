// Package model holds the typed records the pipeline writes to the warehouse.
package model

import "time"

// CompanyStatus is the lifecycle state of an issuer.
type CompanyStatus string

const (
	CompanyActive    CompanyStatus = "active"
	CompanyInactive  CompanyStatus = "inactive"
	CompanySuspended CompanyStatus = "suspended"
)

// CompanyOrigin records how an issuer entered the master list.
type CompanyOrigin string

const (
	// OriginUniverse rows come from the curated universe and follow its refreshes.
	OriginUniverse CompanyOrigin = "universe"
	// OriginDeepDive rows were admitted one at a time by CVM code.
	OriginDeepDive CompanyOrigin = "deep-dive"
	// OriginAutoAdmit rows were admitted from the pending-admission queue.
	OriginAutoAdmit CompanyOrigin = "auto-admit"
)

// MaxWebsiteLen is the width of companies.website.
const MaxWebsiteLen = 255

// Company is one issuer of the master list.
type Company struct {
	ID                  int64         `db:"id" json:"id"`
	CVMCode             int           `db:"cvm_code" json:"cvm_code"`
	CNPJ                string        `db:"cnpj" json:"cnpj"`
	CompanyName         string        `db:"company_name" json:"company_name"`
	TradeName           string        `db:"trade_name" json:"trade_name,omitempty"`
	Status              CompanyStatus `db:"status" json:"status"`
	Origin              CompanyOrigin `db:"origin" json:"origin"`
	Sector              string        `db:"sector" json:"sector,omitempty"`
	SectorTag           string        `db:"sector_tag" json:"sector_tag,omitempty"`
	Tickers             []string      `db:"tickers" json:"tickers"`
	PrimaryTicker       string        `db:"primary_ticker" json:"primary_ticker,omitempty"`
	Website             string        `db:"website" json:"website,omitempty"`
	ActivityDescription string        `db:"activity_description" json:"activity_description,omitempty"`
	HasAnnual           bool          `db:"has_annual" json:"has_annual"`
	HasQuarterly        bool          `db:"has_quarterly" json:"has_quarterly"`
	HasReferenceForm    bool          `db:"has_reference_form" json:"has_reference_form"`
	LastAnnualYear      *int          `db:"last_annual_year" json:"last_annual_year,omitempty"`
	LastQuarterlyPeriod *time.Time    `db:"last_quarterly_period" json:"last_quarterly_period,omitempty"`
	RegisteredAt        *time.Time    `db:"registered_at" json:"registered_at,omitempty"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updated_at"`
}

// PendingAdmission is an issuer seen during ingestion but absent from the
// master list, queued for the master-list builder.
type PendingAdmission struct {
	CNPJ          string     `db:"cnpj"`
	CVMCode       *int       `db:"cvm_code"`
	CompanyName   string     `db:"company_name"`
	FirstSeenTask string     `db:"first_seen_task"`
	FirstSeenAt   time.Time  `db:"first_seen_at"`
	AdmittedAt    *time.Time `db:"admitted_at"`
}

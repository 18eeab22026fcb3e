package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Capital event sources.
const (
	SourceFRE                = "fre"
	SourceCapitalComposition = "composicao_capital"
	SourceCorporateEvent     = "evento_corporativo"
	SourceIssuance           = "emissao"
)

// CapitalEvent is a change or snapshot of a company's capital structure.
type CapitalEvent struct {
	CompanyID         int64
	ApprovalDate      time.Time
	EventType         string
	Value             decimal.NullDecimal
	QuantityCommon    *int64
	QuantityPreferred *int64
	QuantityTotal     *int64
	Source            string
	ReferenceDate     *time.Time
	Version           *int
}

// Shareholder is one ownership position at a reference date.
type Shareholder struct {
	CompanyID     int64
	ReferenceDate time.Time
	Version       *int
	Name          string
	PersonType    string
	Document      string
	IsController  *bool
	PctCommon     decimal.NullDecimal
	PctPreferred  decimal.NullDecimal
	PctTotal      decimal.NullDecimal
}

// Administrator is a governance member at a reference date.
type Administrator struct {
	CompanyID     int64
	ReferenceDate time.Time
	Version       *int
	Body          string // reference-form member the row came from
	Name          string
	Position      string
	Role          string
	ElectionDate  *time.Time
	TermOfOffice  string
	Biography     string
}

// RiskFactor is a textual risk disclosure.
type RiskFactor struct {
	CompanyID     int64
	ReferenceDate time.Time
	Version       *int
	RiskType      string
	Description   string
	Mitigation    string
}

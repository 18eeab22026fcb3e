package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Filing and transaction sources.
const (
	SourceIPE      = "ipe"
	SourceVLMO     = "vlmo"
	SourceDocument = "document"
)

// Filing is one document delivered to the regulator.
type Filing struct {
	CompanyID             int64      `db:"company_id"`
	ReferenceDate         time.Time  `db:"reference_date"`
	DeliveryDate          *time.Time `db:"delivery_date"`
	Protocol              string     `db:"protocol"`
	Category              string     `db:"category"`
	DocType               string     `db:"doc_type"`
	Species               string     `db:"species"`
	Subject               string     `db:"subject"`
	SourceURL             string     `db:"source_url"`
	Source                string     `db:"source"`
	TransactionsExtracted *int       `db:"transactions_extracted"`
	Version               *int       `db:"version"`
}

// InsiderTransaction is one securities movement by an insider group.
// Quantity is positive exactly when OperationType is buy.
type InsiderTransaction struct {
	FilingProtocol      *string
	CompanyID           int64
	PersonGroup         string
	MovementType        string
	TransactionDate     *time.Time
	ReferenceDate       time.Time
	AssetType           string
	AssetCharacteristic string
	OperationType       string
	Quantity            int64
	RawQuantity         decimal.NullDecimal
	UnitPrice           decimal.NullDecimal
	TotalValue          decimal.NullDecimal
	Intermediary        string
	Source              string
	Version             *int
}

// Dividend is one declared shareholder payout.
type Dividend struct {
	CompanyID       int64
	Ticker          string
	ExDate          time.Time
	PaymentDate     *time.Time
	DeclarationDate *time.Time
	EventType       string
	AmountPerShare  decimal.Decimal
	TotalAmount     decimal.NullDecimal
	ShareClass      string
}

package schema

// Canonical field names. Only this package spells source column names; the
// rest of the pipeline reads records through these.
const (
	CNPJ         = "cnpj"
	CVMCode      = "cvm_code"
	CompanyName  = "company_name"
	Ticker       = "ticker"
	Version      = "version"
	RefDate      = "reference_date"
	DeliveryDate = "delivery_date"

	// statements
	FiscalYearStart    = "fiscal_year_start"
	FiscalYearEnd      = "fiscal_year_end"
	FiscalOrderField   = "fiscal_order"
	AccountCode        = "account_code"
	AccountDescription = "account_description"
	Value              = "value"
	Currency           = "currency"
	CurrencyScale      = "currency_scale"
	IsFixedAccount     = "is_fixed_account"
	ColumnLabel        = "column_label"
	StatementGroup     = "statement_group"

	// registry and registration form
	TradeName        = "trade_name"
	Sector           = "sector"
	StatusField      = "status"
	RegistrationDate = "registration_date"
	CancelDate       = "cancellation_date"
	Category         = "category"
	Market           = "market"
	SecurityType     = "security_type"
	Website          = "website"

	// reference form
	ActivityDescription = "activity_description"
	RiskType            = "risk_type"
	Description         = "description"
	Mitigation          = "mitigation"
	Name                = "name"
	PersonTypeField     = "person_type"
	DocumentField       = "document"
	IsController        = "is_controller"
	PctCommon           = "pct_common"
	PctPreferred        = "pct_preferred"
	PctTotal            = "pct_total"
	Position            = "position"
	Role                = "role"
	ElectionDate        = "election_date"
	TermOfOffice        = "term_of_office"
	Biography           = "biography"

	// capital events
	ApprovalDate      = "approval_date"
	EventType         = "event_type"
	QuantityCommon    = "quantity_common"
	QuantityPreferred = "quantity_preferred"
	QuantityTotal     = "quantity_total"

	// filings and insider movements
	Protocol            = "protocol"
	DocType             = "doc_type"
	Species             = "species"
	Subject             = "subject"
	SourceURL           = "source_url"
	PersonGroup         = "person_group"
	MovementType        = "movement_type"
	OperationField      = "operation_type"
	AssetType           = "asset_type"
	AssetCharacteristic = "asset_characteristic"
	Intermediary        = "intermediary"
	TransactionDate     = "transaction_date"
	Quantity            = "quantity"
	UnitPrice           = "unit_price"
	TotalValue          = "total_value"

	// dividends
	ExDate          = "ex_date"
	PaymentDate     = "payment_date"
	DeclarationDate = "declaration_date"
	AmountPerShare  = "amount_per_share"
	TotalAmount     = "total_amount"
	ShareClass      = "share_class"
)

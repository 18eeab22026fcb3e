// Package schema declares every source CSV layout as canonical field
// descriptors and binds them to the headers found in downloaded frames.
package schema

// Type is the coercion applied to a cell.
type Type int

// Cell types.
const (
	Text Type = iota
	Integer
	Decimal
	Date
	Timestamp
	Boolean
	TaxID         // 14-digit corporate id
	Document      // 11 or 14 digits
	Consolidation // individual | consolidated
	Operation     // buy | sell | other
	FiscalOrder   // last | previous
	PersonType    // individual | legal-entity | fund | treasury | other
	DividendType  // cash | interest-on-equity | bonus
	Status        // active | inactive | suspended
)

var typeNames = map[Type]string{
	Text:          "text",
	Integer:       "integer",
	Decimal:       "decimal",
	Date:          "date",
	Timestamp:     "timestamp",
	Boolean:       "boolean",
	TaxID:         "tax-id",
	Document:      "document",
	Consolidation: "consolidation",
	Operation:     "operation",
	FiscalOrder:   "fiscal-order",
	PersonType:    "person-type",
	DividendType:  "dividend-type",
	Status:        "status",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "unknown"
}

// DefaultNullSentinels are the cell values read as null when a descriptor
// declares none of its own.
var DefaultNullSentinels = []string{"", "N/A", "—", "-"}

// Descriptor maps one canonical field to its source spellings.
type Descriptor struct {
	Canonical     string
	Aliases       []string // source column names, preferred first
	Type          Type
	Required      bool // the column must be present in the header
	Nullable      bool
	NullSentinels []string // nil means DefaultNullSentinels
	Format        string   // Go time layout overriding the type default
}

// Sentinels returns the effective null sentinels.
func (d Descriptor) Sentinels() []string {
	if d.NullSentinels != nil {
		return d.NullSentinels
	}
	return DefaultNullSentinels
}

// Key addresses one layout in the registry.
type Key struct {
	Kind    string // catalog kind code
	SubKind string // catalog layout name
}

func (k Key) String() string { return k.Kind + "/" + k.SubKind }

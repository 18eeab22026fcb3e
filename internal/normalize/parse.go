package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/mercadototal/cvm-ingest/internal/schema"
)

var (
	// 1.234.567,89 or 1234567,89
	brNumber = regexp.MustCompile(`^(\d{1,3}(?:\.\d{3})+|\d+)(?:,(\d+))?$`)
	// 1234567.890000 as written by recent statement archives
	dotNumber = regexp.MustCompile(`^(\d+)\.(\d+)$`)
)

var errNotNumber = eris.New("normalize: not a number")

// ParseDecimal reads a number written in Brazilian locale. A comma is the
// decimal separator and dots group thousands; a single dot followed by other
// than three digits is read as a decimal point. Parentheses mark negatives.
func ParseDecimal(s string) (decimal.Decimal, error) {
	neg, body := splitSign(strings.TrimSpace(s))
	if body == "" {
		return decimal.Zero, errNotNumber
	}

	var intPart, frac string
	if m := dotNumber.FindStringSubmatch(body); m != nil && len(m[2]) != 3 {
		intPart, frac = m[1], m[2]
	} else if m := brNumber.FindStringSubmatch(body); m != nil {
		intPart, frac = strings.ReplaceAll(m[1], ".", ""), m[2]
	} else {
		return decimal.Zero, eris.Wrapf(errNotNumber, "%q", s)
	}

	canonical := intPart
	if frac != "" {
		canonical += "." + frac
	}
	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "normalize: decimal %q", s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

func splitSign(s string) (bool, string) {
	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		return true, strings.TrimSpace(s[1 : len(s)-1])
	case strings.HasPrefix(s, "-"):
		return true, strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "+"):
		return false, strings.TrimSpace(s[1:])
	}
	return false, s
}

// ParseInteger reads a Brazilian-formatted number that must be integral.
func ParseInteger(s string) (int64, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() || d.GreaterThan(maxInt64) || d.LessThan(minInt64) {
		return 0, eris.Errorf("normalize: %q is not an int64", s)
	}
	return d.IntPart(), nil
}

var (
	maxInt64 = decimal.NewFromInt(1<<63 - 1)
	minInt64 = decimal.NewFromInt(-1 << 63)
)

// FormatBR renders d in Brazilian locale with the minimal fraction digits.
func FormatBR(d decimal.Decimal) string {
	s := d.String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	out := groupThousands(intPart)
	if frac != "" {
		out += "," + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// Canonicalize rewrites a parseable Brazilian number string into the form
// FormatBR produces, working on the text alone.
func Canonicalize(s string) (string, error) {
	if _, err := ParseDecimal(s); err != nil {
		return "", err
	}
	neg, body := splitSign(strings.TrimSpace(s))

	var intPart, frac string
	if m := dotNumber.FindStringSubmatch(body); m != nil && len(m[2]) != 3 {
		intPart, frac = m[1], m[2]
	} else {
		m := brNumber.FindStringSubmatch(body)
		intPart, frac = strings.ReplaceAll(m[1], ".", ""), m[2]
	}

	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	frac = strings.TrimRight(frac, "0")
	if intPart == "0" && frac == "" {
		return "0", nil
	}

	out := groupThousands(intPart)
	if frac != "" {
		out += "," + frac
	}
	if neg {
		out = "-" + out
	}
	return out, nil
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

var (
	dateLayouts      = []string{"02/01/2006", "2006-01-02"}
	timestampLayouts = []string{"02/01/2006 15:04", "02/01/2006 15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05"}
)

// ParseDate reads dd/mm/yyyy or yyyy-mm-dd as a UTC date. A non-empty
// layout replaces both.
func ParseDate(s, layout string) (time.Time, error) {
	return parseTime(s, layout, dateLayouts)
}

// ParseTimestamp reads dd/mm/yyyy HH:MM and the ISO forms as UTC.
func ParseTimestamp(s, layout string) (time.Time, error) {
	return parseTime(s, layout, timestampLayouts)
}

func parseTime(s, layout string, defaults []string) (time.Time, error) {
	layouts := defaults
	if layout != "" {
		layouts = []string{layout}
	}
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("normalize: bad date %q", s)
}

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeTaxID returns the 14 digits of a corporate tax id, or false.
func NormalizeTaxID(s string) (string, bool) {
	d := DigitsOnly(s)
	return d, len(d) == 14
}

// NormalizeDocument returns the digits of an individual (11) or corporate
// (14) tax id, or false.
func NormalizeDocument(s string) (string, bool) {
	d := DigitsOnly(s)
	return d, len(d) == 11 || len(d) == 14
}

// ParseBool reads the Portuguese literals used by the portal.
func ParseBool(s string) (bool, bool) {
	switch schema.Fold(s) {
	case "s", "sim", "ativo", "ativa", "true", "1", "y", "yes":
		return true, true
	case "n", "nao", "inativo", "inativa", "false", "0", "no":
		return false, true
	}
	return false, false
}

// Enum values written to the warehouse.
const (
	ConsIndividual   = "individual"
	ConsConsolidated = "consolidated"

	OpBuy   = "buy"
	OpSell  = "sell"
	OpOther = "other"

	OrderLast     = "last"
	OrderPrevious = "previous"

	PersonIndividual  = "individual"
	PersonLegalEntity = "legal-entity"
	PersonFund        = "fund"
	PersonTreasury    = "treasury"
	PersonOther       = "other"

	DividendCash     = "cash"
	DividendInterest = "interest-on-equity"
	DividendBonus    = "bonus"

	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// ParseConsolidation maps IND/INDIVIDUAL/blank and CON/CONSOLIDADO.
func ParseConsolidation(s string) (string, bool) {
	switch schema.Fold(s) {
	case "", "ind", "individual":
		return ConsIndividual, true
	case "con", "consolidado", "consolidated":
		return ConsConsolidated, true
	}
	return "", false
}

// ParseOperation maps a movement description to buy, sell or other.
func ParseOperation(s string) string {
	f := schema.Fold(s)
	switch {
	case strings.Contains(f, "compra"), strings.Contains(f, "aquisic"), strings.Contains(f, "subscric"):
		return OpBuy
	case strings.Contains(f, "venda"), strings.Contains(f, "alienac"):
		return OpSell
	}
	return OpOther
}

// SignedQuantity makes a quantity positive for buys and negative otherwise.
func SignedQuantity(op string, q int64) int64 {
	if q < 0 {
		q = -q
	}
	if op == OpBuy {
		return q
	}
	return -q
}

// ParseFiscalOrder maps ÚLTIMO and PENÚLTIMO.
func ParseFiscalOrder(s string) (string, bool) {
	switch schema.Fold(s) {
	case "ultimo":
		return OrderLast, true
	case "penultimo":
		return OrderPrevious, true
	}
	return "", false
}

// ParsePersonType maps shareholder person classes.
func ParsePersonType(s string) string {
	f := schema.Fold(s)
	switch {
	case f == "pf" || strings.Contains(f, "fisica"):
		return PersonIndividual
	case f == "pj" || strings.Contains(f, "juridica"):
		return PersonLegalEntity
	case f == "fi" || strings.Contains(f, "fundo"):
		return PersonFund
	case strings.Contains(f, "tesouraria"):
		return PersonTreasury
	}
	return PersonOther
}

// ParseDividendType maps dividend, interest-on-equity and bonus labels.
func ParseDividendType(s string) (string, bool) {
	f := schema.Fold(s)
	switch {
	case strings.Contains(f, "juros") || f == "jcp":
		return DividendInterest, true
	case strings.Contains(f, "dividendo") || strings.Contains(f, "rendimento"):
		return DividendCash, true
	case strings.Contains(f, "bonific"):
		return DividendBonus, true
	}
	return "", false
}

// ParseStatus maps registry situations. Anything neither active nor
// suspended counts as inactive.
func ParseStatus(s string) string {
	f := schema.Fold(s)
	switch {
	case f == "ativo" || f == "ativa" || f == "active":
		return StatusActive
	case strings.HasPrefix(f, "suspens"):
		return StatusSuspended
	}
	return StatusInactive
}

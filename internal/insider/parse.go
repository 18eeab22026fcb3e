package insider

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/mercadototal/cvm-ingest/internal/normalize"
	"github.com/mercadototal/cvm-ingest/internal/schema"
)

var (
	taxIDPattern  = regexp.MustCompile(`\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}`)
	periodPattern = regexp.MustCompile(`(?i)\b(?:em|m[eê]s/ano|per[ií]odo)\s*:?\s*(\d{1,2})/(\d{4})`)
	groupPattern  = regexp.MustCompile(`\(\s*[xX]\s*\)\s*([^()]*[^()\s])`)
	columnSplit   = regexp.MustCompile(`\s{2,}`)
)

// Section markers, folded.
const (
	movementsMarker = "movimentacoes no mes"
	openingMarker   = "saldo inicial"
	closingMarker   = "saldo final"
)

// Parse reads the layout text of a consolidated insider form. The issuer tax
// id and the reference month are required; the movements table may be
// empty when nothing was traded.
func Parse(text string) (*Document, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\f", "\n"), "\n")

	doc := &Document{IssuerTaxID: issuerTaxID(lines)}
	if m := periodPattern.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			p := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
			doc.ReferencePeriod = &p
		}
	}
	if doc.IssuerTaxID == "" || doc.ReferencePeriod == nil {
		return nil, eris.Wrap(ErrParseFailure, "missing issuer or reference month")
	}

	var (
		group      string
		inTable    bool
		sawSection bool
	)
	for _, line := range lines {
		f := schema.Fold(line)
		if m := groupPattern.FindStringSubmatch(line); m != nil && !inTable {
			group = strings.TrimSpace(m[1])
		}
		switch {
		case strings.Contains(f, movementsMarker):
			inTable, sawSection = true, true
			continue
		case strings.Contains(f, openingMarker), strings.Contains(f, closingMarker):
			inTable = false
			continue
		}
		if !inTable || isHeader(f) {
			continue
		}
		if tx, ok := parseRow(line, *doc.ReferencePeriod); ok {
			tx.PersonGroup = group
			doc.Transactions = append(doc.Transactions, tx)
		}
	}
	if !sawSection {
		return nil, eris.Wrap(ErrParseFailure, "no monthly movements table")
	}
	return doc, nil
}

// issuerTaxID prefers a tax id on a line that names it over the first one
// anywhere, which may belong to a related person.
func issuerTaxID(lines []string) string {
	var first string
	for _, line := range lines {
		m := taxIDPattern.FindString(line)
		if m == "" {
			continue
		}
		id, ok := normalize.NormalizeTaxID(m)
		if !ok {
			continue
		}
		if strings.Contains(schema.Fold(line), "cnpj") {
			return id
		}
		if first == "" {
			first = id
		}
	}
	return first
}

func isHeader(folded string) bool {
	return strings.Contains(folded, "valor mobiliario") ||
		strings.Contains(folded, "caracteristicas") ||
		strings.Contains(folded, "intermediario")
}

// parseRow reads one movement line: asset, characteristic, intermediary,
// operation, day, quantity, price and volume, right-aligned so that a blank
// intermediary or characteristic still parses.
func parseRow(line string, period time.Time) (Transaction, bool) {
	cols := columnSplit.Split(strings.TrimSpace(line), -1)
	n := len(cols)
	if n < 6 {
		return Transaction{}, false
	}

	opRaw := cols[n-5]
	if _, err := normalize.ParseDecimal(opRaw); err == nil {
		return Transaction{}, false
	}
	q, err := normalize.ParseInteger(cols[n-3])
	if err != nil {
		return Transaction{}, false
	}

	op := normalize.ParseOperation(opRaw)
	tx := Transaction{
		Date:        movementDate(cols[n-4], period),
		Operation:   op,
		AssetType:   cols[0],
		Quantity:    normalize.SignedQuantity(op, q),
		RawQuantity: cols[n-3],
		UnitPrice:   nullDecimal(cols[n-2]),
		TotalValue:  nullDecimal(cols[n-1]),
	}
	if n-5 > 1 {
		tx.AssetCharacteristic = cols[1]
	}
	if n-5 > 2 {
		tx.Intermediary = strings.Join(cols[2:n-5], " ")
	}
	return tx, true
}

// movementDate reads a day of the reference month or a full date.
func movementDate(s string, period time.Time) *time.Time {
	if strings.Contains(s, "/") {
		if t, err := normalize.ParseDate(s, ""); err == nil {
			return &t
		}
		return nil
	}
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(period.Year(), period.Month(), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != period.Month() {
		return nil
	}
	return &t
}

func nullDecimal(s string) decimal.NullDecimal {
	d, err := normalize.ParseDecimal(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

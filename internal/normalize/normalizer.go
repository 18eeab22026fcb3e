// Package normalize turns text frames into typed records using schema
// descriptors. It performs no I/O.
package normalize

import (
	"iter"
	"slices"
	"strings"

	"github.com/mercadototal/cvm-ingest/internal/fetcher"
	"github.com/mercadototal/cvm-ingest/internal/schema"
)

// Normalizer coerces frame cells according to a binding.
type Normalizer struct{}

// New returns a Normalizer.
func New() *Normalizer { return &Normalizer{} }

// Records lazily yields one record per frame row. A row that fails coercion
// yields a zero Record and a non-nil Reject instead.
func (n *Normalizer) Records(frame *fetcher.Frame, b *schema.Binding) iter.Seq2[Record, *Reject] {
	index := make(map[string]int, len(b.Descriptors))
	for i, d := range b.Descriptors {
		index[d.Canonical] = i
	}

	return func(yield func(Record, *Reject) bool) {
		for i, row := range frame.Rows {
			rec, rej := n.row(i+1, row, b, index)
			if !yield(rec, rej) {
				return
			}
		}
	}
}

func (n *Normalizer) row(line int, row []string, b *schema.Binding, index map[string]int) (Record, *Reject) {
	values := make([]Value, len(b.Descriptors))
	for i, d := range b.Descriptors {
		col := b.Index[i]
		raw := ""
		if col >= 0 && col < len(row) {
			raw = strings.TrimSpace(row[col])
		}

		v, reason := coerce(d, raw)
		if reason != "" {
			return Record{}, &Reject{Line: line, Field: d.Canonical, Value: raw, Reason: reason}
		}
		if !v.Valid && !d.Nullable {
			return Record{}, &Reject{Line: line, Field: d.Canonical, Value: raw, Reason: NullRequired}
		}
		values[i] = v
	}
	return Record{Line: line, index: index, values: values}, nil
}

// coerce converts one trimmed cell. A non-empty reason means the row is rejected.
func coerce(d schema.Descriptor, raw string) (Value, Reason) {
	if d.Type == schema.Consolidation {
		// blank flags of early archives count as individual
		c, ok := ParseConsolidation(raw)
		if !ok {
			return Value{}, BadEnum
		}
		return Text(c), ""
	}
	if slices.Contains(d.Sentinels(), raw) {
		return Value{}, ""
	}

	switch d.Type {
	case schema.Text:
		return Text(raw), ""
	case schema.Integer:
		i, err := ParseInteger(raw)
		if err != nil {
			return Value{}, BadInteger
		}
		return Int(i), ""
	case schema.Decimal:
		dec, err := ParseDecimal(raw)
		if err != nil {
			return Value{}, BadDecimal
		}
		return Dec(dec), ""
	case schema.Date:
		t, err := ParseDate(raw, d.Format)
		if err != nil {
			return Value{}, BadDate
		}
		return Time(t), ""
	case schema.Timestamp:
		t, err := ParseTimestamp(raw, d.Format)
		if err != nil {
			return Value{}, BadDate
		}
		return Time(t), ""
	case schema.Boolean:
		v, ok := ParseBool(raw)
		if !ok {
			return Value{}, BadBoolean
		}
		return Bool(v), ""
	case schema.TaxID:
		id, ok := NormalizeTaxID(raw)
		if !ok {
			return nonConforming(d)
		}
		return Text(id), ""
	case schema.Document:
		id, ok := NormalizeDocument(raw)
		if !ok {
			return nonConforming(d)
		}
		return Text(id), ""
	case schema.Operation:
		return Text(ParseOperation(raw)), ""
	case schema.FiscalOrder:
		o, ok := ParseFiscalOrder(raw)
		if !ok {
			return Value{}, BadEnum
		}
		return Text(o), ""
	case schema.PersonType:
		return Text(ParsePersonType(raw)), ""
	case schema.DividendType:
		t, ok := ParseDividendType(raw)
		if !ok {
			return Value{}, BadEnum
		}
		return Text(t), ""
	case schema.Status:
		return Text(ParseStatus(raw)), ""
	}
	return Text(raw), ""
}

// nonConforming nulls a malformed tax id; a required one rejects the row.
func nonConforming(d schema.Descriptor) (Value, Reason) {
	if d.Nullable {
		return Value{}, ""
	}
	return Value{}, BadTaxID
}

package normalize

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"1234,56", "1234.56"},
		{"-1.234,56", "-1234.56"},
		{"(1.234,56)", "-1234.56"},
		{"1.234.567", "1234567"},
		{"1.234", "1234"},
		{"0,5", "0.5"},
		{"1067.0000000000", "1067"},
		{"-33.5", "-33.5"},
		{" 42 ", "42"},
		{"+7", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDecimal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestParseDecimal_Invalid(t *testing.T) {
	for _, in := range []string{"abc", "", "-", "1,234.56", "1.23,4", "1e5", "12,", ",5"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDecimal(in)
			assert.Error(t, err)
		})
	}
}

func TestParseInteger(t *testing.T) {
	i, err := ParseInteger("1.000.000")
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), i)

	_, err = ParseInteger("1,5")
	assert.Error(t, err)
	_, err = ParseInteger("99.999.999.999.999.999.999")
	assert.Error(t, err)
}

func TestFormatBR(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234.56", "1.234,56"},
		{"-1234567.5", "-1.234.567,5"},
		{"0", "0"},
		{"999", "999"},
		{"1000", "1.000"},
		{"0.05", "0,05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBR(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"001.234,500", "1.234,5"},
		{"-0,00", "0"},
		{"(12,30)", "-12,3"},
		{"1067.0000000000", "1.067"},
		{"1234567", "1.234.567"},
	}
	for _, tt := range tests {
		got, err := Canonicalize(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := Canonicalize("abc")
	assert.Error(t, err)
}

// FormatBR(ParseDecimal(s)) must equal Canonicalize(s) for every parseable s.
func TestRoundTrip_Property(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 2000 {
		s := randomBRNumber(rng)
		d, err := ParseDecimal(s)
		require.NoError(t, err, s)
		want, err := Canonicalize(s)
		require.NoError(t, err, s)
		require.Equal(t, want, FormatBR(d), "input %q", s)
	}
}

func randomBRNumber(rng *rand.Rand) string {
	intPart := rng.Int64N(1_000_000_000_000)
	digits := fmt.Sprintf("%d", intPart)
	if rng.IntN(4) == 0 {
		digits = "00" + digits
	}
	body := digits
	if rng.IntN(2) == 0 {
		body = groupThousands(fmt.Sprintf("%d", intPart))
	}
	if rng.IntN(2) == 0 {
		body += "," + fmt.Sprintf("%0*d", 1+rng.IntN(6), rng.IntN(1000))
	}
	switch rng.IntN(5) {
	case 0:
		body = "-" + body
	case 1:
		body = "(" + body + ")"
	}
	return body
}

func TestParseDate(t *testing.T) {
	want := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"31/12/2023", "2023-12-31"} {
		got, err := ParseDate(in, "")
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	}

	_, err := ParseDate("31/02/2023", "")
	assert.Error(t, err)
	_, err = ParseDate("2023/12/31", "")
	assert.Error(t, err)

	got, err := ParseDate("12-2023", "01-2006")
	require.NoError(t, err)
	assert.Equal(t, time.December, got.Month())
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("05/03/2024 14:30", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), got)

	_, err = ParseTimestamp("05/03/2024", "")
	assert.Error(t, err)
}

func TestTaxIDs(t *testing.T) {
	id, ok := NormalizeTaxID("33.000.167/0001-01")
	assert.True(t, ok)
	assert.Equal(t, "33000167000101", id)

	_, ok = NormalizeTaxID("123")
	assert.False(t, ok)

	doc, ok := NormalizeDocument("123.456.789-09")
	assert.True(t, ok)
	assert.Equal(t, "12345678909", doc)
}

func TestEnums(t *testing.T) {
	b, ok := ParseBool("SIM")
	assert.True(t, ok)
	assert.True(t, b)
	b, ok = ParseBool("Não")
	assert.True(t, ok)
	assert.False(t, b)
	_, ok = ParseBool("talvez")
	assert.False(t, ok)

	for in, want := range map[string]string{"IND": ConsIndividual, "INDIVIDUAL": ConsIndividual, "": ConsIndividual, "CON": ConsConsolidated, "Consolidado": ConsConsolidated} {
		got, ok := ParseConsolidation(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	assert.Equal(t, OpBuy, ParseOperation("Compra à vista"))
	assert.Equal(t, OpSell, ParseOperation("Venda à vista"))
	assert.Equal(t, OpOther, ParseOperation("Empréstimo de ações"))

	o, ok := ParseFiscalOrder("PENÚLTIMO")
	assert.True(t, ok)
	assert.Equal(t, OrderPrevious, o)

	assert.Equal(t, PersonLegalEntity, ParsePersonType("PJ"))
	assert.Equal(t, PersonFund, ParsePersonType("Fundo de Investimento"))
	assert.Equal(t, PersonOther, ParsePersonType("?"))

	dt, ok := ParseDividendType("Juros sobre Capital Próprio")
	assert.True(t, ok)
	assert.Equal(t, DividendInterest, dt)
	_, ok = ParseDividendType("Amortização")
	assert.False(t, ok)

	assert.Equal(t, StatusActive, ParseStatus("ATIVO"))
	assert.Equal(t, StatusSuspended, ParseStatus("SUSPENSO(A) - DECISÃO ADM"))
	assert.Equal(t, StatusInactive, ParseStatus("CANCELADA"))
}

func TestSignedQuantity(t *testing.T) {
	assert.Equal(t, int64(100), SignedQuantity(OpBuy, 100))
	assert.Equal(t, int64(100), SignedQuantity(OpBuy, -100))
	assert.Equal(t, int64(-100), SignedQuantity(OpSell, 100))
	assert.Equal(t, int64(-100), SignedQuantity(OpOther, 100))
	assert.Equal(t, int64(0), SignedQuantity(OpSell, 0))
}

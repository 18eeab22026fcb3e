package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func latin1(t *testing.T, s string) []byte {
	t.Helper()
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return b
}

func TestParseFrame_Latin1(t *testing.T) {
	raw := latin1(t, "CNPJ_CIA;DENOM_CIA;ORDEM_EXERC\n33.000.167/0001-01;PETRÓLEO BRASILEIRO S.A.;ÚLTIMO\n")

	f, err := ParseFrame("dfp_cia_aberta_BPA_con_2023.csv", raw)
	require.NoError(t, err)
	assert.False(t, f.Lenient)
	assert.Equal(t, []string{"CNPJ_CIA", "DENOM_CIA", "ORDEM_EXERC"}, f.Header)
	require.Equal(t, 1, f.Len())
	assert.Equal(t, "PETRÓLEO BRASILEIRO S.A.", f.Rows[0][1])
	assert.Equal(t, "ÚLTIMO", f.Rows[0][2])
}

func TestParseFrame_UTF8BOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("A;B\nação;x\n")...)

	f, err := ParseFrame("x.csv", raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, f.Header)
	assert.Equal(t, "ação", f.Rows[0][0])
}

func TestParseFrame_QuotedSemicolon(t *testing.T) {
	f, err := ParseFrame("x.csv", []byte("A;B\n\"a;b\";c\n"))
	require.NoError(t, err)
	assert.False(t, f.Lenient)
	assert.Equal(t, []string{"a;b", "c"}, f.Rows[0])
}

func TestParseFrame_Empty(t *testing.T) {
	f, err := ParseFrame("empty.csv", nil)
	require.NoError(t, err)
	assert.Empty(t, f.Header)
	assert.Equal(t, 0, f.Len())
}

func TestParseFrame_FallsBackOnRaggedRows(t *testing.T) {
	raw := []byte("A;B;C\n1;2;3\n4;5\n6;7;8;9\n10;11;12\n")

	f, err := ParseFrame("ragged.csv", raw)
	require.NoError(t, err)
	assert.True(t, f.Lenient)
	assert.Equal(t, 1, f.Skipped)
	require.Equal(t, 3, f.Len())
	assert.Equal(t, []string{"4", "5", ""}, f.Rows[1])
	assert.Equal(t, []string{"10", "11", "12"}, f.Rows[2])
}

func TestParseFrame_FallsBackOnBareQuote(t *testing.T) {
	raw := []byte("A;B\nEmpresa \"X\" S.A.;1\n")

	f, err := ParseFrame("quotes.csv", raw)
	require.NoError(t, err)
	assert.True(t, f.Lenient)
	require.Equal(t, 1, f.Len())
	assert.Equal(t, `Empresa "X" S.A.`, f.Rows[0][0])
}

func TestFrame_LenNil(t *testing.T) {
	var f *Frame
	assert.Equal(t, 0, f.Len())
}

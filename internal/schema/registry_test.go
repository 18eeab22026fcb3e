package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header2023 = []string{
	"CNPJ_CIA", "DT_REFER", "VERSAO", "DENOM_CIA", "CD_CVM", "GRUPO_DFP", "MOEDA",
	"ESCALA_MOEDA", "ORDEM_EXERC", "DT_INI_EXERC", "DT_FIM_EXERC", "CD_CONTA",
	"DS_CONTA", "VL_CONTA", "ST_CONTA_FIXA",
}

func TestLookup(t *testing.T) {
	r := Default()

	descs, err := r.Lookup("DFP", LayoutStatement)
	require.NoError(t, err)
	assert.NotEmpty(t, descs)

	_, err = r.Lookup("DFP", "nope")
	assert.True(t, errors.Is(err, ErrUnknownLayout))
}

func TestBind_StatementDrift(t *testing.T) {
	r := Default()
	descs, err := r.Lookup("DFP", LayoutStatement)
	require.NoError(t, err)

	header2014 := make([]string, len(header2023))
	copy(header2014, header2023)
	header2014[4] = "CD_CIA"

	for _, header := range [][]string{header2023, header2014} {
		b, err := r.Bind(descs, header)
		require.NoError(t, err)
		col := b.Column(CVMCode)
		require.GreaterOrEqual(t, col, 0)
		assert.Equal(t, 4, b.Index[col])
		assert.Empty(t, b.Unknown)
	}
}

func TestBind_CaseAndAccentInsensitive(t *testing.T) {
	descs := []Descriptor{
		must(CNPJ, TaxID, "CNPJ_Companhia"),
		must(Description, Text, "Descrição_Fator"),
	}
	b, err := Bind(descs, []string{"\ufeffcnpj_companhia ", "DESCRICAO_FATOR"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, b.Index)
}

func TestBind_FirstAliasWins(t *testing.T) {
	descs := []Descriptor{must(CNPJ, TaxID, "CNPJ_CIA", "CNPJ")}
	b, err := Bind(descs, []string{"CNPJ", "CNPJ_CIA"})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Index[0])
	assert.Equal(t, "CNPJ_CIA", b.Source[0])
	assert.Equal(t, []string{"CNPJ"}, b.Unknown)
}

func TestBind_MissingRequired(t *testing.T) {
	r := Default()
	descs, err := r.Lookup("FRE", LayoutRiskFactor)
	require.NoError(t, err)

	b, err := r.Bind(descs, []string{"CNPJ_Companhia", "Data_Referencia", "Tipo_Fator_Risco"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
	assert.Contains(t, err.Error(), Description)
	require.NotNil(t, b)
	assert.Equal(t, -1, b.Index[b.Column(Mitigation)])
}

func TestBind_OptionalMissing(t *testing.T) {
	descs := []Descriptor{
		must(CNPJ, TaxID, "CNPJ_CIA"),
		opt(Website, Text, "Pagina_Web"),
	}
	b, err := Bind(descs, []string{"CNPJ_CIA", "Extra"})
	require.NoError(t, err)
	assert.Equal(t, -1, b.Index[1])
	assert.Equal(t, []string{"Extra"}, b.Unknown)
}

func TestDefaultLayouts_CanonicalNamesUnique(t *testing.T) {
	for key, descs := range defaultLayouts() {
		seen := map[string]bool{}
		for _, d := range descs {
			assert.False(t, seen[d.Canonical], "%s declares %s twice", key, d.Canonical)
			seen[d.Canonical] = true
			assert.NotEmpty(t, d.Aliases, "%s/%s has no aliases", key, d.Canonical)
		}
	}
}

func TestSentinels(t *testing.T) {
	assert.Equal(t, DefaultNullSentinels, Descriptor{}.Sentinels())
	assert.Equal(t, []string{"x"}, Descriptor{NullSentinels: []string{"x"}}.Sentinels())
}

func TestFold(t *testing.T) {
	assert.Equal(t, "descricao_atividades", Fold(" Descrição_Atividades "))
	assert.Equal(t, "ultimo", Fold("ÚLTIMO"))
}

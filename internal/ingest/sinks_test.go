package ingest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadototal/cvm-ingest/internal/catalog"
	"github.com/mercadototal/cvm-ingest/internal/model"
	"github.com/mercadototal/cvm-ingest/internal/normalize"
	"github.com/mercadototal/cvm-ingest/internal/schema"
)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestNewSink(t *testing.T) {
	cat, err := catalog.Load("https://dados.cvm.gov.br/dados")
	require.NoError(t, err)

	for _, kind := range cat.Kinds() {
		for _, sk := range kind.SubKinds {
			_, err := newSink(kind, sk)
			if kind.Code == catalog.CAD || kind.Code == catalog.FCA {
				assert.Error(t, err, "%s/%s", kind.Code, sk.Name)
				continue
			}
			assert.NoError(t, err, "%s/%s", kind.Code, sk.Name)
		}
	}

	_, err = newSink(catalog.Kind{Code: "X"}, catalog.SubKind{Name: "y", Target: "nowhere"})
	assert.Error(t, err)
}

func TestStatementLine(t *testing.T) {
	rec := normalize.NewRecord(2, map[string]normalize.Value{
		schema.RefDate:          normalize.Time(date(2023, 12, 31)),
		schema.FiscalYearEnd:    normalize.Time(date(2023, 12, 31)),
		schema.Version:          normalize.Int(3),
		schema.FiscalOrderField: normalize.Text(normalize.OrderLast),
		schema.AccountCode:      normalize.Text("1"),
		schema.Value:            normalize.Dec(decimal.RequireFromString("1234.56")),
	})
	sk := catalog.SubKind{Name: "BPA_con", StatementType: "BPA", Consolidation: catalog.Consolidated}

	line, rej := statementLine(model.ReportAnnual, sk)(7, rec)
	require.Nil(t, rej)
	assert.Equal(t, int64(7), line.CompanyID)
	assert.Equal(t, "BPA", line.StatementType)
	assert.Equal(t, normalize.ConsConsolidated, line.Consolidation)
	assert.Equal(t, 3, line.Version)
	assert.Nil(t, line.FiscalYearStart)
	assert.Equal(t, "1234.56", line.Value.String())

	sk.Consolidation = catalog.Individual
	line, _ = statementLine(model.ReportAnnual, sk)(7, rec)
	assert.Equal(t, normalize.ConsIndividual, line.Consolidation)
}

func TestVLMOMovement(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]normalize.Value
		wantOp   string
		wantQty  int64
		rejected bool
	}{
		{
			name: "buy keeps sign",
			fields: map[string]normalize.Value{
				schema.OperationField: normalize.Text(normalize.OpBuy),
				schema.Quantity:       normalize.Dec(decimal.NewFromInt(300)),
			},
			wantOp: normalize.OpBuy, wantQty: 300,
		},
		{
			name: "sell is negative",
			fields: map[string]normalize.Value{
				schema.OperationField: normalize.Text(normalize.OpSell),
				schema.Quantity:       normalize.Dec(decimal.NewFromInt(300)),
			},
			wantOp: normalize.OpSell, wantQty: -300,
		},
		{
			name: "operation from movement type",
			fields: map[string]normalize.Value{
				schema.MovementType: normalize.Text("Venda à vista"),
				schema.Quantity:     normalize.Dec(decimal.NewFromInt(50)),
			},
			wantOp: normalize.OpSell, wantQty: -50,
		},
		{
			name: "fractional quantity",
			fields: map[string]normalize.Value{
				schema.OperationField: normalize.Text(normalize.OpBuy),
				schema.Quantity:       normalize.Dec(decimal.RequireFromString("10.5")),
			},
			rejected: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fields[schema.RefDate] = normalize.Time(date(2024, 3, 31))
			tx, rej := vlmoMovement(1, normalize.NewRecord(5, tt.fields))
			if tt.rejected {
				require.NotNil(t, rej)
				assert.Equal(t, normalize.BadInteger, rej.Reason)
				assert.Equal(t, 5, rej.Line)
				return
			}
			require.Nil(t, rej)
			assert.Equal(t, tt.wantOp, tx.OperationType)
			assert.Equal(t, tt.wantQty, tx.Quantity)
			assert.Equal(t, model.SourceVLMO, tx.Source)
		})
	}
}

func TestCapitalEvent(t *testing.T) {
	ref := date(2024, 1, 31)

	snapshot, rej := capitalEvent(catalog.CapitalComp, schema.LayoutCapitalComposition)(1, normalize.NewRecord(2,
		map[string]normalize.Value{
			schema.RefDate:       normalize.Time(ref),
			schema.QuantityTotal: normalize.Int(1000),
		}))
	require.Nil(t, rej)
	assert.Equal(t, ref, snapshot.ApprovalDate)
	assert.Equal(t, "capital_composition", snapshot.EventType)
	assert.Equal(t, model.SourceCapitalComposition, snapshot.Source)

	issuance, rej := capitalEvent(catalog.Issuance, schema.LayoutIssuance)(1, normalize.NewRecord(3,
		map[string]normalize.Value{
			schema.ApprovalDate: normalize.Time(ref),
			schema.SecurityType: normalize.Text("Debêntures Simples"),
		}))
	require.Nil(t, rej)
	assert.Equal(t, "issuance:debentures_simples", issuance.EventType)

	event, rej := capitalEvent(catalog.CorporateEvent, schema.LayoutCorporateEvent)(1, normalize.NewRecord(4,
		map[string]normalize.Value{
			schema.ApprovalDate: normalize.Time(ref),
			schema.EventType:    normalize.Text("Grupamento de Ações"),
		}))
	require.Nil(t, rej)
	assert.Equal(t, "grupamento_de_acoes", event.EventType)

	_, rej = capitalEvent(catalog.FRE, schema.LayoutCapitalIncrease)(1, normalize.NewRecord(5, nil))
	require.NotNil(t, rej)
	assert.Equal(t, normalize.NullRequired, rej.Reason)
}

func TestActivitiesKeepLatestVersion(t *testing.T) {
	s := &activities{byCompany: make(map[int64]string), version: make(map[int64]int64)}
	add := func(id, version int64, text string) {
		s.add(id, normalize.NewRecord(1, map[string]normalize.Value{
			schema.Version:             normalize.Int(version),
			schema.ActivityDescription: normalize.Text(text),
		}))
	}
	add(1, 2, "refino")
	add(1, 1, "antigo")
	add(2, 1, "mineração")
	add(2, 3, "mineração e logística")

	assert.Equal(t, 2, s.len())
	assert.Equal(t, "refino", s.byCompany[1])
	assert.Equal(t, "mineração e logística", s.byCompany[2])
}

func TestDividendUppercasesTicker(t *testing.T) {
	d, rej := dividend(1, normalize.NewRecord(1, map[string]normalize.Value{
		schema.Ticker:         normalize.Text("petr4"),
		schema.ExDate:         normalize.Time(date(2024, 4, 22)),
		schema.AmountPerShare: normalize.Dec(decimal.RequireFromString("0.54")),
	}))
	require.Nil(t, rej)
	assert.Equal(t, "PETR4", d.Ticker)
	assert.False(t, d.TotalAmount.Valid)
}

func TestAdministratorCarriesBody(t *testing.T) {
	rec := normalize.NewRecord(2, map[string]normalize.Value{
		schema.RefDate:  normalize.Time(date(2023, 12, 31)),
		schema.Name:     normalize.Text("Ana Souza"),
		schema.Position: normalize.Text("Diretor Presidente"),
	})

	for _, body := range []string{"administrador", "membro_conselho_administracao"} {
		a, rej := administrator(body)(4, rec)
		require.Nil(t, rej)
		assert.Equal(t, body, a.Body)
		assert.Equal(t, int64(4), a.CompanyID)
		assert.Equal(t, "Ana Souza", a.Name)
	}
}

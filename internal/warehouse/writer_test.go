package warehouse

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func dividendBatch(n int) Batch {
	rows := make([]model.Dividend, n)
	for i := range rows {
		rows[i] = model.Dividend{
			CompanyID:      int64(i + 1),
			ExDate:         time.Date(2023, 4, 10, 0, 0, 0, 0, time.UTC),
			EventType:      "cash",
			AmountPerShare: decimal.NewFromFloat(0.5),
		}
	}
	return Dividends.Bind(rows)
}

func TestWriteYear_Empty(t *testing.T) {
	w := NewWriter(nil, 0)
	n, err := w.WriteYear(context.Background(), Dividends.Bind(nil), 2023)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestWriteYear_ReplacesScope(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := dividendBatch(2)
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_write_dividends" \(LIKE "dividends" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_write_dividends"}, b.Columns).WillReturnResult(2)
	mock.ExpectExec(`DELETE FROM "dividends" t USING \(SELECT DISTINCT "company_id", EXTRACT\(YEAR FROM "ex_date"\)::int AS scope_year`).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec(`INSERT INTO "dividends" .* SELECT DISTINCT ON .* ON CONFLICT`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := NewWriter(mock, 0).WriteYear(context.Background(), b, 2023)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteYear_ChunksCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := dividendBatch(5)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_write_dividends"}, b.Columns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_write_dividends"}, b.Columns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_write_dividends"}, b.Columns).WillReturnResult(1)
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 5))
	mock.ExpectCommit()

	n, err := NewWriter(mock, 2).WriteYear(context.Background(), b, 2023)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteYear_InsertFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := dividendBatch(1)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_write_dividends"}, b.Columns).WillReturnResult(1)
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("INSERT INTO").WillReturnError(fmt.Errorf("foreign key violation"))
	mock.ExpectRollback()

	_, err = NewWriter(mock, 0).WriteYear(context.Background(), b, 2023)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write dividends year 2023")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteYear_CopyFailureMidChunkRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := dividendBatch(5)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_write_dividends"}, b.Columns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_write_dividends"}, b.Columns).WillReturnError(fmt.Errorf("conn closed"))
	mock.ExpectRollback()

	n, err := NewWriter(mock, 2).WriteYear(context.Background(), b, 2023)
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), "stage rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func administratorBatch(body string, names ...string) Batch {
	rows := make([]model.Administrator, len(names))
	for i, name := range names {
		rows[i] = model.Administrator{
			CompanyID:     1,
			ReferenceDate: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			Body:          body,
			Name:          name,
		}
	}
	return Administrators.Bind(rows)
}

func TestWriteYear_TwoMembersOneTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	officers := administratorBatch("administrador", "Ana", "Bruno")
	board := administratorBatch("membro_conselho_administracao", "Carla")
	for _, b := range []Batch{officers, board} {
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectCopyFrom(pgx.Identifier{"_tmp_write_administrators"}, b.Columns).WillReturnResult(int64(b.Len()))
		mock.ExpectExec(`DELETE FROM "administrators" t USING \(SELECT DISTINCT "company_id", "body", EXTRACT`).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec(`INSERT INTO "administrators"`).WillReturnResult(pgxmock.NewResult("INSERT", int64(b.Len())))
		mock.ExpectCommit()
	}

	w := NewWriter(mock, 0)
	n, err := w.WriteYear(context.Background(), officers, 2023)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = w.WriteYear(context.Background(), board, 2023)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())

	body := slices.Index(officers.Columns, "body")
	require.GreaterOrEqual(t, body, 0)
	assert.Equal(t, "administrador", officers.Rows[0][body])
	assert.Equal(t, "membro_conselho_administracao", board.Rows[0][body])
}

func TestDeleteSQL_AdministratorsScopedByBody(t *testing.T) {
	sql := deleteSQL(&Administrators.Spec, "_tmp", Administrators.Scope)
	assert.Contains(t, sql, `t."company_id" IS NOT DISTINCT FROM s."company_id"`)
	assert.Contains(t, sql, `t."body" IS NOT DISTINCT FROM s."body"`)
	assert.Contains(t, sql, `EXTRACT(YEAR FROM t."reference_date")::int = s.scope_year`)
}

func TestWriteYear_NaturalKeySkipsDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := Filings.Bind([]model.Filing{{CompanyID: 1, ReferenceDate: time.Now(), Protocol: "P1", Source: model.SourceIPE}})
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_write_filings"}, b.Columns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "filings" .* ON CONFLICT \("protocol"\) DO UPDATE SET`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := NewWriter(mock, 0).WriteYear(context.Background(), b, 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceBy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	protocol := "P9"
	b := InsiderTransactions.Bind([]model.InsiderTransaction{{
		FilingProtocol: &protocol, CompanyID: 3, ReferenceDate: time.Now(),
		OperationType: "buy", Quantity: 100, Source: model.SourceDocument,
	}})
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_write_insider_transactions"}, b.Columns).WillReturnResult(1)
	mock.ExpectExec(`DELETE FROM "insider_transactions" t USING \(SELECT DISTINCT "filing_protocol" FROM`).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO "insider_transactions"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := NewWriter(mock, 0).ReplaceBy(context.Background(), b, "filing_protocol")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSQL_VersionPreserving(t *testing.T) {
	sql := deleteSQL(&Statements.Spec, "_tmp", Statements.Scope)
	assert.Contains(t, sql, `t."version" IS NOT DISTINCT FROM s."version"`)
	assert.Contains(t, sql, `t."company_id" IS NOT DISTINCT FROM s."company_id"`)
	assert.Contains(t, sql, `EXTRACT(YEAR FROM t."reference_date")::int = s.scope_year`)
}

func TestDeleteSQL_NoScope(t *testing.T) {
	assert.Empty(t, deleteSQL(&Filings.Spec, "_tmp", Scope{}))
}

func TestInsertSQL(t *testing.T) {
	t.Run("supersede lower versions", func(t *testing.T) {
		sql := insertSQL(&Shareholders.Spec, "_tmp", Shareholders.InsertColumns())
		assert.Contains(t, sql, `WHERE NOT EXISTS (SELECT 1 FROM "_tmp" n WHERE n."company_id" IS NOT DISTINCT FROM s."company_id"`)
		assert.Contains(t, sql, `COALESCE(n."version", 0) > COALESCE(s."version", 0)`)
		assert.NotContains(t, sql, "ON CONFLICT")
	})

	t.Run("keyed keeps highest version", func(t *testing.T) {
		sql := insertSQL(&CapitalEvents.Spec, "_tmp", CapitalEvents.InsertColumns())
		assert.Contains(t, sql, "SELECT DISTINCT ON (")
		assert.Contains(t, sql, `s."version" DESC NULLS LAST ON CONFLICT`)
		assert.Contains(t, sql, `"value" = EXCLUDED."value"`)
		assert.NotContains(t, sql, `"event_type" = EXCLUDED`)
	})

	t.Run("statements keep every version", func(t *testing.T) {
		sql := insertSQL(&Statements.Spec, "_tmp", Statements.InsertColumns())
		assert.Contains(t, sql, `ON CONFLICT ("company_id", "report_kind", "statement_type", "consolidation", "reference_date", "version",`)
		assert.NotContains(t, sql, "DESC NULLS LAST")
		assert.Contains(t, sql, `"value" = EXCLUDED."value"`)
		assert.NotContains(t, sql, `"account_code" = EXCLUDED`)
	})

	t.Run("administrators supersede within one body", func(t *testing.T) {
		sql := insertSQL(&Administrators.Spec, "_tmp", Administrators.InsertColumns())
		assert.Contains(t, sql, `n."body" IS NOT DISTINCT FROM s."body"`)
	})

	t.Run("key only", func(t *testing.T) {
		sql := insertSQL(&AdmissionQueue.Spec, "_tmp", []string{"cnpj"})
		assert.Contains(t, sql, "ON CONFLICT (\"cnpj\") DO NOTHING")
	})
}

func TestRefreshReports(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM financial_reports r").WithArgs("annual", 2023).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO financial_reports").WithArgs("annual", 2023).
		WillReturnResult(pgxmock.NewResult("INSERT", 42))
	mock.ExpectCommit()

	n, err := NewWriter(mock, 0).RefreshReports(context.Background(), "annual", 2023)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshReportsSQL_Aggregates(t *testing.T) {
	sql := refreshReportsSQL()
	assert.Contains(t, sql, "max(s.value) FILTER (WHERE s.account_code = '1.01')")
	assert.Contains(t, sql, "net_income = EXCLUDED.net_income")
	assert.Contains(t, sql, "s.fiscal_order = 'last'")
}

func TestRefreshAvailability(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE companies c SET").WillReturnResult(pgxmock.NewResult("UPDATE", 12))

	n, err := NewWriter(mock, 0).RefreshAvailability(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetActivityDescriptions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE companies c").
		WithArgs([]int64{1, 4}, []string{"Exploração de petróleo", "Mineração"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := NewWriter(mock, 0).SetActivityDescriptions(context.Background(), map[int64]string{
		4: "Mineração",
		1: "Exploração de petróleo",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueuePending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_company_admission_queue"}, AdmissionQueue.InsertColumns()).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT \("cnpj"\) DO NOTHING`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := NewWriter(mock, 0).EnqueuePending(context.Background(), []model.PendingAdmission{{
		CNPJ: "11222333000181", CompanyName: "NOVA SA", FirstSeenTask: "daily-update", FirstSeenAt: time.Now(),
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkExtracted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE filings SET transactions_extracted").WithArgs("P1", 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, NewWriter(mock, 0).MarkExtracted(context.Background(), "P1", 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtractionBacklog(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ref := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"company_id", "reference_date", "delivery_date", "protocol", "category",
		"doc_type", "species", "subject", "source_url", "source", "transactions_extracted", "version"}).
		AddRow(int64(5), ref, nil, "P7", "Valores Mobiliários", "", "", "", "https://x/doc.pdf", "ipe", nil, nil)
	mock.ExpectQuery("FROM filings").WithArgs([]string{"%Valores Mobiliários%"}, int64(0), 10).WillReturnRows(rows)

	got, err := NewWriter(mock, 0).ExtractionBacklog(context.Background(), []string{"Valores Mobiliários"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "P7", got[0].Protocol)
	assert.Equal(t, ref, got[0].ReferenceDate)
	assert.Nil(t, got[0].TransactionsExtracted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

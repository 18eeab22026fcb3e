package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/mercadototal/cvm-ingest/internal/catalog"
	"github.com/mercadototal/cvm-ingest/internal/model"
	"github.com/mercadototal/cvm-ingest/internal/normalize"
	"github.com/mercadototal/cvm-ingest/internal/schema"
	"github.com/mercadototal/cvm-ingest/internal/warehouse"
)

// sink collects the typed rows of one unit and writes them.
type sink interface {
	add(companyID int64, r normalize.Record) *normalize.Reject
	len() int
	write(ctx context.Context, w *warehouse.Writer, year int) (int64, error)
}

// rows is the sink of every table written with WriteYear.
type rows[T any] struct {
	table *warehouse.Table[T]
	conv  func(companyID int64, r normalize.Record) (T, *normalize.Reject)
	items []T
}

func (s *rows[T]) add(companyID int64, r normalize.Record) *normalize.Reject {
	v, rej := s.conv(companyID, r)
	if rej != nil {
		return rej
	}
	s.items = append(s.items, v)
	return nil
}

func (s *rows[T]) len() int { return len(s.items) }

func (s *rows[T]) write(ctx context.Context, w *warehouse.Writer, year int) (int64, error) {
	return w.WriteYear(ctx, s.table.Bind(s.items), year)
}

func sinkOf[T any](table *warehouse.Table[T], conv func(int64, normalize.Record) (T, *normalize.Reject)) sink {
	return &rows[T]{table: table, conv: conv}
}

// activities keeps the latest activity description per company.
type activities struct {
	byCompany map[int64]string
	version   map[int64]int64
}

func (s *activities) add(companyID int64, r normalize.Record) *normalize.Reject {
	v, _ := r.Int(schema.Version)
	if cur, ok := s.version[companyID]; ok && cur > v {
		return nil
	}
	s.byCompany[companyID] = r.Text(schema.ActivityDescription)
	s.version[companyID] = v
	return nil
}

func (s *activities) len() int { return len(s.byCompany) }

func (s *activities) write(ctx context.Context, w *warehouse.Writer, _ int) (int64, error) {
	return w.SetActivityDescriptions(ctx, s.byCompany)
}

// newSink picks the sink of a sub-kind by its target table.
func newSink(kind catalog.Kind, sk catalog.SubKind) (sink, error) {
	switch sk.Target {
	case warehouse.Statements.Name:
		return sinkOf(warehouse.Statements, statementLine(kind.ReportKind, sk)), nil
	case warehouse.Companies.Name:
		if sk.Layout != schema.LayoutActivity {
			return nil, eris.Errorf("ingest: %s/%s writes companies outside the master list", kind.Code, sk.Name)
		}
		return &activities{byCompany: make(map[int64]string), version: make(map[int64]int64)}, nil
	case warehouse.RiskFactors.Name:
		return sinkOf(warehouse.RiskFactors, riskFactor), nil
	case warehouse.Shareholders.Name:
		return sinkOf(warehouse.Shareholders, shareholder), nil
	case warehouse.Administrators.Name:
		return sinkOf(warehouse.Administrators, administrator(sk.Name)), nil
	case warehouse.CapitalEvents.Name:
		return sinkOf(warehouse.CapitalEvents, capitalEvent(kind.Code, sk.Layout)), nil
	case warehouse.Filings.Name:
		return sinkOf(warehouse.Filings, filing(filingSource(kind.Code))), nil
	case warehouse.InsiderTransactions.Name:
		return sinkOf(warehouse.InsiderTransactions, vlmoMovement), nil
	case warehouse.Dividends.Name:
		return sinkOf(warehouse.Dividends, dividend), nil
	}
	return nil, eris.Errorf("ingest: no sink for target %q of %s/%s", sk.Target, kind.Code, sk.Name)
}

func reject(r normalize.Record, field string, reason normalize.Reason) *normalize.Reject {
	return &normalize.Reject{Line: r.Line, Field: field, Reason: reason}
}

func optTime(r normalize.Record, field string) *time.Time {
	if t, ok := r.Time(field); ok {
		return &t
	}
	return nil
}

func optInt(r normalize.Record, field string) *int {
	if v, ok := r.Int(field); ok {
		i := int(v)
		return &i
	}
	return nil
}

func optInt64(r normalize.Record, field string) *int64 {
	if v, ok := r.Int(field); ok {
		return &v
	}
	return nil
}

func optBool(r normalize.Record, field string) *bool {
	if v, ok := r.Bool(field); ok {
		return &v
	}
	return nil
}

func optDecimal(r normalize.Record, field string) decimal.NullDecimal {
	if d, ok := r.Decimal(field); ok {
		return decimal.NewNullDecimal(d)
	}
	return decimal.NullDecimal{}
}

func statementLine(reportKind string, sk catalog.SubKind) func(int64, normalize.Record) (model.StatementLine, *normalize.Reject) {
	return func(id int64, r normalize.Record) (model.StatementLine, *normalize.Reject) {
		ref, _ := r.Time(schema.RefDate)
		end, _ := r.Time(schema.FiscalYearEnd)
		v, _ := r.Int(schema.Version)
		value, _ := r.Decimal(schema.Value)
		return model.StatementLine{
			CompanyID:          id,
			ReportKind:         reportKind,
			StatementType:      sk.StatementType,
			Consolidation:      consolidation(sk.Consolidation),
			ReferenceDate:      ref,
			FiscalYearStart:    optTime(r, schema.FiscalYearStart),
			FiscalYearEnd:      end,
			Version:            int(v),
			FiscalOrder:        r.Text(schema.FiscalOrderField),
			AccountCode:        r.Text(schema.AccountCode),
			AccountDescription: r.Text(schema.AccountDescription),
			ColumnLabel:        r.Text(schema.ColumnLabel),
			Value:              value,
			Currency:           r.Text(schema.Currency),
			CurrencyScale:      r.Text(schema.CurrencyScale),
			IsFixedAccount:     optBool(r, schema.IsFixedAccount),
		}, nil
	}
}

// consolidation maps the member suffix onto the stored vocabulary.
func consolidation(suffix string) string {
	if suffix == catalog.Consolidated {
		return normalize.ConsConsolidated
	}
	return normalize.ConsIndividual
}

func riskFactor(id int64, r normalize.Record) (model.RiskFactor, *normalize.Reject) {
	ref, _ := r.Time(schema.RefDate)
	return model.RiskFactor{
		CompanyID:     id,
		ReferenceDate: ref,
		Version:       optInt(r, schema.Version),
		RiskType:      r.Text(schema.RiskType),
		Description:   r.Text(schema.Description),
		Mitigation:    r.Text(schema.Mitigation),
	}, nil
}

func shareholder(id int64, r normalize.Record) (model.Shareholder, *normalize.Reject) {
	ref, _ := r.Time(schema.RefDate)
	return model.Shareholder{
		CompanyID:     id,
		ReferenceDate: ref,
		Version:       optInt(r, schema.Version),
		Name:          r.Text(schema.Name),
		PersonType:    r.Text(schema.PersonTypeField),
		Document:      r.Text(schema.DocumentField),
		IsController:  optBool(r, schema.IsController),
		PctCommon:     optDecimal(r, schema.PctCommon),
		PctPreferred:  optDecimal(r, schema.PctPreferred),
		PctTotal:      optDecimal(r, schema.PctTotal),
	}, nil
}

func administrator(body string) func(int64, normalize.Record) (model.Administrator, *normalize.Reject) {
	return func(id int64, r normalize.Record) (model.Administrator, *normalize.Reject) {
		ref, _ := r.Time(schema.RefDate)
		return model.Administrator{
			CompanyID:     id,
			ReferenceDate: ref,
			Version:       optInt(r, schema.Version),
			Body:          body,
			Name:          r.Text(schema.Name),
			Position:      r.Text(schema.Position),
			Role:          r.Text(schema.Role),
			ElectionDate:  optTime(r, schema.ElectionDate),
			TermOfOffice:  r.Text(schema.TermOfOffice),
			Biography:     r.Text(schema.Biography),
		}, nil
	}
}

// Event types that have no column of their own.
const (
	eventCapitalIncrease = "capital_increase"
	eventCapitalSnapshot = "capital_composition"
	eventIssuance        = "issuance"
)

func capitalEvent(kindCode, layout string) func(int64, normalize.Record) (model.CapitalEvent, *normalize.Reject) {
	source := map[string]string{
		catalog.FRE:            model.SourceFRE,
		catalog.CapitalComp:    model.SourceCapitalComposition,
		catalog.CorporateEvent: model.SourceCorporateEvent,
		catalog.Issuance:       model.SourceIssuance,
	}[kindCode]

	return func(id int64, r normalize.Record) (model.CapitalEvent, *normalize.Reject) {
		e := model.CapitalEvent{
			CompanyID:         id,
			Value:             optDecimal(r, schema.Value),
			QuantityCommon:    optInt64(r, schema.QuantityCommon),
			QuantityPreferred: optInt64(r, schema.QuantityPreferred),
			QuantityTotal:     optInt64(r, schema.QuantityTotal),
			Source:            source,
			ReferenceDate:     optTime(r, schema.RefDate),
			Version:           optInt(r, schema.Version),
		}

		approval, ok := r.Time(schema.ApprovalDate)
		switch {
		case ok:
			e.ApprovalDate = approval
		case e.ReferenceDate != nil:
			// capital composition snapshots are dated by their reference
			e.ApprovalDate = *e.ReferenceDate
		default:
			return e, reject(r, schema.ApprovalDate, normalize.NullRequired)
		}

		e.EventType = eventType(r, layout)
		return e, nil
	}
}

func eventType(r normalize.Record, layout string) string {
	if t := r.Text(schema.EventType); t != "" {
		return slugEvent(t)
	}
	switch layout {
	case schema.LayoutCapitalComposition:
		return eventCapitalSnapshot
	case schema.LayoutIssuance:
		if t := r.Text(schema.SecurityType); t != "" {
			return eventIssuance + ":" + slugEvent(t)
		}
		return eventIssuance
	}
	return eventCapitalIncrease
}

// slugEvent folds a free-text event type into a stable lowercase key.
func slugEvent(s string) string {
	f := schema.Fold(s)
	return strings.Join(strings.FieldsFunc(f, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), "_")
}

func filingSource(kindCode string) string {
	if kindCode == catalog.VLMO {
		return model.SourceVLMO
	}
	return model.SourceIPE
}

func filing(source string) func(int64, normalize.Record) (model.Filing, *normalize.Reject) {
	return func(id int64, r normalize.Record) (model.Filing, *normalize.Reject) {
		ref, _ := r.Time(schema.RefDate)
		return model.Filing{
			CompanyID:     id,
			ReferenceDate: ref,
			DeliveryDate:  optTime(r, schema.DeliveryDate),
			Protocol:      r.Text(schema.Protocol),
			Category:      r.Text(schema.Category),
			DocType:       r.Text(schema.DocType),
			Species:       r.Text(schema.Species),
			Subject:       r.Text(schema.Subject),
			SourceURL:     r.Text(schema.SourceURL),
			Source:        source,
			Version:       optInt(r, schema.Version),
		}, nil
	}
}

func vlmoMovement(id int64, r normalize.Record) (model.InsiderTransaction, *normalize.Reject) {
	ref, _ := r.Time(schema.RefDate)
	raw, _ := r.Decimal(schema.Quantity)
	if !raw.Equal(raw.Truncate(0)) {
		return model.InsiderTransaction{}, reject(r, schema.Quantity, normalize.BadInteger)
	}

	op := r.Text(schema.OperationField)
	if op == "" {
		op = normalize.ParseOperation(r.Text(schema.MovementType))
	}
	return model.InsiderTransaction{
		CompanyID:           id,
		PersonGroup:         r.Text(schema.PersonGroup),
		MovementType:        r.Text(schema.MovementType),
		TransactionDate:     optTime(r, schema.TransactionDate),
		ReferenceDate:       ref,
		AssetType:           r.Text(schema.AssetType),
		AssetCharacteristic: r.Text(schema.AssetCharacteristic),
		OperationType:       op,
		Quantity:            normalize.SignedQuantity(op, raw.IntPart()),
		RawQuantity:         decimal.NewNullDecimal(raw),
		UnitPrice:           optDecimal(r, schema.UnitPrice),
		TotalValue:          optDecimal(r, schema.TotalValue),
		Intermediary:        r.Text(schema.Intermediary),
		Source:              model.SourceVLMO,
		Version:             optInt(r, schema.Version),
	}, nil
}

func dividend(id int64, r normalize.Record) (model.Dividend, *normalize.Reject) {
	ex, _ := r.Time(schema.ExDate)
	amount, _ := r.Decimal(schema.AmountPerShare)
	return model.Dividend{
		CompanyID:       id,
		Ticker:          strings.ToUpper(r.Text(schema.Ticker)),
		ExDate:          ex,
		PaymentDate:     optTime(r, schema.PaymentDate),
		DeclarationDate: optTime(r, schema.DeclarationDate),
		EventType:       r.Text(schema.EventType),
		AmountPerShare:  amount,
		TotalAmount:     optDecimal(r, schema.TotalAmount),
		ShareClass:      r.Text(schema.ShareClass),
	}, nil
}

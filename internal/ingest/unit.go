package ingest

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/audit"
	"github.com/mercadototal/cvm-ingest/internal/catalog"
	"github.com/mercadototal/cvm-ingest/internal/fetcher"
	"github.com/mercadototal/cvm-ingest/internal/insider"
	"github.com/mercadototal/cvm-ingest/internal/model"
	"github.com/mercadototal/cvm-ingest/internal/normalize"
	"github.com/mercadototal/cvm-ingest/internal/resolve"
	"github.com/mercadototal/cvm-ingest/internal/schema"
	"github.com/mercadototal/cvm-ingest/internal/warehouse"
)

// runUnit ingests one archive member: bind its header, normalize and resolve
// every row, then write the year.
func (e *Engine) runUnit(ctx context.Context, r *run, kind catalog.Kind, sk catalog.SubKind, archive *fetcher.Archive, member string, year int) (audit.Result, error) {
	res := audit.Result{Detail: audit.Detail{Member: member}}
	frame, _ := archive.Member(member)
	res.Detail.Lenient = frame.Lenient
	res.Detail.BadLines = frame.Skipped

	descs, err := e.registry.Lookup(kind.Code, sk.Layout)
	if err != nil {
		return res, err
	}
	binding, err := e.registry.Bind(descs, frame.Header)
	if err != nil {
		return res, eris.Wrapf(err, "ingest: bind %s", member)
	}
	res.Detail.Unknown = binding.Unknown

	out, err := newSink(kind, sk)
	if err != nil {
		return res, err
	}

	var (
		stats   normalize.Stats
		skipped int
	)
	pendingBefore := len(r.index.Pending())
	for rec, rej := range e.norm.Records(frame, binding) {
		stats.Read++
		if rej != nil {
			stats.Reject(rej)
			continue
		}

		id, _, ok := r.index.Resolve(keysOf(rec))
		if !ok {
			stats.Reject(reject(rec, schema.CNPJ, normalize.UnresolvedCompany))
			continue
		}
		if r.only != 0 && id != r.only {
			skipped++
			continue
		}
		if rej := out.add(id, rec); rej != nil {
			stats.Reject(rej)
		}
	}

	res.RowsRead = int64(stats.Read)
	res.RowsRejected = int64(stats.Rejected)
	res.Detail.Rejects = stats.Histogram()
	res.Detail.Skipped = skipped
	res.Detail.Pending = len(r.index.Pending()) - pendingBefore
	if len(binding.Unknown) > 0 {
		r.log.Debug("unknown columns ignored", zap.String("member", member), zap.Strings("columns", binding.Unknown))
	}

	if out.len() == 0 {
		return res, nil
	}
	written, err := out.write(ctx, e.writer, year)
	if err != nil {
		return res, err
	}
	res.RowsWritten = written
	return res, nil
}

func keysOf(rec normalize.Record) resolve.Keys {
	code, _ := rec.Int(schema.CVMCode)
	return resolve.Keys{
		TaxID:   rec.Text(schema.CNPJ),
		CVMCode: int(code),
		Ticker:  rec.Text(schema.Ticker),
		Name:    rec.Text(schema.CompanyName),
	}
}

// extractInsiders parses the insider-trading documents among the year's
// filings. One audit row covers the whole batch.
func (e *Engine) extractInsiders(ctx context.Context, r *run, year int) error {
	if e.extractor == nil || !e.cfg.ExtractInsiders {
		return nil
	}
	limit := e.cfg.MaxDocuments
	if limit <= 0 {
		limit = 50
	}
	backlog, err := e.writer.ExtractionBacklog(ctx, e.cfg.InsiderCategories, r.only, limit)
	if err != nil {
		return e.record(ctx, r, audit.Unit{ReportKind: catalog.IPE, SubKind: extractionSubKind, Year: year},
			model.UnitFailed, audit.Result{}, err)
	}
	if len(backlog) == 0 {
		return nil
	}

	var (
		res    audit.Result
		failed []error
	)
	for _, f := range backlog {
		if ctx.Err() != nil {
			break
		}
		res.RowsRead++
		n, err := e.extractFiling(ctx, f)
		switch {
		case errors.Is(err, insider.ErrParseFailure):
			res.RowsRejected++
		case err != nil:
			r.log.Warn("insider document failed", zap.String("protocol", f.Protocol), zap.Error(err))
			failed = append(failed, err)
			continue
		}
		if err := e.writer.MarkExtracted(ctx, f.Protocol, n); err != nil {
			failed = append(failed, err)
			continue
		}
		res.RowsWritten += int64(n)
		r.summary.Extracted++
	}

	status := model.UnitComplete
	var unitErr error
	if len(failed) > 0 {
		unitErr = eris.Wrapf(errors.Join(failed...), "ingest: %d of %d insider documents failed", len(failed), len(backlog))
		if len(failed) == len(backlog) {
			status = model.UnitFailed
		}
	}
	if res.RowsWritten > 0 {
		r.touched = true
	}
	return e.record(ctx, r, audit.Unit{ReportKind: catalog.IPE, SubKind: extractionSubKind, Year: year}, status, res, unitErr)
}

// extractFiling extracts one filing's document and replaces its
// transactions. A parse failure yields zero transactions and the sentinel.
func (e *Engine) extractFiling(ctx context.Context, f model.Filing) (int, error) {
	doc, err := e.extractor.Extract(ctx, f.SourceURL)
	if err != nil {
		return 0, err
	}

	ref := f.ReferenceDate
	if doc.ReferencePeriod != nil {
		ref = *doc.ReferencePeriod
	}
	protocol := f.Protocol
	txs := make([]model.InsiderTransaction, 0, len(doc.Transactions))
	for _, t := range doc.Transactions {
		txs = append(txs, model.InsiderTransaction{
			FilingProtocol:      &protocol,
			CompanyID:           f.CompanyID,
			PersonGroup:         t.PersonGroup,
			TransactionDate:     t.Date,
			ReferenceDate:       ref,
			AssetType:           t.AssetType,
			AssetCharacteristic: t.AssetCharacteristic,
			OperationType:       t.Operation,
			Quantity:            t.Quantity,
			UnitPrice:           t.UnitPrice,
			TotalValue:          t.TotalValue,
			Intermediary:        t.Intermediary,
			Source:              model.SourceDocument,
		})
	}
	if _, err := e.writer.ReplaceBy(ctx, warehouse.InsiderTransactions.Bind(txs), "filing_protocol"); err != nil {
		return 0, err
	}
	return len(txs), nil
}

// Package resolve maps regulator identifiers onto warehouse company ids.
package resolve

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/model"
)

// Match sources, in resolution order.
const (
	ByTaxID   = "tax_id"
	ByCVMCode = "cvm_code"
	ByTicker  = "ticker"
)

// Keys are the identifiers a source row carries. Zero values are absent.
type Keys struct {
	TaxID   string
	CVMCode int
	Ticker  string
	Name    string
}

// Options configure unresolved-row handling.
type Options struct {
	// AutoAdmit queues unresolved issuers for the master-list builder.
	AutoAdmit bool
	// Task is recorded as the first sighting of a queued issuer.
	Task string
}

// Index is an in-memory identity map built from the companies table. It
// never creates companies.
type Index struct {
	opts     Options
	byTaxID  map[string]int64
	byCode   map[int]int64
	byTicker map[string]int64
	pending  map[string]model.PendingAdmission
}

type companyKeys struct {
	ID      int64    `db:"id"`
	CVMCode int      `db:"cvm_code"`
	CNPJ    string   `db:"cnpj"`
	Tickers []string `db:"tickers"`
}

// Load builds the index from the companies table.
func Load(ctx context.Context, q pgxscan.Querier, opts Options) (*Index, error) {
	var rows []companyKeys
	if err := pgxscan.Select(ctx, q, &rows, "SELECT id, cvm_code, cnpj, tickers FROM companies ORDER BY id"); err != nil {
		return nil, eris.Wrap(err, "resolve: load companies")
	}

	ix := newIndex(opts)
	for _, r := range rows {
		ix.add(r)
	}
	zap.L().Info("identity index loaded",
		zap.String("component", "resolve"),
		zap.Int("companies", len(rows)),
		zap.Int("tickers", len(ix.byTicker)),
	)
	return ix, nil
}

// New builds an index from companies already in memory.
func New(companies []model.Company, opts Options) *Index {
	ix := newIndex(opts)
	for _, c := range companies {
		ix.add(companyKeys{ID: c.ID, CVMCode: c.CVMCode, CNPJ: c.CNPJ, Tickers: c.Tickers})
	}
	return ix
}

func newIndex(opts Options) *Index {
	return &Index{
		opts:     opts,
		byTaxID:  make(map[string]int64),
		byCode:   make(map[int]int64),
		byTicker: make(map[string]int64),
		pending:  make(map[string]model.PendingAdmission),
	}
}

// add keeps the first company claiming an identifier.
func (ix *Index) add(r companyKeys) {
	if r.CNPJ != "" {
		if _, ok := ix.byTaxID[r.CNPJ]; !ok {
			ix.byTaxID[r.CNPJ] = r.ID
		}
	}
	if r.CVMCode != 0 {
		if _, ok := ix.byCode[r.CVMCode]; !ok {
			ix.byCode[r.CVMCode] = r.ID
		}
	}
	for _, t := range r.Tickers {
		t = normalizeTicker(t)
		if t == "" {
			continue
		}
		if _, ok := ix.byTicker[t]; !ok {
			ix.byTicker[t] = r.ID
		}
	}
}

// Len returns the number of indexed companies.
func (ix *Index) Len() int { return len(ix.byCode) }

// Resolve returns the company id for k, trying tax id, regulator code and
// ticker in that order, and the identifier that matched.
// An unresolved issuer is queued when auto-admission is enabled.
func (ix *Index) Resolve(k Keys) (int64, string, bool) {
	if k.TaxID != "" {
		if id, ok := ix.byTaxID[k.TaxID]; ok {
			return id, ByTaxID, true
		}
	}
	if k.CVMCode != 0 {
		if id, ok := ix.byCode[k.CVMCode]; ok {
			return id, ByCVMCode, true
		}
	}
	if t := normalizeTicker(k.Ticker); t != "" {
		if id, ok := ix.byTicker[t]; ok {
			return id, ByTicker, true
		}
	}

	ix.queue(k)
	return 0, "", false
}

// CompanyByCVMCode looks up a company by regulator code only.
func (ix *Index) CompanyByCVMCode(code int) (int64, bool) {
	id, ok := ix.byCode[code]
	return id, ok
}

func (ix *Index) queue(k Keys) {
	if !ix.opts.AutoAdmit || k.TaxID == "" {
		return
	}
	if _, seen := ix.pending[k.TaxID]; seen {
		return
	}
	p := model.PendingAdmission{
		CNPJ:          k.TaxID,
		CompanyName:   k.Name,
		FirstSeenTask: ix.opts.Task,
		FirstSeenAt:   time.Now().UTC(),
	}
	if k.CVMCode != 0 {
		code := k.CVMCode
		p.CVMCode = &code
	}
	ix.pending[k.TaxID] = p
}

// Pending returns the queued issuers ordered by tax id.
func (ix *Index) Pending() []model.PendingAdmission {
	out := make([]model.PendingAdmission, 0, len(ix.pending))
	for _, p := range ix.pending {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.PendingAdmission) int { return strings.Compare(a.CNPJ, b.CNPJ) })
	return out
}

// ClearPending forgets queued issuers once they are persisted.
func (ix *Index) ClearPending() { clear(ix.pending) }

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

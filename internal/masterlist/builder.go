// Package masterlist reconciles the curated ticker universe with the
// regulator registry into the companies table.
package masterlist

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/audit"
	"github.com/mercadototal/cvm-ingest/internal/catalog"
	"github.com/mercadototal/cvm-ingest/internal/db"
	"github.com/mercadototal/cvm-ingest/internal/model"
	"github.com/mercadototal/cvm-ingest/internal/normalize"
	"github.com/mercadototal/cvm-ingest/internal/schema"
	"github.com/mercadototal/cvm-ingest/internal/warehouse"
)

// ErrNotRegistered means the regulator registry has no issuer for a code.
var ErrNotRegistered = eris.New("masterlist: issuer not in registry")

// ErrNoTickers means a registry issuer has no well-formed trading ticker.
var ErrNoTickers = eris.New("masterlist: issuer has no listed ticker")

// Mode selects how the companies table is written.
type Mode int

const (
	// Refresh upserts by tax id and marks vanished companies inactive.
	Refresh Mode = iota
	// Full truncates companies, cascading to every child table, and reloads it.
	Full
)

func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "refresh"
}

// Result summarizes a build.
type Result struct {
	Mode        Mode
	Companies   int
	Inactivated int64
	Fingerprint string
}

// Builder writes the master list.
type Builder struct {
	pool     db.Pool
	archives Archives
	catalog  *catalog.Catalog
	registry *schema.Registry
	norm     *normalize.Normalizer
	universe *Universe
	now      func() time.Time
	log      *zap.Logger
}

// NewBuilder returns a Builder.
func NewBuilder(pool db.Pool, archives Archives, cat *catalog.Catalog, reg *schema.Registry, u *Universe) *Builder {
	return &Builder{
		pool:     pool,
		archives: archives,
		catalog:  cat,
		registry: reg,
		norm:     normalize.New(),
		universe: u,
		now:      func() time.Time { return time.Now().UTC() },
		log:      zap.L().With(zap.String("component", "masterlist")),
	}
}

// Universe returns the curated universe the builder filters on.
func (b *Builder) Universe() *Universe { return b.universe }

// Build loads the sources, composes the master list and writes it.
func (b *Builder) Build(ctx context.Context, mode Mode) (*Result, error) {
	now := b.now()
	src, err := b.LoadSources(ctx, now.Year())
	if err != nil {
		return nil, err
	}

	companies := Compose(src, b.universe, now)
	if len(companies) == 0 {
		return nil, eris.New("masterlist: no curated ticker matched an active registry issuer")
	}

	res := &Result{Mode: mode, Companies: len(companies), Fingerprint: b.universe.Fingerprint()}
	switch mode {
	case Full:
		err = b.replaceAll(ctx, companies)
	default:
		res.Inactivated, err = b.upsert(ctx, companies, true)
	}
	if err != nil {
		return nil, err
	}

	log := audit.New(b.pool, audit.UniverseTask)
	if err := log.Record(ctx, audit.Unit{ReportKind: catalog.CAD, SubKind: audit.UniverseSubKind, Year: now.Year()},
		model.UnitComplete, audit.Result{
			RowsRead:    int64(len(src.Registry)),
			RowsWritten: int64(len(companies)),
			Detail:      audit.Detail{Fingerprint: res.Fingerprint},
		}, ""); err != nil {
		return nil, err
	}

	b.log.Info("master list built",
		zap.Stringer("mode", mode),
		zap.Int("companies", res.Companies),
		zap.Int64("inactivated", res.Inactivated),
		zap.Int("universe", b.universe.Len()),
	)
	return res, nil
}

// Compose joins the sources into the master list, sorted by tax id.
// An issuer is in when any of its tickers is curated; all of its tickers
// sharing a curated root come along.
func Compose(src *Sources, u *Universe, now time.Time) []model.Company {
	roots := make(map[string]map[string]bool)
	for _, s := range src.Securities {
		t := strings.ToUpper(strings.TrimSpace(s.Ticker))
		if !u.Contains(t) {
			continue
		}
		if roots[s.CNPJ] == nil {
			roots[s.CNPJ] = make(map[string]bool)
		}
		roots[s.CNPJ][t[:4]] = true
	}

	tickers := make(map[string][]string, len(roots))
	for _, s := range src.Securities {
		t := strings.ToUpper(strings.TrimSpace(s.Ticker))
		r, ok := roots[s.CNPJ]
		if !ok || !tickerPattern.MatchString(t) || !r[t[:4]] {
			continue
		}
		if !slices.Contains(tickers[s.CNPJ], t) {
			tickers[s.CNPJ] = append(tickers[s.CNPJ], t)
		}
	}

	registry := latestRegistration(src.Registry)

	var out []model.Company
	for cnpj, ts := range tickers {
		reg, ok := registry[cnpj]
		if !ok || reg.Status != string(model.CompanyActive) {
			continue
		}
		slices.Sort(ts)
		out = append(out, toCompany(reg, ts, websiteFor(src, reg), model.OriginUniverse, now))
	}
	slices.SortFunc(out, func(a, c model.Company) int { return strings.Compare(a.CNPJ, c.CNPJ) })
	return out
}

// latestRegistration keeps, per tax id, the row registered most recently.
func latestRegistration(rows []RegistryRow) map[string]RegistryRow {
	out := make(map[string]RegistryRow, len(rows))
	for _, r := range rows {
		if r.CNPJ == "" || r.CVMCode == 0 {
			continue
		}
		cur, ok := out[r.CNPJ]
		if !ok || newer(r.RegisteredAt, cur.RegisteredAt) {
			out[r.CNPJ] = r
		}
	}
	return out
}

func newer(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	return b == nil || a.After(*b)
}

func websiteFor(src *Sources, reg RegistryRow) string {
	if w, ok := src.Websites[reg.CNPJ]; ok {
		return w
	}
	return reg.Website
}

func toCompany(reg RegistryRow, tickers []string, website string, origin model.CompanyOrigin, now time.Time) model.Company {
	c := model.Company{
		CVMCode:      reg.CVMCode,
		CNPJ:         reg.CNPJ,
		CompanyName:  reg.Name,
		TradeName:    reg.TradeName,
		Status:       model.CompanyStatus(reg.Status),
		Origin:       origin,
		Sector:       reg.Sector,
		SectorTag:    Slug(reg.Sector),
		Tickers:      tickers,
		Website:      truncate(website, model.MaxWebsiteLen),
		RegisteredAt: reg.RegisteredAt,
		UpdatedAt:    now,
	}
	if c.Tickers == nil {
		c.Tickers = []string{}
	}
	if len(c.Tickers) > 0 {
		c.PrimaryTicker = c.Tickers[0]
	}
	return c
}

// Slug turns a free-text sector into a lowercase ASCII tag.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range schema.Fold(s) {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (b *Builder) replaceAll(ctx context.Context, companies []model.Company) error {
	batch := warehouse.Companies.Bind(companies)

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "masterlist: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	b.log.Warn("truncating companies and every dependent table")
	if _, err := tx.Exec(ctx, "TRUNCATE companies RESTART IDENTITY CASCADE"); err != nil {
		return eris.Wrap(err, "masterlist: truncate companies")
	}
	if _, err := db.CopyChunks(ctx, tx, warehouse.Companies.Name, batch.Columns, batch.Rows, 0); err != nil {
		return eris.Wrap(err, "masterlist: copy companies")
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "masterlist: commit tx")
	}
	return nil
}

// upsert writes companies by tax id. With inactivate set, active universe
// companies missing from the list become inactive and existing rows take the
// universe origin. Otherwise an existing row keeps its origin.
func (b *Builder) upsert(ctx context.Context, companies []model.Company, inactivate bool) (int64, error) {
	batch := warehouse.Companies.Bind(companies)
	cfg := db.UpsertConfig{
		Table:        warehouse.Companies.Name,
		Columns:      batch.Columns,
		ConflictKeys: warehouse.Companies.Key,
	}
	if !inactivate {
		for _, c := range batch.Columns {
			if c != "origin" && !slices.Contains(cfg.ConflictKeys, c) {
				cfg.UpdateCols = append(cfg.UpdateCols, c)
			}
		}
	}
	if _, err := db.BulkUpsert(ctx, b.pool, cfg, batch.Rows); err != nil {
		return 0, eris.Wrap(err, "masterlist: upsert companies")
	}
	if !inactivate {
		return 0, nil
	}

	cnpjs := make([]string, len(companies))
	for i, c := range companies {
		cnpjs[i] = c.CNPJ
	}
	tag, err := b.pool.Exec(ctx,
		`UPDATE companies SET status = 'inactive', updated_at = now()
		 WHERE status <> 'inactive' AND origin = 'universe' AND NOT (cnpj = ANY($1::text[]))`, cnpjs)
	if err != nil {
		return 0, eris.Wrap(err, "masterlist: mark vanished companies inactive")
	}
	return tag.RowsAffected(), nil
}

// Admit writes one registry issuer regardless of the universe and returns it.
// An issuer with no listed ticker is refused with ErrNoTickers.
func (b *Builder) Admit(ctx context.Context, cvmCode int) (*model.Company, error) {
	now := b.now()
	src, err := b.LoadSources(ctx, now.Year())
	if err != nil {
		return nil, err
	}

	var reg *RegistryRow
	for _, r := range latestRegistration(src.Registry) {
		if r.CVMCode == cvmCode && (reg == nil || newer(r.RegisteredAt, reg.RegisteredAt)) {
			reg = &r
		}
	}
	if reg == nil {
		return nil, eris.Wrapf(ErrNotRegistered, "cvm code %d", cvmCode)
	}

	tickers := issuerTickers(src, reg.CNPJ)
	if len(tickers) == 0 {
		return nil, eris.Wrapf(ErrNoTickers, "cvm code %d", cvmCode)
	}
	c := toCompany(*reg, tickers, websiteFor(src, *reg), model.OriginDeepDive, now)
	if _, err := b.upsert(ctx, []model.Company{c}, false); err != nil {
		return nil, err
	}
	b.log.Info("company admitted", zap.Int("cvm_code", cvmCode), zap.String("cnpj", c.CNPJ))
	return &c, nil
}

// AdmitPending admits queued issuers that are active in the registry and
// carry at least one ticker, and stamps them admitted. The rest stay queued.
// It returns how many were admitted.
func (b *Builder) AdmitPending(ctx context.Context) (int, error) {
	rows, err := b.pool.Query(ctx,
		"SELECT cnpj FROM company_admission_queue WHERE admitted_at IS NULL ORDER BY first_seen_at, cnpj")
	if err != nil {
		return 0, eris.Wrap(err, "masterlist: list pending admissions")
	}
	var pending []string
	for rows.Next() {
		var cnpj string
		if err := rows.Scan(&cnpj); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "masterlist: scan pending admission")
		}
		pending = append(pending, cnpj)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "masterlist: list pending admissions")
	}
	if len(pending) == 0 {
		return 0, nil
	}

	now := b.now()
	src, err := b.LoadSources(ctx, now.Year())
	if err != nil {
		return 0, err
	}
	registry := latestRegistration(src.Registry)

	var (
		admitted []model.Company
		cnpjs    []string
	)
	for _, cnpj := range pending {
		reg, ok := registry[cnpj]
		if !ok || reg.Status != string(model.CompanyActive) {
			continue
		}
		tickers := issuerTickers(src, cnpj)
		if len(tickers) == 0 {
			b.log.Debug("queued issuer has no ticker", zap.String("cnpj", cnpj))
			continue
		}
		admitted = append(admitted, toCompany(reg, tickers, websiteFor(src, reg), model.OriginAutoAdmit, now))
		cnpjs = append(cnpjs, cnpj)
	}
	if len(admitted) == 0 {
		return 0, nil
	}

	if _, err := b.upsert(ctx, admitted, false); err != nil {
		return 0, err
	}
	if _, err := b.pool.Exec(ctx,
		"UPDATE company_admission_queue SET admitted_at = now() WHERE cnpj = ANY($1::text[])", cnpjs); err != nil {
		return 0, eris.Wrap(err, "masterlist: stamp admissions")
	}
	b.log.Info("pending companies admitted", zap.Int("admitted", len(admitted)), zap.Int("pending", len(pending)))
	return len(admitted), nil
}

// issuerTickers returns every well-formed ticker of an issuer, sorted.
func issuerTickers(src *Sources, cnpj string) []string {
	var out []string
	for _, s := range src.Securities {
		t := strings.ToUpper(strings.TrimSpace(s.Ticker))
		if s.CNPJ == cnpj && tickerPattern.MatchString(t) && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

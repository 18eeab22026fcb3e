package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mercadototal/cvm-ingest/internal/audit"
	"github.com/mercadototal/cvm-ingest/internal/catalog"
	"github.com/mercadototal/cvm-ingest/internal/db"
	"github.com/mercadototal/cvm-ingest/internal/fetcher"
	"github.com/mercadototal/cvm-ingest/internal/insider"
	"github.com/mercadototal/cvm-ingest/internal/masterlist"
	"github.com/mercadototal/cvm-ingest/internal/model"
	"github.com/mercadototal/cvm-ingest/internal/normalize"
	"github.com/mercadototal/cvm-ingest/internal/resolve"
	"github.com/mercadototal/cvm-ingest/internal/schema"
	"github.com/mercadototal/cvm-ingest/internal/warehouse"
)

// Audit sub-kinds of units that are not archive members.
const (
	archiveSubKind    = "archive"
	reportsSubKind    = "financial_reports"
	admissionSubKind  = "admission"
	extractionSubKind = "insider_extraction"
)

// MasterList is the part of the master-list builder a run drives.
type MasterList interface {
	Build(ctx context.Context, mode masterlist.Mode) (*masterlist.Result, error)
	Admit(ctx context.Context, cvmCode int) (*model.Company, error)
	AdmitPending(ctx context.Context) (int, error)
	Universe() *masterlist.Universe
}

// Config tunes the engine.
type Config struct {
	StartYear  int
	FetchDelay time.Duration // pause between archive downloads
	ChunkSize  int
	AutoAdmit  bool

	ExtractInsiders   bool
	MaxDocuments      int
	InsiderCategories []string
}

// Engine runs ingestion tasks.
type Engine struct {
	pool      db.Pool
	archives  masterlist.Archives
	catalog   *catalog.Catalog
	registry  *schema.Registry
	norm      *normalize.Normalizer
	writer    *warehouse.Writer
	master    MasterList
	extractor insider.Extractor
	cfg       Config
	pause     *rate.Limiter
	now       func() time.Time
	log       *zap.Logger
}

// NewEngine returns an Engine.
func NewEngine(pool db.Pool, archives masterlist.Archives, cat *catalog.Catalog, reg *schema.Registry, master MasterList, cfg Config) *Engine {
	limit := rate.Inf
	if cfg.FetchDelay > 0 {
		limit = rate.Every(cfg.FetchDelay)
	}
	return &Engine{
		pool:     pool,
		archives: archives,
		catalog:  cat,
		registry: reg,
		norm:     normalize.New(),
		writer:   warehouse.NewWriter(pool, cfg.ChunkSize),
		master:   master,
		cfg:      cfg,
		pause:    rate.NewLimiter(limit, 1),
		now:      func() time.Time { return time.Now().UTC() },
		log:      zap.L().With(zap.String("component", "ingest")),
	}
}

// WithExtractor sets the insider document extractor. Without one, document
// extraction is skipped.
func (e *Engine) WithExtractor(x insider.Extractor) *Engine {
	e.extractor = x
	return e
}

// run is the state of one Run call.
type run struct {
	opts    RunOptions
	audit   *audit.Log
	index   *resolve.Index
	only    int64 // company filter of a deep dive
	touched bool
	summary *Summary
	log     *zap.Logger
}

// Run executes a task. Unit failures are audited and absorbed; the returned
// error is fatal (bad options, database unusable, audit unwritable, or the
// run was interrupted). The summary is returned whenever a run started.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	years, err := e.years(opts)
	if err != nil {
		return nil, err
	}

	r := &run{opts: opts, audit: audit.New(e.pool, string(opts.Task))}
	r.summary = &Summary{RunID: r.audit.RunID(), Task: opts.Task}
	r.log = e.log.With(zap.String("task", string(opts.Task)), zap.String("run_id", r.audit.RunID()))
	r.log.Info("run started", zap.Ints("years", years), zap.Strings("kinds", opts.Task.Kinds()))

	switch opts.Task {
	case DailyUpdate:
		if err := e.refreshMasterList(ctx, r); err != nil {
			return r.summary, err
		}
	case CompanyDeepDive:
		c, err := e.master.Admit(ctx, opts.CVMCode)
		if err != nil {
			return r.summary, err
		}
		r.log.Info("deep dive company admitted", zap.String("cnpj", c.CNPJ))
	}

	r.index, err = resolve.Load(ctx, e.pool, resolve.Options{
		AutoAdmit: e.cfg.AutoAdmit && opts.Task != CompanyDeepDive,
		Task:      string(opts.Task),
	})
	if err != nil {
		return r.summary, eris.Wrap(err, "ingest: load identity index")
	}
	if opts.Task == CompanyDeepDive {
		id, ok := r.index.CompanyByCVMCode(opts.CVMCode)
		if !ok {
			return r.summary, eris.Errorf("ingest: cvm code %d admitted but not indexed", opts.CVMCode)
		}
		r.only = id
	}

	kinds, err := e.kinds(opts.Task)
	if err != nil {
		return r.summary, err
	}

years:
	for _, year := range years {
		for _, kind := range kinds {
			if ctx.Err() != nil {
				r.summary.Interrupted = true
				break years
			}
			if err := e.runKind(ctx, r, kind, year); err != nil {
				return r.summary, err
			}
		}
	}
	if r.summary.Interrupted {
		r.log.Warn("run interrupted", zap.Int("units", len(r.summary.Units)))
		return r.summary, eris.Wrap(ctx.Err(), "ingest: run interrupted")
	}

	if err := e.finish(ctx, r); err != nil {
		return r.summary, err
	}

	read, written, rejected := r.summary.Totals()
	r.log.Info("run complete",
		zap.Int("units", len(r.summary.Units)),
		zap.Int("failed", r.summary.Failed()),
		zap.Int64("rows_read", read),
		zap.Int64("rows_written", written),
		zap.Int64("rows_rejected", rejected),
	)
	return r.summary, nil
}

// years returns the years a run covers, ascending.
func (e *Engine) years(opts RunOptions) ([]int, error) {
	if _, ok := taskKinds[opts.Task]; !ok {
		return nil, eris.Wrapf(ErrInvalidOptions, "unknown task %q", opts.Task)
	}
	if opts.Task == CompanyDeepDive && opts.CVMCode <= 0 {
		return nil, eris.Wrap(ErrInvalidOptions, "company-deep-dive requires a cvm code")
	}

	current := e.now().Year()
	if opts.Year != 0 {
		if opts.Year > current {
			return nil, eris.Wrapf(ErrInvalidOptions, "year %d is in the future", opts.Year)
		}
		return []int{opts.Year}, nil
	}
	if opts.Task == DailyUpdate {
		return []int{current}, nil
	}

	start := e.cfg.StartYear
	if start == 0 || start > current {
		start = current - 10
	}
	years := make([]int, 0, current-start+1)
	for y := start; y <= current; y++ {
		years = append(years, y)
	}
	return years, nil
}

// kinds returns the task's report kinds in catalog order.
func (e *Engine) kinds(t Task) ([]catalog.Kind, error) {
	want := make(map[string]bool)
	for _, code := range t.Kinds() {
		want[code] = true
	}
	var out []catalog.Kind
	for _, k := range e.catalog.Kinds() {
		if want[k.Code] {
			out = append(out, k)
		}
	}
	if len(out) != len(want) {
		return nil, eris.Errorf("ingest: catalog lacks kinds of task %s", t)
	}
	return out, nil
}

// record audits a finished unit and adds it to the summary. A failure to
// audit is fatal.
func (e *Engine) record(ctx context.Context, r *run, u audit.Unit, status model.UnitStatus, res audit.Result, unitErr error) error {
	msg := errString(unitErr)
	r.summary.add(u, status, res, msg)
	if err := r.audit.Record(context.WithoutCancel(ctx), u, status, res, msg); err != nil {
		return eris.Wrap(err, "ingest: audit unit")
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// runKind fetches one archive and ingests each of its sub-kinds.
func (e *Engine) runKind(ctx context.Context, r *run, kind catalog.Kind, year int) error {
	log := r.log.With(zap.String("kind", kind.Code), zap.Int("year", year))
	archiveUnit := audit.Unit{ReportKind: kind.Code, SubKind: archiveSubKind, Year: year}

	url, err := e.catalog.URL(kind.Code, year)
	if err != nil {
		return err
	}
	if err := e.pause.Wait(ctx); err != nil && ctx.Err() != nil {
		return nil
	}

	var archive *fetcher.Archive
	if kind.IsZip() {
		archive, err = e.archives.Fetch(ctx, url)
	} else {
		archive, err = e.archives.FetchCSV(ctx, url)
	}
	if err != nil {
		log.Error("archive fetch failed", zap.String("url", url), zap.Error(err))
		return e.record(ctx, r, archiveUnit, model.UnitFailed, audit.Result{}, err)
	}
	if archive.NotPublished {
		log.Info("archive not published", zap.String("url", url))
		return e.record(ctx, r, archiveUnit, model.UnitNotPublished, audit.Result{}, nil)
	}

	statements := false
	for _, sk := range kind.SubKinds {
		if ctx.Err() != nil {
			return nil
		}
		name, ok := sk.FindMember(archive.Names(), year)
		if !ok {
			log.Debug("member absent", zap.String("sub_kind", sk.Name), zap.String("member", sk.MemberName(year)))
			continue
		}

		u := audit.Unit{ReportKind: kind.Code, SubKind: sk.Name, Year: year}
		id, err := r.audit.Start(ctx, u)
		if err != nil {
			return eris.Wrap(err, "ingest: audit unit")
		}

		start := time.Now()
		res, unitErr := e.runUnit(ctx, r, kind, sk, archive, name, year)
		res.Detail.ArchiveSize = archive.Size
		res.Detail.CacheHit = archive.CacheHit

		status := model.UnitComplete
		if unitErr != nil {
			status = model.UnitFailed
			log.Error("unit failed", zap.String("sub_kind", sk.Name), zap.Error(unitErr))
		} else {
			log.Info("unit complete",
				zap.String("sub_kind", sk.Name),
				zap.Int64("rows_read", res.RowsRead),
				zap.Int64("rows_written", res.RowsWritten),
				zap.Int64("rows_rejected", res.RowsRejected),
				zap.Duration("elapsed", time.Since(start)),
			)
		}

		msg := errString(unitErr)
		r.summary.add(u, status, res, msg)
		if err := r.audit.Finish(context.WithoutCancel(ctx), id, status, res, msg); err != nil {
			return eris.Wrap(err, "ingest: audit unit")
		}
		if db.IsFatal(unitErr) {
			return unitErr
		}
		if unitErr == nil && res.RowsWritten > 0 {
			r.touched = true
			statements = statements || sk.IsStatement()
		}
	}

	if statements {
		if _, err := e.writer.RefreshReports(ctx, kind.ReportKind, year); err != nil {
			log.Error("report refresh failed", zap.Error(err))
			if db.IsFatal(err) {
				return err
			}
			if err := e.record(ctx, r, audit.Unit{ReportKind: kind.Code, SubKind: reportsSubKind, Year: year},
				model.UnitFailed, audit.Result{}, err); err != nil {
				return err
			}
		}
	}

	if kind.Code == catalog.IPE && r.opts.Task.extractsInsiders() {
		return e.extractInsiders(ctx, r, year)
	}
	return nil
}

// refreshMasterList rebuilds the master list when the curated universe
// changed since the last build, then admits queued companies.
func (e *Engine) refreshMasterList(ctx context.Context, r *run) error {
	u := audit.Unit{ReportKind: catalog.CAD, SubKind: audit.UniverseSubKind, Year: e.now().Year()}

	last, err := audit.LastFingerprint(ctx, e.pool)
	if err != nil {
		return err
	}
	if fp := e.master.Universe().Fingerprint(); fp != last {
		r.log.Info("universe changed, refreshing master list", zap.String("fingerprint", fp))
		res, err := e.master.Build(ctx, masterlist.Refresh)
		if err != nil {
			if db.IsFatal(err) {
				return err
			}
			r.log.Error("master list refresh failed", zap.Error(err))
			if err := e.record(ctx, r, u, model.UnitFailed, audit.Result{}, err); err != nil {
				return err
			}
		} else {
			r.summary.add(u, model.UnitComplete, audit.Result{RowsWritten: int64(res.Companies)}, "")
		}
	}

	admitted, err := e.master.AdmitPending(ctx)
	if err != nil {
		if db.IsFatal(err) {
			return err
		}
		r.log.Error("pending admission failed", zap.Error(err))
		u.SubKind = admissionSubKind
		return e.record(ctx, r, u, model.UnitFailed, audit.Result{}, err)
	}
	r.summary.Admitted = admitted
	return nil
}

// finish flushes the admission queue and recomputes availability flags.
func (e *Engine) finish(ctx context.Context, r *run) error {
	pending := r.index.Pending()
	if len(pending) > 0 {
		n, err := e.writer.EnqueuePending(ctx, pending)
		if err != nil {
			if db.IsFatal(err) {
				return err
			}
			r.log.Error("queueing pending admissions failed", zap.Error(err))
		} else {
			r.summary.Queued = n
			r.index.ClearPending()
			r.log.Info("unknown issuers queued for admission", zap.Int("pending", len(pending)), zap.Int64("new", n))
		}
	}

	if !r.touched {
		return nil
	}
	if _, err := e.writer.RefreshAvailability(ctx); err != nil {
		if db.IsFatal(err) {
			return err
		}
		r.log.Error("availability refresh failed", zap.Error(err))
	}
	return nil
}

// IsInvalid reports whether err comes from options the caller must fix.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidOptions) || errors.Is(err, masterlist.ErrNotRegistered) ||
		errors.Is(err, masterlist.ErrNoTickers)
}

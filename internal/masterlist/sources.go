package masterlist

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/catalog"
	"github.com/mercadototal/cvm-ingest/internal/fetcher"
	"github.com/mercadototal/cvm-ingest/internal/normalize"
	"github.com/mercadototal/cvm-ingest/internal/schema"
)

// RegistryRow is one issuer of the regulator's registration file.
type RegistryRow struct {
	CNPJ         string
	CVMCode      int
	Name         string
	TradeName    string
	Sector       string
	Status       string
	Website      string
	RegisteredAt *time.Time
}

// SecurityRow maps an issuer to one negotiable ticker.
type SecurityRow struct {
	CNPJ   string
	Ticker string
}

// Sources are the regulator inputs of a build.
type Sources struct {
	Registry   []RegistryRow
	Securities []SecurityRow
	Websites   map[string]string // tax id to website from the general member
	FCAYear    int
}

// Archives is the subset of fetcher.ArchiveFetcher the builder needs.
type Archives interface {
	Fetch(ctx context.Context, url string) (*fetcher.Archive, error)
	FetchCSV(ctx context.Context, url string) (*fetcher.Archive, error)
}

// LoadSources downloads the registry file and the registration archive of
// year, falling back to the previous year when it is not yet published.
func (b *Builder) LoadSources(ctx context.Context, year int) (*Sources, error) {
	src := &Sources{Websites: make(map[string]string)}

	cad, err := b.catalog.Kind(catalog.CAD)
	if err != nil {
		return nil, err
	}
	url, err := b.catalog.URL(catalog.CAD, year)
	if err != nil {
		return nil, err
	}
	archive, err := b.archives.FetchCSV(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "masterlist: fetch registry")
	}
	if archive.NotPublished {
		return nil, eris.Errorf("masterlist: registry not published at %s", url)
	}
	records, err := b.decode(cad, "registry", archive, year)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		code, _ := r.Int(schema.CVMCode)
		row := RegistryRow{
			CNPJ:      r.Text(schema.CNPJ),
			CVMCode:   int(code),
			Name:      r.Text(schema.CompanyName),
			TradeName: r.Text(schema.TradeName),
			Sector:    r.Text(schema.Sector),
			Status:    r.Text(schema.StatusField),
			Website:   r.Text(schema.Website),
		}
		if t, ok := r.Time(schema.RegistrationDate); ok {
			row.RegisteredAt = &t
		}
		src.Registry = append(src.Registry, row)
	}

	fca, err := b.catalog.Kind(catalog.FCA)
	if err != nil {
		return nil, err
	}
	for _, y := range []int{year, year - 1} {
		url, err := b.catalog.URL(catalog.FCA, y)
		if err != nil {
			return nil, err
		}
		archive, err = b.archives.Fetch(ctx, url)
		if err != nil {
			return nil, eris.Wrapf(err, "masterlist: fetch registration archive %d", y)
		}
		if !archive.NotPublished {
			src.FCAYear = y
			break
		}
		b.log.Info("registration archive not published, trying previous year", zap.Int("year", y))
	}
	if src.FCAYear == 0 {
		return nil, eris.Errorf("masterlist: no registration archive for %d or %d", year, year-1)
	}

	securities, err := b.decode(fca, "valor_mobiliario", archive, src.FCAYear)
	if err != nil {
		return nil, err
	}
	for _, r := range securities {
		if t := r.Text(schema.Ticker); t != "" {
			src.Securities = append(src.Securities, SecurityRow{CNPJ: r.Text(schema.CNPJ), Ticker: t})
		}
	}

	general, err := b.decode(fca, "geral", archive, src.FCAYear)
	if err != nil {
		return nil, err
	}
	for _, r := range general {
		if w := r.Text(schema.Website); w != "" {
			if _, ok := src.Websites[r.Text(schema.CNPJ)]; !ok {
				src.Websites[r.Text(schema.CNPJ)] = w
			}
		}
	}

	b.log.Info("master list sources loaded",
		zap.Int("registry", len(src.Registry)),
		zap.Int("securities", len(src.Securities)),
		zap.Int("websites", len(src.Websites)),
		zap.Int("fca_year", src.FCAYear),
	)
	return src, nil
}

// decode binds and normalizes one member, dropping rejected rows.
func (b *Builder) decode(kind catalog.Kind, subKind string, archive *fetcher.Archive, year int) ([]normalize.Record, error) {
	sk, ok := kind.SubKind(subKind)
	if !ok {
		return nil, eris.Errorf("masterlist: %s has no sub-kind %s", kind.Code, subKind)
	}
	name, ok := sk.FindMember(archive.Names(), year)
	if !ok {
		return nil, eris.Errorf("masterlist: %s member %s missing from %s", kind.Code, sk.MemberName(year), archive.URL)
	}
	frame, _ := archive.Member(name)

	descs, err := b.registry.Lookup(kind.Code, sk.Layout)
	if err != nil {
		return nil, err
	}
	binding, err := b.registry.Bind(descs, frame.Header)
	if err != nil {
		return nil, eris.Wrapf(err, "masterlist: bind %s", name)
	}

	var (
		records []normalize.Record
		stats   normalize.Stats
	)
	for rec, rej := range b.norm.Records(frame, binding) {
		stats.Read++
		if rej != nil {
			stats.Reject(rej)
			continue
		}
		records = append(records, rec)
	}
	if stats.Rejected > 0 {
		b.log.Warn("rows rejected",
			zap.String("member", name),
			zap.Int("rejected", stats.Rejected),
			zap.Any("reasons", stats.Histogram()),
		)
	}
	return records, nil
}

package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/catalog"
	"github.com/mercadototal/cvm-ingest/internal/fetcher"
	"github.com/mercadototal/cvm-ingest/internal/masterlist"
	"github.com/mercadototal/cvm-ingest/internal/migrate"
	"github.com/mercadototal/cvm-ingest/internal/schema"
	"github.com/mercadototal/cvm-ingest/internal/warehouse"
)

// ingestEnv holds the connections and registries every command shares.
type ingestEnv struct {
	Pool     *pgxpool.Pool
	Cache    *fetcher.ArchiveCache // nil without INGEST_CACHE_DIR
	HTTP     *fetcher.HTTPFetcher
	Archives *fetcher.ArchiveFetcher
	Catalog  *catalog.Catalog
	Registry *schema.Registry
}

// Close releases the pool and the archive cache.
func (e *ingestEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// openPool connects to the warehouse and checks the connection.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, eris.Wrap(err, "create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping database")
	}
	zap.L().Debug("connected to database", zap.String("host", cfg.Database.Host))
	return pool, nil
}

// initEnv connects, brings the schema up to date and prepares the fetchers.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*ingestEnv, error) {
	pool, err := openPool(ctx)
	if err != nil {
		return nil, err
	}
	env := &ingestEnv{Pool: pool}

	if _, err := migrate.Run(ctx, pool, warehouse.Tables); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate schema")
	}

	if cfg.Cache.Dir != "" {
		env.Cache, err = fetcher.OpenArchiveCache(ctx, cfg.Cache.Dir)
		if err != nil {
			env.Close()
			return nil, err
		}
	}

	env.HTTP = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   cfg.Ingest.UserAgent,
		Timeout:     cfg.Ingest.HTTPTimeout(),
		MaxAttempts: cfg.Ingest.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Ingest.RetryBaseSeconds * float64(time.Second)),
	})
	env.Archives = fetcher.NewArchiveFetcher(env.HTTP, env.Cache)

	env.Catalog, err = catalog.Load(cfg.Ingest.BaseURL)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Registry = schema.Default()
	return env, nil
}

// loadUniverse reads the curated universe and merges the tickers of the
// optional reference page. A failed scrape keeps the file's universe.
func loadUniverse(ctx context.Context, f fetcher.Fetcher) (*masterlist.Universe, error) {
	u, err := masterlist.LoadUniverse(cfg.Universe.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Universe.ReferenceURL == "" {
		return u, nil
	}

	tickers, err := masterlist.ScrapeReference(ctx, f, cfg.Universe.ReferenceURL)
	if err != nil {
		zap.L().Warn("reference page scrape failed, using universe file only",
			zap.String("url", cfg.Universe.ReferenceURL), zap.Error(err))
		return u, nil
	}
	added := u.Merge(tickers)
	zap.L().Info("reference tickers merged", zap.Int("scraped", len(tickers)), zap.Int("added", added))
	return u, nil
}

// newBuilder returns the master-list builder over env.
func newBuilder(ctx context.Context, env *ingestEnv) (*masterlist.Builder, error) {
	u, err := loadUniverse(ctx, env.HTTP)
	if err != nil {
		return nil, err
	}
	return masterlist.NewBuilder(env.Pool, env.Archives, env.Catalog, env.Registry, u), nil
}

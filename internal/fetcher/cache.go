package fetcher

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// CacheEntry describes one archive kept on disk.
type CacheEntry struct {
	URL       string
	Path      string
	ETag      string
	Size      int64
	SHA256    string
	FetchedAt time.Time
}

// ArchiveCache keeps downloaded archives in a directory and indexes them in a
// SQLite database next to the files.
type ArchiveCache struct {
	dir string
	db  *sql.DB
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS archives (
	url        TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	etag       TEXT NOT NULL DEFAULT '',
	size       INTEGER NOT NULL,
	sha256     TEXT NOT NULL,
	fetched_at DATETIME NOT NULL
);
`

// OpenArchiveCache creates dir if needed and opens its index.db.
func OpenArchiveCache(ctx context.Context, dir string) (*ArchiveCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create %s", dir)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, eris.Wrap(err, "cache: open index")
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		cacheSchema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "cache: init index")
		}
	}
	return &ArchiveCache{dir: dir, db: db}, nil
}

// Close closes the index.
func (c *ArchiveCache) Close() error {
	return c.db.Close()
}

// Lookup returns the entry for url, or nil when none is cached.
func (c *ArchiveCache) Lookup(ctx context.Context, url string) (*CacheEntry, error) {
	var e CacheEntry
	err := c.db.QueryRowContext(ctx,
		`SELECT url, path, etag, size, sha256, fetched_at FROM archives WHERE url = ?`, url,
	).Scan(&e.URL, &e.Path, &e.ETag, &e.Size, &e.SHA256, &e.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: lookup %s", url)
	}
	return &e, nil
}

// Read loads the cached bytes and verifies their checksum.
func (c *ArchiveCache) Read(e *CacheEntry) ([]byte, error) {
	if e == nil {
		return nil, eris.New("cache: no entry")
	}
	data, err := os.ReadFile(e.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "cache: read %s", e.Path)
	}
	if checksum(data) != e.SHA256 {
		return nil, eris.Errorf("cache: checksum mismatch for %s", e.Path)
	}
	return data, nil
}

// Store writes data to disk and records it under url.
func (c *ArchiveCache) Store(ctx context.Context, url, etag string, data []byte) error {
	sum := checksum(data)
	path := filepath.Join(c.dir, sum[:16]+filepath.Ext(url))

	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "cache: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "cache: rename %s", tmp)
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO archives (url, path, etag, size, sha256, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			path = excluded.path, etag = excluded.etag, size = excluded.size,
			sha256 = excluded.sha256, fetched_at = excluded.fetched_at`,
		url, path, etag, int64(len(data)), sum, time.Now().UTC(),
	)
	return eris.Wrapf(err, "cache: index %s", url)
}

// Evict drops url from the index. Failures are logged only.
func (c *ArchiveCache) Evict(ctx context.Context, url string) {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM archives WHERE url = ?`, url); err != nil {
		zap.L().Warn("cache: evict failed", zap.String("url", url), zap.Error(err))
	}
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

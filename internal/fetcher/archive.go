package fetcher

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Archive is the unpacked content of one remote resource.
type Archive struct {
	URL          string
	NotPublished bool // the server answered 404
	Size         int64
	CacheHit     bool
	Members      map[string]*Frame
}

// Member looks a member up by name, ignoring case.
func (a *Archive) Member(name string) (*Frame, bool) {
	if f, ok := a.Members[name]; ok {
		return f, true
	}
	for k, f := range a.Members {
		if strings.EqualFold(k, name) {
			return f, true
		}
	}
	return nil, false
}

// Names returns the member names in lexical order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.Members))
	for k := range a.Members {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ArchiveFetcher downloads archives, optionally through an on-disk cache,
// and parses their members into frames.
type ArchiveFetcher struct {
	fetcher Fetcher
	cache   *ArchiveCache
	log     *zap.Logger
}

// NewArchiveFetcher wraps f. cache may be nil.
func NewArchiveFetcher(f Fetcher, cache *ArchiveCache) *ArchiveFetcher {
	return &ArchiveFetcher{
		fetcher: f,
		cache:   cache,
		log:     zap.L().With(zap.String("component", "fetcher")),
	}
}

// Fetch downloads a ZIP archive and parses every CSV member. A 404 yields an
// empty archive with NotPublished set and no error.
func (a *ArchiveFetcher) Fetch(ctx context.Context, url string) (*Archive, error) {
	archive, data, err := a.fetch(ctx, url)
	if err != nil || archive.NotPublished {
		return archive, err
	}

	raw, err := ReadZIP(data)
	if err != nil {
		if a.cache != nil {
			a.cache.Evict(ctx, url)
		}
		return nil, eris.Wrapf(err, "archive %s", url)
	}

	archive.Members = make(map[string]*Frame, len(raw))
	for name, content := range raw {
		frame, err := ParseFrame(name, content)
		if err != nil {
			return nil, eris.Wrapf(err, "archive %s", url)
		}
		archive.Members[name] = frame
	}

	a.log.Info("archive fetched",
		zap.String("url", url),
		zap.Int64("bytes", archive.Size),
		zap.Bool("cache_hit", archive.CacheHit),
		zap.Int("members", len(archive.Members)),
	)
	return archive, nil
}

// FetchCSV downloads a plain CSV resource into a single-member archive keyed
// by the resource's file name.
func (a *ArchiveFetcher) FetchCSV(ctx context.Context, url string) (*Archive, error) {
	archive, data, err := a.fetch(ctx, url)
	if err != nil || archive.NotPublished {
		return archive, err
	}

	name := path.Base(url)
	frame, err := ParseFrame(name, data)
	if err != nil {
		return nil, eris.Wrapf(err, "csv %s", url)
	}
	archive.Members = map[string]*Frame{name: frame}
	return archive, nil
}

func (a *ArchiveFetcher) fetch(ctx context.Context, url string) (*Archive, []byte, error) {
	archive := &Archive{URL: url}

	var (
		data []byte
		hit  bool
		err  error
	)
	if a.cache != nil {
		data, hit, err = a.fetchCached(ctx, url)
	} else {
		data, err = a.fetchDirect(ctx, url)
	}
	if errors.Is(err, ErrNotFound) {
		a.log.Info("archive not published", zap.String("url", url))
		archive.NotPublished = true
		return archive, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	archive.Size = int64(len(data))
	archive.CacheHit = hit
	return archive, data, nil
}

func (a *ArchiveFetcher) fetchDirect(ctx context.Context, url string) ([]byte, error) {
	body, err := a.fetcher.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "read body %s", url)
	}
	return data, nil
}

// fetchCached revalidates a cached copy with its ETag and only downloads the
// body when the server reports a change.
func (a *ArchiveFetcher) fetchCached(ctx context.Context, url string) ([]byte, bool, error) {
	entry, err := a.cache.Lookup(ctx, url)
	if err != nil {
		return nil, false, err
	}
	etag := ""
	if entry != nil {
		etag = entry.ETag
	}

	body, newETag, changed, err := a.fetcher.DownloadIfChanged(ctx, url, etag)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		data, err := a.cache.Read(entry)
		if err == nil {
			return data, true, nil
		}
		a.log.Warn("cached archive unreadable, downloading again",
			zap.String("url", url), zap.Error(err))
		data, err = a.fetchDirect(ctx, url)
		if err != nil {
			return nil, false, err
		}
		if err := a.cache.Store(ctx, url, "", data); err != nil {
			return nil, false, err
		}
		return data, false, nil
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, false, eris.Wrapf(err, "read body %s", url)
	}
	if err := a.cache.Store(ctx, url, newETag, data); err != nil {
		return nil, false, err
	}
	return data, false, nil
}

package masterlist

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocarina/gocsv"
	"github.com/rotisserie/eris"

	"github.com/mercadototal/cvm-ingest/internal/fetcher"
)

//go:embed universe.csv
var embeddedUniverse []byte

// tickerPattern matches exchange tickers such as PETR4 or TAEE11.
var tickerPattern = regexp.MustCompile(`^[A-Z]{4}\d{1,2}$`)

// Entry is one line of the curated universe file.
type Entry struct {
	Ticker string `csv:"ticker"`
	Name   string `csv:"name"`
}

// Universe is the curated set of in-scope tickers.
type Universe struct {
	entries map[string]Entry
}

// LoadUniverse reads the universe file at path, or the embedded list when
// path is empty.
func LoadUniverse(path string) (*Universe, error) {
	data := embeddedUniverse
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "masterlist: read universe %s", path)
		}
	}
	return ParseUniverse(data)
}

// ParseUniverse decodes a ticker,name CSV.
func ParseUniverse(data []byte) (*Universe, error) {
	var entries []Entry
	if err := gocsv.UnmarshalBytes(data, &entries); err != nil {
		return nil, eris.Wrap(err, "masterlist: parse universe")
	}

	u := &Universe{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		u.Add(e.Ticker, strings.TrimSpace(e.Name))
	}
	if u.Len() == 0 {
		return nil, eris.New("masterlist: universe is empty")
	}
	return u, nil
}

// Add puts a ticker in the universe. Malformed tickers are ignored.
func (u *Universe) Add(ticker, name string) bool {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(t) {
		return false
	}
	if _, ok := u.entries[t]; ok {
		return false
	}
	u.entries[t] = Entry{Ticker: t, Name: name}
	return true
}

// Merge adds tickers scraped from a reference page and returns how many
// were new.
func (u *Universe) Merge(tickers []string) int {
	n := 0
	for _, t := range tickers {
		if u.Add(t, "") {
			n++
		}
	}
	return n
}

// Contains reports whether ticker is curated.
func (u *Universe) Contains(ticker string) bool {
	_, ok := u.entries[strings.ToUpper(strings.TrimSpace(ticker))]
	return ok
}

// Len returns the number of tickers.
func (u *Universe) Len() int { return len(u.entries) }

// Tickers returns the tickers in sorted order.
func (u *Universe) Tickers() []string {
	out := make([]string, 0, len(u.entries))
	for t := range u.entries {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Roots returns the four-letter issuer roots of the curated tickers.
func (u *Universe) Roots() map[string]bool {
	roots := make(map[string]bool, len(u.entries))
	for t := range u.entries {
		roots[t[:4]] = true
	}
	return roots
}

// Fingerprint hashes the sorted ticker set.
func (u *Universe) Fingerprint() string {
	h := sha256.New()
	for _, t := range u.Tickers() {
		io.WriteString(h, t)    //nolint:errcheck
		io.WriteString(h, "\n") //nolint:errcheck
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ScrapeReference collects the tickers listed on an HTML reference page,
// such as an index composition table.
func ScrapeReference(ctx context.Context, f fetcher.Fetcher, url string) ([]string, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "masterlist: fetch reference %s", url)
	}
	defer body.Close() //nolint:errcheck

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, eris.Wrap(err, "masterlist: parse reference page")
	}

	seen := make(map[string]bool)
	var tickers []string
	doc.Find("table td, table th, li").Each(func(_ int, cell *goquery.Selection) {
		t := strings.ToUpper(strings.TrimSpace(cell.Text()))
		if tickerPattern.MatchString(t) && !seen[t] {
			seen[t] = true
			tickers = append(tickers, t)
		}
	})
	if len(tickers) == 0 {
		return nil, eris.Errorf("masterlist: no tickers found at %s", url)
	}
	return tickers, nil
}

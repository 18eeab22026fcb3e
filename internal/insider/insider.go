// Package insider turns insider-trading disclosure documents into typed
// transactions. PDF handling stays behind the Extractor interface.
package insider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/fetcher"
)

// ErrParseFailure marks a document that was read but yielded no usable
// structure. The filing is still recorded, with zero transactions.
var ErrParseFailure = eris.New("insider: document could not be parsed")

// Transaction is one movement of the monthly table.
type Transaction struct {
	PersonGroup         string
	Date                *time.Time
	Operation           string // buy, sell or other
	AssetType           string
	AssetCharacteristic string
	Intermediary        string
	Quantity            int64 // positive only for buys
	RawQuantity         string
	UnitPrice           decimal.NullDecimal
	TotalValue          decimal.NullDecimal
}

// Document is the parsed content of one disclosure.
type Document struct {
	IssuerTaxID     string
	ReferencePeriod *time.Time // first day of the month
	Transactions    []Transaction
}

// Extractor reads a disclosure from a URL or local path.
type Extractor interface {
	Extract(ctx context.Context, source string) (*Document, error)
}

// TextExtractor turns a local PDF into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// PDFExtractor downloads a disclosure when given a URL, extracts its text
// and parses the monthly movements table.
type PDFExtractor struct {
	fetcher fetcher.Fetcher
	text    TextExtractor
	tempDir string
	log     *zap.Logger
}

// NewPDFExtractor returns a PDFExtractor. tempDir may be empty for the
// system default.
func NewPDFExtractor(f fetcher.Fetcher, text TextExtractor, tempDir string) *PDFExtractor {
	return &PDFExtractor{
		fetcher: f,
		text:    text,
		tempDir: tempDir,
		log:     zap.L().With(zap.String("component", "insider")),
	}
}

// Extract implements Extractor.
func (p *PDFExtractor) Extract(ctx context.Context, source string) (*Document, error) {
	path := source
	if isURL(source) {
		f, err := os.CreateTemp(p.tempDir, "insider-*.pdf")
		if err != nil {
			return nil, eris.Wrap(err, "insider: create temp file")
		}
		path = f.Name()
		_ = f.Close()
		defer os.Remove(path) //nolint:errcheck

		if _, err := p.fetcher.DownloadToFile(ctx, source, path); err != nil {
			return nil, eris.Wrapf(err, "insider: download %s", source)
		}
	}

	text, err := p.text.ExtractText(ctx, path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(text)
	if err != nil {
		p.log.Debug("unparseable document", zap.String("source", source), zap.String("file", filepath.Base(path)))
		return nil, err
	}
	return doc, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

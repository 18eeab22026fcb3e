package fetcher

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// Delimiter is the field separator of every regulator CSV.
const Delimiter = ';'

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Frame is one CSV member held in memory. Every cell is text; typing happens
// downstream.
type Frame struct {
	Name    string
	Header  []string
	Rows    [][]string
	Lenient bool // the permissive parser produced this frame
	Skipped int  // lines dropped by the permissive parser
}

// Len returns the number of data rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// ParseFrame decodes raw member bytes and splits them into header and rows.
// Input is latin-1 unless it starts with a UTF-8 byte order mark.
func ParseFrame(name string, raw []byte) (*Frame, error) {
	text, err := decode(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "frame %s: decode", name)
	}

	frame, strictErr := parseStrict(name, text)
	if strictErr == nil {
		return frame, nil
	}

	zap.L().Warn("strict csv parse failed, retrying permissively",
		zap.String("component", "fetcher"),
		zap.String("member", name),
		zap.Error(strictErr),
	)
	return parseLenient(name, text)
}

func decode(raw []byte) ([]byte, error) {
	if bytes.HasPrefix(raw, utf8BOM) {
		return raw[len(utf8BOM):], nil
	}
	return charmap.ISO8859_1.NewDecoder().Bytes(raw)
}

func newReader(text []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = Delimiter
	return r
}

// parseStrict requires well-formed quoting and a constant field count.
func parseStrict(name string, text []byte) (*Frame, error) {
	r := newReader(text)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	frame := &Frame{Name: name}
	if len(records) == 0 {
		return frame, nil
	}
	frame.Header = records[0]
	frame.Rows = records[1:]
	return frame, nil
}

// parseLenient accepts stray quotes and ragged rows. Short rows are padded to
// the header width; rows that still fail to parse, or carry more fields than
// the header, are skipped.
func parseLenient(name string, text []byte) (*Frame, error) {
	r := newReader(text)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	frame := &Frame{Name: name, Lenient: true}
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				frame.Skipped++
				zap.L().Warn("skipping malformed csv line",
					zap.String("component", "fetcher"),
					zap.String("member", name),
					zap.Int("line", perr.StartLine),
					zap.Error(err),
				)
				continue
			}
			return nil, eris.Wrapf(err, "frame %s: read line %d", name, line)
		}

		if frame.Header == nil {
			frame.Header = rec
			continue
		}
		switch {
		case len(rec) == len(frame.Header):
		case len(rec) < len(frame.Header):
			padded := make([]string, len(frame.Header))
			copy(padded, rec)
			rec = padded
		default:
			frame.Skipped++
			zap.L().Warn("skipping csv line with extra fields",
				zap.String("component", "fetcher"),
				zap.String("member", name),
				zap.Int("fields", len(rec)),
				zap.Int("expected", len(frame.Header)),
			)
			continue
		}
		frame.Rows = append(frame.Rows, rec)
	}
	return frame, nil
}

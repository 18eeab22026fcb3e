package fetcher

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrCorruptArchive is returned when a downloaded archive is truncated or not a ZIP.
var ErrCorruptArchive = eris.New("fetcher: corrupt archive")

const (
	// maxMemberSize bounds the decompressed size of a single member.
	maxMemberSize = 2 << 30
	// maxPrealloc bounds the buffer reserved up front from header sizes.
	maxPrealloc = 8 << 20
	// maxRatio is the largest expansion trusted from a member's compressed size.
	maxRatio = 16
)

// ReadZIP unpacks the CSV members of an in-memory ZIP archive, keyed by
// their base file name. Directories and non-CSV members are ignored.
func ReadZIP(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrapf(ErrCorruptArchive, "open: %v", err)
	}

	members := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		if !strings.EqualFold(path.Ext(name), ".csv") {
			continue
		}
		content, err := readMember(f)
		if err != nil {
			return nil, eris.Wrapf(ErrCorruptArchive, "member %s: %v", name, err)
		}
		members[name] = content
	}
	return members, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	buf := bytes.NewBuffer(make([]byte, 0, memberCapacity(&f.FileHeader)))
	n, err := io.Copy(buf, io.LimitReader(rc, maxMemberSize+1))
	if err != nil {
		return nil, err
	}
	if n > maxMemberSize {
		return nil, eris.Errorf("exceeds %d bytes", int64(maxMemberSize))
	}
	return buf.Bytes(), nil
}

// memberCapacity sizes the initial read buffer from the header. The
// declared sizes are untrusted, so the buffer grows past the hint as needed.
func memberCapacity(h *zip.FileHeader) int {
	return int(min(h.UncompressedSize64, h.CompressedSize64*maxRatio, maxPrealloc))
}

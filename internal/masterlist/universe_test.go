package masterlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadototal/cvm-ingest/internal/fetcher"
)

func TestLoadUniverse_Embedded(t *testing.T) {
	u, err := LoadUniverse("")
	require.NoError(t, err)
	assert.Greater(t, u.Len(), 100)
	assert.True(t, u.Contains("PETR4"))
	assert.True(t, u.Contains(" vale3 "))
	assert.False(t, u.Contains("XXXX3"))
}

func TestLoadUniverse_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.csv")
	require.NoError(t, os.WriteFile(path, []byte("ticker,name\npetr4,Petrobras\nVALE3,Vale\nbad,Nope\nVALE3,Vale again\n"), 0o644))

	u, err := LoadUniverse(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"PETR4", "VALE3"}, u.Tickers())
}

func TestLoadUniverse_Missing(t *testing.T) {
	_, err := LoadUniverse(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestParseUniverse_Empty(t *testing.T) {
	_, err := ParseUniverse([]byte("ticker,name\n"))
	require.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a, err := ParseUniverse([]byte("ticker,name\nPETR4,Petrobras\nVALE3,Vale\n"))
	require.NoError(t, err)
	b, err := ParseUniverse([]byte("ticker,name\nVALE3,Vale SA\nPETR4,Petróleo Brasileiro\n"))
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)

	assert.Equal(t, 1, b.Merge([]string{"ITUB4", "PETR4", "junk"}))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestRoots(t *testing.T) {
	u, err := ParseUniverse([]byte("ticker,name\nPETR4,Petrobras\nTAEE11,Taesa\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"PETR": true, "TAEE": true}, u.Roots())
}

func TestScrapeReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
<table><tr><th>Código</th><th>Ação</th></tr>
<tr><td>PETR4</td><td>PETROBRAS</td></tr>
<tr><td>vale3</td><td>VALE</td></tr>
<tr><td>PETR4</td><td>dup</td></tr></table>
<ul><li>TAEE11</li><li>not a ticker</li></ul>
</body></html>`))
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second, MaxAttempts: 1})
	got, err := ScrapeReference(context.Background(), f, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"PETR4", "VALE3", "TAEE11"}, got)
}

func TestScrapeReference_NoTickers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>maintenance</p></body></html>`))
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second, MaxAttempts: 1})
	_, err := ScrapeReference(context.Background(), f, srv.URL)
	require.Error(t, err)
}

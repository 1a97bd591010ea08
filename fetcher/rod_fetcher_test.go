package fetcher

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRodFetcher(t *testing.T, opts ...Option) *RodFetcher {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no local Chrome or Chromium found")
	}
	t.Setenv("SCRAPER_BROWSER_DIR", t.TempDir())

	f, err := NewRodFetcher(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRodFetcherRepeatedFetches(t *testing.T) {
	srv := newTestServer(t)
	f := newTestRodFetcher(t, WithTimeout(10*time.Second))

	for i := 0; i < 3; i++ {
		doc, err := f.Fetch(context.Background(), srv.URL+"/topics")
		require.NoError(t, err, "fetch %d", i)
		assert.Equal(t, "Hello", doc.Find("p.title").Text())
	}
}

func TestRodFetcherStatusError(t *testing.T) {
	srv := newTestServer(t)
	f := newTestRodFetcher(t, WithTimeout(10*time.Second))

	_, err := f.Fetch(context.Background(), srv.URL+"/gone")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusGone, fetchErr.StatusCode)

	// the browser stays usable after a failed page
	doc, err := f.Fetch(context.Background(), srv.URL+"/topics")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("p.title").Length())
}

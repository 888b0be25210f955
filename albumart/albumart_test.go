package albumart_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nextui/musicplayer/albumart"
	"github.com/nextui/musicplayer/netfetch"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*albumart.Fetcher, string) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cacheDir := t.TempDir()
	client := netfetch.New(2*time.Second, netfetch.GeneralRedirectLimit)

	f := albumart.NewFetcher(client, cacheDir)
	f.BaseURL = srv.URL

	return f, cacheDir
}

func TestFetcherFetchesArtworkAndCachesToDisk(t *testing.T) {
	t.Parallel()

	var gotSearch, gotImage bool

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		gotSearch = true
		require.Contains(t, r.URL.RawQuery, "term=")
		_, _ = w.Write([]byte(`{"results":[{"artworkUrl100":"` + "http://" + r.Host + `/art.jpg` + `"}]}`))
	})
	mux.HandleFunc("/art.jpg", func(w http.ResponseWriter, _ *http.Request) {
		gotImage = true
		_, _ = w.Write([]byte("fake-jpeg-bytes"))
	})

	f, cacheDir := newTestFetcher(t, mux.ServeHTTP)

	f.Fetch(context.Background(), "Artist X", "Title Y")

	require.Eventually(t, func() bool {
		return f.Current() != nil
	}, time.Second, 10*time.Millisecond)

	require.True(t, gotSearch)
	require.True(t, gotImage)
	require.Equal(t, []byte("fake-jpeg-bytes"), f.Current().Data)
	require.Equal(t, ".jpg", f.Current().Ext)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFetcherNoResultsLeavesCurrentUnset(t *testing.T) {
	t.Parallel()

	f, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	f.Fetch(context.Background(), "Unknown Artist", "Unknown Title")

	time.Sleep(100 * time.Millisecond)

	require.Nil(t, f.Current())
}

func TestFetcherDeduplicatesRepeatedRequest(t *testing.T) {
	t.Parallel()

	var searchHits int

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		searchHits++
		_, _ = w.Write([]byte(`{"results":[{"artworkUrl100":"http://` + r.Host + `/art.png"}]}`))
	})
	mux.HandleFunc("/art.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("png-bytes"))
	})

	f, _ := newTestFetcher(t, mux.ServeHTTP)

	f.Fetch(context.Background(), "Dup Artist", "Dup Title")
	f.Fetch(context.Background(), "Dup Artist", "Dup Title")

	require.Eventually(t, func() bool {
		return f.Current() != nil
	}, time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	require.Equal(t, 1, searchHits)
}

func TestFetcherUsesDiskCacheOnSubsequentFetch(t *testing.T) {
	t.Parallel()

	var searchHits, imageHits int

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		searchHits++
		_, _ = w.Write([]byte(`{"results":[{"artworkUrl100":"http://` + r.Host + `/art.png"}]}`))
	})
	mux.HandleFunc("/art.png", func(w http.ResponseWriter, _ *http.Request) {
		imageHits++
		_, _ = w.Write([]byte("cached-png-bytes"))
	})

	f, _ := newTestFetcher(t, mux.ServeHTTP)

	f.Fetch(context.Background(), "Cache Artist", "Cache Title")

	require.Eventually(t, func() bool {
		return f.Current() != nil
	}, time.Second, 10*time.Millisecond)

	f.Clear()
	f.Fetch(context.Background(), "Cache Artist", "Cache Title")

	time.Sleep(100 * time.Millisecond)

	require.Equal(t, []byte("cached-png-bytes"), f.Current().Data)
	require.Equal(t, 1, searchHits)
	require.Equal(t, 1, imageHits)
}

func TestCacheSizeAndClearCache(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"artworkUrl100":"http://` + r.Host + `/art.jpg"}]}`))
	})
	mux.HandleFunc("/art.jpg", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	})

	f, cacheDir := newTestFetcher(t, mux.ServeHTTP)

	f.Fetch(context.Background(), "Size Artist", "Size Title")

	require.Eventually(t, func() bool {
		return f.Current() != nil
	}, time.Second, 10*time.Millisecond)

	size, err := albumart.CacheSize(cacheDir)
	require.NoError(t, err)
	require.Equal(t, int64(10), size)

	require.NoError(t, albumart.ClearCache(cacheDir))

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCacheSizeOnMissingDirReturnsZero(t *testing.T) {
	t.Parallel()

	size, err := albumart.CacheSize("/nonexistent/albumart/cache/dir")
	require.NoError(t, err)
	require.Zero(t, size)
}

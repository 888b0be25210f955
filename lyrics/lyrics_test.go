package lyrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/nextui/musicplayer/lyrics"
	"github.com/nextui/musicplayer/netfetch"
)

const sampleLRC = `[ar:Test Artist]
[ti:Test Title]
[00:01.00]First line
[00:05.50]Second line
[01:02.123]Third line millis
`

func TestParseLRCParsesTimestampsAndSkipsMetadata(t *testing.T) {
	t.Parallel()

	idx := lyrics.ParseLRC(sampleLRC)

	require.Equal(t, "", idx.CurrentLine(-1))
	require.Equal(t, "First line", idx.CurrentLine(1000))
	require.Equal(t, "First line", idx.CurrentLine(3000))
	require.Equal(t, "Second line", idx.CurrentLine(5500))
	require.Equal(t, "Third line millis", idx.CurrentLine(62123))
}

func TestParseLRCMillisecondVsCentisecondPrecision(t *testing.T) {
	t.Parallel()

	idx := lyrics.ParseLRC("[00:00.50]Centi\n[00:01.500]Milli\n")

	require.Equal(t, "Centi", idx.CurrentLine(500))
	require.Equal(t, "Milli", idx.CurrentLine(1500))
}

func TestIndexNextLineFollowsCurrent(t *testing.T) {
	t.Parallel()

	idx := lyrics.ParseLRC(sampleLRC)

	_ = idx.CurrentLine(1000)
	require.Equal(t, "Second line", idx.NextLine())
}

func TestLRCRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(rt, "lines")

		var lines []lyrics.Line
		timeMS := 0

		for i := 0; i < n; i++ {
			timeMS += rapid.IntRange(0, 500).Draw(rt, "deltaCentiseconds") * 10
			text := rapid.StringMatching(`[A-Za-z0-9]{1,20}`).Draw(rt, "text")
			lines = append(lines, lyrics.Line{TimeMS: timeMS, Text: text})
		}

		idx := lyrics.NewIndex(lines)
		rendered := lyrics.Render(idx)
		roundTripped := lyrics.ParseLRC(rendered)

		require.Equal(t, lines, roundTripped.Lines())
	})
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*lyrics.Fetcher, string) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cacheDir := t.TempDir()
	client := netfetch.New(2*time.Second, netfetch.GeneralRedirectLimit)

	f := lyrics.NewFetcher(client, cacheDir)
	f.BaseURL = srv.URL

	return f, cacheDir
}

func TestFetcherFetchesExactMatchAndCachesToDisk(t *testing.T) {
	t.Parallel()

	var gotExactQuery bool

	f, cacheDir := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/get" {
			gotExactQuery = true
			_, _ = w.Write([]byte(`{"syncedLyrics":"[00:01.00]Hello\n"}`))

			return
		}

		w.WriteHeader(http.StatusNotFound)
	})

	f.Fetch(context.Background(), "Artist X", "Title Y", 100)

	require.Eventually(t, func() bool {
		return f.Current() != nil
	}, time.Second, 10*time.Millisecond)

	require.True(t, gotExactQuery)
	require.Equal(t, "Hello", f.Current().CurrentLine(1000))

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Name(), ".lrc")
}

func TestFetcherFallsBackToFuzzySearch(t *testing.T) {
	t.Parallel()

	var hitSearch bool

	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/get":
			w.WriteHeader(http.StatusNotFound)
		case "/api/search":
			hitSearch = true
			_, _ = w.Write([]byte(`[{"syncedLyrics":""},{"syncedLyrics":"[00:02.00]Found it\n"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	f.Fetch(context.Background(), "Some Artist", "Some Title", 90)

	require.Eventually(t, func() bool {
		return f.Current() != nil
	}, time.Second, 10*time.Millisecond)

	require.True(t, hitSearch)
	require.Equal(t, "Found it", f.Current().CurrentLine(5000))
}

func TestFetcherDeduplicatesRepeatedRequest(t *testing.T) {
	t.Parallel()

	var fetchCount int

	f, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		fetchCount++
		_, _ = w.Write([]byte(`{"syncedLyrics":"[00:01.00]Once\n"}`))
	})

	f.Fetch(context.Background(), "Dup Artist", "Dup Title", 90)
	f.Fetch(context.Background(), "Dup Artist", "Dup Title", 90)

	require.Eventually(t, func() bool {
		return f.Current() != nil
	}, time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	require.Equal(t, 1, fetchCount)
}

func TestFetcherUsesDiskCacheOnSubsequentFetch(t *testing.T) {
	t.Parallel()

	var networkHits int

	f, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		networkHits++
		_, _ = w.Write([]byte(`{"syncedLyrics":"[00:01.00]Cached line\n"}`))
	})

	f.Fetch(context.Background(), "Cache Artist", "Cache Title", 90)

	require.Eventually(t, func() bool {
		return f.Current() != nil
	}, time.Second, 10*time.Millisecond)

	f.Clear()
	f.Fetch(context.Background(), "Cache Artist", "Cache Title", 90)

	time.Sleep(100 * time.Millisecond)

	require.Equal(t, "Cached line", f.Current().CurrentLine(1000))
	require.Equal(t, 1, networkHits)
}

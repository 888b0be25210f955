// Package albumart fetches and caches cover art for the current track:
// disk cache by fingerprint, else an iTunes Search API lookup followed by
// an artwork download, published through a generation-gated slot so a
// newer request invalidates an older in-flight one. Grounded on
// original_source album_art.h's contract (only its header was retrieved;
// album_art.c itself was not, so the fetch/cache/generation skeleton is
// supplemented from lyrics.c's fetch_thread_func, the sibling fetcher
// sharing the same generation-counter design).
package albumart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nextui/musicplayer/internal/genslot"
	"github.com/nextui/musicplayer/internal/logging"
	"github.com/nextui/musicplayer/netfetch"
)

// DefaultITunesBaseURL is the real iTunes Search API origin used in
// production.
const DefaultITunesBaseURL = "https://itunes.apple.com"

// defaultExt is used when an artwork URL's extension can't be determined.
const defaultExt = ".jpg"

// Art is fetched cover art: raw encoded image bytes plus the file
// extension they were stored/cached under (".jpg", ".png", ...).
type Art struct {
	Data []byte
	Ext  string
}

type itunesSearchResponse struct {
	Results []struct {
		ArtworkURL100 string `json:"artworkUrl100"`
	} `json:"results"`
}

// Fetcher fetches and caches album art for one track at a time,
// deduplicating identical (artist, title) requests and discarding results
// from superseded fetches via a generation counter.
type Fetcher struct {
	client   *netfetch.Client
	cacheDir string
	logger   *slog.Logger

	// BaseURL is the iTunes Search API origin, overridable in tests to
	// point at a local server instead of the real service.
	BaseURL string

	slot genslot.Slot[Art]

	mu         sync.Mutex
	lastArtist string
	lastTitle  string
}

// NewFetcher creates a Fetcher caching artwork files under cacheDir.
func NewFetcher(client *netfetch.Client, cacheDir string) *Fetcher {
	return &Fetcher{
		client:   client,
		cacheDir: cacheDir,
		logger:   logging.Component(nil, "albumart"),
		BaseURL:  DefaultITunesBaseURL,
	}
}

// Current returns the most recently published Art, or nil if none yet.
func (f *Fetcher) Current() *Art {
	return f.slot.Load()
}

// Fetch starts (or no-ops, if deduplicated against the last request)
// fetching artwork for artist/title, publishing the result
// asynchronously. An in-flight fetch for a different track is
// invalidated via the generation counter; its result is discarded on
// arrival without publishing
func (f *Fetcher) Fetch(ctx context.Context, artist, title string) {
	if artist == "" && title == "" {
		return
	}

	f.mu.Lock()
	if f.lastArtist == artist && f.lastTitle == title {
		f.mu.Unlock()

		return
	}

	f.lastArtist = artist
	f.lastTitle = title
	f.mu.Unlock()

	gen := f.slot.NextGeneration()

	go f.fetchAndPublish(ctx, gen, artist, title)
}

// Clear invalidates any in-flight fetch and forgets the last requested
// track.
func (f *Fetcher) Clear() {
	f.mu.Lock()
	f.lastArtist = ""
	f.lastTitle = ""
	f.mu.Unlock()

	f.slot.NextGeneration()
}

func (f *Fetcher) fetchAndPublish(ctx context.Context, gen uint64, artist, title string) {
	hash := cacheKey(artist, title)

	if art, ok := f.loadCache(hash); ok {
		f.slot.Publish(gen, &art)

		return
	}

	artworkURL, ok := f.searchITunes(ctx, artist, title)
	if !ok {
		return
	}

	data, _, err := f.client.Fetch(ctx, artworkURL)
	if err != nil {
		f.logger.Warn("downloading artwork", "url", artworkURL, "error", err)

		return
	}

	art := Art{Data: data, Ext: extFromURL(artworkURL)}

	if err := f.saveCache(hash, art); err != nil {
		f.logger.Warn("caching artwork", "error", err)
	}

	f.slot.Publish(gen, &art)
}

func (f *Fetcher) searchITunes(ctx context.Context, artist, title string) (string, bool) {
	query := strings.TrimSpace(artist + " " + title)
	searchURL := fmt.Sprintf("%s/search?term=%s&media=music&entity=song&limit=1",
		f.BaseURL, url.QueryEscape(query))

	body, _, err := f.client.Fetch(ctx, searchURL)
	if err != nil {
		return "", false
	}

	var resp itunesSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", false
	}

	if len(resp.Results) == 0 || resp.Results[0].ArtworkURL100 == "" {
		return "", false
	}

	return resp.Results[0].ArtworkURL100, true
}

func (f *Fetcher) loadCache(hash uint32) (Art, bool) {
	matches, err := filepath.Glob(filepath.Join(f.cacheDir, fmt.Sprintf("%08x.*", hash)))
	if err != nil || len(matches) == 0 {
		return Art{}, false
	}

	data, err := os.ReadFile(matches[0]) //nolint:gosec // cache path derived from hashed artist/title
	if err != nil {
		return Art{}, false
	}

	return Art{Data: data, Ext: filepath.Ext(matches[0])}, true
}

func (f *Fetcher) saveCache(hash uint32, art Art) error {
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return fmt.Errorf("albumart: creating cache dir: %w", err)
	}

	path := filepath.Join(f.cacheDir, fmt.Sprintf("%08x%s", hash, art.Ext))
	if err := os.WriteFile(path, art.Data, 0o644); err != nil { //nolint:gosec // cache file, not sensitive
		return fmt.Errorf("albumart: writing cache file: %w", err)
	}

	return nil
}

// cacheKey hashes "artist - title" with the same DJB2 scheme lyrics.c
// uses for its own cache filenames, so both fetchers' cache directories stay consistent.
func cacheKey(artist, title string) uint32 {
	s := artist + " - " + title

	var hash uint32 = 5381

	for i := 0; i < len(s); i++ {
		hash = (hash<<5)+hash + uint32(s[i])
	}

	return hash
}

func extFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return defaultExt
	}

	ext := path.Ext(parsed.Path)
	if ext == "" {
		return defaultExt
	}

	return ext
}

// CacheSize returns the total size in bytes of all cached artwork files.
func CacheSize(cacheDir string) (int64, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}

		return 0, fmt.Errorf("albumart: reading cache dir: %w", err)
	}

	var total int64

	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}

		total += info.Size()
	}

	return total, nil
}

// ClearCache removes every cached artwork file under cacheDir.
func ClearCache(cacheDir string) error {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("albumart: reading cache dir: %w", err)
	}

	for _, e := range entries {
		if err := os.Remove(filepath.Join(cacheDir, e.Name())); err != nil {
			return fmt.Errorf("albumart: removing %s: %w", e.Name(), err)
		}
	}

	return nil
}

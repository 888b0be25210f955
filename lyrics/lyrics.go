// Package lyrics fetches and indexes synced lyrics for the current track:
// disk cache, then LRCLIB exact match, then LRCLIB fuzzy search, parsed
// into a binary-searchable (time_ms, text) index. Grounded directly on
// original_source lyrics.c's fetch_thread_func (cache→exact→fuzzy order,
// simple_hash cache filename, url_encode query building) and lyrics.h's
// LyricLine/LYRICS_MAX_LINES.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/nextui/musicplayer/internal/genslot"
	"github.com/nextui/musicplayer/internal/logging"
	"github.com/nextui/musicplayer/netfetch"
)

// MaxLines caps the number of lyric lines kept, matching LYRICS_MAX_LINES.
const MaxLines = 512

// Line is one timestamped lyric line.
type Line struct {
	TimeMS int
	Text   string
}

// Index is a parsed, ordered set of lyric lines plus a monotonic-playback
// cursor for fast current-line lookups.
type Index struct {
	lines      []Line
	lastCursor int
}

// NewIndex builds an Index directly from an ordered line list, for
// callers that already have timestamped lines (tests, or a future
// hand-authored lyrics source) rather than LRC text to parse.
func NewIndex(lines []Line) Index {
	return Index{lines: lines}
}

// Lines returns the full ordered line list, e.g. for a scrolling lyrics
// view that needs more than the current/next line.
func (idx Index) Lines() []Line {
	return idx.lines
}

// CurrentLine returns the lyric line active at positionMS (the last line
// whose TimeMS <= positionMS), or "" if none yet / no lyrics. Ordinary
// monotonically increasing playback positions are served by advancing
// from the last returned cursor instead of a fresh binary search every
// call.
func (idx *Index) CurrentLine(positionMS int) string {
	if idx == nil || len(idx.lines) == 0 {
		return ""
	}

	if idx.lastCursor < len(idx.lines)-1 && idx.lines[idx.lastCursor+1].TimeMS <= positionMS {
		idx.lastCursor = idx.advanceFrom(idx.lastCursor, positionMS)

		return idx.lines[idx.lastCursor].Text
	}

	if idx.lastCursor >= 0 && idx.lines[idx.lastCursor].TimeMS <= positionMS {
		return idx.lines[idx.lastCursor].Text
	}

	idx.lastCursor = idx.binarySearch(positionMS)
	if idx.lastCursor < 0 {
		return ""
	}

	return idx.lines[idx.lastCursor].Text
}

// NextLine returns the line after the one CurrentLine most recently
// returned, or "" if there isn't one.
func (idx *Index) NextLine() string {
	if idx == nil || idx.lastCursor+1 >= len(idx.lines) {
		return ""
	}

	return idx.lines[idx.lastCursor+1].Text
}

func (idx *Index) advanceFrom(from, positionMS int) int {
	i := from
	for i+1 < len(idx.lines) && idx.lines[i+1].TimeMS <= positionMS {
		i++
	}

	return i
}

func (idx *Index) binarySearch(positionMS int) int {
	n := sort.Search(len(idx.lines), func(i int) bool {
		return idx.lines[i].TimeMS > positionMS
	})

	return n - 1
}

// ParseLRC parses LRC-format text into an Index: each
// `[mm:ss.xx]`/`[mm:ss.xxx]`-prefixed line becomes one entry (centisecond
// vs millisecond precision disambiguated by digit count), other bracketed
// lines (`[ar:...]`, `[ti:...]`, ...) are metadata and skipped.
func ParseLRC(text string) Index {
	var lines []Line

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, "\r")

		for len(lines) < MaxLines {
			rest, ok := strings.CutPrefix(line, "[")
			if !ok {
				break
			}

			timeMS, body, ok := parseTimestampTag(rest)
			if !ok {
				break
			}

			text := strings.TrimSpace(body)
			if text != "" {
				lines = append(lines, Line{TimeMS: timeMS, Text: text})
			}

			break
		}
	}

	return Index{lines: lines}
}

// parseTimestampTag parses "mm:ss.xx]remaining text" (rest is the line
// content after the opening '['), returning false if it isn't a
// timestamp tag (e.g. a bare metadata tag like "ar:Artist]").
func parseTimestampTag(rest string) (int, string, bool) {
	colonIdx := strings.IndexByte(rest, ':')
	if colonIdx < 0 {
		return 0, "", false
	}

	mm, err := strconv.Atoi(rest[:colonIdx])
	if err != nil {
		return 0, "", false
	}

	afterColon := rest[colonIdx+1:]

	closeIdx := strings.IndexByte(afterColon, ']')
	if closeIdx < 0 {
		return 0, "", false
	}

	timestamp := afterColon[:closeIdx]
	remainder := afterColon[closeIdx+1:]

	ss, cs, ok := parseSecondsAndFraction(timestamp)
	if !ok {
		return 0, "", false
	}

	return mm*60000 + ss*1000 + cs*10, remainder, true
}

func parseSecondsAndFraction(timestamp string) (seconds, centiseconds int, ok bool) {
	secPart, fracPart, hasFrac := strings.Cut(timestamp, ".")

	seconds, err := strconv.Atoi(secPart)
	if err != nil {
		return 0, 0, false
	}

	if !hasFrac {
		return seconds, 0, true
	}

	frac, err := strconv.Atoi(fracPart)
	if err != nil {
		return 0, 0, false
	}

	if len(fracPart) == 3 {
		frac /= 10 // milliseconds -> centiseconds
	}

	return seconds, frac, true
}

// Render re-encodes idx back into LRC text, one `[mm:ss.xx]text` line per
// entry in index order, the inverse of ParseLRC: ParseLRC(Render(idx))
// reproduces idx's lines exactly, since ParseLRC already rounds every
// timestamp to centisecond precision before Render sees it.
func Render(idx Index) string {
	var b strings.Builder

	for _, line := range idx.lines {
		mm := line.TimeMS / 60000
		rem := line.TimeMS % 60000
		ss := rem / 1000
		cs := (rem % 1000) / 10

		fmt.Fprintf(&b, "[%02d:%02d.%02d]%s\n", mm, ss, cs, line.Text)
	}

	return b.String()
}

// lrclibGetResponse is the subset of LRCLIB's /api/get response used here.
type lrclibGetResponse struct {
	SyncedLyrics string `json:"syncedLyrics"`
}

// DefaultLRCLIBBaseURL is the real LRCLIB API origin used in production.
const DefaultLRCLIBBaseURL = "https://lrclib.net"

// Fetcher fetches and caches lyrics for one track at a time,
// deduplicating identical (artist, title) requests and discarding results
// from superseded fetches via a generation counter, matching lyrics.c's
// fetch_generation/last_artist/last_title pattern.
type Fetcher struct {
	client   *netfetch.Client
	cacheDir string
	logger   *slog.Logger

	// BaseURL is the LRCLIB API origin, overridable in tests to point at
	// a local server instead of the real service.
	BaseURL string

	slot genslot.Slot[Index]

	mu         sync.Mutex
	lastArtist string
	lastTitle  string
}

// NewFetcher creates a Fetcher caching LRC files under cacheDir.
func NewFetcher(client *netfetch.Client, cacheDir string) *Fetcher {
	return &Fetcher{
		client:   client,
		cacheDir: cacheDir,
		logger:   logging.Component(nil, "lyrics"),
		BaseURL:  DefaultLRCLIBBaseURL,
	}
}

// Current returns the most recently published Index, or nil if none yet.
func (f *Fetcher) Current() *Index {
	return f.slot.Load()
}

// Fetch starts (or no-ops, if deduplicated against the last request)
// fetching lyrics for artist/title/durationSec, publishing the result
// asynchronously. Any in-flight fetch for a different track is
// invalidated via the generation counter (its result is silently
// discarded on arrival).
func (f *Fetcher) Fetch(ctx context.Context, artist, title string, durationSec int) {
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

	go f.fetchAndPublish(ctx, gen, artist, title, durationSec)
}

// Clear invalidates any in-flight fetch and forgets the last requested
// track, so a subsequent Fetch for the same (artist, title) is not
// deduplicated away.
func (f *Fetcher) Clear() {
	f.mu.Lock()
	f.lastArtist = ""
	f.lastTitle = ""
	f.mu.Unlock()

	f.slot.NextGeneration()
}

func (f *Fetcher) fetchAndPublish(ctx context.Context, gen uint64, artist, title string, durationSec int) {
	cachePath := f.cacheFilePath(artist, title)

	if cached, ok := f.loadCache(cachePath); ok {
		f.slot.Publish(gen, &cached)

		return
	}

	lrcText, ok := f.fetchLRCLIB(ctx, artist, title, durationSec)
	if !ok {
		return
	}

	idx := ParseLRC(lrcText)
	if len(idx.lines) == 0 {
		return
	}

	// Cache the re-rendered form rather than the upstream bytes verbatim:
	// it drops non-timestamp metadata tags and normalises timestamp
	// precision, so a later loadCache parse always reproduces this idx.
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		f.logger.Warn("creating lyrics cache dir", "error", err)
	} else if err := os.WriteFile(cachePath, []byte(Render(idx)), 0o644); err != nil { //nolint:gosec // cache file, not sensitive
		f.logger.Warn("writing lyrics cache file", "path", cachePath, "error", err)
	}

	f.slot.Publish(gen, &idx)
}

func (f *Fetcher) fetchLRCLIB(ctx context.Context, artist, title string, durationSec int) (string, bool) {
	exactURL := fmt.Sprintf("%s/api/get?artist_name=%s&track_name=%s&duration=%d",
		f.BaseURL, url.QueryEscape(artist), url.QueryEscape(title), durationSec)

	if body, _, err := f.client.Fetch(ctx, exactURL); err == nil {
		var resp lrclibGetResponse
		if json.Unmarshal(body, &resp) == nil && resp.SyncedLyrics != "" {
			return resp.SyncedLyrics, true
		}
	}

	query := strings.TrimSpace(artist + " " + title)
	searchURL := f.BaseURL + "/api/search?q=" + url.QueryEscape(query)

	body, _, err := f.client.Fetch(ctx, searchURL)
	if err != nil {
		return "", false
	}

	var results []lrclibGetResponse
	if err := json.Unmarshal(body, &results); err != nil {
		return "", false
	}

	for _, r := range results {
		if r.SyncedLyrics != "" {
			return r.SyncedLyrics, true
		}
	}

	return "", false
}

func (f *Fetcher) loadCache(path string) (Index, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // cache path derived from hashed artist/title, not user-controlled
	if err != nil {
		return Index{}, false
	}

	idx := ParseLRC(string(data))
	if len(idx.lines) == 0 {
		return Index{}, false
	}

	return idx, true
}

// cacheFilePath mirrors lyrics.c's get_cache_filepath: DJB2-hash of
// "artist - title", hex-formatted, with a .lrc extension.
func (f *Fetcher) cacheFilePath(artist, title string) string {
	hash := djb2Hash(artist + " - " + title)

	return filepath.Join(f.cacheDir, fmt.Sprintf("%08x.lrc", hash))
}

// djb2Hash is the DJB2 string hash, matching lyrics.c's simple_hash.
func djb2Hash(s string) uint32 {
	var hash uint32 = 5381

	for i := 0; i < len(s); i++ {
		hash = (hash<<5)+hash + uint32(s[i])
	}

	return hash
}

// CacheSize returns the total size in bytes of all cached .lrc files.
func CacheSize(cacheDir string) (int64, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}

		return 0, fmt.Errorf("lyrics: reading cache dir: %w", err)
	}

	var total int64

	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".lrc") {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		total += info.Size()
	}

	return total, nil
}

// ClearCache removes every cached .lrc file under cacheDir.
func ClearCache(cacheDir string) error {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("lyrics: reading cache dir: %w", err)
	}

	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".lrc") {
			continue
		}

		if err := os.Remove(filepath.Join(cacheDir, e.Name())); err != nil {
			return fmt.Errorf("lyrics: removing %s: %w", e.Name(), err)
		}
	}

	return nil
}

// Package hls drives HTTP Live Streaming playback: fetch and parse an M3U8
// playlist (master or media), resolve segment URLs, and demux each
// fetched MPEG-TS segment down to a decodable audio stream. Grounded on
// original_source radio_hls.h/.c's HLSContext/HLSSegment model, expressed
// as a producer goroutine in the same shape as the direct-radio package.
package hls

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/nextui/musicplayer/metadata"
)

// Segment is one media-playlist entry: a resolved segment URL plus its
// advertised duration and any inline title/artist attributes, the
// Go-native analogue of HLSSegment from radio_hls.h.
type Segment struct {
	URL             string
	DurationSeconds float64
	Tags            metadata.Tags
	MediaSequence   int
}

// Playlist is a parsed media playlist (never a master playlist: callers
// resolve a master playlist's variant stream first via
// SelectVariant/IsMasterPlaylist).
type Playlist struct {
	TargetDurationSeconds int
	MediaSequence         int
	Segments              []Segment
	IsLive                bool // no #EXT-X-ENDLIST seen
}

// Variant is one #EXT-X-STREAM-INF entry in a master playlist.
type Variant struct {
	URL          string
	BandwidthBPS int
}

// IsURL reports whether rawURL looks like an .m3u8 resource, the
// Go-native analogue of radio_hls_is_url's suffix/content-type sniff.
func IsURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)

	return strings.Contains(lower, ".m3u8") || strings.Contains(lower, "m3u8")
}

// IsMasterPlaylist reports whether payload is a master playlist (lists
// variant streams) rather than a media playlist (lists segments).
func IsMasterPlaylist(payload string) bool {
	return strings.Contains(payload, "#EXT-X-STREAM-INF")
}

// ParseMasterPlaylist extracts each variant's URL and bandwidth,
// resolving relative URLs against baseURL.
func ParseMasterPlaylist(payload, baseURL string) []Variant {
	var variants []Variant

	lines := strings.Split(payload, "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "#EXT-X-STREAM-INF") {
			continue
		}

		bandwidth := 0
		if idx := strings.Index(line, "BANDWIDTH="); idx >= 0 {
			rest := line[idx+len("BANDWIDTH="):]
			end := strings.IndexAny(rest, ",\r\n")
			if end < 0 {
				end = len(rest)
			}

			bandwidth, _ = strconv.Atoi(rest[:end])
		}

		// The URL is the next non-comment, non-blank line.
		for j := i + 1; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" || strings.HasPrefix(next, "#") {
				continue
			}

			variants = append(variants, Variant{URL: ResolveURL(baseURL, next), BandwidthBPS: bandwidth})
			i = j

			break
		}
	}

	return variants
}

// SelectVariant picks the highest-bandwidth variant at or below
// preferredMaxBPS, or the lowest-bandwidth variant if none qualify (never
// returns an empty URL when variants is non-empty).
func SelectVariant(variants []Variant, preferredMaxBPS int) Variant {
	var best, lowest Variant

	haveLowest := false

	for _, v := range variants {
		if !haveLowest || v.BandwidthBPS < lowest.BandwidthBPS {
			lowest = v
			haveLowest = true
		}

		if (preferredMaxBPS <= 0 || v.BandwidthBPS <= preferredMaxBPS) && v.BandwidthBPS >= best.BandwidthBPS {
			best = v
		}
	}

	if best.URL == "" {
		return lowest
	}

	return best
}

// ParsePlaylist parses an M3U8 media playlist body, resolving each
// segment's URL against baseURL, mirroring radio_hls_parse_playlist.
func ParsePlaylist(payload, baseURL string) Playlist {
	pl := Playlist{IsLive: true}

	lines := strings.Split(payload, "\n")

	var pendingExtinf *metadata.ExtinfEntry

	seq := 0

	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			pl.TargetDurationSeconds, _ = strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			n, _ := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"))
			pl.MediaSequence = n
			seq = n
		case strings.HasPrefix(line, "#EXT-X-ENDLIST"):
			pl.IsLive = false
		case strings.HasPrefix(line, "#EXTINF:"):
			entry := metadata.ParseExtinf(strings.TrimPrefix(line, "#EXTINF:"))
			pendingExtinf = &entry
		case strings.HasPrefix(line, "#"):
			// Other tags (#EXT-X-VERSION, #EXT-X-DISCONTINUITY, ...) are
			// not needed for audio-only playback.
			continue
		default:
			seg := Segment{URL: ResolveURL(baseURL, line), MediaSequence: seq}
			if pendingExtinf != nil {
				seg.DurationSeconds = pendingExtinf.DurationSeconds
				seg.Tags = pendingExtinf.Tags
				pendingExtinf = nil
			}

			pl.Segments = append(pl.Segments, seg)
			seq++
		}
	}

	return pl
}

// BaseURL returns the directory portion of playlistURL, the part that
// relative segment/variant URLs resolve against, matching
// radio_hls_get_base_url.
func BaseURL(playlistURL string) string {
	idx := strings.LastIndex(playlistURL, "/")
	if idx < 0 {
		return playlistURL
	}

	return playlistURL[:idx+1]
}

// ResolveURL resolves ref against baseURL. Absolute refs (scheme present)
// pass through unchanged; everything else is resolved as a relative
// reference, matching radio_hls_resolve_url's "starts with http" check
// but handling root-relative and dotted-relative paths correctly via
// net/url instead of naive string concatenation.
func ResolveURL(baseURL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}

	relative, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	resolved := base.ResolveReference(relative)
	resolved.Path = path.Clean(resolved.Path)

	return resolved.String()
}

// NextSequenceIndex finds the index in pl.Segments of the first segment
// whose MediaSequence is lastPlayed+1, or -1 if the live playlist has
// rolled past it (a gap the player must skip forward over), matching the
// original's last_played_sequence continuity check.
func NextSequenceIndex(pl Playlist, lastPlayed int) int {
	want := lastPlayed + 1

	for i, seg := range pl.Segments {
		if seg.MediaSequence == want {
			return i
		}
	}

	return -1
}

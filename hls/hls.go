package hls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nextui/musicplayer/decode"
	_ "github.com/nextui/musicplayer/decode/aac" //nolint:revive // registers decode.FormatAAC
	_ "github.com/nextui/musicplayer/decode/mp3"  //nolint:revive // registers decode.FormatMP3
	"github.com/nextui/musicplayer/internal/logging"
	"github.com/nextui/musicplayer/internal/ring"
	"github.com/nextui/musicplayer/metadata"
	"github.com/nextui/musicplayer/netfetch"
)

// State is HLS playback's coarse state, the same shape as the direct-radio
// state machine applied to segment-at-a-time playback.
type State int

// Recognised states.
const (
	Stopped State = iota
	Connecting
	Buffering
	Playing
	Error
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Connecting:
		return "connecting"
	case Buffering:
		return "buffering"
	case Playing:
		return "playing"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

const (
	underrunSeconds     = 2
	resumeSeconds       = 8
	ringCapacitySeconds = 10
	nativeRate          = 48000

	segmentDecodeBufFrames = 4096

	refetchBackoff = 2 * time.Second
)

// segmentRetryBackoffs is the fetch retry schedule for one segment: three
// retries after the first attempt, each a little more patient than the
// last, then skip the
// segment, matching the original's retry-then-skip policy for flaky CDN
// edges.
var segmentRetryBackoffs = []time.Duration{ //nolint:gochecknoglobals // fixed retry schedule, not configuration
	100 * time.Millisecond,
	200 * time.Millisecond,
	300 * time.Millisecond,
}

// Metadata is the latest per-segment info published for the UI.
type Metadata struct {
	Tags        metadata.Tags
	BitrateKbps int
}

type prefetchResult struct {
	data []byte
	err  error
}

// Context owns one HLS playback session.
type Context struct {
	client *netfetch.Client
	ring   *ring.Buffer
	logger *slog.Logger
	demux  *Demuxer

	state    atomic.Int32
	errMsg   atomic.Pointer[string]
	metadata atomic.Pointer[Metadata]

	cancel context.CancelFunc
	wg     sync.WaitGroup

	onFirstFrame func(rate int)
	firstFrame   bool

	mediaPlaylistURL   string
	lastPlayedSequence int
}

// New creates an HLS Context. onFirstFrame is invoked once per session,
// with the decoder's reported rate, as soon as the first played segment's
// decoder has opened.
func New(client *netfetch.Client, onFirstFrame func(rate int)) *Context {
	return &Context{
		client:       client,
		ring:         ring.New(ringCapacitySeconds * nativeRate),
		logger:       logging.Component(nil, "hls"),
		demux:        NewDemuxer(),
		onFirstFrame: onFirstFrame,
	}
}

// State returns the current playback state.
func (c *Context) State() State {
	return State(c.state.Load())
}

// Error returns the last error message, if State() == Error.
func (c *Context) Error() string {
	if p := c.errMsg.Load(); p != nil {
		return *p
	}

	return ""
}

// Metadata returns the latest published segment metadata, or nil if none
// yet.
func (c *Context) Metadata() *Metadata {
	return c.metadata.Load()
}

// BufferLevel returns the ring buffer's fill fraction, 0.0 to 1.0.
func (c *Context) BufferLevel() float64 {
	return float64(c.ring.Count()) / float64(c.ring.Capacity())
}

// Play fetches playlistURL and starts the producer goroutine. Any
// previous session is stopped first.
func (c *Context) Play(ctx context.Context, playlistURL string) {
	c.Stop()

	sessionCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.Store(int32(Connecting))
	c.ring.Clear()
	c.firstFrame = false
	c.lastPlayedSequence = -1
	c.demux = NewDemuxer()

	c.wg.Add(1)

	go c.run(sessionCtx, playlistURL)
}

// Stop ends the current session and joins the producer goroutine.
func (c *Context) Stop() {
	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()
	c.state.Store(int32(Stopped))
}

// Read pulls up to maxFrames decoded stereo frames for the audio callback.
func (c *Context) Read(out []int16, maxFrames int) int {
	frames := c.ring.TryRead(out[:maxFrames*2])

	if c.State() == Playing && c.BufferLevel() < float64(underrunSeconds)/ringCapacitySeconds {
		c.state.Store(int32(Buffering))
	} else if c.State() == Buffering && c.BufferLevel() >= float64(resumeSeconds)/ringCapacitySeconds {
		c.state.Store(int32(Playing))
	}

	return frames
}

func (c *Context) run(ctx context.Context, playlistURL string) {
	defer c.wg.Done()

	pl, err := c.fetchPlaylist(ctx, playlistURL)
	if err != nil {
		c.fail(fmt.Errorf("hls: fetching playlist: %w", err))

		return
	}

	c.lastPlayedSequence = pl.MediaSequence - 1
	c.state.Store(int32(Buffering))

	var prefetchCh chan prefetchResult

	idx := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if idx >= len(pl.Segments) {
			if !pl.IsLive {
				c.state.Store(int32(Stopped))

				return
			}

			refreshed, err := c.fetchPlaylist(ctx, c.mediaPlaylistURL)
			if err != nil {
				if !sleepOrDone(ctx, refetchBackoff) {
					return
				}

				continue
			}

			pl = refreshed
			prefetchCh = nil

			idx = NextSequenceIndex(pl, c.lastPlayedSequence)
			if idx < 0 {
				idx = 0 // live playlist rolled past what we last played; resume from oldest available
			}

			continue
		}

		seg := pl.Segments[idx]

		var (
			data []byte
			err  error
		)

		if prefetchCh != nil {
			res := <-prefetchCh
			data, err = res.data, res.err
		} else {
			data, err = c.fetchSegmentWithRetry(ctx, seg.URL)
		}

		if err != nil {
			c.logger.Warn("skipping hls segment", "url", seg.URL, "error", err)

			prefetchCh = nil
			idx++

			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
			prefetchCh = c.startPrefetch(ctx, pl, idx+1)
		}

		if err := c.playSegment(ctx, seg, data); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}

			c.logger.Warn("segment playback error", "url", seg.URL, "error", err)
		}

		c.lastPlayedSequence = seg.MediaSequence
		idx++
	}
}

func (c *Context) startPrefetch(ctx context.Context, pl Playlist, nextIdx int) chan prefetchResult {
	if nextIdx >= len(pl.Segments) {
		return nil
	}

	nextURL := pl.Segments[nextIdx].URL
	ch := make(chan prefetchResult, 1)

	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		data, err := c.fetchSegmentWithRetry(ctx, nextURL)
		ch <- prefetchResult{data: data, err: err}
	}()

	return ch
}

// fetchPlaylist fetches playlistURL, transparently resolving a master
// playlist to the media playlist of its first listed variant, and records
// the resolved media playlist URL for subsequent live refetches.
func (c *Context) fetchPlaylist(ctx context.Context, playlistURL string) (Playlist, error) {
	body, _, err := c.client.Fetch(ctx, playlistURL)
	if err != nil {
		return Playlist{}, fmt.Errorf("hls: %w", err)
	}

	payload := string(body)
	resolvedURL := playlistURL

	if IsMasterPlaylist(payload) {
		variants := ParseMasterPlaylist(payload, BaseURL(playlistURL))

		if len(variants) == 0 || variants[0].URL == "" {
			return Playlist{}, errNoPlayableVariant
		}

		variant := variants[0]

		body, _, err = c.client.Fetch(ctx, variant.URL)
		if err != nil {
			return Playlist{}, fmt.Errorf("hls: fetching variant playlist: %w", err)
		}

		payload = string(body)
		resolvedURL = variant.URL
	}

	c.mediaPlaylistURL = resolvedURL

	return ParsePlaylist(payload, BaseURL(resolvedURL)), nil
}

var errNoPlayableVariant = errors.New("hls: master playlist has no variants")

func (c *Context) fetchSegmentWithRetry(ctx context.Context, segURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		body, _, err := c.client.Fetch(ctx, segURL)
		if err == nil {
			return body, nil
		}

		lastErr = err

		if attempt >= len(segmentRetryBackoffs) {
			break
		}

		if !sleepOrDone(ctx, segmentRetryBackoffs[attempt]) {
			return nil, ctx.Err() //nolint:wrapcheck // context cancellation, not a fetch error
		}
	}

	return nil, fmt.Errorf("hls: fetching segment %s: %w", segURL, lastErr)
}

// playSegment decodes one fetched segment's bytes and feeds them to the
// ring buffer, demuxing MPEG-TS framing and skipping a leading ID3 tag
// when present.
func (c *Context) playSegment(ctx context.Context, seg Segment, raw []byte) error {
	tags := seg.Tags
	audio := raw

	if ts3, ok := metadata.ParseTSID3(raw); ok {
		mergeTags(&tags, ts3.Tags)
		audio = raw[ts3.Length:]
	}

	esData, format, err := c.extractElementaryStream(audio)
	if err != nil {
		return err
	}

	if len(esData) == 0 {
		return nil
	}

	bitrate := 0
	if seg.DurationSeconds > 0 {
		bitrate = int(float64(len(raw)*8) / (seg.DurationSeconds * 1000))
	}

	c.metadata.Store(&Metadata{Tags: tags, BitrateKbps: bitrate})

	dec, err := decode.New(format)
	if err != nil {
		return fmt.Errorf("hls: %w", err)
	}
	defer dec.Close()

	rate, _, _, err := dec.Open(bytes.NewReader(esData))
	if err != nil {
		return fmt.Errorf("hls: opening segment decoder: %w", err)
	}

	if !c.firstFrame {
		c.firstFrame = true

		if c.onFirstFrame != nil {
			c.onFirstFrame(rate)
		}
	}

	buf := make([]int16, segmentDecodeBufFrames*2)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // caller checks errors.Is(context.Canceled)
		default:
		}

		n, err := dec.Read(buf, len(buf)/2)
		if n > 0 {
			c.writeWithPacing(ctx, buf[:n*2])
		}

		if err != nil || n == 0 {
			return nil
		}
	}
}

// extractElementaryStream demuxes MPEG-TS-wrapped segments, or treats a
// segment as a bare elementary stream when it doesn't begin with a TS sync
// byte — the common case for audio-only HLS radio, which is almost always
// raw ADTS AAC rather than TS-wrapped.
func (c *Context) extractElementaryStream(audio []byte) ([]byte, decode.Format, error) {
	if !LooksLikeTransportStream(audio) {
		return audio, decode.FormatAAC, nil
	}

	demuxed, err := c.demux.Demux(audio)
	if err != nil {
		return nil, decode.FormatUnknown, fmt.Errorf("hls: demuxing segment: %w", err)
	}

	format := decode.FormatAAC
	if c.demux.Codec() == AudioCodecMP3 {
		format = decode.FormatMP3
	}

	return demuxed, format, nil
}

// writeWithPacing blocks briefly when the ring is more than half full, to
// avoid racing far ahead of the audio callback (same pacing policy as the
// direct-radio package).
func (c *Context) writeWithPacing(ctx context.Context, frames []int16) {
	const pacingSleep = 5 * time.Millisecond

	remaining := frames

	for len(remaining) > 0 {
		n := c.ring.TryWrite(remaining)
		remaining = remaining[n*2:]

		if c.State() == Buffering && c.BufferLevel() >= float64(resumeSeconds)/ringCapacitySeconds {
			c.state.Store(int32(Playing))
		}

		if len(remaining) > 0 && !sleepOrDone(ctx, pacingSleep) {
			return
		}
	}

	for c.ring.Count() > c.ring.Capacity()/2 {
		if !sleepOrDone(ctx, pacingSleep) {
			return
		}
	}
}

func (c *Context) fail(err error) {
	msg := err.Error()
	c.errMsg.Store(&msg)
	c.state.Store(int32(Error))
	c.logger.Error("hls stream failed", "error", err)
}

// mergeTags overlays any non-empty fields of overlay onto base.
func mergeTags(base *metadata.Tags, overlay metadata.Tags) {
	if overlay.Title != "" {
		base.Title = overlay.Title
	}

	if overlay.Artist != "" {
		base.Artist = overlay.Artist
	}

	if overlay.Album != "" {
		base.Album = overlay.Album
	}
}

// sleepOrDone sleeps for d, returning false immediately if ctx is
// cancelled first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

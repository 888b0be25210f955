// Package radio drives a direct (non-HLS) Icecast/Shoutcast stream:
// connect, parse ICY headers, frame-sync MP3 or ADTS AAC, decode, and feed
// the ring buffer, exposing a STOPPED/CONNECTING/BUFFERING/PLAYING/ERROR
// state machine. Grounded on original_source radio.c/radio_net.c's
// connect-then-read-loop structure, expressed as one producer goroutine
// instead of a poll-from-main-loop state machine.
package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
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

// State is the radio stream's coarse playback state.
type State int

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
	// underrunSeconds is the ring level below which PLAYING drops back to
	// BUFFERING.
	underrunSeconds = 2
	// resumeSeconds is the ring level PLAYING resumes at, intentionally
	// higher than underrunSeconds to prevent state thrashing.
	resumeSeconds = 8

	ringCapacitySeconds = 10
	nativeRate          = 48000

	metaChunkBufferSize = 8192
)

// Metadata is the latest ICY-derived info for the current stream.
type Metadata struct {
	StationName string
	Tags        metadata.Tags
	BitrateKbps int
	ContentType string
}

// Context owns one direct-radio playback session: exactly one producer
// goroutine, one ring buffer, and the published state/metadata/error the
// UI reads.
type Context struct {
	client *netfetch.Client
	ring   *ring.Buffer
	logger *slog.Logger

	state    atomic.Int32
	errMsg   atomic.Pointer[string]
	metadata atomic.Pointer[Metadata]

	cancel context.CancelFunc
	wg     sync.WaitGroup

	onFirstFrame func(rate int) // sink reconfiguration callback
}

// New creates a radio Context. onFirstFrame is invoked once, from the
// producer goroutine, with the decoder's reported rate as soon as the
// stream's decoder has opened.
func New(client *netfetch.Client, onFirstFrame func(rate int)) *Context {
	return &Context{
		client:       client,
		ring:         ring.New(ringCapacitySeconds * nativeRate),
		logger:       logging.Component(nil, "radio"),
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

// Metadata returns the latest published ICY metadata, or nil if none yet.
func (c *Context) Metadata() *Metadata {
	return c.metadata.Load()
}

// BufferLevel returns the ring buffer's fill fraction, 0.0 to 1.0.
func (c *Context) BufferLevel() float64 {
	return float64(c.ring.Count()) / float64(c.ring.Capacity())
}

// Play connects to url and starts the producer goroutine. Any previous
// session is stopped first.
func (c *Context) Play(ctx context.Context, url string) {
	c.Stop()

	sessionCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.Store(int32(Connecting))
	c.ring.Clear()

	c.wg.Add(1)

	go c.run(sessionCtx, url)
}

// Stop ends the current session and joins the producer goroutine,
// matching the original's shutdown(SHUT_RDWR)-then-join shutdown.
func (c *Context) Stop() {
	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()
	c.state.Store(int32(Stopped))
}

// Read pulls up to maxFrames decoded stereo frames for the audio callback.
// Never blocks: returns whatever the ring buffer currently has.
func (c *Context) Read(out []int16, maxFrames int) int {
	frames := c.ring.TryRead(out[:maxFrames*2])

	if c.State() == Playing && c.BufferLevel() < float64(underrunSeconds)/ringCapacitySeconds {
		c.state.Store(int32(Buffering))
	} else if c.State() == Buffering && c.BufferLevel() >= float64(resumeSeconds)/ringCapacitySeconds {
		c.state.Store(int32(Playing))
	}

	return frames
}

func (c *Context) run(ctx context.Context, url string) {
	defer c.wg.Done()

	resp, err := c.client.Open(ctx, url, map[string]string{"Icy-MetaData": "1"})
	if err != nil {
		c.fail(fmt.Errorf("radio: connecting: %w", err))

		return
	}
	defer resp.Body.Close()

	metaInt := parseMetaInt(resp.Header.Get("Icy-Metaint"))
	stationName := resp.Header.Get("Icy-Name")
	bitrate, _ := strconv.Atoi(resp.Header.Get("Icy-Br"))
	contentType := resp.Header.Get("Content-Type")

	c.metadata.Store(&Metadata{StationName: stationName, BitrateKbps: bitrate, ContentType: contentType})

	format := formatFromContentType(contentType)

	dec, err := decode.New(format)
	if err != nil {
		c.fail(fmt.Errorf("radio: %w", err))

		return
	}
	defer dec.Close()

	source := &icySource{body: resp.Body, metaInt: metaInt, onMetadata: c.handleInlineMetadata}

	c.state.Store(int32(Buffering))
	c.pump(ctx, dec, source)
}

// pump feeds raw bytes through the codec-specific decoder into the ring
// buffer until ctx is cancelled or the connection drops.
func (c *Context) pump(ctx context.Context, dec decode.Decoder, source *icySource) {
	// Stream decoders expect an io.ReadSeeker for local files; live radio
	// bodies aren't seekable, so Open is driven through an adapter that
	// replays seeks within the bytes it has buffered so far and refuses
	// any other seek.
	rate, _, _, err := dec.Open(newNonSeekingReader(source))
	if err != nil {
		c.fail(fmt.Errorf("radio: opening decoder: %w", err))

		return
	}

	if c.onFirstFrame != nil {
		c.onFirstFrame(rate)
	}

	buf := make([]int16, metaChunkBufferSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := dec.Read(buf, len(buf)/2)
		if n > 0 {
			c.writeWithPacing(ctx, buf[:n*2])
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}

			c.fail(fmt.Errorf("radio: decode: %w", err))

			return
		}

		if n == 0 {
			c.fail(errStreamEnded)

			return
		}
	}
}

var errStreamEnded = errors.New("radio: stream ended")

// writeWithPacing blocks briefly (busy-sleep) when the ring
// is more than half full, to avoid racing far ahead of the audio callback.
func (c *Context) writeWithPacing(ctx context.Context, frames []int16) {
	const pacingSleep = 5 * time.Millisecond

	remaining := frames

	for len(remaining) > 0 {
		n := c.ring.TryWrite(remaining)
		remaining = remaining[n*2:]

		if c.State() == Buffering && c.BufferLevel() >= float64(resumeSeconds)/ringCapacitySeconds {
			c.state.Store(int32(Playing))
		}

		if len(remaining) > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pacingSleep):
			}
		}
	}

	for c.ring.Count() > c.ring.Capacity()/2 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(pacingSleep):
		}
	}
}

func (c *Context) handleInlineMetadata(block string) {
	tags := metadata.ParseICYMetadata(block)
	if tags.Title == "" && tags.Artist == "" {
		return
	}

	prev := c.metadata.Load()

	next := Metadata{Tags: tags}
	if prev != nil {
		next.StationName = prev.StationName
		next.BitrateKbps = prev.BitrateKbps
		next.ContentType = prev.ContentType
	}

	c.metadata.Store(&next)
}

func (c *Context) fail(err error) {
	msg := err.Error()
	c.errMsg.Store(&msg)
	c.state.Store(int32(Error))
	c.logger.Error("radio stream failed", "error", err)
}

func parseMetaInt(header string) int {
	n, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil {
		return 0
	}

	return n
}

func formatFromContentType(contentType string) decode.Format {
	lower := strings.ToLower(contentType)

	switch {
	case strings.Contains(lower, "aac"):
		return decode.FormatAAC
	default:
		return decode.FormatMP3
	}
}

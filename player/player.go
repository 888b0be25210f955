// Package player is the top-level playback engine: it owns the sink, the
// DSP chain, and exactly one active audio source at a time — a local
// decode session, a direct radio stream, or an HLS stream — feeding the
// sink's pull callback from whichever is active. Starting one source
// always stops whichever was running before it's "Radio/HLS
// contexts are mutually exclusive with local playback" ownership rule.
// The local-playback half is grounded on original_source
// player.c/player_engine.c's load→decode-thread→resample→ring flow,
// generalised to every registered decode.Format.
package player

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nextui/musicplayer/albumart"
	"github.com/nextui/musicplayer/decode"
	_ "github.com/nextui/musicplayer/decode/aac"    //nolint:revive // registers decode.FormatAAC
	_ "github.com/nextui/musicplayer/decode/flac"   //nolint:revive // registers decode.FormatFLAC
	_ "github.com/nextui/musicplayer/decode/m4a"    //nolint:revive // registers decode.FormatM4A
	_ "github.com/nextui/musicplayer/decode/mp3"    //nolint:revive // registers decode.FormatMP3
	_ "github.com/nextui/musicplayer/decode/opus"   //nolint:revive // registers decode.FormatOpus
	_ "github.com/nextui/musicplayer/decode/vorbis" //nolint:revive // registers decode.FormatVorbis
	_ "github.com/nextui/musicplayer/decode/wav"    //nolint:revive // registers decode.FormatWAV
	"github.com/nextui/musicplayer/detect"
	"github.com/nextui/musicplayer/hls"
	"github.com/nextui/musicplayer/internal/dsp"
	"github.com/nextui/musicplayer/internal/logging"
	"github.com/nextui/musicplayer/internal/resample"
	"github.com/nextui/musicplayer/internal/ring"
	"github.com/nextui/musicplayer/lyrics"
	"github.com/nextui/musicplayer/metadata"
	"github.com/nextui/musicplayer/netfetch"
	"github.com/nextui/musicplayer/radio"
	"github.com/nextui/musicplayer/sink"
)

// Source identifies which kind of playback the engine is currently
// driving.
type Source int

const (
	SourceNone Source = iota
	SourceLocal
	SourceRadio
	SourceHLS
)

// String implements fmt.Stringer.
func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRadio:
		return "radio"
	case SourceHLS:
		return "hls"
	default:
		return "none"
	}
}

const (
	ringCapacitySeconds = 10
	defaultRate         = 48000
	decodeChunkFrames   = 4096

	bytesPerSample = 2
	channels       = 2
)

// TrackInfo is the published, read-only description of what's currently
// loaded: tags plus duration's Track Info entity.
type TrackInfo struct {
	metadata.Tags
	DurationMS  int64
	SampleRate  int
	TotalFrames int64 // -1 if unknown/live
}

// frameSource is satisfied by any active producer the pull callback can
// read decoded stereo frames from, regardless of which kind of source is
// active.
type frameSource interface {
	Read(out []int16, maxFrames int) int
}

// ringSource adapts ring.Buffer's TryRead(out) to frameSource's
// Read(out, maxFrames) shape, since the ring buffer itself is shared with
// the decode-thread writer and has no notion of a frame cap separate from
// len(out).
type ringSource struct {
	ring *ring.Buffer
}

func (r *ringSource) Read(out []int16, maxFrames int) int {
	return r.ring.TryRead(out[:maxFrames*channels])
}

// Player ties decode, resample, the ring buffer, the sink, and the DSP
// chain into one playback session, plus the radio/HLS ingest paths and
// the album-art/lyrics fetchers those and local tracks both feed.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger

	sinkMgr *sink.Manager

	mode   atomic.Int32 // Source
	paused atomic.Bool
	repeat atomic.Bool

	volumeBits atomic.Uint64 // math.Float64bits(linear 0..1 volume)
	hpf        *dsp.Biquad
	limiterMu  sync.Mutex
	limiter    dsp.LimiterThreshold

	// Local playback.
	localRing   *ring.Buffer
	localSrc    *ringSource
	resampler   *resample.Resampler
	dec         decode.Decoder
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	cursorFrame atomic.Int64

	active frameSource // which producer the pull callback currently reads

	trackInfo atomic.Pointer[TrackInfo]

	radioCtx *radio.Context
	hlsCtx   *hls.Context

	albumArt *albumart.Fetcher
	lyrics   *lyrics.Fetcher
}

// New constructs a Player. routingPath is the audio-routing config file
// sink.Manager watches; cacheDir is the parent directory under which
// "albumart" and "lyrics" cache subdirectories are created. client serves
// general metadata/art/lyrics/HLS fetches; radioClient is a separate
// instance (normally built with netfetch.RadioRedirectLimit) used solely
// for direct radio stream connects, which need a tighter redirect cap.
func New(routingPath, cacheDir string, client, radioClient *netfetch.Client) *Player {
	p := &Player{
		logger:    logging.Component(nil, "player"),
		localRing: ring.New(ringCapacitySeconds * defaultRate),
		resampler: resample.New(defaultRate, defaultRate),
		hpf:       dsp.NewBiquad(defaultRate),
		albumArt:  albumart.NewFetcher(client, filepath.Join(cacheDir, "albumart")),
		lyrics:    lyrics.NewFetcher(client, filepath.Join(cacheDir, "lyrics")),
	}

	p.localSrc = &ringSource{ring: p.localRing}
	p.volumeBits.Store(float64Bits(1.0))
	p.sinkMgr = sink.New(routingPath, p.PullAudio, p.OnSinkReopened)
	p.radioCtx = radio.New(radioClient, p.onSourceRateKnown)
	p.hlsCtx = hls.New(client, p.onSourceRateKnown)

	return p
}

// Open opens the sink at the given kind, the prerequisite for any
// playback.
func (p *Player) Open(kind sink.Kind) error {
	return p.sinkMgr.Open(kind)
}

// WatchSinkRouting delegates to the sink manager, see sink.Manager.WatchRoutingConfig.
func (p *Player) WatchSinkRouting(preference func() string) error {
	return p.sinkMgr.WatchRoutingConfig(preference)
}

// SinkState returns the sink's current kind/rate.
func (p *Player) SinkState() sink.State {
	return p.sinkMgr.State()
}

// Source reports which kind of playback is currently active.
func (p *Player) Source() Source {
	return Source(p.mode.Load())
}

// TrackInfo returns the currently loaded track's metadata, or nil.
func (p *Player) TrackInfo() *TrackInfo {
	return p.trackInfo.Load()
}

// CursorMS returns the local-playback position in milliseconds; 0 for
// non-local sources.
func (p *Player) CursorMS(rate int) int64 {
	if rate == 0 || p.Source() != SourceLocal {
		return 0
	}

	return p.cursorFrame.Load() * 1000 / int64(rate)
}

var errUnsupportedLocalFormat = errors.New("player: no decoder registered for this format")

// ProbeFile identifies path's codec and extracts its duration and tags
// without starting playback, for CLI inspection use (the "decode --info"
// pattern generalised from a one-shot demo to every registered format).
func ProbeFile(path string) (*TrackInfo, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator/UI-selected, not attacker-controlled
	if err != nil {
		return nil, fmt.Errorf("player: opening %s: %w", path, err)
	}
	defer f.Close()

	codec, err := detect.Identify(f)
	if err != nil {
		return nil, fmt.Errorf("player: identifying %s: %w", path, err)
	}

	format := decode.FormatFromCodec(codec)

	dec, err := decode.New(format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, errUnsupportedLocalFormat)
	}
	defer dec.Close()

	rate, _, totalFrames, err := dec.Open(f)
	if err != nil {
		return nil, fmt.Errorf("player: opening decoder for %s: %w", path, err)
	}

	tags := extractLocalTags(path, format)

	return &TrackInfo{
		Tags:        tags,
		SampleRate:  rate,
		TotalFrames: totalFrames,
		DurationMS:  framesToMS(totalFrames, rate),
	}, nil
}

// PlayFile stops whatever is currently playing and starts decoding path
// from the beginning.
func (p *Player) PlayFile(ctx context.Context, path string) error {
	p.stopAll()

	f, err := os.Open(path) //nolint:gosec // path is operator/UI-selected, not attacker-controlled
	if err != nil {
		return fmt.Errorf("player: opening %s: %w", path, err)
	}

	codec, err := detect.Identify(f)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("player: identifying %s: %w", path, err)
	}

	format := decode.FormatFromCodec(codec)

	dec, err := decode.New(format)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("%s: %w", path, errUnsupportedLocalFormat)
	}

	rate, chans, totalFrames, err := dec.Open(f)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("player: opening decoder for %s: %w", path, err)
	}

	tags := extractLocalTags(path, format)

	info := &TrackInfo{
		Tags:        tags,
		SampleRate:  rate,
		TotalFrames: totalFrames,
		DurationMS:  framesToMS(totalFrames, rate),
	}
	p.trackInfo.Store(info)
	p.notifyFetchers(tags, info.DurationMS)

	sinkRate := p.sinkMgr.State().Rate
	if sinkRate == 0 {
		sinkRate = defaultRate
	}

	p.mu.Lock()
	p.dec = dec
	p.resampler.SetRates(rate, sinkRate)
	p.localRing.Clear()
	p.cursorFrame.Store(0)
	p.active = p.localSrc
	p.mode.Store(int32(SourceLocal))
	p.paused.Store(false)

	localCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	_ = chans // mono upmix handled inside each decoder

	p.wg.Add(1)

	go p.runLocal(localCtx, f)

	return nil
}

// runLocal is the decode-thread equivalent: pulls PCM from dec, resamples
// to the sink's current rate, and writes into the ring buffer until EOF,
// seek-to-zero-on-repeat, or cancellation.
func (p *Player) runLocal(ctx context.Context, f *os.File) {
	defer p.wg.Done()
	defer f.Close()
	defer p.dec.Close()

	buf := make([]int16, decodeChunkFrames*channels)

	var out []int16

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if p.paused.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(20 * time.Millisecond):
			}

			continue
		}

		n, err := p.dec.Read(buf, decodeChunkFrames)
		if n > 0 {
			out = p.resampler.Process(buf[:n*channels], false, out[:0])
			p.writeWithPacing(ctx, out)
			p.cursorFrame.Add(int64(n))
		}

		if err != nil && !errors.Is(err, io.EOF) {
			p.logger.Error("local decode failed", "error", err)

			return
		}

		if n == 0 {
			if p.repeat.Load() {
				if err := p.dec.Seek(0); err != nil {
					return
				}

				p.resampler.Reset()
				p.cursorFrame.Store(0)

				continue
			}

			p.drainAndStop(ctx)

			return
		}
	}
}

// drainAndStop waits for the ring buffer to empty (so the last decoded
// audio is actually heard) before marking playback stopped.
func (p *Player) drainAndStop(ctx context.Context) {
	for p.localRing.Count() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}

	p.mode.Store(int32(SourceNone))
}

func (p *Player) writeWithPacing(ctx context.Context, frames []int16) {
	const pacingSleep = 5 * time.Millisecond

	remaining := frames
	for len(remaining) > 0 {
		n := p.localRing.TryWrite(remaining)
		remaining = remaining[n*channels:]

		if len(remaining) > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pacingSleep):
			}
		}
	}

	for p.localRing.Count() > p.localRing.Capacity()/2 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(pacingSleep):
		}
	}
}

// PlayRadio stops whatever is playing and starts a direct Icecast/Shoutcast
// stream.
func (p *Player) PlayRadio(ctx context.Context, url string) {
	p.stopAll()

	p.mu.Lock()
	p.active = p.radioCtx
	p.mode.Store(int32(SourceRadio))
	p.mu.Unlock()

	p.radioCtx.Play(ctx, url)

	go p.watchRadioMetadata()
}

// PlayHLS stops whatever is playing and starts an HLS stream.
func (p *Player) PlayHLS(ctx context.Context, url string) {
	p.stopAll()

	p.mu.Lock()
	p.active = p.hlsCtx
	p.mode.Store(int32(SourceHLS))
	p.mu.Unlock()

	p.hlsCtx.Play(ctx, url)

	go p.watchHLSMetadata()
}

func (p *Player) watchRadioMetadata() {
	p.pollMetadata(func() (metadata.Tags, bool) {
		if p.Source() != SourceRadio {
			return metadata.Tags{}, false
		}

		md := p.radioCtx.Metadata()
		if md == nil {
			return metadata.Tags{}, false
		}

		return md.Tags, true
	})
}

func (p *Player) watchHLSMetadata() {
	p.pollMetadata(func() (metadata.Tags, bool) {
		if p.Source() != SourceHLS {
			return metadata.Tags{}, false
		}

		md := p.hlsCtx.Metadata()
		if md == nil {
			return metadata.Tags{}, false
		}

		return md.Tags, true
	})
}

// pollMetadata watches a streaming source's published tags, updating
// TrackInfo and firing the album-art/lyrics fetchers whenever the
// artist/title pair changes, until the source is no longer active.
func (p *Player) pollMetadata(poll func() (metadata.Tags, bool)) {
	const interval = 500 * time.Millisecond

	var lastArtist, lastTitle string

	for {
		tags, active := poll()
		if !active {
			return
		}

		if tags.Artist != lastArtist || tags.Title != lastTitle {
			lastArtist, lastTitle = tags.Artist, tags.Title
			p.trackInfo.Store(&TrackInfo{Tags: tags, TotalFrames: -1})
			p.notifyFetchers(tags, 0)
		}

		time.Sleep(interval)
	}
}

// notifyFetchers kicks off album-art and lyrics fetches for the given
// tags, matching  "metadata events out of C8 trigger C11/C12
// fetches".
func (p *Player) notifyFetchers(tags metadata.Tags, durationMS int64) {
	if tags.Artist == "" && tags.Title == "" {
		return
	}

	p.albumArt.Fetch(context.Background(), tags.Artist, tags.Title)
	p.lyrics.Fetch(context.Background(), tags.Artist, tags.Title, int(durationMS/1000))
}

// onSourceRateKnown is the radio/HLS onFirstFrame callback: reopening the
// sink isn't needed (both Contexts decode to the sink's native rate
// internally is out of scope here; they publish their own decode rate for
// UI display only), so this just logs for now.
func (p *Player) onSourceRateKnown(rate int) {
	p.logger.Info("stream native rate detected", "rate", rate)
}

// OnSinkReopened is the sink.Manager reconfiguration callback, wired in at
// construction time (parallel to PullAudio's wiring as the pull
// callback). It fires after Reopen (e.g. a routing-config change
// connecting a Bluetooth device, which drops the native rate from 48000
// to 44100). Local playback is the only path driven through p.resampler,
// so it's the only one re-targeted here; radio/HLS already adapt to the
// sink internally.
func (p *Player) OnSinkReopened(kind sink.Kind, rate int) {
	if p.Source() != SourceLocal {
		return
	}

	info := p.trackInfo.Load()
	if info == nil || info.SampleRate == 0 {
		return
	}

	p.mu.Lock()
	p.resampler.SetRates(info.SampleRate, rate)
	p.resampler.Reset()
	p.localRing.Clear()
	p.mu.Unlock()

	p.logger.Info("resampler re-targeted after sink reconfiguration", "kind", kind.String(), "rate", rate)
}

// Pause pauses local playback. No-op for radio/HLS, which have no pause
// concept: pause only applies to local files.
func (p *Player) Pause() {
	p.paused.Store(true)
}

// Resume resumes local playback.
func (p *Player) Resume() {
	p.paused.Store(false)
}

// IsPaused reports whether local playback is paused.
func (p *Player) IsPaused() bool {
	return p.paused.Load()
}

// SetRepeat toggles repeat-on-EOF for local playback.
func (p *Player) SetRepeat(enabled bool) {
	p.repeat.Store(enabled)
}

// Seek repositions local playback to the given millisecond offset.
// No-op for radio/HLS sources.
func (p *Player) Seek(positionMS int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Source() != SourceLocal || p.dec == nil {
		return nil
	}

	info := p.trackInfo.Load()
	if info == nil || info.SampleRate == 0 {
		return nil
	}

	frame := positionMS * int64(info.SampleRate) / 1000

	if err := p.dec.Seek(frame); err != nil {
		return fmt.Errorf("player: seeking: %w", err)
	}

	p.resampler.Reset()
	p.localRing.Clear()
	p.cursorFrame.Store(frame)

	return nil
}

// Stop halts whichever source is active.
func (p *Player) Stop() {
	p.stopAll()
	p.mode.Store(int32(SourceNone))
}

func (p *Player) stopAll() {
	p.radioCtx.Stop()
	p.hlsCtx.Stop()

	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	p.wg.Wait()
}

// SetVolume sets the linear 0..1 volume knob; out-of-range values are
// clamped.
func (p *Player) SetVolume(linear float64) {
	if linear < 0 {
		linear = 0
	}

	if linear > 1 {
		linear = 1
	}

	p.volumeBits.Store(float64Bits(linear))
}

// SetBassFilter reconfigures the speaker high-pass filter cutoff.
func (p *Player) SetBassFilter(hz dsp.BassFilterHz) {
	p.hpf.SetCutoff(hz)
}

// SetSoftLimiter reconfigures the speaker soft-limiter threshold.
func (p *Player) SetSoftLimiter(threshold dsp.LimiterThreshold) {
	p.limiterMu.Lock()
	p.limiter = threshold
	p.limiterMu.Unlock()
}

// AlbumArt returns the most recently fetched cover art, or nil.
func (p *Player) AlbumArt() *albumart.Art {
	return p.albumArt.Current()
}

// Lyrics returns the most recently fetched lyrics index, or nil.
func (p *Player) Lyrics() *lyrics.Index {
	return p.lyrics.Current()
}

// PullAudio is the sink's audio callback: it reads from whichever source
// is active, zero-pads any shortfall, and applies the DSP chain (speaker
// only) before handing bytes to the device. Exported so it
// can be driven directly without an opened hardware sink.
func (p *Player) PullAudio(out []byte) (int, error) {
	frames := len(out) / (bytesPerSample * channels)

	pcm := make([]int16, frames*channels)

	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	var n int
	if active != nil {
		n = active.Read(pcm, frames)
	}

	if p.sinkMgr.State().Kind.DSPEnabled() {
		p.applyDSP(pcm[:n*channels])
	}

	for i := 0; i < n*channels; i++ {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(pcm[i]))
	}

	for i := n * channels * bytesPerSample; i < len(out); i++ {
		out[i] = 0
	}

	return len(out), nil
}

func (p *Player) applyDSP(samples []int16) {
	volume := float64FromBits(p.volumeBits.Load())
	dsp.ApplyVolumeCurve(samples, volume)

	p.hpf.ProcessStereo(samples)

	p.limiterMu.Lock()
	threshold := p.limiter
	p.limiterMu.Unlock()

	dsp.SoftLimit(samples, threshold)
}

// extractLocalTags best-effort extracts title/artist/album/art from path
// for the given format; any failure yields a zero-value Tags rather than
// aborting playback, matching every other extractor in package metadata.
func extractLocalTags(path string, format decode.Format) metadata.Tags {
	switch format {
	case decode.FormatMP3:
		return extractMP3Tags(path)
	case decode.FormatM4A:
		return extractMP4Tags(path)
	case decode.FormatFLAC, decode.FormatVorbis, decode.FormatOpus:
		return extractVorbisCommentTags(path)
	default:
		return metadata.Tags{}
	}
}

func extractMP3Tags(path string) metadata.Tags {
	f, err := os.Open(path) //nolint:gosec // operator/UI-selected path
	if err != nil {
		return metadata.Tags{}
	}
	defer f.Close()

	var header [10]byte
	if _, err := io.ReadFull(f, header[:]); err == nil && string(header[:3]) == "ID3" {
		if size, ok := metadata.ParseID3v2Size(header[:]); ok {
			body := make([]byte, size)
			if _, err := io.ReadFull(f, body); err == nil {
				tags := metadata.ParseID3v2Frames(body)
				if tags.Title != "" || tags.Artist != "" {
					return tags
				}
			}
		}
	}

	info, err := f.Stat()
	if err != nil || info.Size() < 128 {
		return metadata.Tags{}
	}

	trailer := make([]byte, 128)
	if _, err := f.ReadAt(trailer, info.Size()-128); err != nil {
		return metadata.Tags{}
	}

	tags, ok := metadata.ParseID3v1(trailer)
	if !ok {
		return metadata.Tags{}
	}

	return tags
}

func extractMP4Tags(path string) metadata.Tags {
	f, err := os.Open(path) //nolint:gosec // operator/UI-selected path
	if err != nil {
		return metadata.Tags{}
	}
	defer f.Close()

	tags, err := metadata.ParseMP4Tags(f)
	if err != nil {
		return metadata.Tags{}
	}

	return tags
}

// vorbisCommentMagic follows the packet type byte in both the Ogg Vorbis
// comment header and the FLAC VORBIS_COMMENT metadata block payload.
const vorbisCommentMagic = "vorbis"

// opusTagsMagic opens an Ogg Opus comment header packet; unlike Vorbis it
// carries no leading packet-type byte.
const opusTagsMagic = "OpusTags"

func extractVorbisCommentTags(path string) metadata.Tags {
	f, err := os.Open(path) //nolint:gosec // operator/UI-selected path
	if err != nil {
		return metadata.Tags{}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return metadata.Tags{}
	}

	var comments []string

	switch {
	case strings.HasPrefix(string(data), "fLaC"):
		comments = flacVorbisComments(data)
	case strings.HasPrefix(string(data), "OggS"):
		comments = oggVorbisComments(data)
	default:
		return metadata.Tags{}
	}

	if comments == nil {
		return metadata.Tags{}
	}

	return metadata.ParseVorbisComments(comments)
}

// flacVorbisComments walks FLAC metadata blocks (after the 4-byte "fLaC"
// marker) looking for the VORBIS_COMMENT block (type 4), parsing its
// vendor string + comment list per the standard Vorbis comment layout.
func flacVorbisComments(data []byte) []string {
	const (
		blockHeaderSize  = 4
		vorbisCommentTyp = 4
	)

	pos := 4
	for pos+blockHeaderSize <= len(data) {
		header := data[pos]
		isLast := header&0x80 != 0
		blockType := header & 0x7F
		length := int(data[pos+1])<<16 | int(data[pos+2])<<8 | int(data[pos+3])

		pos += blockHeaderSize
		if pos+length > len(data) {
			return nil
		}

		if blockType == vorbisCommentTyp {
			return parseVorbisCommentPayload(data[pos : pos+length])
		}

		pos += length

		if isLast {
			return nil
		}
	}

	return nil
}

// oggVorbisComments scans the first few Ogg pages for the Vorbis comment
// header packet (type 3, "vorbis" magic), reassembling a page's packet
// payload from its segment table.
func oggVorbisComments(data []byte) []string {
	const (
		pageHeaderMinSize = 27
		capturePattern    = "OggS"
		maxPagesScanned   = 8
	)

	pos := 0

	for page := 0; page < maxPagesScanned && pos+pageHeaderMinSize <= len(data); page++ {
		if string(data[pos:pos+4]) != capturePattern {
			return nil
		}

		segCount := int(data[pos+26])
		segTableStart := pos + pageHeaderMinSize

		if segTableStart+segCount > len(data) {
			return nil
		}

		segTable := data[segTableStart : segTableStart+segCount]

		payloadStart := segTableStart + segCount
		payloadLen := 0
		for _, s := range segTable {
			payloadLen += int(s)
		}

		if payloadStart+payloadLen > len(data) {
			return nil
		}

		payload := data[payloadStart : payloadStart+payloadLen]

		if len(payload) > 7 && payload[0] == 3 && string(payload[1:7]) == vorbisCommentMagic {
			return parseVorbisCommentPayload(payload[7:])
		}

		if len(payload) > 8 && string(payload[:8]) == opusTagsMagic {
			return parseVorbisCommentPayload(payload[8:])
		}

		pos = payloadStart + payloadLen
	}

	return nil
}

// parseVorbisCommentPayload parses the standard Vorbis comment layout:
// a length-prefixed vendor string followed by a count and that many
// length-prefixed "KEY=VALUE" strings.
func parseVorbisCommentPayload(payload []byte) []string {
	const lengthPrefixSize = 4

	if len(payload) < lengthPrefixSize {
		return nil
	}

	vendorLen := int(binary.LittleEndian.Uint32(payload))
	pos := lengthPrefixSize + vendorLen

	if pos+lengthPrefixSize > len(payload) {
		return nil
	}

	count := int(binary.LittleEndian.Uint32(payload[pos:]))
	pos += lengthPrefixSize

	comments := make([]string, 0, count)

	for range count {
		if pos+lengthPrefixSize > len(payload) {
			break
		}

		n := int(binary.LittleEndian.Uint32(payload[pos:]))
		pos += lengthPrefixSize

		if pos+n > len(payload) {
			break
		}

		comments = append(comments, string(payload[pos:pos+n]))
		pos += n
	}

	return comments
}

func framesToMS(totalFrames int64, rate int) int64 {
	if totalFrames < 0 || rate == 0 {
		return -1
	}

	return totalFrames * 1000 / int64(rate)
}

func float64Bits(v float64) uint64 {
	return math.Float64bits(v)
}

func float64FromBits(bits uint64) float64 {
	return math.Float64frombits(bits)
}

package player_test

import (
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nextui/musicplayer/decode"
	"github.com/nextui/musicplayer/internal/dsp"
	"github.com/nextui/musicplayer/netfetch"
	"github.com/nextui/musicplayer/player"
	"github.com/nextui/musicplayer/sink"
)

// fakeStreamDecoder is a minimal decode.Decoder stand-in registered for
// decode.FormatMP3 in this package's tests only, so radio/HLS mutual
// exclusion can be exercised without a real codec bitstream-decoding
// fabricated bytes.
type fakeStreamDecoder struct {
	framesLeft int
}

func (d *fakeStreamDecoder) Open(src io.ReadSeeker) (int, int, int64, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return 0, 0, 0, err //nolint:wrapcheck // test helper
	}

	d.framesLeft = len(data)

	return 44100, 2, int64(d.framesLeft), nil
}

func (d *fakeStreamDecoder) Read(out []int16, maxFrames int) (int, error) {
	if d.framesLeft == 0 {
		return 0, nil
	}

	n := maxFrames
	if n > d.framesLeft {
		n = d.framesLeft
	}

	for i := 0; i < n*2; i++ {
		out[i] = 0
	}

	d.framesLeft -= n

	return n, nil
}

func (d *fakeStreamDecoder) Seek(int64) error { return nil }
func (d *fakeStreamDecoder) Close() error     { return nil }

func init() { //nolint:gochecknoinits // test-only decoder registration
	decode.Register(decode.FormatMP3, func() decode.Decoder { return &fakeStreamDecoder{} })
}

// buildWAV writes a minimal 16-bit PCM stereo RIFF/WAVE file at rate Hz
// containing frames interleaved stereo samples.
func buildWAV(t *testing.T, path string, rate int, frames []int16) {
	t.Helper()

	const (
		channels      = 2
		bitsPerSample = 16
	)

	dataSize := len(frames) * 2
	byteRate := rate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 0, 44+dataSize)
	buf = append(buf, "RIFF"...)
	buf = appendUint32(buf, uint32(36+dataSize)) //nolint:gosec // test fixture sizes are tiny
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = appendUint32(buf, 16)
	buf = appendUint16(buf, 1) // PCM
	buf = appendUint16(buf, channels)
	buf = appendUint32(buf, uint32(rate)) //nolint:gosec // test fixture rate is tiny
	buf = appendUint32(buf, uint32(byteRate)) //nolint:gosec // test fixture rate is tiny
	buf = appendUint16(buf, uint16(blockAlign)) //nolint:gosec // test fixture value is tiny
	buf = appendUint16(buf, bitsPerSample)
	buf = append(buf, "data"...)
	buf = appendUint32(buf, uint32(dataSize)) //nolint:gosec // test fixture size is tiny

	for _, s := range frames {
		buf = appendUint16(buf, uint16(s)) //nolint:gosec // intentional bit-pattern reinterpretation
	}

	require.NoError(t, os.WriteFile(path, buf, 0o600))
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)

	return append(buf, tmp[:]...)
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)

	return append(buf, tmp[:]...)
}

func newTestPlayer(t *testing.T) *player.Player {
	t.Helper()

	dir := t.TempDir()
	client := netfetch.New(2*time.Second, netfetch.GeneralRedirectLimit)
	radioClient := netfetch.New(2*time.Second, netfetch.RadioRedirectLimit)

	return player.New(filepath.Join(dir, "routing.conf"), filepath.Join(dir, "cache"), client, radioClient)
}

func TestPlayFileDecodesWAVIntoPullableAudio(t *testing.T) {
	t.Parallel()

	const rate = 48000

	frames := make([]int16, 0, 2000)
	for i := 0; i < 1000; i++ {
		frames = append(frames, 1000, -1000)
	}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "track.wav")
	buildWAV(t, wavPath, rate, frames)

	p := newTestPlayer(t)

	require.NoError(t, p.PlayFile(context.Background(), wavPath))
	require.Equal(t, player.SourceLocal, p.Source())

	require.Eventually(t, func() bool {
		info := p.TrackInfo()

		return info != nil && info.SampleRate == rate
	}, time.Second, 10*time.Millisecond)

	var gotAudio bool

	require.Eventually(t, func() bool {
		buf := make([]byte, 4096)

		n, err := p.PullAudio(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)

		for _, b := range buf {
			if b != 0 {
				gotAudio = true
			}
		}

		return gotAudio
	}, 2*time.Second, 10*time.Millisecond)

	p.Stop()
	require.Equal(t, player.SourceNone, p.Source())
}

func TestOnSinkReopenedRetargetsResamplerForLocalPlayback(t *testing.T) {
	t.Parallel()

	const rate = 48000

	frames := make([]int16, 0, 20000)
	for i := 0; i < 10000; i++ {
		frames = append(frames, 1000, -1000)
	}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "track.wav")
	buildWAV(t, wavPath, rate, frames)

	p := newTestPlayer(t)

	require.NoError(t, p.PlayFile(context.Background(), wavPath))

	require.Eventually(t, func() bool {
		info := p.TrackInfo()

		return info != nil && info.SampleRate == rate
	}, time.Second, 10*time.Millisecond)

	// Simulate a Bluetooth device connecting mid-track: sink.Manager would
	// call this after Reopen, dropping the native rate from 48000 to
	// 44100 per sink.Kind.NativeRate().
	p.OnSinkReopened(sink.Bluetooth, 44100)

	var gotAudio bool

	require.Eventually(t, func() bool {
		buf := make([]byte, 4096)

		n, err := p.PullAudio(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)

		for _, b := range buf {
			if b != 0 {
				gotAudio = true
			}
		}

		return gotAudio
	}, 2*time.Second, 10*time.Millisecond)

	p.Stop()
}

func TestPauseResumeToggleIsPausedAndCursorNeverRewinds(t *testing.T) {
	t.Parallel()

	const rate = 48000

	frames := make([]int16, 0, 20000)
	for i := 0; i < 10000; i++ {
		frames = append(frames, 500, -500)
	}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "long.wav")
	buildWAV(t, wavPath, rate, frames)

	p := newTestPlayer(t)
	require.False(t, p.IsPaused())

	p.Pause()
	require.True(t, p.IsPaused())

	p.Resume()
	require.False(t, p.IsPaused())

	require.NoError(t, p.PlayFile(context.Background(), wavPath))

	require.Eventually(t, func() bool {
		buf := make([]byte, 4096)
		_, err := p.PullAudio(buf)

		return err == nil && p.CursorMS(rate) > 0
	}, time.Second, 10*time.Millisecond)

	cursorBeforePause := p.CursorMS(rate)
	p.Pause()
	require.True(t, p.IsPaused())
	require.GreaterOrEqual(t, p.CursorMS(rate), cursorBeforePause)

	p.Resume()
	require.False(t, p.IsPaused())

	p.Stop()
}

func TestSetRepeatReseeksToStartInsteadOfStopping(t *testing.T) {
	t.Parallel()

	const rate = 48000

	frames := make([]int16, 0, 200)
	for i := 0; i < 100; i++ {
		frames = append(frames, 100, -100)
	}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "short.wav")
	buildWAV(t, wavPath, rate, frames)

	p := newTestPlayer(t)
	p.SetRepeat(true)

	require.NoError(t, p.PlayFile(context.Background(), wavPath))

	for i := 0; i < 20; i++ {
		buf := make([]byte, 4096)
		_, _ = p.PullAudio(buf)
		time.Sleep(5 * time.Millisecond)
	}

	require.Equal(t, player.SourceLocal, p.Source())

	p.Stop()
}

func TestSeekRepositionsCursor(t *testing.T) {
	t.Parallel()

	const rate = 48000

	frames := make([]int16, 0, 20000)
	for i := 0; i < 10000; i++ {
		frames = append(frames, 100, -100)
	}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "seekable.wav")
	buildWAV(t, wavPath, rate, frames)

	p := newTestPlayer(t)
	require.NoError(t, p.PlayFile(context.Background(), wavPath))

	require.Eventually(t, func() bool {
		info := p.TrackInfo()

		return info != nil && info.SampleRate == rate
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, p.Seek(50))
	require.GreaterOrEqual(t, p.CursorMS(rate), int64(45))

	p.Stop()
}

func TestPlayRadioStopsLocalPlaybackAndPlayHLSStopsRadio(t *testing.T) {
	t.Parallel()

	const rate = 48000

	frames := make([]int16, 0, 200)
	for i := 0; i < 100; i++ {
		frames = append(frames, 100, -100)
	}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "local.wav")
	buildWAV(t, wavPath, rate, frames)

	radioSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(make([]byte, 4096))
	}))
	t.Cleanup(radioSrv.Close)

	hlsMux := http.NewServeMux()
	hlsMux.HandleFunc("/stream.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n" +
			"#EXT-X-TARGETDURATION:1\n" +
			"#EXT-X-MEDIA-SEQUENCE:0\n" +
			"#EXTINF:1.0,\n" +
			"seg0.mp3\n" +
			"#EXT-X-ENDLIST\n"))
	})
	hlsMux.HandleFunc("/seg0.mp3", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 512))
	})

	hlsSrv := httptest.NewServer(hlsMux)
	t.Cleanup(hlsSrv.Close)

	p := newTestPlayer(t)

	require.NoError(t, p.PlayFile(context.Background(), wavPath))
	require.Equal(t, player.SourceLocal, p.Source())

	p.PlayRadio(context.Background(), radioSrv.URL)
	require.Equal(t, player.SourceRadio, p.Source())

	p.PlayHLS(context.Background(), hlsSrv.URL+"/stream.m3u8")
	require.Equal(t, player.SourceHLS, p.Source())

	p.Stop()
	require.Equal(t, player.SourceNone, p.Source())
}

func TestProbeFileReportsDurationWithoutStartingPlayback(t *testing.T) {
	t.Parallel()

	const rate = 48000

	frames := make([]int16, 0, 2000)
	for i := 0; i < 1000; i++ {
		frames = append(frames, 1000, -1000)
	}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "probe.wav")
	buildWAV(t, wavPath, rate, frames)

	info, err := player.ProbeFile(wavPath)
	require.NoError(t, err)
	require.Equal(t, rate, info.SampleRate)
	require.Equal(t, int64(1000), info.TotalFrames)
	require.Equal(t, int64(1000*1000/rate), info.DurationMS)
}

func TestProbeFileRejectsUnsupportedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "not-audio.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world, not audio"), 0o600))

	_, err := player.ProbeFile(path)
	require.Error(t, err)
}

func TestPlayFileRejectsUnsupportedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "not-audio.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world, not audio"), 0o600))

	p := newTestPlayer(t)

	err := p.PlayFile(context.Background(), path)
	require.Error(t, err)
}

func TestSetVolumeOutOfRangeDoesNotPanic(t *testing.T) {
	t.Parallel()

	p := newTestPlayer(t)

	p.SetVolume(-5)
	p.SetVolume(5)
	p.SetVolume(0.5)
}

func TestSetBassFilterAndSoftLimiterDoNotPanic(t *testing.T) {
	t.Parallel()

	p := newTestPlayer(t)

	p.SetBassFilter(dsp.BassFilter100)
	p.SetSoftLimiter(dsp.LimiterMedium)
}

func TestStopWithoutPlayIsIdempotent(t *testing.T) {
	t.Parallel()

	p := newTestPlayer(t)

	p.Stop()
	require.Equal(t, player.SourceNone, p.Source())
}

func TestSourceStringsAreDescriptive(t *testing.T) {
	t.Parallel()

	require.Equal(t, "none", player.SourceNone.String())
	require.Equal(t, "local", player.SourceLocal.String())
	require.Equal(t, "radio", player.SourceRadio.String())
	require.Equal(t, "hls", player.SourceHLS.String())
}

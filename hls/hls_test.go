package hls_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nextui/musicplayer/decode"
	"github.com/nextui/musicplayer/hls"
	"github.com/nextui/musicplayer/netfetch"
)

// fakeDecoder is a minimal decode.Decoder stand-in registered for
// decode.FormatAAC in this package's tests only, so Context's
// fetch/demux/ring plumbing can be exercised deterministically without
// depending on a third-party codec actually bitstream-decoding fabricated
// audio bytes.
type fakeDecoder struct {
	framesLeft int
}

func (d *fakeDecoder) Open(src io.ReadSeeker) (int, int, int64, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return 0, 0, 0, err //nolint:wrapcheck // test helper
	}

	d.framesLeft = len(data) // one fake PCM frame per input byte

	return 44100, 2, int64(d.framesLeft), nil
}

func (d *fakeDecoder) Read(out []int16, maxFrames int) (int, error) {
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

func (d *fakeDecoder) Seek(int64) error { return nil }
func (d *fakeDecoder) Close() error     { return nil }

func init() { //nolint:gochecknoinits // test-only decoder registration
	decode.Register(decode.FormatAAC, func() decode.Decoder { return &fakeDecoder{} })
}

func TestContextPlaysSegmentsThenStopsAtEndlist(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/stream.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n" +
			"#EXT-X-TARGETDURATION:1\n" +
			"#EXT-X-MEDIA-SEQUENCE:0\n" +
			"#EXTINF:1.0,title=\"Test\"\n" +
			"seg0.aac\n" +
			"#EXT-X-ENDLIST\n"))
	})
	mux.HandleFunc("/seg0.aac", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 512))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := netfetch.New(5*time.Second, netfetch.GeneralRedirectLimit)

	var gotRate int

	ctx := hls.New(client, func(rate int) { gotRate = rate })

	ctx.Play(context.Background(), srv.URL+"/stream.m3u8")

	require.Eventually(t, func() bool {
		out := make([]int16, 2048)

		return ctx.Read(out, 1024) > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return ctx.State() == hls.Stopped
	}, 2*time.Second, 10*time.Millisecond)

	ctx.Stop()

	require.Equal(t, 44100, gotRate)

	md := ctx.Metadata()
	require.NotNil(t, md)
	require.Equal(t, "Test", md.Tags.Title)
}

func TestContextStopIsIdempotentWithoutPlay(t *testing.T) {
	t.Parallel()

	client := netfetch.New(5*time.Second, netfetch.GeneralRedirectLimit)
	ctx := hls.New(client, nil)

	ctx.Stop()
	require.Equal(t, hls.Stopped, ctx.State())
}

func TestContextFailsClosedOnUnreachablePlaylist(t *testing.T) {
	t.Parallel()

	client := netfetch.New(200*time.Millisecond, netfetch.GeneralRedirectLimit)
	ctx := hls.New(client, nil)

	ctx.Play(context.Background(), "http://127.0.0.1:1/stream.m3u8")

	require.Eventually(t, func() bool {
		return ctx.State() == hls.Error
	}, 2*time.Second, 10*time.Millisecond)

	require.NotEmpty(t, ctx.Error())

	ctx.Stop()
}

// Package vorbis implements the decode.Decoder contract for Ogg Vorbis,
// wrapping github.com/jfreymuth/oggvorbis's streaming Reader (the
// one-shot vorbis.Decode function instead uses the library's full-buffer
// ReadAll; here the streaming Reader is used instead so Read can honour
// the caller's maxFrames without holding the whole decode in memory).
// oggvorbis exposes no Seek, so Seek is implemented by reopening the
// stream from the start and discarding frames up to the target, a
// best-effort approach acceptable for compressed streams.
package vorbis

import (
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/nextui/musicplayer/decode"
)

func init() { //nolint:gochecknoinits // format registry population
	decode.Register(decode.FormatVorbis, func() decode.Decoder { return &Decoder{} })
}

// Decoder implements decode.Decoder for Ogg Vorbis.
type Decoder struct {
	src      io.ReadSeeker
	inner    *oggvorbis.Reader
	channels int
	cursor   int64
}

// Open implements decode.Decoder.
func (d *Decoder) Open(src io.ReadSeeker) (rate, channels int, totalFrames int64, err error) {
	d.src = src

	d.inner, err = oggvorbis.NewReader(src)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("vorbis: opening stream: %w", err)
	}

	d.channels = d.inner.Channels()

	total := d.inner.Length()
	if total <= 0 {
		total = -1
	}

	return d.inner.SampleRate(), d.channels, total, nil
}

// Read implements decode.Decoder.
func (d *Decoder) Read(out []int16, maxFrames int) (int, error) {
	buf := make([]float32, maxFrames*d.channels)

	n, err := d.inner.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("vorbis: decoding: %w", err)
	}

	frames := n / d.channels

	for i := range frames {
		left := floatToInt16(buf[i*d.channels])

		right := left
		if d.channels > 1 {
			right = floatToInt16(buf[i*d.channels+1])
		}

		out[i*2] = left
		out[i*2+1] = right
	}

	d.cursor += int64(frames)

	return frames, nil
}

// Seek implements decode.Decoder. Best-effort: reopens the stream from the
// start and discards frames until the target, since oggvorbis exposes no
// native seek.
func (d *Decoder) Seek(frame int64) error {
	if _, err := d.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("vorbis: seeking to start: %w", err)
	}

	inner, err := oggvorbis.NewReader(d.src)
	if err != nil {
		return fmt.Errorf("vorbis: reopening stream: %w", err)
	}

	d.inner = inner
	d.cursor = 0

	const discardChunk = 4096

	discard := make([]int16, discardChunk*2)
	for d.cursor < frame {
		want := frame - d.cursor
		if want > discardChunk {
			want = discardChunk
		}

		n, readErr := d.Read(discard, int(want))
		if readErr != nil || n == 0 {
			break
		}
	}

	return nil
}

// Close implements decode.Decoder.
func (d *Decoder) Close() error {
	return nil
}

func floatToInt16(f float32) int16 {
	v := f * 32768

	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}

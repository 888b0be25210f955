// Package flac implements the decode.Decoder contract for FLAC, wrapping
// github.com/mewkiz/flac (already frame-at-a-time streaming at the library
// level). Generalised from the one-shot flac.Decode's frame-dump-to-
// single-buffer routine into the streaming Open/Read/Seek/Close contract
// with a per-decoder leftover buffer for frames that don't align with the
// caller's requested frame count.
package flac

import (
	"errors"
	"fmt"
	"io"

	goflac "github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"

	"github.com/nextui/musicplayer/decode"
)

func init() { //nolint:gochecknoinits // format registry population
	decode.Register(decode.FormatFLAC, func() decode.Decoder { return &Decoder{} })
}

// Decoder implements decode.Decoder for FLAC.
type Decoder struct {
	stream   *goflac.Stream
	src      io.ReadSeeker
	channels int
	leftover []int16 // interleaved stereo samples decoded but not yet returned
	cursor   int64
}

// Open implements decode.Decoder.
func (d *Decoder) Open(src io.ReadSeeker) (rate, channels int, totalFrames int64, err error) {
	d.src = src

	d.stream, err = goflac.NewSeek(src)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("flac: opening stream: %w", err)
	}

	d.channels = int(d.stream.Info.NChannels)

	total := int64(d.stream.Info.NSamples) //nolint:gosec // NSamples fits int64 for any real track
	if total == 0 {
		total = -1
	}

	return int(d.stream.Info.SampleRate), d.channels, total, nil
}

// Read implements decode.Decoder.
func (d *Decoder) Read(out []int16, maxFrames int) (int, error) {
	produced := 0

	for produced < maxFrames {
		if len(d.leftover) > 0 {
			n := min(maxFrames-produced, len(d.leftover)/2)
			copy(out[produced*2:], d.leftover[:n*2])
			d.leftover = d.leftover[n*2:]
			produced += n

			continue
		}

		fr, err := d.stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return produced, fmt.Errorf("flac: decoding frame: %w", err)
		}

		d.leftover = interleave(fr, d.stream.Info.BitsPerSample, d.channels)
	}

	d.cursor += int64(produced)

	return produced, nil
}

// Seek implements decode.Decoder. Clears the leftover buffer
func (d *Decoder) Seek(frame int64) error {
	d.leftover = nil

	if frame < 0 {
		frame = 0
	}

	pos, err := d.stream.Seek(uint64(frame)) //nolint:gosec // frame is caller-controlled and non-negative
	if err != nil {
		return fmt.Errorf("flac: seeking: %w", err)
	}

	d.cursor = int64(pos) //nolint:gosec // pos bounded by file sample count

	return nil
}

// Close implements decode.Decoder.
func (d *Decoder) Close() error {
	if d.stream == nil {
		return nil
	}

	if err := d.stream.Close(); err != nil {
		return fmt.Errorf("flac: closing stream: %w", err)
	}

	return nil
}

// interleave converts a decoded FLAC frame's per-channel int32 subframes
// into interleaved stereo int16, upmixing mono by channel duplication.
func interleave(fr *frame.Frame, bitsPerSample, channels int) []int16 {
	n := fr.Subframes[0].NSamples
	out := make([]int16, n*2)

	shift := bitsPerSample - 16
	scale := func(v int32) int16 {
		if shift > 0 {
			return int16(v >> uint(shift)) //nolint:gosec // FLAC subframe samples fit the shifted range
		}

		return int16(v << uint(-shift)) //nolint:gosec // same
	}

	for i := range n {
		left := scale(fr.Subframes[0].Samples[i])

		right := left
		if channels > 1 {
			right = scale(fr.Subframes[1].Samples[i])
		}

		out[i*2] = left
		out[i*2+1] = right
	}

	return out
}

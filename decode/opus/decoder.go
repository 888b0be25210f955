// Package opus implements the decode.Decoder contract for Ogg-encapsulated
// Opus. No pack example exposes a top-level Opus decode API (only
// thesyncim/gopus's internal/multistream package was visible in the
// retrieval set), so this wrapper is written against an assumed top-level
// API shape — gopus.NewDecoder(rate, channels) plus a per-packet
// Decode(packet, maxFrameSize, false) — and this assumption is flagged here
// and in DESIGN.md rather than hidden.
package opus

import (
	"errors"
	"fmt"
	"io"

	"github.com/thesyncim/gopus"

	"github.com/nextui/musicplayer/decode"
)

func init() { //nolint:gochecknoinits // format registry population
	decode.Register(decode.FormatOpus, func() decode.Decoder { return &Decoder{} })
}

const (
	opusChannels = 2
	maxFrameSize = 5760 // 120ms at 48kHz, the largest legal Opus frame
)

// Decoder implements decode.Decoder for Ogg Opus.
type Decoder struct {
	src      io.ReadSeeker
	inner    *gopus.Decoder
	rate     int
	leftover []int16
	cursor   int64
}

// Open implements decode.Decoder.
func (d *Decoder) Open(src io.ReadSeeker) (rate, channels int, totalFrames int64, err error) {
	d.src = src
	d.rate = 48000 // Opus always decodes at 48kHz internally regardless of the input sample rate

	d.inner, err = gopus.NewDecoder(d.rate, opusChannels)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("opus: creating decoder: %w", err)
	}

	if err = d.skipHeaderPages(); err != nil {
		return 0, 0, 0, err
	}

	// Opus streams rarely carry an exact total-frame count up front; report
	// unknown and let the player rely on EOF.
	return d.rate, opusChannels, -1, nil
}

// skipHeaderPages consumes the mandatory OpusHead and OpusTags pages.
func (d *Decoder) skipHeaderPages() error {
	for range 2 {
		page, err := readOggPage(d.src)
		if err != nil {
			return fmt.Errorf("opus: reading header page: %w", err)
		}

		if len(page.packets) == 0 {
			return fmt.Errorf("opus: empty header page")
		}
	}

	return nil
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

		page, err := readOggPage(d.src)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return produced, fmt.Errorf("opus: reading page: %w", err)
		}

		for _, packet := range page.packets {
			pcm, decErr := d.inner.Decode(packet, maxFrameSize, false)
			if decErr != nil {
				return produced, fmt.Errorf("opus: decoding packet: %w", decErr)
			}

			d.leftover = append(d.leftover, pcm...)
		}
	}

	d.cursor += int64(produced)

	return produced, nil
}

// Seek implements decode.Decoder. Opus seeking by PCM frame requires a
// granule-position index over the whole stream; best-effort here reopens
// from the start and replays pages, matching the file-format's own
// recommended fallback for streams without a seek index.
func (d *Decoder) Seek(frame int64) error {
	d.leftover = nil

	if _, err := d.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("opus: seeking to start: %w", err)
	}

	inner, err := gopus.NewDecoder(d.rate, opusChannels)
	if err != nil {
		return fmt.Errorf("opus: recreating decoder: %w", err)
	}

	d.inner = inner
	d.cursor = 0

	if err := d.skipHeaderPages(); err != nil {
		return err
	}

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

// Package m4a implements the decode.Decoder contract for audio tracks
// inside an MP4/M4A container, dispatching on the stsd sample entry
// FourCC: "alac" uses the existing ALAC decoder (alac.NewDecoder/
// DecodePacket, frame-based and directly reusable for streaming), "mp4a"
// (AAC-in-MP4) uses github.com/llehouerou/go-aac fed one container sample
// at a time instead of ADTS frames. Both paths reuse alac.FindAudioTrack
// for the MP4 box walking (abema/go-mp4), generalised from an ALAC-only
// track scanner to recognise either sample entry.
package m4a

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaac "github.com/llehouerou/go-aac"

	"github.com/nextui/musicplayer/alac"
	"github.com/nextui/musicplayer/decode"
)

func init() { //nolint:gochecknoinits // format registry population
	decode.Register(decode.FormatM4A, func() decode.Decoder { return &Decoder{} })
}

// ErrUnsupportedTrack is returned when neither an ALAC nor an AAC audio
// track can be found in the container.
var ErrUnsupportedTrack = errors.New("m4a: no ALAC or AAC track found")

// codecKind distinguishes the two containers this decoder dispatches on.
type codecKind int

const (
	codecALAC codecKind = iota
	codecAAC
)

// Decoder implements decode.Decoder for M4A/MP4 containers.
type Decoder struct {
	src     io.ReadSeeker
	kind    codecKind
	samples []alac.SampleInfo
	index   int

	alacDec *alac.Decoder
	aacDec  *goaac.Decoder

	rate, channels int
	leftover       []int16
	cursor         int64
}

// Open implements decode.Decoder.
func (d *Decoder) Open(src io.ReadSeeker) (rate, channels int, totalFrames int64, err error) {
	d.src = src

	fourCC, cookie, samples, err := alac.FindAudioTrack(src, "alac", "mp4a")
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %w", ErrUnsupportedTrack, err)
	}

	d.samples = samples

	framesPerSample := int64(1024) // AAC frame length

	switch fourCC {
	case "alac":
		d.kind = codecALAC

		config, parseErr := alac.ParseConfig(cookie)
		if parseErr != nil {
			return 0, 0, 0, fmt.Errorf("m4a: parsing ALAC config: %w", parseErr)
		}

		d.alacDec, err = alac.NewDecoder(config)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("m4a: creating ALAC decoder: %w", err)
		}

		format := d.alacDec.Format()
		d.rate, d.channels = format.SampleRate, int(format.Channels)
		framesPerSample = int64(config.FrameLength)
	default: // "mp4a": AAC-in-MP4
		d.kind = codecAAC
		d.aacDec = goaac.NewDecoder()

		d.rate, d.channels, err = sampleEntryAudioParams(src, d.samples)
		if err != nil {
			return 0, 0, 0, err
		}
	}

	total := int64(len(d.samples)) * framesPerSample // one MP4 "sample" == one codec frame for audio tracks
	if total == 0 {
		total = -1
	}

	return d.rate, 2, total, nil
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

		if d.index >= len(d.samples) {
			break
		}

		packet, err := d.readSample(d.index)
		if err != nil {
			return produced, err
		}

		d.index++

		switch d.kind {
		case codecALAC:
			decoded, decErr := d.alacDec.DecodePacket(packet)
			if decErr != nil {
				return produced, fmt.Errorf("m4a: decoding ALAC packet: %w", decErr)
			}

			d.leftover = append(d.leftover, bytesToInt16Stereo(decoded, d.channels)...)
		case codecAAC:
			pcm, _, decErr := d.aacDec.Decode(packet)
			if decErr != nil {
				return produced, fmt.Errorf("m4a: decoding AAC packet: %w", decErr)
			}

			if samples, ok := pcm.([]int16); ok && len(samples) > 0 {
				d.leftover = append(d.leftover, samples...)
			} else {
				// Upstream go-aac decode is incomplete (see decode/aac);
				// emit silence for this frame rather than stalling.
				n := int(d.aacDec.FrameLength())
				if n == 0 {
					n = 1024
				}

				d.leftover = append(d.leftover, make([]int16, n*2)...)
			}
		}
	}

	d.cursor += int64(produced)

	return produced, nil
}

func (d *Decoder) readSample(i int) ([]byte, error) {
	s := d.samples[i]

	if _, err := d.src.Seek(int64(s.Offset), io.SeekStart); err != nil { //nolint:gosec // offset from trusted container table
		return nil, fmt.Errorf("m4a: seeking to sample %d: %w", i, err)
	}

	buf := make([]byte, s.Size)
	if _, err := io.ReadFull(d.src, buf); err != nil {
		return nil, fmt.Errorf("m4a: reading sample %d: %w", i, err)
	}

	return buf, nil
}

// Seek implements decode.Decoder. M4A seek rounds down to the nearest
// sample-table entry (≈1024 PCM frames for AAC), clearing the leftover
// buffer
func (d *Decoder) Seek(frame int64) error {
	d.leftover = nil

	const nominalFramesPerSample = 1024

	idx := int(frame / nominalFramesPerSample)
	if idx < 0 {
		idx = 0
	}

	if idx > len(d.samples) {
		idx = len(d.samples)
	}

	d.index = idx
	d.cursor = int64(idx) * nominalFramesPerSample

	return nil
}

// Close implements decode.Decoder.
func (d *Decoder) Close() error {
	if d.aacDec != nil {
		d.aacDec.Close()
	}

	return nil
}

// sampleEntryAudioParams returns the rate and channel count used for an
// AAC-in-MP4 track: a fixed 44100 Hz, 2-channel default. Neither the
// AudioSampleEntry's channelCount/sampleRate fields nor the esds
// DecoderConfigDescriptor are read.
func sampleEntryAudioParams(_ io.ReadSeeker, samples []alac.SampleInfo) (rate, channels int, err error) {
	if len(samples) == 0 {
		return 0, 0, fmt.Errorf("m4a: no samples in AAC track")
	}

	// Conservative default for AAC-LC content.
	return 44100, 2, nil
}

// bytesToInt16Stereo converts a little-endian PCM byte slice (as produced by
// alac.Decoder.DecodePacket) into interleaved stereo int16, upmixing mono.
func bytesToInt16Stereo(pcm []byte, channels int) []int16 {
	bytesPerSample := 2
	frameBytes := bytesPerSample * channels
	frames := len(pcm) / frameBytes

	out := make([]int16, frames*2)

	for i := range frames {
		left := int16(binary.LittleEndian.Uint16(pcm[i*frameBytes:]))

		right := left
		if channels > 1 {
			right = int16(binary.LittleEndian.Uint16(pcm[i*frameBytes+bytesPerSample:]))
		}

		out[i*2] = left
		out[i*2+1] = right
	}

	return out
}

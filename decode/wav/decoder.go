// Package wav implements the decode.Decoder contract for RIFF WAVE PCM,
// reusing wav.Decode's RIFF chunk walker, generalised from a whole-file
// Decode() into the streaming Open/Read/Seek/Close contract (trivial for
// WAV, since the format is already uncompressed and randomly seekable).
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/nextui/musicplayer"
	"github.com/nextui/musicplayer/decode"
)

func init() { //nolint:gochecknoinits // format registry population
	decode.Register(decode.FormatWAV, func() decode.Decoder { return &Decoder{} })
}

// Errors returned by Open.
var (
	ErrNotWAV         = errors.New("wav: not a RIFF/WAVE file")
	ErrUnsupportedFmt = errors.New("wav: unsupported format tag")
	ErrNoFmtChunk     = errors.New("wav: missing fmt chunk")
	ErrNoDataChunk    = errors.New("wav: missing data chunk")
)

const (
	fmtPCM        = 1
	fmtFloat      = 3
	fmtExtensible = 0xFFFE
)

// Decoder implements decode.Decoder for WAV/PCM.
type Decoder struct {
	src io.ReadSeeker

	format     musicplayer.PCMFormat
	dataOffset int64
	dataSize   int64
	cursor     int64 // frames consumed since dataOffset
}

// Open implements decode.Decoder.
func (d *Decoder) Open(src io.ReadSeeker) (rate, channels int, totalFrames int64, err error) {
	d.src = src

	var riffHeader [12]byte
	if _, err = io.ReadFull(src, riffHeader[:]); err != nil {
		return 0, 0, 0, fmt.Errorf("wav: reading RIFF header: %w", err)
	}

	if string(riffHeader[:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return 0, 0, 0, ErrNotWAV
	}

	var sawFmt bool

	for {
		var chunkHeader [8]byte

		if _, err = io.ReadFull(src, chunkHeader[:]); err != nil {
			break
		}

		chunkID := string(chunkHeader[:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunkHeader[4:]))

		switch chunkID {
		case "fmt ":
			if err = d.parseFmtChunk(src, chunkSize); err != nil {
				return 0, 0, 0, err
			}

			sawFmt = true
		case "data":
			if !sawFmt {
				return 0, 0, 0, ErrNoFmtChunk
			}

			pos, seekErr := src.Seek(0, io.SeekCurrent)
			if seekErr != nil {
				return 0, 0, 0, fmt.Errorf("wav: locating data chunk: %w", seekErr)
			}

			d.dataOffset = pos
			d.dataSize = chunkSize

			bytesPerFrame := int64(d.format.BitDepth.BytesPerSample()) * int64(d.format.Channels)
			total := chunkSize / bytesPerFrame

			return d.format.SampleRate, int(d.format.Channels), total, nil
		default:
			if _, err = src.Seek(chunkSize+chunkSize%2, io.SeekCurrent); err != nil {
				return 0, 0, 0, fmt.Errorf("wav: skipping chunk %q: %w", chunkID, err)
			}
		}
	}

	return 0, 0, 0, ErrNoDataChunk
}

func (d *Decoder) parseFmtChunk(rs io.ReadSeeker, size int64) error {
	buf := make([]byte, size)
	if _, err := io.ReadFull(rs, buf); err != nil {
		return fmt.Errorf("wav: reading fmt chunk: %w", err)
	}

	formatTag := binary.LittleEndian.Uint16(buf[0:2])
	channels := binary.LittleEndian.Uint16(buf[2:4])
	sampleRate := binary.LittleEndian.Uint32(buf[4:8])
	bitsPerSample := binary.LittleEndian.Uint16(buf[14:16])

	if formatTag == fmtExtensible && len(buf) >= 40 {
		formatTag = binary.LittleEndian.Uint16(buf[24:26])
	}

	if formatTag != fmtPCM && formatTag != fmtFloat {
		return fmt.Errorf("tag %d: %w", formatTag, ErrUnsupportedFmt)
	}

	bd, err := musicplayer.ToBitDepth(uint8(bitsPerSample)) //nolint:gosec // bitsPerSample is a small wire value
	if err != nil {
		return fmt.Errorf("wav: %w", err)
	}

	d.format = musicplayer.PCMFormat{
		SampleRate: int(sampleRate),
		BitDepth:   bd,
		Channels:   uint(channels),
	}

	return nil
}

// Read implements decode.Decoder.
func (d *Decoder) Read(out []int16, maxFrames int) (int, error) {
	bytesPerSample := d.format.BitDepth.BytesPerSample()
	channels := int(d.format.Channels)
	bytesPerFrame := bytesPerSample * channels

	remainingBytes := d.dataSize - d.cursor*int64(bytesPerFrame)
	remainingFrames := remainingBytes / int64(bytesPerFrame)

	if int64(maxFrames) > remainingFrames {
		maxFrames = int(remainingFrames)
	}

	if maxFrames <= 0 {
		return 0, nil
	}

	buf := make([]byte, maxFrames*bytesPerFrame)

	n, err := io.ReadFull(d.src, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("wav: reading samples: %w", err)
	}

	frames := n / bytesPerFrame

	for i := range frames {
		left := readSample(buf[i*bytesPerFrame:], bytesPerSample)

		right := left
		if channels > 1 {
			right = readSample(buf[i*bytesPerFrame+bytesPerSample:], bytesPerSample)
		}

		out[i*2] = left
		out[i*2+1] = right
	}

	d.cursor += int64(frames)

	return frames, nil
}

// readSample reads one sample of bytesPerSample width and converts it to
// int16, truncating higher bit depths.
func readSample(buf []byte, bytesPerSample int) int16 {
	switch bytesPerSample {
	case 2:
		return int16(binary.LittleEndian.Uint16(buf))
	case 3:
		v := int32(buf[0]) | int32(buf[1])<<8 | int32(buf[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF // sign-extend 24-bit
		}

		return int16(v >> 8) //nolint:gosec // shifted 24-bit value fits int16
	case 4:
		v := int32(binary.LittleEndian.Uint32(buf))

		return int16(v >> 16) //nolint:gosec // top 16 bits of a 32-bit sample
	default:
		return 0
	}
}

// Seek implements decode.Decoder.
func (d *Decoder) Seek(frame int64) error {
	bytesPerFrame := int64(d.format.BitDepth.BytesPerSample()) * int64(d.format.Channels)

	if _, err := d.src.Seek(d.dataOffset+frame*bytesPerFrame, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seeking: %w", err)
	}

	d.cursor = frame

	return nil
}

// Close implements decode.Decoder.
func (d *Decoder) Close() error {
	return nil
}

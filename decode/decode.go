// Package decode defines the common streaming decoder contract
// implemented once per audio format by its subpackages (mp3, flac, wav,
// vorbis, opus, aac, m4a) and the factory that picks one based on a
// detect.Codec.
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/nextui/musicplayer/detect"
)

// Decoder is satisfied by every format-specific stream decoder. All
// decoders produce interleaved signed 16-bit stereo PCM; mono sources are
// upmixed by channel duplication.
type Decoder interface {
	// Open prepares the decoder to read from src, returning the source
	// sample rate, channel count and total PCM frame count (-1 if unknown,
	// e.g. a live source).
	Open(src io.ReadSeeker) (rate, channels int, totalFrames int64, err error)

	// Read fills out (interleaved stereo int16, len(out)/2 == maxFrames)
	// with up to maxFrames decoded frames, returning how many it actually
	// produced. Returning fewer than maxFrames does not by itself mean
	// EOF; callers rely on Read returning (0, nil) at end of stream.
	Read(out []int16, maxFrames int) (frames int, err error)

	// Seek repositions the decoder to the given PCM frame, clearing any
	// per-decoder leftover buffer. Best-effort for compressed
	// frame-oriented codecs: implementations round down to the nearest
	// codec frame boundary.
	Seek(frame int64) error

	Close() error
}

// Format tags a recognised audio format: mp3, wav, flac, ogg, opus, m4a,
// or aac.
type Format uint8

// Recognised formats.
const (
	FormatUnknown Format = iota
	FormatMP3
	FormatWAV
	FormatFLAC
	FormatVorbis
	FormatOpus
	FormatM4A // AAC-in-MP4 or ALAC-in-MP4, dispatched internally by decode/m4a
	FormatAAC // raw ADTS AAC, not inside any container
)

// ErrUnsupportedFormat is returned by Open when no decoder recognises the
// source.
var ErrUnsupportedFormat = errors.New("decode: unsupported format")

// FormatFromCodec maps a detect.Codec sniff result onto a Format. It
// consults the detected codec rather than a bare extension string since
// detect.Identify already sniffs content.
func FormatFromCodec(codec detect.Codec) Format {
	switch codec {
	case detect.MP3:
		return FormatMP3
	case detect.WAV:
		return FormatWAV
	case detect.FLAC:
		return FormatFLAC
	case detect.Vorbis:
		return FormatVorbis
	case detect.Opus:
		return FormatOpus
	case detect.ALAC, detect.AAC:
		return FormatM4A
	case detect.RawAAC:
		return FormatAAC
	default:
		return FormatUnknown
	}
}

// Factory constructs a fresh, unopened Decoder for the given format.
type Factory func() Decoder

// factories is populated by each format subpackage's init() via Register,
// avoiding an import cycle between decode and decode/{mp3,flac,...}.
var factories = map[Format]Factory{} //nolint:gochecknoglobals // format registry, populated once at init time

// Register associates a Format with a Decoder constructor. Called from the
// init() of each format subpackage.
func Register(format Format, factory Factory) {
	factories[format] = factory
}

// New constructs a fresh Decoder for format, or ErrUnsupportedFormat if no
// subpackage registered one (meaning its package was never imported).
func New(format Format) (Decoder, error) {
	factory, ok := factories[format]
	if !ok {
		return nil, fmt.Errorf("%s: %w", formatName(format), ErrUnsupportedFormat)
	}

	return factory(), nil
}

func formatName(f Format) string {
	switch f {
	case FormatMP3:
		return "mp3"
	case FormatWAV:
		return "wav"
	case FormatFLAC:
		return "flac"
	case FormatVorbis:
		return "vorbis"
	case FormatOpus:
		return "opus"
	case FormatM4A:
		return "m4a"
	case FormatAAC:
		return "aac"
	default:
		return "unknown"
	}
}

// Package aac implements the decode.Decoder contract for raw ADTS-framed
// AAC using github.com/llehouerou/go-aac (see DESIGN.md for why a
// CoreAudio-based cgo decoder was not a viable cross-platform option).
//
// That upstream package's bitstream decode is itself incomplete: its
// Decode method only recognises a trailing ID3v1 tag and otherwise returns
// zero PCM samples (see its decode.go, "TODO: Continue with bitstream
// parsing"). This wrapper is honest about that: it parses ADTS frame
// boundaries itself (so frame timing and the leftover-buffer contract are
// correct) and falls back to emitting FrameLength() samples of silence
// per frame whenever the upstream decoder yields no PCM, logging the
// degraded state once per decoder instance rather than silently producing
// corrupt audio.
package aac

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	goaac "github.com/llehouerou/go-aac"

	"github.com/nextui/musicplayer/decode"
	"github.com/nextui/musicplayer/internal/logging"
)

func init() { //nolint:gochecknoinits // format registry population
	decode.Register(decode.FormatAAC, func() decode.Decoder { return &Decoder{} })
}

// ErrNoSync is returned when no ADTS sync word can be found.
var ErrNoSync = errors.New("aac: no ADTS sync word found")

// adtsSampleRates is the MPEG-4 sampling frequency index table.
var adtsSampleRates = [16]int{ //nolint:gochecknoglobals // fixed protocol table
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

// Decoder implements decode.Decoder for raw ADTS AAC.
type Decoder struct {
	src    io.ReadSeeker
	inner  *goaac.Decoder
	rate   int
	chans  int
	logger *slog.Logger

	leftover      []int16
	cursor        int64
	byteCursor    int64 // position within src, for byte-ratio seek estimation
	totalBytes    int64
	warnedOnce    bool
}

// Open implements decode.Decoder.
func (d *Decoder) Open(src io.ReadSeeker) (rate, channels int, totalFrames int64, err error) {
	d.src = src
	d.inner = goaac.NewDecoder()
	d.logger = logging.Component(nil, "decode.aac")

	if size, seekErr := src.Seek(0, io.SeekEnd); seekErr == nil {
		d.totalBytes = size
	}

	if _, err = src.Seek(0, io.SeekStart); err != nil {
		return 0, 0, 0, fmt.Errorf("aac: seeking to start: %w", err)
	}

	header, _, _, err := readADTSFrame(src)
	if err != nil {
		return 0, 0, 0, err
	}

	d.rate = adtsSampleRates[header.samplingFreqIndex]
	d.chans = header.channelConfig

	if _, err = src.Seek(0, io.SeekStart); err != nil {
		return 0, 0, 0, fmt.Errorf("aac: rewinding: %w", err)
	}

	// Position is estimated from byte ratio for raw AAC:
	// total PCM frames isn't knowable without scanning every frame header,
	// which is wasteful for a stream that is usually played start-to-end.
	return d.rate, 2, -1, nil
}

type adtsHeader struct {
	samplingFreqIndex int
	channelConfig     int
	frameLength       int
}

// readADTSFrame reads and parses one ADTS frame header, returning the
// header, the full frame bytes (header+payload) and the number of bytes
// consumed.
func readADTSFrame(r io.Reader) (adtsHeader, []byte, int, error) {
	var fixed [7]byte

	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return adtsHeader{}, nil, 0, fmt.Errorf("aac: reading ADTS header: %w", err)
	}

	if fixed[0] != 0xFF || fixed[1]&0xF0 != 0xF0 {
		return adtsHeader{}, nil, 0, ErrNoSync
	}

	h := adtsHeader{
		samplingFreqIndex: int(fixed[2]>>2) & 0x0F,
		channelConfig:     (int(fixed[2]&0x01) << 2) | int(fixed[3]>>6),
		frameLength: (int(fixed[3]&0x03) << 11) |
			(int(fixed[4]) << 3) |
			(int(fixed[5]) >> 5),
	}

	payloadLen := h.frameLength - 7
	if payloadLen < 0 {
		return adtsHeader{}, nil, 0, fmt.Errorf("aac: invalid frame length %d", h.frameLength)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return adtsHeader{}, nil, 0, fmt.Errorf("aac: reading ADTS payload: %w", err)
	}

	full := append(append([]byte(nil), fixed[:]...), payload...)

	return h, full, h.frameLength, nil
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

		_, full, consumed, err := readADTSFrame(d.src)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}

			return produced, err
		}

		d.byteCursor += int64(consumed)

		pcm, frameInfo, decErr := d.inner.Decode(full)
		if decErr != nil {
			return produced, fmt.Errorf("aac: decoding frame: %w", decErr)
		}

		samples, ok := pcm.([]int16)
		if !ok || len(samples) == 0 {
			if !d.warnedOnce {
				d.logger.Warn("upstream AAC decoder produced no samples; emitting silence",
					"frame_length", d.inner.FrameLength())
				d.warnedOnce = true
			}

			n := int(d.inner.FrameLength())
			if n == 0 {
				n = 1024
			}

			samples = make([]int16, n*2)
		}

		_ = frameInfo

		d.leftover = append(d.leftover, samples...)
	}

	d.cursor += int64(produced)

	return produced, nil
}

// Seek implements decode.Decoder. Raw AAC seek estimates position from
// byte ratio, then scans forward to the next ADTS sync word so the next
// Read starts on a frame boundary.
func (d *Decoder) Seek(frame int64) error {
	d.leftover = nil

	if d.cursor <= 0 || d.totalBytes <= 0 {
		_, err := d.src.Seek(0, io.SeekStart)
		d.cursor = 0
		d.byteCursor = 0

		if err != nil {
			return fmt.Errorf("aac: seeking to start: %w", err)
		}

		return nil
	}

	ratio := float64(d.byteCursor) / float64(max(d.cursor, 1))
	estByte := int64(float64(frame) * ratio)

	if estByte > d.totalBytes {
		estByte = d.totalBytes
	}

	if _, err := d.src.Seek(estByte, io.SeekStart); err != nil {
		return fmt.Errorf("aac: seeking: %w", err)
	}

	var b [1]byte
	for prev := byte(0); estByte < d.totalBytes; estByte++ {
		if _, err := io.ReadFull(d.src, b[:]); err != nil {
			break
		}

		if prev == 0xFF && b[0]&0xF0 == 0xF0 {
			estByte-- // the sync word starts at the previous byte

			break
		}

		prev = b[0]
	}

	if _, err := d.src.Seek(estByte, io.SeekStart); err != nil {
		return fmt.Errorf("aac: seeking to sync word: %w", err)
	}

	d.cursor = frame
	d.byteCursor = estByte

	return nil
}

// Close implements decode.Decoder.
func (d *Decoder) Close() error {
	if d.inner != nil {
		d.inner.Close()
	}

	return nil
}

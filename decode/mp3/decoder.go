// Package mp3 implements the decode.Decoder contract for MP3, wrapping
// hajimehoshi/go-mp3 (already a pull-based, seekable decoder) and adding
// LAME/XING gapless trimming. Generalised from the one-shot mp3.Decode's
// full-buffer Decode() into the streaming Open/Read/Seek/Close contract.
package mp3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/nextui/musicplayer/decode"
)

func init() { //nolint:gochecknoinits // format registry population
	decode.Register(decode.FormatMP3, func() decode.Decoder { return &Decoder{} })
}

const (
	bytesPerFrame = 4 // stereo, 16-bit

	samplesPerFrame = 1152 // MPEG1 Layer III
	decoderDelay    = 529  // go-mp3 synthesis filterbank priming delay, empirically measured
)

// gaplessInfo carries LAME encoder delay/padding parsed from the file's
// first frame, used to trim the stream's start/end during streaming reads.
type gaplessInfo struct {
	delay      int
	padding    int
	hasXINGTag bool
}

// Decoder implements decode.Decoder for MP3.
type Decoder struct {
	inner   *gomp3.Decoder
	gapless gaplessInfo

	startFrame  int64 // PCM frames to skip at the very start (delay + decoderDelay [+ samplesPerFrame])
	totalFrames int64 // -1 if unknown, else trimmed total
	cursor      int64
}

// Open implements decode.Decoder.
func (d *Decoder) Open(src io.ReadSeeker) (rate, channels int, totalFrames int64, err error) {
	d.gapless = parseGaplessInfo(src)

	if _, err = src.Seek(0, io.SeekStart); err != nil {
		return 0, 0, 0, fmt.Errorf("mp3: seeking to start: %w", err)
	}

	d.inner, err = gomp3.NewDecoder(src)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("mp3: creating decoder: %w", err)
	}

	d.startFrame = int64(d.gapless.delay + decoderDelay)
	if d.gapless.hasXINGTag {
		d.startFrame += samplesPerFrame
	}

	d.totalFrames = -1
	if length := d.inner.Length(); length > 0 {
		totalPCM := length / bytesPerFrame
		endTrim := int64(max(d.gapless.padding-decoderDelay, 0))
		d.totalFrames = max(totalPCM-d.startFrame-endTrim, 0)
	}

	// Skip the trimmed-start samples by discarding bytes up front.
	if d.startFrame > 0 {
		discard := make([]byte, d.startFrame*bytesPerFrame)
		if _, err = io.ReadFull(d.inner, discard); err != nil && !errors.Is(err, io.EOF) {
			return 0, 0, 0, fmt.Errorf("mp3: skipping gapless start: %w", err)
		}
	}

	return d.inner.SampleRate(), 2, d.totalFrames, nil
}

// Read implements decode.Decoder.
func (d *Decoder) Read(out []int16, maxFrames int) (int, error) {
	if d.totalFrames >= 0 {
		remaining := d.totalFrames - d.cursor
		if remaining <= 0 {
			return 0, nil
		}

		if int64(maxFrames) > remaining {
			maxFrames = int(remaining)
		}
	}

	buf := make([]byte, maxFrames*bytesPerFrame)

	n, err := io.ReadFull(d.inner, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("mp3: decoding: %w", err)
	}

	frames := n / bytesPerFrame
	for i := range frames {
		out[i*2] = int16(binary.LittleEndian.Uint16(buf[i*4:]))
		out[i*2+1] = int16(binary.LittleEndian.Uint16(buf[i*4+2:]))
	}

	d.cursor += int64(frames)

	return frames, nil
}

// Seek implements decode.Decoder. go-mp3's Decoder implements io.Seeker in
// terms of byte offsets computed from sample position; translate our
// trimmed PCM-frame cursor into that space.
func (d *Decoder) Seek(frame int64) error {
	byteOffset := (frame + d.startFrame) * bytesPerFrame

	if _, err := d.inner.Seek(byteOffset, io.SeekStart); err != nil {
		return fmt.Errorf("mp3: seeking: %w", err)
	}

	d.cursor = frame

	return nil
}

// Close implements decode.Decoder. go-mp3 holds no OS resources of its
// own beyond the underlying io.ReadSeeker, which is owned by the caller.
func (d *Decoder) Close() error {
	return nil
}

// parseGaplessInfo attempts to extract LAME encoder delay and padding.
// Returns the zero value if no LAME header is found.
func parseGaplessInfo(rs io.ReadSeeker) gaplessInfo {
	id3Size := skipID3v2(rs)
	if id3Size < 0 {
		return gaplessInfo{}
	}

	header := make([]byte, 4096)

	n, err := rs.Read(header)
	if err != nil || n < 256 {
		return gaplessInfo{}
	}

	header = header[:n]

	syncPos := findSyncWord(header)
	if syncPos < 0 || syncPos+4 > len(header) {
		return gaplessInfo{}
	}

	sideInfoSize := getSideInfoSize(header[syncPos : syncPos+4])
	if sideInfoSize < 0 {
		return gaplessInfo{}
	}

	xingOffset := syncPos + 4 + sideInfoSize
	if xingOffset+120 > len(header) {
		return gaplessInfo{}
	}

	xingData := header[xingOffset:]
	if !bytes.HasPrefix(xingData, []byte("Xing")) && !bytes.HasPrefix(xingData, []byte("Info")) {
		return gaplessInfo{}
	}

	lameOffset := findLAMETag(xingData)
	if lameOffset < 0 || lameOffset+24 > len(xingData) {
		return gaplessInfo{hasXINGTag: true}
	}

	lameData := xingData[lameOffset:]
	if len(lameData) < 24 {
		return gaplessInfo{hasXINGTag: true}
	}

	gaplessBytes := lameData[21:24]
	gapless24 := uint32(gaplessBytes[0])<<16 | uint32(gaplessBytes[1])<<8 | uint32(gaplessBytes[2])

	return gaplessInfo{
		delay:      int(gapless24 >> 12),
		padding:    int(gapless24 & 0xFFF),
		hasXINGTag: true,
	}
}

func skipID3v2(rs io.ReadSeeker) int {
	header := make([]byte, 10)

	n, err := rs.Read(header)
	if err != nil || n < 10 {
		_, _ = rs.Seek(0, io.SeekStart)

		return 0
	}

	if header[0] != 'I' || header[1] != 'D' || header[2] != '3' {
		_, _ = rs.Seek(0, io.SeekStart)

		return 0
	}

	size := (int(header[6]) << 21) | (int(header[7]) << 14) | (int(header[8]) << 7) | int(header[9])
	totalSize := 10 + size

	if _, err := rs.Seek(int64(totalSize), io.SeekStart); err != nil {
		return -1
	}

	return totalSize
}

func findSyncWord(data []byte) int {
	for i := 0; i < len(data)-1; i++ {
		if data[i] == 0xFF && (data[i+1]&0xE0) == 0xE0 && i+4 <= len(data) && isValidFrameHeader(data[i:i+4]) {
			return i
		}
	}

	return -1
}

func isValidFrameHeader(header []byte) bool {
	if len(header) < 4 || header[0] != 0xFF || (header[1]&0xE0) != 0xE0 {
		return false
	}

	versionBits := (header[1] >> 3) & 0x03
	layerBits := (header[1] >> 1) & 0x03
	bitrateBits := (header[2] >> 4) & 0x0F

	return versionBits != 0x01 && layerBits != 0x00 && bitrateBits != 0x0F
}

func getSideInfoSize(header []byte) int {
	versionBits := (header[1] >> 3) & 0x03
	channelBits := (header[3] >> 6) & 0x03
	isMono := channelBits == 0x03

	switch versionBits {
	case 0x03:
		if isMono {
			return 17
		}

		return 32
	case 0x02, 0x00:
		if isMono {
			return 9
		}

		return 17
	default:
		return -1
	}
}

func findLAMETag(xingData []byte) int {
	if len(xingData) < 8 {
		return -1
	}

	flags := binary.BigEndian.Uint32(xingData[4:8])
	offset := 8

	if flags&0x01 != 0 {
		offset += 4
	}

	if flags&0x02 != 0 {
		offset += 4
	}

	if flags&0x04 != 0 {
		offset += 100
	}

	if flags&0x08 != 0 {
		offset += 4
	}

	if offset+4 > len(xingData) {
		return -1
	}

	if bytes.HasPrefix(xingData[offset:], []byte("LAME")) {
		return offset
	}

	if offset+9 <= len(xingData) && isPrintableASCII(xingData[offset:offset+4]) {
		return offset
	}

	return -1
}

func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 0x20 || b > 0x7E {
			return false
		}
	}

	return true
}

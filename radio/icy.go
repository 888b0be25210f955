package radio

import (
	"errors"
	"fmt"
	"io"

	"github.com/nextui/musicplayer/metadata"
)

// icySource wraps an HTTP response body, transparently stripping ICY
// inline metadata blocks every metaInt bytes of audio and invoking
// onMetadata with each decoded block If metaInt is 0
// (no Icy-Metaint header), it behaves as a plain passthrough.
type icySource struct {
	body       io.Reader
	metaInt    int
	bytesLeft  int
	onMetadata func(block string)
	initDone   bool
}

func (s *icySource) Read(p []byte) (int, error) {
	if s.metaInt <= 0 {
		return s.body.Read(p) //nolint:wrapcheck // passthrough, caller wraps with context
	}

	if !s.initDone {
		s.bytesLeft = s.metaInt
		s.initDone = true
	}

	if s.bytesLeft == 0 {
		if err := s.consumeMetadataBlock(); err != nil {
			return 0, err
		}

		s.bytesLeft = s.metaInt
	}

	want := len(p)
	if want > s.bytesLeft {
		want = s.bytesLeft
	}

	n, err := s.body.Read(p[:want])
	s.bytesLeft -= n

	if err != nil {
		return n, fmt.Errorf("radio: reading ICY audio chunk: %w", err)
	}

	return n, nil
}

func (s *icySource) consumeMetadataBlock() error {
	var lenByte [1]byte

	if _, err := io.ReadFull(s.body, lenByte[:]); err != nil {
		return fmt.Errorf("radio: reading ICY metadata length: %w", err)
	}

	blockLen := metadata.ICYMetadataBlockLength(lenByte[0])
	if blockLen == 0 {
		return nil
	}

	block := make([]byte, blockLen)
	if _, err := io.ReadFull(s.body, block); err != nil {
		return fmt.Errorf("radio: reading ICY metadata block: %w", err)
	}

	if s.onMetadata != nil {
		s.onMetadata(string(block))
	}

	return nil
}

// errSeekPastBuffered is returned when a seek would require data this
// adapter hasn't read (and buffered) yet: a genuine forward seek into the
// unread future of a live stream, which no in-memory replay can satisfy.
var errSeekPastBuffered = errors.New("radio: cannot seek past buffered prefix")

// maxPrefixBuffer caps how much of the live stream nonSeekingReader will
// retain for replay. The only decoders that ever seek a freshly-opened
// radio source are MP3's LAME/Xing gapless probe and AAC's rewind after
// reading the first ADTS header,
// both of which only look a few KB into the stream, so this is generous
// headroom rather than a tight fit.
const maxPrefixBuffer = 64 * 1024

// nonSeekingReader adapts a plain io.Reader to the io.ReadSeeker shape the
// decode.Decoder.Open contract expects (every decoder was written against
// local, seekable files). It buffers up to maxPrefixBuffer bytes of
// everything read so far and can replay a seek backward into that
// prefix — exactly what MP3's gapless-info probe needs when it rewinds to
// re-scan for a Xing/LAME header after an initial ID3 peek. A seek
// forward past the buffered prefix fails outright: a live stream has no
// way to skip ahead without discarding unread audio.
type nonSeekingReader struct {
	body io.Reader
	buf  []byte // prefix buffered so far, up to maxPrefixBuffer
	pos  int64  // current virtual read position within buf/body
}

func newNonSeekingReader(body io.Reader) *nonSeekingReader {
	return &nonSeekingReader{body: body}
}

func (r *nonSeekingReader) Read(p []byte) (int, error) {
	if r.pos < int64(len(r.buf)) {
		n := copy(p, r.buf[r.pos:])
		r.pos += int64(n)

		return n, nil
	}

	n, err := r.body.Read(p)
	if n > 0 && len(r.buf) < maxPrefixBuffer {
		keep := n
		if len(r.buf)+keep > maxPrefixBuffer {
			keep = maxPrefixBuffer - len(r.buf)
		}

		r.buf = append(r.buf, p[:keep]...)
	}

	r.pos += int64(n)

	if err != nil {
		return n, fmt.Errorf("radio: reading stream: %w", err)
	}

	return n, nil
}

func (r *nonSeekingReader) Seek(offset int64, whence int) (int64, error) {
	var target int64

	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	default:
		return r.pos, errSeekPastBuffered
	}

	if target < 0 || target > int64(len(r.buf)) {
		return r.pos, errSeekPastBuffered
	}

	r.pos = target

	return r.pos, nil
}

package radio

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestICYSourceStripsInlineMetadata(t *testing.T) {
	t.Parallel()

	streamTitle := "StreamTitle='X - Y';"

	var raw bytes.Buffer
	raw.WriteString("AUDIO123") // 8 bytes of audio, metaInt=8
	raw.WriteByte(2)            // length byte: 2*16 = 32 bytes of metadata
	raw.WriteString(streamTitle)
	raw.Write(make([]byte, 32-len(streamTitle)))
	raw.WriteString("MOREAUDIO")

	var captured string

	src := &icySource{body: &raw, metaInt: 8, onMetadata: func(block string) {
		captured = block
	}}

	out := make([]byte, 64)

	n, err := io.ReadFull(src, out[:8])
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, "AUDIO123", string(out[:8]))

	n, err = src.Read(out)
	require.NoError(t, err)
	require.Positive(t, n)
	require.Contains(t, captured, "StreamTitle='X - Y'")
}

func TestICYSourcePassthroughWhenNoMetaInt(t *testing.T) {
	t.Parallel()

	src := &icySource{body: bytes.NewReader([]byte("plainaudio"))}

	out := make([]byte, 32)

	n, err := src.Read(out)
	require.NoError(t, err)
	require.Equal(t, "plainaudio", string(out[:n]))
}

func TestNonSeekingReaderReplaysBufferedPrefix(t *testing.T) {
	t.Parallel()

	r := newNonSeekingReader(bytes.NewReader([]byte("0123456789")))

	buf := make([]byte, 5)

	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "01234", string(buf[:n]))

	pos, err := r.Seek(0, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(0), pos)

	n, err = r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "01234", string(buf[:n]))

	n, err = r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "56789", string(buf[:n]))
}

func TestNonSeekingReaderRejectsSeekPastBuffered(t *testing.T) {
	t.Parallel()

	r := newNonSeekingReader(bytes.NewReader([]byte("short")))

	_, err := r.Seek(1000, io.SeekStart)
	require.ErrorIs(t, err, errSeekPastBuffered)
}

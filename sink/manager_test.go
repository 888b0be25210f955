package sink_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextui/musicplayer/sink"
)

func TestKindNativeRate(t *testing.T) {
	t.Parallel()

	require.Equal(t, 48000, sink.Speaker.NativeRate())
	require.Equal(t, 48000, sink.USBDAC.NativeRate())
	require.Equal(t, 44100, sink.Bluetooth.NativeRate())
}

func TestKindDSPEnabled(t *testing.T) {
	t.Parallel()

	require.True(t, sink.Speaker.DSPEnabled())
	require.False(t, sink.USBDAC.DSPEnabled())
	require.False(t, sink.Bluetooth.DSPEnabled())
}

func TestDetectKindExplicitPreference(t *testing.T) {
	t.Parallel()

	require.Equal(t, sink.Bluetooth, sink.DetectKind("bluetooth", "/nonexistent"))
	require.Equal(t, sink.USBDAC, sink.DetectKind("usb-dac", "/nonexistent"))
	require.Equal(t, sink.Speaker, sink.DetectKind("speaker", "/nonexistent"))
}

func TestDetectKindFromRoutingConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "asound.conf")

	require.NoError(t, os.WriteFile(path, []byte("pcm.!default { type bluealsa }"), 0o600))
	require.Equal(t, sink.Bluetooth, sink.DetectKind("auto", path))

	require.NoError(t, os.WriteFile(path, []byte("pcm.!default { type hw }"), 0o600))
	require.Equal(t, sink.Speaker, sink.DetectKind("auto", path))
}

func TestDetectKindMissingFileDefaultsSpeaker(t *testing.T) {
	t.Parallel()

	require.Equal(t, sink.Speaker, sink.DetectKind("auto", "/does/not/exist"))
}

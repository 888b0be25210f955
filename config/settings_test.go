package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextui/musicplayer/config"
	"github.com/nextui/musicplayer/internal/dsp"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	s, err := config.Load(filepath.Join(t.TempDir(), "settings.cfg"))
	require.NoError(t, err)
	require.Equal(t, config.Default(), s)
}

func TestLoadParsesRecognisedKeysAndIgnoresRest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.cfg")
	body := "screen_off_timeout=90\nlyrics_enabled=0\nbass_filter_hz=150\nsoft_limiter=3\nunknown_key=banana\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	s, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 90, s.ScreenOffTimeout)
	require.False(t, s.LyricsEnabled)
	require.Equal(t, dsp.BassFilter150, s.BassFilterHz)
	require.Equal(t, dsp.LimiterTight, s.SoftLimiter)
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.cfg")
	body := "screen_off_timeout=45\nbass_filter_hz=999\nsoft_limiter=99\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	s, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.Default().ScreenOffTimeout, s.ScreenOffTimeout)
	require.Equal(t, config.Default().BassFilterHz, s.BassFilterHz)
	require.Equal(t, config.Default().SoftLimiter, s.SoftLimiter)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", "settings.cfg")
	s := config.Default()
	s.CycleBassFilterNext()
	s.CycleScreenOffNext()
	s.SinkPreference = "bluetooth"

	require.NoError(t, config.Save(path, s))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, s, loaded)
}

func TestCycleScreenOffWrapsAround(t *testing.T) {
	t.Parallel()

	s := config.Default()
	require.Equal(t, 60, s.ScreenOffTimeout)

	s.CycleScreenOffPrev()
	require.Equal(t, 0, s.ScreenOffTimeout)

	s.CycleScreenOffNext()
	require.Equal(t, 60, s.ScreenOffTimeout)
}

func TestCycleBassFilterWrapsAround(t *testing.T) {
	t.Parallel()

	s := config.Default()
	for range 6 {
		s.CycleBassFilterNext()
	}

	require.Equal(t, config.Default().BassFilterHz, s.BassFilterHz)
}

func TestDisplayStrings(t *testing.T) {
	t.Parallel()

	s := config.Default()
	require.Equal(t, "60s", s.ScreenOffDisplayString())
	require.Equal(t, "120 Hz", s.BassFilterDisplayString())
	require.Equal(t, "Medium", s.SoftLimiterDisplayString())

	s.ScreenOffTimeout = 0
	require.Equal(t, "Off", s.ScreenOffDisplayString())
}

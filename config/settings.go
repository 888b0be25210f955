// Package config reads and writes the music player's settings.cfg, a flat
// key=value file living alongside stations.txt in the settings directory.
// Parsing mirrors the original settings.c's line-oriented sscanf approach:
// unknown keys are ignored, malformed or out-of-range values fall back to
// the current value rather than erroring the whole load.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nextui/musicplayer/internal/dsp"
)

// Allowed value sets, mirrored verbatim from settings.c.
var ( //nolint:gochecknoglobals // fixed protocol/UI tables, not configuration
	screenOffValues = []int{60, 90, 120, 0}
	bassFilterHzValues = []int{
		int(dsp.BassFilterOff), int(dsp.BassFilter80), int(dsp.BassFilter100),
		int(dsp.BassFilter120), int(dsp.BassFilter150), int(dsp.BassFilter200),
	}
)

const (
	defaultScreenOffTimeout = 60
	defaultBassFilterHz     = int(dsp.BassFilter120)
	defaultSoftLimiter      = dsp.LimiterMedium
)

// Settings is the in-memory, validated form of settings.cfg.
type Settings struct {
	ScreenOffTimeout int // seconds; 0 disables auto screen-off
	LyricsEnabled    bool
	BassFilterHz     dsp.BassFilterHz
	SoftLimiter      dsp.LimiterThreshold
	SinkPreference   string // "auto", "speaker", "usb-dac", "bluetooth"
}

// Default returns the settings in effect before any file is loaded.
func Default() Settings {
	return Settings{
		ScreenOffTimeout: defaultScreenOffTimeout,
		LyricsEnabled:    true,
		BassFilterHz:     dsp.BassFilterHz(defaultBassFilterHz),
		SoftLimiter:      defaultSoftLimiter,
		SinkPreference:   "auto",
	}
}

// Load reads settings.cfg at path, starting from Default() and overwriting
// each recognised, validated key. A missing file is not an error: it
// simply yields the defaults, matching Settings_init's fopen-may-fail
// behavior.
func Load(path string) (Settings, error) {
	s := Default()

	f, err := os.Open(path) //nolint:gosec // settings path is operator-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}

		return s, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		applyLine(&s, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return s, fmt.Errorf("config: reading %s: %w", path, err)
	}

	return s, nil
}

func applyLine(s *Settings, line string) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return
	}

	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "screen_off_timeout":
		if v, err := strconv.Atoi(value); err == nil && containsInt(screenOffValues, v) {
			s.ScreenOffTimeout = v
		}
	case "lyrics_enabled":
		if v, err := strconv.Atoi(value); err == nil {
			s.LyricsEnabled = v != 0
		}
	case "bass_filter_hz":
		if v, err := strconv.Atoi(value); err == nil && containsInt(bassFilterHzValues, v) {
			s.BassFilterHz = dsp.BassFilterHz(v)
		}
	case "soft_limiter":
		if v, err := strconv.Atoi(value); err == nil && v >= 0 && v <= int(dsp.LimiterTight) {
			s.SoftLimiter = dsp.LimiterThreshold(v)
		}
	case "sink_preference":
		if value != "" {
			s.SinkPreference = value
		}
	}
}

// Save writes settings.cfg atomically-ish (truncate+write, as the original
// does), creating the parent directory if needed.
func Save(path string, s Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // settings dir, not secret material
		return fmt.Errorf("config: creating %s: %w", dir, err)
	}

	lyrics := 0
	if s.LyricsEnabled {
		lyrics = 1
	}

	body := fmt.Sprintf(
		"screen_off_timeout=%d\nlyrics_enabled=%d\nbass_filter_hz=%d\nsoft_limiter=%d\nsink_preference=%s\n",
		s.ScreenOffTimeout, lyrics, int(s.BassFilterHz), int(s.SoftLimiter), s.SinkPreference,
	)

	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}

	return nil
}

// CycleScreenOffNext advances to the next value in screenOffValues,
// wrapping around, matching Settings_cycleScreenOffNext.
func (s *Settings) CycleScreenOffNext() {
	s.ScreenOffTimeout = screenOffValues[cycleIndex(screenOffValues, s.ScreenOffTimeout, 1)]
}

// CycleScreenOffPrev is the reverse of CycleScreenOffNext.
func (s *Settings) CycleScreenOffPrev() {
	s.ScreenOffTimeout = screenOffValues[cycleIndex(screenOffValues, s.ScreenOffTimeout, -1)]
}

// CycleBassFilterNext advances to the next bass filter cutoff, wrapping.
func (s *Settings) CycleBassFilterNext() {
	s.BassFilterHz = dsp.BassFilterHz(bassFilterHzValues[cycleIndex(bassFilterHzValues, int(s.BassFilterHz), 1)])
}

// CycleBassFilterPrev is the reverse of CycleBassFilterNext.
func (s *Settings) CycleBassFilterPrev() {
	s.BassFilterHz = dsp.BassFilterHz(bassFilterHzValues[cycleIndex(bassFilterHzValues, int(s.BassFilterHz), -1)])
}

// CycleSoftLimiterNext advances to the next limiter threshold, wrapping.
func (s *Settings) CycleSoftLimiterNext() {
	s.SoftLimiter = dsp.LimiterThreshold((int(s.SoftLimiter) + 1) % (int(dsp.LimiterTight) + 1))
}

// CycleSoftLimiterPrev is the reverse of CycleSoftLimiterNext.
func (s *Settings) CycleSoftLimiterPrev() {
	n := int(dsp.LimiterTight) + 1
	s.SoftLimiter = dsp.LimiterThreshold((int(s.SoftLimiter) - 1 + n) % n)
}

// ScreenOffDisplayString renders the current timeout the way the original
// UI does: "60s"/"90s"/"120s"/"Off".
func (s Settings) ScreenOffDisplayString() string {
	if s.ScreenOffTimeout == 0 {
		return "Off"
	}

	return fmt.Sprintf("%ds", s.ScreenOffTimeout)
}

// BassFilterDisplayString renders the current cutoff as "Off" or "<n> Hz".
func (s Settings) BassFilterDisplayString() string {
	if s.BassFilterHz == dsp.BassFilterOff {
		return "Off"
	}

	return fmt.Sprintf("%d Hz", int(s.BassFilterHz))
}

// SoftLimiterDisplayString renders the current limiter setting.
func (s Settings) SoftLimiterDisplayString() string {
	switch s.SoftLimiter {
	case dsp.LimiterOff:
		return "Off"
	case dsp.LimiterLoose:
		return "Mild"
	case dsp.LimiterMedium:
		return "Medium"
	case dsp.LimiterTight:
		return "Strong"
	default:
		return "Medium"
	}
}

func containsInt(values []int, v int) bool {
	for _, c := range values {
		if c == v {
			return true
		}
	}

	return false
}

func cycleIndex(values []int, current, delta int) int {
	idx := 0

	for i, v := range values {
		if v == current {
			idx = i

			break
		}
	}

	n := len(values)

	return ((idx+delta)%n + n) % n
}

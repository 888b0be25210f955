// Package sink manages the active audio output device: which one is
// active (speaker, USB DAC, or Bluetooth), at what native rate it must be
// opened, and reopening it live when the OS-level audio routing changes.
// Device I/O is github.com/hajimehoshi/oto/v2, driven the same way the
// go-mp3 demo player uses it (oto.NewContext + Context.NewPlayer fed by
// an io.Reader), generalised from a one-shot demo player into a
// long-lived, reconfigurable sink.
package sink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hajimehoshi/oto/v2"

	"github.com/nextui/musicplayer/internal/logging"
)

// Kind identifies which physical output the Manager currently targets.
type Kind int

const (
	Speaker Kind = iota
	USBDAC
	Bluetooth
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Speaker:
		return "speaker"
	case USBDAC:
		return "usb-dac"
	case Bluetooth:
		return "bluetooth"
	default:
		return "unknown"
	}
}

// NativeRate returns the sample rate the device must be opened at: 44100
// Hz for Bluetooth (the A2DP constraint), 48000 Hz otherwise.
func (k Kind) NativeRate() int {
	if k == Bluetooth {
		return 44100
	}

	return 48000
}

// DSPEnabled reports whether the high-pass filter and soft limiter should
// run for this sink: speaker only
func (k Kind) DSPEnabled() bool {
	return k == Speaker
}

// State is the published, read-only snapshot of the sink manager's current
// configuration.
type State struct {
	Kind Kind
	Rate int
}

// feeder is the io.Reader oto.Player pulls from; PullFunc supplies
// already-DSP'd interleaved stereo PCM bytes on demand.
type feeder struct {
	pull func(buf []byte) (int, error)
}

func (f *feeder) Read(buf []byte) (int, error) {
	return f.pull(buf)
}

// Manager owns the live oto.Context/Player pair and reopens them when the
// routing config file changes or the user toggles the sink in settings.
type Manager struct {
	mu      sync.Mutex
	state   State
	ctx     *oto.Context
	player  oto.Player
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	pull        func(buf []byte) (int, error)
	routingPath string

	onReopen func(kind Kind, rate int) // live reconfiguration callback
}

// New creates a Manager. pull is called by the audio callback goroutine
// whenever the device wants more bytes; it must not block for long, per
// the ring buffer's non-blocking contract. onReopen, if non-nil, is
// invoked after every successful Reopen (e.g. a routing-config change
// switching to Bluetooth) with the sink's new kind and native rate, so a
// caller tracking playback state can re-target its resampler.
func New(routingPath string, pull func(buf []byte) (int, error), onReopen func(kind Kind, rate int)) *Manager {
	return &Manager{
		pull:        pull,
		routingPath: routingPath,
		logger:      logging.Component(nil, "sink"),
		onReopen:    onReopen,
	}
}

// DetectKind combines the persisted user selection with inspection of the
// routing config file: presence of "bluealsa" in the file selects
// Bluetooth An explicit non-auto preference overrides
// detection entirely.
func DetectKind(preference string, routingPath string) Kind {
	switch preference {
	case "speaker":
		return Speaker
	case "usb-dac", "usb":
		return USBDAC
	case "bluetooth":
		return Bluetooth
	}

	data, err := os.ReadFile(routingPath) //nolint:gosec // routing config path is operator-controlled, not user input
	if err != nil {
		return Speaker
	}

	if strings.Contains(string(data), "bluealsa") {
		return Bluetooth
	}

	return Speaker
}

// Open opens the device for the given kind, closing any previously open
// device first.
func (m *Manager) Open(kind Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.openLocked(kind)
}

func (m *Manager) openLocked(kind Kind) error {
	m.closeLocked()

	const bytesPerSample = 2

	const channels = 2

	rate := kind.NativeRate()

	ctx, ready, err := oto.NewContext(rate, channels, bytesPerSample)
	if err != nil {
		return fmt.Errorf("sink: creating audio context: %w", err)
	}

	<-ready

	m.ctx = ctx
	m.player = ctx.NewPlayer(&feeder{pull: m.pull})
	m.state = State{Kind: kind, Rate: rate}

	m.player.Play()

	m.logger.Info("sink opened", "kind", kind.String(), "rate", rate)

	return nil
}

func (m *Manager) closeLocked() {
	if m.player != nil {
		_ = m.player.Close()
		m.player = nil
	}

	m.ctx = nil
}

// State returns the current sink configuration.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Reopen closes and reopens the device at the same kind, pausing and
// resuming playback across the gap's live-reconfiguration
// behavior.
func (m *Manager) Reopen() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasPlaying := m.player != nil && m.player.IsPlaying()

	if err := m.openLocked(m.state.Kind); err != nil {
		return err
	}

	if !wasPlaying && m.player != nil {
		m.player.Pause()
	}

	state := m.state

	if m.onReopen != nil {
		m.onReopen(state.Kind, state.Rate)
	}

	return nil
}

// WatchRoutingConfig starts a filesystem watcher on the routing config's
// parent directory; on create/write/remove it calls Reopen, recomputing
// the sink kind from DetectKind first. Stop via Close.
func (m *Manager) WatchRoutingConfig(preference func() string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("sink: creating watcher: %w", err)
	}

	dir := filepath.Dir(m.routingPath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()

		return fmt.Errorf("sink: watching %s: %w", dir, err)
	}

	m.watcher = watcher

	go m.watchLoop(preference)

	return nil
}

func (m *Manager) watchLoop(preference func() string) {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != filepath.Clean(m.routingPath) {
				continue
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) == 0 {
				continue
			}

			kind := DetectKind(preference(), m.routingPath)

			m.mu.Lock()
			m.state.Kind = kind
			m.mu.Unlock()

			if err := m.Reopen(); err != nil {
				m.logger.Error("reopening sink after routing change", "error", err)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}

			m.logger.Error("routing watcher error", "error", err)
		}
	}
}

// Close shuts down the device and any routing watcher.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeLocked()

	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			return fmt.Errorf("sink: closing watcher: %w", err)
		}
	}

	return nil
}

var _ io.Reader = (*feeder)(nil)

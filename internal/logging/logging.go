// Package logging wires the process-wide zerolog sink into the standard
// log/slog interface used by every other package in this module.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

// Level controls the minimum severity emitted by New.
type Level = zerolog.Level

// Re-exported levels so callers never need to import zerolog directly.
const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

// New builds a component-scoped slog.Logger backed by zerolog, writing to w
// (os.Stderr when w is nil). Every call site should further scope it with
// logger.With("component", name).
func New(w io.Writer, level Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()

	handler := slogzerolog.Option{
		Level:  slogLevel(level),
		Logger: &zl,
	}.NewZerologHandler()

	return slog.New(handler)
}

// slogLevel maps a zerolog level to its slog.Level equivalent.
func slogLevel(level Level) slog.Level {
	switch level {
	case zerolog.DebugLevel:
		return slog.LevelDebug
	case zerolog.WarnLevel:
		return slog.LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a logger pre-tagged with a "component" attribute, the
// convention every goroutine in this module follows when it logs its own
// start/stop/error lifecycle events.
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = New(nil, LevelInfo)
	}

	return base.With("component", name)
}

// init ensures the zerolog global time format matches what operators expect
// from other mycophonic-family tools.
func init() { //nolint:gochecknoinits // one-time global formatting default
	zerolog.TimeFieldFormat = time.RFC3339
}

// Package logger provides scoped structured loggers on top of log/slog,
// colorized when attached to a terminal. It mirrors the teacher's
// internal/logger package (referenced throughout via logger.Scoped(name)
// and logger.Level / logger.LevelError) which is not itself in the
// retrieval pack.
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/dpotapov/slogpfx"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Level mirrors slog.Level under a name that doesn't leak the slog import
// to every call site, matching the teacher's own logger.Level type.
type Level = slog.Level

const (
	LevelTrace Level = slog.Level(-8)
	LevelDebug Level = slog.LevelDebug
	LevelInfo  Level = slog.LevelInfo
	LevelWarn  Level = slog.LevelWarn
	LevelError Level = slog.LevelError
)

var (
	baseOnce    sync.Once
	baseHandler slog.Handler
	minLevel    = new(slog.LevelVar)
)

// SetMinLevel adjusts the process-wide minimum log level. Call once during
// startup, before any Scoped logger is used for anything latency-sensitive.
func SetMinLevel(l Level) {
	minLevel.Set(l)
}

// ParseLevel maps a config string ("trace", "debug", "info", "warn",
// "error") to a Level, defaulting to LevelInfo for an unrecognized value.
func ParseLevel(s string) Level {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func base() slog.Handler {
	baseOnce.Do(func() {
		w := os.Stdout
		if isatty.IsTerminal(w.Fd()) {
			baseHandler = tint.NewHandler(w, &tint.Options{
				Level:      minLevel,
				TimeFormat: "15:04:05.000",
				NoColor:    false,
			})
		} else {
			baseHandler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: minLevel})
		}
	})
	return baseHandler
}

// Logger is a thin wrapper adding a Trace level and a scope name to slog.
type Logger struct {
	*slog.Logger
	scope string
}

// Scoped returns a Logger prefixed with name (e.g. "proxyclient/probe"),
// matching logger.Scoped("usenet/pool/file_type") in the teacher.
func Scoped(name string) *Logger {
	h := slogpfx.NewHandler(base(), &slogpfx.HandlerOptions{
		PrefixKeys: []string{"scope"},
	})
	l := slog.New(h).With("scope", name)
	return &Logger{Logger: l, scope: name}
}

// Trace logs below Debug; the teacher uses this liberally for per-item,
// high-volume diagnostics that should be silent by default.
func (l *Logger) Trace(msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}

func (l *Logger) Scope() string { return l.scope }

package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Logger provides leveled, printf-style logging throughout the application.
// Records are written through a slog handler so levels can be filtered.
type Logger struct {
	sl *slog.Logger
}

// NewLogger creates a Logger writing colored output to stderr at the level
// named by LOG_LEVEL (info when unset).
func NewLogger() *Logger {
	return NewLoggerTo(os.Stderr, ParseLevel(os.Getenv("LOG_LEVEL")))
}

// NewLoggerTo creates a Logger writing to w at the given level.
func NewLoggerTo(w io.Writer, level slog.Level) *Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    w != os.Stderr && w != os.Stdout,
	})
	return &Logger{sl: slog.New(handler)}
}

// ParseLevel maps debug|info|warn|error to a slog level. Unknown values
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) logf(level slog.Level, format string, args ...any) {
	if !l.sl.Enabled(context.Background(), level) {
		return
	}
	l.sl.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.logf(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.logf(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.logf(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.logf(slog.LevelDebug, format, args...)
}

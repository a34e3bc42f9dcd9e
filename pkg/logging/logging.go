// Package logging provides subsystem-tagged leveled logging on top of slog.
//
// Every entry carries a subsystem attribute so output from the transport,
// the lifecycle orchestrator and the controller can be told apart:
//
//	logging.Init(logging.LevelDebug, os.Stderr)
//	logging.Info("Lifecycle", "Unsealing with key %d/%d", i, n)
//	logging.Error("Controller", err, "Failed to reconcile pod %s", pod)
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Level defines the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes Level satisfy the fmt.Stringer interface.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a textual level to a Level. Unknown values map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

var (
	mu            sync.RWMutex
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// Init replaces the process-wide logger. It is normally called once from the
// CLI root command.
func Init(level Level, output io.Writer) {
	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level.slogLevel()}))

	mu.Lock()
	defaultLogger = logger
	mu.Unlock()
}

// Enabled reports whether entries at level would be written.
func Enabled(level Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger.Enabled(context.Background(), level.slogLevel())
}

func logInternal(level Level, subsystem string, err error, format string, args ...any) {
	mu.RLock()
	logger := defaultLogger
	mu.RUnlock()

	if !logger.Enabled(context.Background(), level.slogLevel()) {
		return
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	attrs := []any{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.Log(context.Background(), level.slogLevel(), msg, attrs...)
}

// Debug logs a debug message.
func Debug(subsystem, format string, args ...any) {
	logInternal(LevelDebug, subsystem, nil, format, args...)
}

// Info logs an informational message.
func Info(subsystem, format string, args ...any) {
	logInternal(LevelInfo, subsystem, nil, format, args...)
}

// Warn logs a warning message.
func Warn(subsystem, format string, args ...any) {
	logInternal(LevelWarn, subsystem, nil, format, args...)
}

// Error logs an error message together with the error that caused it.
func Error(subsystem string, err error, format string, args ...any) {
	logInternal(LevelError, subsystem, err, format, args...)
}

// Secret is a value that is always redacted when formatted.
type Secret string

// String implements fmt.Stringer.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v.
func (s Secret) GoString() string {
	return "[REDACTED]"
}

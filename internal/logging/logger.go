// Package logging provides centralized logging functionality for the application.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug for detailed troubleshooting information.
	LevelDebug LogLevel = "debug"
	// LevelInfo for general operational information.
	LevelInfo LogLevel = "info"
	// LevelWarn for potentially harmful situations.
	LevelWarn LogLevel = "warn"
	// LevelError for error events that might still allow the application to continue.
	LevelError LogLevel = "error"
)

var defaultLogger *slog.Logger

func init() {
	// Log to stderr so command output on stdout stays machine readable
	SetupLogger(os.Stderr, ParseLevel(os.Getenv("LOG_LEVEL")))
}

// ParseLevel converts a user supplied level name to a LogLevel.
// Unknown or empty names resolve to LevelInfo.
func ParseLevel(name string) LogLevel {
	switch level := LogLevel(strings.ToLower(strings.TrimSpace(name))); level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return level
	default:
		return LevelInfo
	}
}

// Level returns the slog level for l. Unknown levels map to slog.LevelInfo.
func (l LogLevel) Level() slog.Level {
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

// SetupLogger replaces the package and slog default loggers with a text
// logger writing to w at the given level.
func SetupLogger(w io.Writer, level LogLevel) {
	defaultLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.Level()}))
	slog.SetDefault(defaultLogger)
}

// Debug logs a message at debug level.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs a message at info level.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a message at warn level.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs a message at error level.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// GetLogger returns the default logger.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// ForRun returns a logger that tags every record with the given sync run id.
func ForRun(runID string) *slog.Logger {
	return defaultLogger.With("run_id", runID)
}

// MaskSensitive hides all but the first four characters of a credential.
func MaskSensitive(value string) string {
	if value == "" {
		return "<not set>"
	}
	if len(value) <= 4 {
		return "<set>"
	}
	return value[:4] + "..." + strings.Repeat("*", 3)
}

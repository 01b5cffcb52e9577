package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pterm/pterm"

	"github.com/jmylchreest/skyrad/internal/config"
)

// LogLevel defines log level types
type LogLevel string

// Log level constants - using values from config package
const (
	LogLevelDebug LogLevel = LogLevel(config.LogLevelDebug)
	LogLevelInfo  LogLevel = LogLevel(config.LogLevelInfo)
	LogLevelWarn  LogLevel = LogLevel(config.LogLevelWarn)
	LogLevelError LogLevel = LogLevel(config.LogLevelError)
)

// LogFormat defines log format types
type LogFormat string

// Log format constants - using values from config package
const (
	LogFormatText   LogFormat = LogFormat(config.LogFormatText)
	LogFormatJSON   LogFormat = LogFormat(config.LogFormatJSON)
	LogFormatPretty LogFormat = LogFormat(config.LogFormatPretty)
)

// level is shared by every logger built here so the socket, HTTP API and
// config watcher can change verbosity at runtime.
var level = new(slog.LevelVar)

// GetLogLevel converts a string log level to slog.Level
func GetLogLevel(level string) slog.Level {
	switch level {
	case string(LogLevelDebug):
		return slog.LevelDebug
	case string(LogLevelWarn):
		return slog.LevelWarn
	case string(LogLevelError):
		return slog.LevelError
	case string(LogLevelInfo):
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// ValidateLogLevel ensures the provided level is valid, returning a default if not
func ValidateLogLevel(level string) string {
	if IsValidLogLevel(level) {
		return level
	}
	return string(LogLevelInfo)
}

// IsValidLogLevel reports whether level is one of the named levels.
func IsValidLogLevel(level string) bool {
	switch level {
	case string(LogLevelDebug), string(LogLevelInfo), string(LogLevelWarn), string(LogLevelError):
		return true
	}
	return false
}

// ValidateLogFormat ensures the provided format is valid, returning a default if not
func ValidateLogFormat(format string) string {
	switch format {
	case string(LogFormatText), string(LogFormatJSON), string(LogFormatPretty):
		return format
	default:
		return string(LogFormatText)
	}
}

// SetLevel changes the level of every logger created by SetupLogger.
func SetLevel(l string) error {
	if !IsValidLogLevel(l) {
		return fmt.Errorf("invalid log level %q", l)
	}
	level.Set(GetLogLevel(l))
	return nil
}

// GetLevel returns the current shared level name.
func GetLevel() string {
	switch l := level.Level(); {
	case l <= slog.LevelDebug:
		return string(LogLevelDebug)
	case l <= slog.LevelInfo:
		return string(LogLevelInfo)
	case l <= slog.LevelWarn:
		return string(LogLevelWarn)
	default:
		return string(LogLevelError)
	}
}

// SetupLogger creates a logger writing to stderr whose level can be changed
// later with SetLevel.
func SetupLogger(lvl string, format string) *slog.Logger {
	return NewLogger(os.Stderr, lvl, format)
}

// NewLogger is SetupLogger with an explicit writer.
func NewLogger(w io.Writer, lvl string, format string) *slog.Logger {
	level.Set(GetLogLevel(ValidateLogLevel(lvl)))
	opts := &slog.HandlerOptions{Level: level, AddSource: true}

	var h slog.Handler
	switch LogFormat(ValidateLogFormat(format)) {
	case LogFormatJSON:
		h = slog.NewJSONHandler(w, opts)
	case LogFormatPretty:
		pl := pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace).WithWriter(w)
		h = &leveledHandler{Handler: pterm.NewSlogHandler(pl), level: level}
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// SetupErrorLogger creates a simple text logger for reporting errors during startup.
func SetupErrorLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// SetAsDefaultLogger sets a logger as the default logger
func SetAsDefaultLogger(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// leveledHandler applies the shared level in front of handlers that carry
// their own notion of verbosity.
type leveledHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h *leveledHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h *leveledHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveledHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *leveledHandler) WithGroup(name string) slog.Handler {
	return &leveledHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}

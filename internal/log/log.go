// Package log is the pipeline's logging layer, a thin veneer over slog.
// Handlers write to stdout: text for interactive use, JSON when
// FLOORWATCH_ENV=production so collectors get structured records.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init sets up the global logger at the given level. FLOORWATCH_LOG_LEVEL
// overrides the argument, so a deployment can raise verbosity without a
// flag change. Subsequent calls are no-ops.
func Init(level string) {
	once.Do(func() {
		if env := os.Getenv("FLOORWATCH_LOG_LEVEL"); env != "" {
			level = env
		}
		opts := &slog.HandlerOptions{Level: parseLevel(level)}

		var handler slog.Handler
		if os.Getenv("FLOORWATCH_ENV") == "production" {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(os.Stdout, opts)
		}

		logger = slog.New(handler)
		slog.SetDefault(logger)
	})
}

// parseLevel maps a level name to its slog level. Unknown names mean info:
// a typo in a deployment variable should never silence errors.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// L returns the global logger, initializing it at info level if Init was
// never called.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

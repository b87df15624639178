// Package applog provides application logging.
//
// Records are written as JSON to ~/.paicortex/logs/app.log. Non-interactive
// commands additionally log human-readable text to stderr; the TUI owns the
// terminal, so it only logs to the file.
package applog

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Setup installs the default logger. The returned cleanup closes the log file.
func Setup(logFile string, level slog.Level, stderr bool) (*slog.Logger, func() error) {
	var handlers []slog.Handler
	if stderr {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	cleanup := func() error { return nil }
	if f, err := openLogFile(logFile); err == nil {
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		cleanup = f.Close
	} else if stderr {
		slog.New(handlers[0]).Warn("log file unavailable, using stderr only", "file", logFile, "error", err)
	}

	logger := slog.New(slogmulti.Fanout(handlers...))
	slog.SetDefault(logger)
	return logger, cleanup
}

// SetupWithWriters builds a logger with custom writers (for testing).
func SetupWithWriters(text, json io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(text, &slog.HandlerOptions{Level: level}),
		slog.NewJSONHandler(json, &slog.HandlerOptions{Level: level}),
	))
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR to a slog level; unknown values
// fall back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

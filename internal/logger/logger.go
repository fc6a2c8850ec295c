// Package logger provides a centralized slog-based logger with level and format control.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/poruru-code/cxassembly/internal/config"
)

// Init installs the default slog logger writing to w (stderr when nil).
// format is text or json; an empty level or format uses the config defaults.
func Init(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if strings.TrimSpace(format) == "" {
		format = config.DefaultLogFormat
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		if strings.TrimSpace(s) == "" {
			return parseLevel(config.DefaultLogLevel)
		}
		return slog.LevelInfo
	}
}

// Package logging installs the process-wide slog handler.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/keycal/keycal/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup builds a handler from cfg, installs it as the slog default and
// returns a closer for the rotated log file, if any.
func Setup(cfg config.Logging) io.Closer {
	return SetupTo(os.Stdout, cfg)
}

// SetupTo is Setup with an explicit console writer.
func SetupTo(console io.Writer, cfg config.Logging) io.Closer {
	var out io.Writer = console
	var closer io.Closer = nopCloser{}

	if cfg.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(console, rotated)
		closer = rotated
	}

	slog.SetDefault(slog.New(NewHandler(out, cfg.LogFormat, cfg.LogLevel)))
	return closer
}

// NewHandler returns a JSON handler unless format is "text".
func NewHandler(w io.Writer, format, level string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ParseLevel maps debug, warn and error to their slog levels; anything else
// is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package util provides shared utility functions for logging, retries, poll
// rate limiting, and clock-time window checks.
package util

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures NewLogger.
type LogOptions struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info"
	// if the level string is not recognised.
	Level string
	// Format is "json" or "text". Defaults to "text".
	Format string
	// File, when set, receives a copy of every record through a rotating
	// file writer.
	File string
	// MaxSizeMB is the size at which File is rotated. Defaults to 50.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to keep. Defaults to 5.
	MaxBackups int
}

// NewLogger creates a structured logger using log/slog writing to stdout and,
// optionally, to a rotating log file.
func NewLogger(opts LogOptions) *slog.Logger {
	return newLogger(os.Stdout, opts)
}

func newLogger(stdout io.Writer, opts LogOptions) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	w := stdout
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			Compress:   true,
		}
		w = io.MultiWriter(stdout, rotating)
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level.
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

// SetDefault configures the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Package logging installs the process-wide slog handler.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects where and how logs are written.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // empty logs to stderr
}

// FromEnv reads TP_LOG_LEVEL, TP_LOG_FORMAT and TP_LOG_FILE. Without a
// file, the CLI keeps stderr quiet below warn so command output stays clean.
func FromEnv() Config {
	cfg := Config{
		Level:  os.Getenv("TP_LOG_LEVEL"),
		Format: os.Getenv("TP_LOG_FORMAT"),
		File:   os.Getenv("TP_LOG_FILE"),
	}
	if cfg.Level == "" {
		cfg.Level = "warn"
		if cfg.File != "" {
			cfg.Level = "info"
		}
	}
	return cfg
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// NewHandler builds a handler writing to w.
func NewHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Setup installs the default logger and returns a function that releases
// the log file, if any.
func Setup(cfg Config) func() error {
	var w io.Writer = os.Stderr
	closer := func() error { return nil }
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		w = lj
		closer = lj.Close
	}
	slog.SetDefault(slog.New(NewHandler(w, cfg)))
	return closer
}

// Package logging builds the daemon's own operational logger — not to
// be confused with internal/output, which captures supervised
// processes' stdout/stderr under the spec's bespoke rotation scheme.
// This is ordinary slog output describing what the daemon itself is
// doing (service started, RPC accepted, signal received), rotated
// through lumberjack the way the teacher's internal/logger does.
package logging

import (
	"log/slog"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 7
	defaultFilename   = "overseerd.log"
)

// Config describes the daemon operational log file.
type Config struct {
	Dir        string
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
	Color      bool
}

// New builds a slog.Logger that writes to a lumberjack-rotated file
// under cfg.Dir. When cfg.Color is set, output goes through
// ColorTextHandler instead of the plain slog.TextHandler — useful for
// a daemon run in the foreground against a terminal, as opposed to a
// detached background run.
func New(cfg Config) *slog.Logger {
	filename := cfg.Filename
	if filename == "" {
		filename = defaultFilename
	}
	w := &lj.Logger{
		Filename:   filepath.Join(cfg.Dir, filename),
		MaxSize:    valOr(cfg.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: valOr(cfg.MaxBackups, defaultMaxBackups),
		MaxAge:     valOr(cfg.MaxAgeDays, defaultMaxAgeDays),
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.Color {
		return slog.New(NewColorTextHandler(w, opts, true))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

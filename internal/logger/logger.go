package logger

import (
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for the daemon log file.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes the server's own log destination. When FilePath is set
// (or Dir is set, yielding Dir/cameye.log), output goes to a rotating file;
// otherwise it goes to stderr with the colorized handler. Rotation parameters
// follow lumberjack semantics.
type Config struct {
	Dir        string // base directory for the daemon log
	FilePath   string // explicit path overrides Dir
	Level      string // debug|info|warn|error (default info)
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func (c Config) path() string {
	if c.FilePath != "" {
		return c.FilePath
	}
	if c.Dir != "" {
		return filepath.Join(c.Dir, "cameye.log")
	}
	return ""
}

// New builds the process-wide *slog.Logger from cfg. A background daemon must
// log to a file because its stderr is redirected to the null device after
// detaching.
func New(cfg Config) *slog.Logger {
	level := parseLevel(cfg.Level)
	if path := cfg.path(); path != "" {
		return slog.New(slog.NewTextHandler(rotating(cfg, path), &slog.HandlerOptions{Level: level}))
	}
	return slog.New(NewColorTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}, true))
}

func rotating(cfg Config, path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   cfg.Compress,
	}
}

func parseLevel(s string) slog.Level {
	switch s {
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

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

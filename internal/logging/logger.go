// Package logging configures the process-wide slog logger for the crawl and
// serve commands, with optional size-rotated file output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/masahif/sitescope/internal/config"
)

// Config represents the logging configuration
type Config struct {
	Level      slog.Level
	Format     string // "json" or "text"
	FilePath   string
	MaxSize    int64 // MB
	MaxBackups int
	Console    bool
	Output     io.Writer // console destination, defaults to os.Stdout
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:      slog.LevelInfo,
		Format:     "json",
		MaxSize:    100,
		MaxBackups: 5,
		Console:    true,
	}
}

// FromSettings converts the user-facing log settings into a Config
func FromSettings(s config.LogConfig) Config {
	return Config{
		Level:      ParseLevel(s.Level),
		Format:     s.Format,
		FilePath:   s.File,
		MaxSize:    s.MaxSizeMB,
		MaxBackups: s.MaxBackups,
		Console:    s.Console,
	}
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new logger with the given configuration.
// The returned closer releases the log file, if any.
func NewLogger(cfg Config) (*slog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	console := cfg.Output
	if console == nil {
		console = os.Stdout
	}
	if cfg.Console {
		writers = append(writers, console)
	}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, err
		}

		maxSize := cfg.MaxSize
		if maxSize <= 0 {
			maxSize = 100
		}
		fileWriter, err := NewRotatingFileWriter(cfg.FilePath, maxSize*1024*1024, cfg.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, fileWriter)
		closer = fileWriter
	}

	if len(writers) == 0 {
		writers = append(writers, console)
	}

	writer := writers[0]
	if len(writers) > 1 {
		writer = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler), closer, nil
}

// SetDefault creates and installs the default logger
func SetDefault(cfg Config) (io.Closer, error) {
	logger, closer, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

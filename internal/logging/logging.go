// Package logging builds the technical logger. Console output uses the slog
// text handler; file output is JSON with size-based rotation.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
)

// Log level names.
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Settings configure the logger.
type Settings struct {
	Level  string
	Format string

	// File enables rotated file output instead of stderr.
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// New returns a logger and a closer for the underlying file, if any.
func New(s Settings) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(s.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if s.File == "" {
		return slog.New(handler(os.Stderr, s.Format, opts)), nopCloser{}, nil
	}

	writer := &lumberjack.Logger{
		Filename:   s.File,
		MaxSize:    s.MaxSize,
		MaxBackups: s.MaxBackups,
		MaxAge:     s.MaxAge,
		Compress:   true,
	}
	format := s.Format
	if format == "" {
		format = FormatJSON
	}
	return slog.New(handler(writer, format, opts)), writer, nil
}

// NewWriter returns a logger writing to w. Used for tests and embedding.
func NewWriter(w io.Writer, level, format string) (*slog.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(handler(w, format, &slog.HandlerOptions{Level: l})), nil
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo, "":
		return slog.LevelInfo, nil
	case LevelWarning, "warn":
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %s", level)
	}
}

func handler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Package logging provides structured diagnostics for retrack. It wraps
// log/slog with a JSON handler and child loggers that carry per-call
// attributes such as the call id and operation name.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level names accepted by New and ParseLevel.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Logger is a structured logger. A nil *Logger discards everything, so
// components can take one optionally. It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	closer *fileCloser
}

type fileCloser struct {
	mu   sync.Mutex
	file *os.File
}

// New returns a Logger writing JSON lines at the given level. An empty
// path writes to stderr; otherwise the file is opened for append and its
// parent directory created.
func New(path, level string) (*Logger, error) {
	if path == "" {
		return NewWriter(os.Stderr, level), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l := NewWriter(f, level)
	l.closer = &fileCloser{file: f}
	return l, nil
}

// NewWriter returns a Logger writing JSON lines to w.
func NewWriter(w io.Writer, level string) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Logger{logger: slog.New(h)}
}

// NewNop returns a Logger that discards all records.
func NewNop() *Logger {
	return &Logger{logger: slog.New(slog.DiscardHandler)}
}

// ParseLevel converts a level name to a slog.Level, defaulting to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn, "WARNING":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger that adds the given key-value pairs to every
// record.
func (l *Logger) With(args ...any) *Logger {
	if l == nil || len(args) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(args...), closer: l.closer}
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Log(context.Background(), level, msg, args...)
}

// Slog exposes the underlying slog.Logger for libraries that accept one.
func (l *Logger) Slog() *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.logger
}

// Close syncs and closes the log file, if any. Child loggers share the
// file with their parent; closing any of them closes it for all.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	c := l.closer
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Sync()
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	c.file = nil
	return err
}

// Package audit is the append-only structured log sink shared by every
// component. Writes never fail upward: a broken sink degrades to a stderr
// warning so logging can never abort a termination phase.
package audit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the sink. Zero values fall back to the defaults below.
type Options struct {
	Dir        string
	MinLevel   slog.Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Console mirrors every entry to stderr in addition to the file.
	Console bool
}

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 14
	defaultMaxAgeDays = 30
)

// Logger appends structured entries to one log file per calendar day,
// rotated by size and age.
type Logger struct {
	slog   *slog.Logger
	closer io.Closer
}

type failsafeWriter struct {
	w io.Writer
}

// Write swallows sink errors after warning once per call; callers of the
// Logger must never observe a logging failure.
func (f failsafeWriter) Write(p []byte) (int, error) {
	if _, err := f.w.Write(p); err != nil {
		fmt.Fprintf(os.Stderr, "audit: log write failed: %v\n", err)
	}
	return len(p), nil
}

// New opens the sink for today's log file, creating the directory if
// needed. New itself never fails: an unusable directory produces a
// console-only logger.
func New(opts Options) *Logger {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = defaultMaxSizeMB
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = defaultMaxBackups
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = defaultMaxAgeDays
	}

	var sink io.Writer = os.Stderr
	var closer io.Closer
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "audit: create log dir: %v\n", err)
		} else {
			lj := &lumberjack.Logger{
				Filename:   filepath.Join(opts.Dir, fmt.Sprintf("testex-%s.log", time.Now().Format("2006-01-02"))),
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAgeDays,
				Compress:   opts.Compress,
			}
			closer = lj
			if opts.Console {
				sink = io.MultiWriter(lj, os.Stderr)
			} else {
				sink = lj
			}
		}
	}

	handler := slog.NewJSONHandler(failsafeWriter{sink}, &slog.HandlerOptions{Level: opts.MinLevel})
	return &Logger{slog: slog.New(handler), closer: closer}
}

// Component returns a child logger stamping every entry with the
// originating component name.
func (l *Logger) Component(name string) *slog.Logger {
	return l.slog.With("component", name)
}

// Close flushes and closes the underlying file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

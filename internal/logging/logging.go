// Package logging sets up the process logger: a plain text log file that
// error reports can attach, plus an optional coloured console.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// FileName is the log file created inside the log directory.
const FileName = "tender.log"

// rotateSize is the size past which the previous log is moved aside.
const rotateSize = 5 << 20

// Options configure Setup.
type Options struct {
	Dir   string
	Level slog.Level
	// Console receives a tinted copy of every record. Nil logs to the file
	// only, which is what the TUI needs since it owns the terminal.
	Console io.Writer
}

// Logger is the configured logger and the file behind it.
type Logger struct {
	*slog.Logger
	Path string
	file *os.File
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Setup opens the log file in append mode and builds the handler chain.
func Setup(opts Options) (*Logger, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("log directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(opts.Dir, FileName)
	if err := rotate(path); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(file, &slog.HandlerOptions{Level: opts.Level}),
	}
	if opts.Console != nil {
		handlers = append(handlers, tint.NewHandler(opts.Console, &tint.Options{
			Level:      opts.Level,
			TimeFormat: "15:04:05.000",
			NoColor:    !isTerminal(opts.Console),
		}))
	}

	var handler slog.Handler = handlers[0]
	if len(handlers) > 1 {
		handler = NewMultiHandler(handlers...)
	}
	return &Logger{Logger: slog.New(handler), Path: path, file: file}, nil
}

// ParseLevel maps a config string to a level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rotate(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() < rotateSize {
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

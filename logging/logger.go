// Package logging provides the structured logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mvave-bridge/config"
)

// Logger wraps slog.Logger. All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New creates a Logger for the given configuration.
//
// Output "file" appends to cfg.File (default ConfigDir/debug.log); if the
// file cannot be opened the logger falls back to stderr and says so.
func New(cfg config.LoggingConfig, version string) *Logger {
	var (
		output  io.Writer
		closer  io.Closer
		openErr error
	)
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "file":
		f, err := openLogFile(cfg.File)
		if err != nil {
			output, openErr = os.Stderr, err
		} else {
			output, closer = f, f
		}
	default:
		output = os.Stderr
	}

	l := newWithWriter(output, cfg, version)
	l.closer = closer
	if openErr != nil {
		l.Warn("log file unavailable, using stderr", "error", openErr)
	}
	return l
}

func newWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", config.AppName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		p, err := config.LogPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// parseLevel converts a string log level to slog.Level.
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a new Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), closer: l.closer}
}

// Category tags every record with category=name.
//
//	engineLog := logger.Category("engine")
func (l *Logger) Category(name string) *Logger {
	return l.With("category", name)
}

// Close releases the log file, if any. Children share the file, so only
// the root logger should be closed.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

var (
	everyMu  sync.Mutex
	counters = make(map[string]int)
)

// DebugEvery logs only every n-th call for key (use for high-frequency
// events such as pitch bends).
func (l *Logger) DebugEvery(n int, key, msg string, args ...any) {
	everyMu.Lock()
	counters[key]++
	count := counters[key]
	everyMu.Unlock()

	if n <= 1 || count%n == 0 {
		l.Debug(msg, append(args, "every", n, "count", count)...)
	}
}

// Default creates a default logger for use before settings are loaded:
// text on stderr at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}, "dev")
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// OrDefault returns l, or Default() when l is nil.
func OrDefault(l *Logger) *Logger {
	if l == nil {
		return Default()
	}
	return l
}

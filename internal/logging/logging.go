package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

const prefix = "hindsight"

// NewFile returns a logger writing to the given file path, creating parent
// directories as needed. MCP stdio mode must keep stdout for the protocol,
// so the server logs to a file; if the file cannot be opened the logger
// falls back to stderr and the returned closer is a no-op.
func NewFile(path, level string) (*log.Logger, io.Closer) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return NewStderr(level), nopCloser{}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return NewStderr(level), nopCloser{}
	}
	logger := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	logger.SetLevel(ParseLevel(level))
	return logger, f
}

// NewStderr returns a logger writing to stderr, for CLI mode.
func NewStderr(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	logger.SetLevel(ParseLevel(level))
	return logger
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// ParseLevel maps a config log level string to a log.Level. Unknown values
// fall back to info.
func ParseLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

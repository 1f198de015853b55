// Package logging builds the structured logger shared by the server, the CLI
// and the background scheduler.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

// New creates a logger at level writing JSON lines to w.
// Unknown levels fall back to info.
func New(level string, w io.Writer) *log.Logger {
	return &log.Logger{
		Level:      parseLevel(level),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Writer:     &log.IOWriter{Writer: w},
	}
}

// NewConsole creates a logger for stderr. A terminal gets colored console
// output, anything else gets JSON lines.
func NewConsole(level string) *log.Logger {
	if !log.IsTerminal(os.Stderr.Fd()) {
		return New(level, os.Stderr)
	}
	return &log.Logger{
		Level:      parseLevel(level),
		TimeFormat: "15:04:05",
		Writer: &log.ConsoleWriter{
			ColorOutput:    true,
			EndWithMessage: true,
			Writer:         os.Stderr,
		},
	}
}

// Discard creates a logger that drops everything. Used in tests.
func Discard() *log.Logger {
	return New("error", io.Discard)
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	}
	return log.InfoLevel
}

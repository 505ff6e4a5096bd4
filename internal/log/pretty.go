// Package log configures logging for both unistack processes and holds the
// attribute keys their log lines share.
package log

import (
	"io"
	"log/slog"

	cblog "github.com/charmbracelet/log"
)

// Process prefixes.
const (
	PrefixSupervisor = "supervisor"
	PrefixCore       = "core"
)

// SetupPrettyLogger installs a charmbracelet/log handler as the slog default,
// tags Console with the same prefix and returns the handler so callers can
// adjust its level.
func SetupPrettyLogger(writerForLogger io.Writer, prefix string, debug bool) *cblog.Logger {
	logHandler := cblog.NewWithOptions(
		writerForLogger,
		cblog.Options{
			Level:           cblog.InfoLevel,
			Prefix:          prefix,
			ReportTimestamp: true,
			ReportCaller:    debug,
		},
	)
	if debug {
		logHandler.SetLevel(cblog.DebugLevel)
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)
	Console.SetPrefix(ConsolePrefix(prefix))

	return logHandler
}

// Discard returns a logger that drops everything. Used where a component is
// constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDefault returns logger, or slog.Default() when it is nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Package logging builds the slog loggers shared by the intake binaries.
// Output is JSON on stdout; log pipelines key on the "service" attribute,
// so every logger carries it from construction.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger returns the process-wide logger for one intake binary.
// An unknown level string falls back to info instead of failing startup.
func NewJSONLogger(service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	logger := slog.New(handler).With("service", service)
	if host, err := os.Hostname(); err == nil {
		logger = logger.With("host", host)
	}
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

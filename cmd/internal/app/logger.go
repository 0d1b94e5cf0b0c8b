package app

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the service logger: JSON to stdout with source locations,
// tagged with the service name, level taken from LUDO_LOG_LEVEL via Config.
// Unrecognized levels fall back to info. The result is also installed as the
// slog default so packages constructed without an explicit logger still emit
// structured output.
func NewLogger(level string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     parseLogLevel(level),
		AddSource: true,
	})

	log := slog.New(h).With("service", "loveludo")
	slog.SetDefault(log)
	return log
}

func parseLogLevel(level string) slog.Level {
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

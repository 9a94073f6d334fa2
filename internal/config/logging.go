package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger from the advanced settings.
func NewLogger(w io.Writer, adv AdvancedConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(adv.LogLevel)}

	var handler slog.Handler
	if strings.EqualFold(adv.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

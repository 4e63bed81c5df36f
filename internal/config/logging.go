package config

import (
	"io"
	"log/slog"
)

// NewLogger builds the run logger from the configured level. Logs go to w
// (normally stderr) so structured stdout output stays machine-readable.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	switch normalizeEnumValue(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

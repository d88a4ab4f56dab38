package cli

import (
	"io"
	"log/slog"
)

// LogLevel maps the -v count and -q flag to a slog level. Warnings are shown
// by default so unsupported constructs are visible.
func LogLevel(verbose int, quiet bool) slog.Level {
	switch {
	case quiet:
		return slog.LevelError
	case verbose >= 2:
		return slog.LevelDebug
	case verbose == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// NewLogger returns a text logger writing to w.
func NewLogger(w io.Writer, verbose int, quiet bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: LogLevel(verbose, quiet)}))
}

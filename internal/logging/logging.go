// Package logging wires up the process-wide structured logger, grounded
// in the teacher's slog-based audit logger: JSON or text handler chosen by
// configuration, with a per-component logger handed to each subsystem.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Format selects the slog handler implementation.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// New builds a root *slog.Logger writing to w (os.Stdout in production,
// an in-memory buffer in tests) using the given format and level.
func New(w io.Writer, format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Default returns a root logger writing JSON to stdout at info level,
// the production default when no explicit configuration is supplied.
func Default() *slog.Logger {
	return New(os.Stdout, FormatJSON, slog.LevelInfo)
}

// Component returns a child logger tagged with "component", matching the
// teacher's `.With("component", ...)` convention so every log line is
// attributable to the subsystem that emitted it.
func Component(root *slog.Logger, name string) *slog.Logger {
	return root.With("component", name)
}

// ParseLevel maps the BROKERD_LOG_LEVEL values ("debug", "info", "warn",
// "error") onto slog.Level, defaulting to info for anything unrecognized.
func ParseLevel(s string) slog.Level {
	switch s {
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

// ParseFormat maps BROKERD_LOG_FORMAT onto Format, defaulting to json.
func ParseFormat(s string) Format {
	if s == string(FormatText) {
		return FormatText
	}
	return FormatJSON
}

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"

	FormatText = "text"
	FormatJSON = "json"

	// EnvLevel overrides the level passed to Configure.
	EnvLevel = "EDGEPUB_LOG_LEVEL"
	// EnvFormat selects the handler: text (default) or json.
	EnvFormat = "EDGEPUB_LOG_FORMAT"
)

// Configure installs a process-wide slog default logger writing to stderr.
//
// Supported levels: debug, info, warn, error.
func Configure(level string) error {
	return ConfigureWriter(os.Stderr, level)
}

// ConfigureWriter is Configure with an explicit destination.
func ConfigureWriter(w io.Writer, level string) error {
	if env := strings.TrimSpace(os.Getenv(EnvLevel)); env != "" {
		level = env
	}
	parsed, err := parseLevel(level)
	if err != nil {
		return err
	}
	h, err := newHandler(w, os.Getenv(EnvFormat), parsed)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func newHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return slog.NewTextHandler(w, opts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", LevelInfo:
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelWarn, "warning":
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", level)
	}
}

// Package logging builds the structured logger used by the command-line
// tools. Library packages never log through the default logger; they take a
// *slog.Logger from their caller.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/robert-malhotra/go-affy/internal/config"
)

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New returns a logger writing to w in the configured format. Every record
// carries the run identifier, which is also returned.
func New(w io.Writer, cfg config.LoggingConfig) (*slog.Logger, string, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, "", err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json", "":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, "", fmt.Errorf("unknown log format %q", cfg.Format)
	}

	runID := uuid.NewString()
	return slog.New(h).With(slog.String("run_id", runID)), runID, nil
}

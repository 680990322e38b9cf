// SPDX-License-Identifier: Apache-2.0

// Package logging builds the process-wide slog logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the project-standard logger. Dev environments get a
// text handler with source locations; prod gets JSON without them.
// LOG_LEVEL selects the level (debug/info/warn/error), defaulting to info.
func NewLogger(env string) *slog.Logger {
	return slog.New(newHandler(env, parseLevel(os.Getenv("LOG_LEVEL"))))
}

func newHandler(env string, level slog.Level) slog.Handler {
	if strings.EqualFold(strings.TrimSpace(env), "prod") {
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

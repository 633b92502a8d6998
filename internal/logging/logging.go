// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package logging builds the slog loggers used by srcseal binaries.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// DebugEnv enables debug logging when set to any value.
const DebugEnv = "SRCSEAL_DEBUG"

// ParseLevel maps a config level name to a slog level. Unknown names
// yield info. SRCSEAL_DEBUG overrides everything.
func ParseLevel(name string) slog.Level {
	if os.Getenv(DebugEnv) != "" {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// New returns a text logger for long-running processes.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// NewCLI returns a text logger for one-shot commands: no timestamps or
// level keys, and warnings only unless SRCSEAL_DEBUG is set.
func NewCLI(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv(DebugEnv) != "" {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Drop time and level for cleaner CLI output
			if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey) {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(handler)
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Setenv(DebugEnv, "")
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDebugEnvOverrides(t *testing.T) {
	t.Setenv(DebugEnv, "1")
	if got := ParseLevel("error"); got != slog.LevelDebug {
		t.Errorf("ParseLevel with %s = %v, want debug", DebugEnv, got)
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	t.Setenv(DebugEnv, "")
	var buf bytes.Buffer
	logger := New(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "key=value") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestNewCLIOmitsTimeAndLevel(t *testing.T) {
	t.Setenv(DebugEnv, "")
	var buf bytes.Buffer
	logger := NewCLI(&buf)
	logger.Info("hidden")
	logger.Warn("digest mismatch", "root", "/srv/app")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info shown in CLI logger: %q", out)
	}
	if strings.Contains(out, "time=") || strings.Contains(out, "level=") {
		t.Errorf("CLI output contains time or level: %q", out)
	}
	if !strings.Contains(out, `msg="digest mismatch" root=/srv/app`) {
		t.Errorf("unexpected output: %q", out)
	}
}

package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewTeesToFile(t *testing.T) {
	var stdout bytes.Buffer
	path := filepath.Join(t.TempDir(), "navigator.log")

	logger, closer := New(&stdout, slog.LevelInfo, FileConfig{Filename: path, MaxSizeMB: 1})
	logger.Info("waypoint reached", slog.Int("index", 3))

	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	for name, out := range map[string]string{"stdout": stdout.String(), "file": string(data)} {
		if !strings.Contains(out, `msg="waypoint reached" index=3`) {
			t.Errorf("%s output = %q", name, out)
		}
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var stdout bytes.Buffer
	var level slog.LevelVar
	level.Set(slog.LevelWarn)

	logger, closer := New(&stdout, &level, FileConfig{})
	defer closer.Close()

	logger.Info("hidden")
	level.Set(slog.LevelDebug)
	logger.Debug("shown")

	if out := stdout.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("output = %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
		"info+2": slog.LevelInfo + 2,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

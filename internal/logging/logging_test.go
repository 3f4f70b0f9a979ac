package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("TP_LOG_LEVEL", "")
	t.Setenv("TP_LOG_FORMAT", "")
	t.Setenv("TP_LOG_FILE", "")
	if got := FromEnv().Level; got != "warn" {
		t.Errorf("level without file = %q, want warn", got)
	}
	t.Setenv("TP_LOG_FILE", "/tmp/tp.log")
	if got := FromEnv().Level; got != "info" {
		t.Errorf("level with file = %q, want info", got)
	}
	t.Setenv("TP_LOG_LEVEL", "debug")
	if got := FromEnv().Level; got != "debug" {
		t.Errorf("explicit level = %q", got)
	}
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, Config{Level: "info", Format: "json"}))
	log.Debug("hidden")
	log.Info("pushed", "changes", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["msg"] != "pushed" || rec["changes"] != float64(3) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestSetupWritesFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "tp.log")
	closeLog := Setup(Config{Level: "debug", File: path})
	slog.Debug("sync: pass done", "pending", 0)
	if err := closeLog(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "sync: pass done") {
		t.Errorf("log file missing record: %q", data)
	}
}

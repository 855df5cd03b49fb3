package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type staticVerbose bool

func (v staticVerbose) IsVerbose() bool { return bool(v) }

func captureOutput(t *testing.T, format string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(&buf, format, slog.LevelDebug)
	t.Cleanup(func() { Init(os.Stderr, "text", slog.LevelDebug) })
	return &buf
}

func TestVerboseGate(t *testing.T) {
	buf := captureOutput(t, "text")

	quiet := New("loop", staticVerbose(false))
	quiet.Debug("hidden debug")
	quiet.Info("hidden info")
	quiet.Warn("visible warn")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected debug/info to be suppressed, got %q", out)
	}
	if !strings.Contains(out, "visible warn") {
		t.Errorf("Expected warn to be logged, got %q", out)
	}

	buf.Reset()
	loud := New("loop", staticVerbose(true))
	loud.Debug("frame %d", 7)
	if !strings.Contains(buf.String(), "frame 7") {
		t.Errorf("Expected formatted debug message, got %q", buf.String())
	}
}

func TestFieldsAndComponent(t *testing.T) {
	buf := captureOutput(t, "json")

	l := NewWithCallback("capture", func() bool { return true }).WithComponent("vision")
	l.InfoWithFields("classified", []Field{F("label", "goldfish"), Count(3), Error(errors.New("boom"))})

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected JSON record, got %q: %v", buf.String(), err)
	}
	if record["component"] != "vision" {
		t.Errorf("Expected component vision, got %v", record["component"])
	}
	if record["msg"] != "classified" {
		t.Errorf("Expected msg classified, got %v", record["msg"])
	}
	if record["label"] != "goldfish" {
		t.Errorf("Expected label goldfish, got %v", record["label"])
	}
	if record["count"] != float64(3) {
		t.Errorf("Expected count 3, got %v", record["count"])
	}
}

func TestDefaultComponent(t *testing.T) {
	buf := captureOutput(t, "text")

	New("", nil).Error("failed")
	if !strings.Contains(buf.String(), "component=main") {
		t.Errorf("Expected default component main, got %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "text", slog.LevelError)
	defer Init(os.Stderr, "text", slog.LevelDebug)

	New("x", staticVerbose(true)).Warn("dropped")
	if buf.Len() != 0 {
		t.Errorf("Expected warn below error level to be dropped, got %q", buf.String())
	}
}

func TestInitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "glimpse.log")
	closer, err := InitFile(path, slog.LevelInfo)
	if err != nil {
		t.Fatalf("InitFile failed: %v", err)
	}
	defer Init(os.Stderr, "text", slog.LevelDebug)

	New("cli", nil).Warn("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Expected message in log file, got %q", string(data))
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

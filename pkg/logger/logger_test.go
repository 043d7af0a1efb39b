package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"text to stdout", Config{Level: "info", Format: "text", Output: "stdout", Component: "test"}},
		{"json to stderr", Config{Level: "debug", Format: "json", Output: "stderr", Component: "test"}},
		{"invalid level falls back to info", Config{Level: "invalid", Format: "text", Output: "stdout"}},
		{"empty values use defaults", Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Level: "warn", Format: "text", Writer: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message missing")
	}
}

func TestJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Level: "info", Format: "json", Writer: &buf})

	logger.WithComponent("errors").WithRequestID("req-1").Info("error reported", "level", "warning")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	for key, want := range map[string]string{
		"service":    "errwatch",
		"component":  "errors",
		"request_id": "req-1",
		"level":      "INFO",
		"msg":        "error reported",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %s", key, entry[key], want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	logger, _ := New(Config{Component: "base"})

	child := logger.WithComponent("http")
	if child == logger {
		t.Error("WithComponent() returned same instance")
	}
	if child.Component() != "http" {
		t.Errorf("Component() = %s, want http", child.Component())
	}
}

func TestErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Format: "json", Writer: &buf})

	logger.ErrorEvent(context.Background(), "sweep failed", errors.New("disk gone"), slog.Int("purged", 0))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["error"] != "disk gone" {
		t.Errorf("error = %v", entry["error"])
	}
	if entry["error_type"] != "*errors.errorString" {
		t.Errorf("error_type = %v", entry["error_type"])
	}
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "errwatch.log")

	logger, err := New(Config{Level: "info", Format: "text", Output: logFile})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("written to file")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Error("log file missing message")
	}
}

func TestInitialize(t *testing.T) {
	globalLogger = nil
	once = sync.Once{}
	defer func() {
		globalLogger = nil
		once = sync.Once{}
	}()

	if Global() == nil {
		t.Fatal("Global() returned nil before Initialize")
	}

	if err := Initialize("", "", ""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if globalLogger == nil {
		t.Fatal("Initialize() didn't set globalLogger")
	}

	first := Global()
	if err := Initialize("debug", "json", "stderr"); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if Global() != first {
		t.Error("second Initialize() replaced the global logger")
	}

	Info("info")
	Warn("warn")
	Error("error")
	Debug("debug")
}

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level(%d).String() = '%s', expected '%s'", tt.level, got, tt.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"WARNING", LevelWarn},
		{"error", LevelError},
		{"unknown", LevelInfo}, // Default
		{"", LevelInfo},        // Default
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel('%s') = %d, expected %d", tt.input, got, tt.expected)
		}
	}
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf, Prefix: "test"})

	logger.Debug("debug %d", 1)
	logger.Info("info message")

	out := buf.String()
	if !strings.Contains(out, "msg=\"debug 1\"") {
		t.Errorf("expected formatted debug message, got %q", out)
	}
	if !strings.Contains(out, "app=test") {
		t.Errorf("expected prefix attribute, got %q", out)
	}
	if !strings.Contains(out, "level=INFO") {
		t.Errorf("expected info level, got %q", out)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered, got %q", buf.String())
	}

	logger.SetLevel(LevelDebug)
	child := logger.WithComponent("history")
	child.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("child logger should follow the parent's level")
	}
	if !strings.Contains(buf.String(), "component=history") {
		t.Errorf("expected component field, got %q", buf.String())
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	logger.WithFields(map[string]any{"stack": "undo", "depth": 2}).Info("pushed")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if rec["msg"] != "pushed" || rec["stack"] != "undo" || rec["depth"] != float64(2) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestLogger_Disable(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf})

	logger.Disable()
	logger.Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}

	logger.Enable()
	logger.Error("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Error("re-enabled logger should write")
	}

	if Nop().Enabled(LevelError) {
		t.Error("Nop logger should be disabled")
	}
}

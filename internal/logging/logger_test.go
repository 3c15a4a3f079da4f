package logging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetLogging() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels = make(map[string]*slog.LevelVar)
	isInitialized = false
	logBuffer = nil
	logCallback = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetLogging()
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"camera": "debug",
			"api":    "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"camera", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetLogging()
	early := GetLogger("early")

	Initialize(Config{Level: "debug", Modules: map[string]string{}})

	if !GetLogger("early").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected early logger to follow the configured level")
	}
	if early == GetLogger("early") {
		t.Error("Expected logger to be rebuilt by Initialize")
	}
}

func TestSetLevels(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "info"})
	logger := GetLogger("capture")
	ctx := context.Background()

	if logger.Handler().Enabled(ctx, slog.LevelDebug) {
		t.Fatal("Debug should be disabled at info")
	}

	SetLevels("info", map[string]string{"capture": "debug"})
	if !logger.Handler().Enabled(ctx, slog.LevelDebug) {
		t.Error("Expected debug enabled after SetLevels")
	}

	SetLevels("error", nil)
	if logger.Handler().Enabled(ctx, slog.LevelWarn) {
		t.Error("Expected warn disabled after raising global level")
	}
}

func TestBufferReceivesEntries(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "info"})

	var got []LogEntry
	SetLogCallback(func(e LogEntry) { got = append(got, e) })
	defer SetLogCallback(nil)

	logger := GetLogger("camera")
	logger.Info("Frame captured", "width", 64, slog.Group("roi", "x", 0), "error", errors.New("none"))
	logger.Debug("hidden")

	entries := GetBuffer().ReadAll()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 buffered entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Module != "camera" || e.Message != "Frame captured" || e.Level != "info" {
		t.Errorf("Unexpected entry %+v", e)
	}
	if e.Attributes["width"] != int64(64) {
		t.Errorf("Expected width attribute, got %v", e.Attributes["width"])
	}
	if e.Attributes["roi.x"] != int64(0) {
		t.Errorf("Expected flattened group attribute, got %v", e.Attributes)
	}
	if e.Attributes["error"] != "none" {
		t.Errorf("Expected error stringified, got %v", e.Attributes["error"])
	}
	if len(got) != 1 || got[0].Seq != e.Seq {
		t.Errorf("Expected callback with the same entry, got %v", got)
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Write(LogEntry{Message: string(rune('a' + i))})
	}
	entries := rb.ReadAll()
	if len(entries) != 3 || rb.Count() != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	var msgs []string
	for _, e := range entries {
		msgs = append(msgs, e.Message)
	}
	if strings.Join(msgs, "") != "cde" {
		t.Errorf("Expected oldest-first cde, got %v", msgs)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{" error ", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatLogLine(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	line := FormatLogLine(LogEntry{
		Timestamp:  ts,
		Level:      "warn",
		Module:     "camera",
		Message:    "Teardown step failed",
		Attributes: map[string]any{"step": "close", "code": 1},
	})
	want := "2026-01-02T03:04:05Z [WARN] [camera] Teardown step failed code=1 step=close"
	if line != want {
		t.Errorf("FormatLogLine() = %q, want %q", line, want)
	}
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestMultiHandlerFansOut(t *testing.T) {
	var console, file bytes.Buffer
	handler := multiHandler{
		slog.NewJSONHandler(&console, nil),
		slog.NewJSONHandler(&file, nil),
	}

	logger := slog.New(handler)
	logger.Info("Record updated", "record", "home.example.com")

	for name, buf := range map[string]*bytes.Buffer{"console": &console, "file": &file} {
		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("%s sink did not receive valid JSON: %v", name, err)
		}
		if entry["record"] != "home.example.com" {
			t.Errorf("%s sink missing attribute, got %v", name, entry)
		}
	}
}

func TestMultiHandlerRespectsLevels(t *testing.T) {
	var debugSink, infoSink bytes.Buffer
	handler := multiHandler{
		slog.NewJSONHandler(&debugSink, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&infoSink, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}

	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected handler enabled at debug when any sink accepts it")
	}

	slog.New(handler).Debug("noisy")
	if debugSink.Len() == 0 {
		t.Error("Expected debug sink to receive the record")
	}
	if infoSink.Len() != 0 {
		t.Error("Expected info sink to drop the debug record")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.expected {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	logBuffer = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"stream": "debug",
			"api":    "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"stream", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			gotDebug := handler.Enabled(context.Background(), slog.LevelDebug)
			gotInfo := handler.Enabled(context.Background(), slog.LevelInfo)
			gotWarn := handler.Enabled(context.Background(), slog.LevelWarn)

			if gotDebug != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, gotDebug, tt.wantDebug)
			}
			if gotInfo != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, gotInfo, tt.wantInfo)
			}
			if gotWarn != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, gotWarn, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	// Before Initialize the module defaults to info level.
	loggerBefore := GetLogger("decoder")
	handlerBefore := loggerBefore.Handler()
	if handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Logger created before Initialize should not have debug enabled")
	}

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"decoder": "debug",
		},
	})

	loggerAfter := GetLogger("decoder")
	if loggerBefore != loggerAfter {
		t.Error("Logger should be cached - same pointer before and after Initialize")
	}
	if !handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Cached logger should have debug enabled after Initialize updates the LevelVar")
	}
}

func TestFanoutRespectsSinkLevels(t *testing.T) {
	var buf bytes.Buffer

	debugSink := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoSink := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(fanout{debugSink, infoSink}).With("module", "test")

	// Only the debug sink admits this record.
	logger.Debug("debug only message")
	if count := strings.Count(buf.String(), "debug only message"); count != 1 {
		t.Errorf("Expected 1 debug message, got %d. Output: %s", count, buf.String())
	}

	// Both sinks admit info, so the record lands twice.
	buf.Reset()
	logger.Info("info message")
	if count := strings.Count(buf.String(), "info message"); count != 2 {
		t.Errorf("Expected 2 copies of info message, got %d. Output: %s", count, buf.String())
	}
}

func TestBufferHandlerCapturesEntries(t *testing.T) {
	buffer := NewRingBuffer(8)
	handler := NewBufferHandler(buffer, slog.LevelInfo)
	logger := slog.New(handler).With("module", "stream")

	logger.Info("Stream connected", "stream", 0, "error", context.Canceled)
	logger.Debug("filtered out")

	entries := buffer.ReadAll()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 buffered entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Module != "stream" {
		t.Errorf("Expected module stream, got %q", e.Module)
	}
	if e.Level != "info" {
		t.Errorf("Expected level info, got %q", e.Level)
	}
	if e.Message != "Stream connected" {
		t.Errorf("Unexpected message %q", e.Message)
	}
	if got := e.Attributes["stream"]; got != int64(0) {
		t.Errorf("Expected stream attribute 0, got %v (%T)", got, got)
	}
	if got := e.Attributes["error"]; got != context.Canceled.Error() {
		t.Errorf("Expected error flattened to string, got %v", got)
	}
}

func TestRingBufferWrapsAround(t *testing.T) {
	buffer := NewRingBuffer(3)
	for i := range 5 {
		buffer.Write(LogEntry{Message: string(rune('a' + i)), Timestamp: time.Now()})
	}

	if buffer.Count() != 3 {
		t.Fatalf("Expected count 3 after wraparound, got %d", buffer.Count())
	}

	entries := buffer.ReadAll()
	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.Message
	}
	want := []string{"c", "d", "e"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected oldest-first %v, got %v", want, got)
		}
	}
}

func TestRingBufferLast(t *testing.T) {
	buffer := NewRingBuffer(4)
	for i := range 6 {
		buffer.Write(LogEntry{Message: string(rune('a' + i))})
	}

	last := buffer.Last(2)
	if len(last) != 2 || last[0].Message != "e" || last[1].Message != "f" {
		t.Errorf("Last(2) = %v, want [e f]", last)
	}

	// Asking for more than buffered returns everything.
	if got := buffer.Last(100); len(got) != 4 {
		t.Errorf("Last(100) returned %d entries, want 4", len(got))
	}
	if got := buffer.Last(0); len(got) != 4 {
		t.Errorf("Last(0) returned %d entries, want 4", len(got))
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil {
				t.Errorf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
			} else if *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}

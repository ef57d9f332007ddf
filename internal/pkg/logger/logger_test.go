package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v (%q)", err, buf.String())
	}
	return entry
}

func TestFormats(t *testing.T) {
	tests := []struct {
		format   string
		levelKey string
		msgKey   string
		warnName string
	}{
		{FormatJSON, "level", "msg", "WARN"},
		{"", "level", "msg", "WARN"},
		{FormatCloud, "severity", "message", "WARNING"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: "info", Format: tt.format, Output: &buf, ServiceName: "videoproc-test"})
			log.Warn("engine slow", "speed", "0.4x")

			entry := decode(t, &buf)
			if entry[tt.msgKey] != "engine slow" {
				t.Errorf("expected %s='engine slow', got %v", tt.msgKey, entry)
			}
			if entry[tt.levelKey] != tt.warnName {
				t.Errorf("expected %s=%s, got %v", tt.levelKey, tt.warnName, entry[tt.levelKey])
			}
			if entry["service"] != "videoproc-test" || entry["speed"] != "0.4x" {
				t.Errorf("missing attributes: %v", entry)
			}
		})
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: "info", Format: "TEXT", Output: &buf}).Info("staged", "object", "cat.mp4")
	if !strings.Contains(buf.String(), "msg=staged") || !strings.Contains(buf.String(), "object=cat.mp4") {
		t.Errorf("unexpected text output %q", buf.String())
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logFn     func(*Logger)
		shouldLog bool
	}{
		{"info logs info", "info", func(l *Logger) { l.Info("test") }, true},
		{"info drops debug", "info", func(l *Logger) { l.Debug("test") }, false},
		{"debug logs debug", "debug", func(l *Logger) { l.Debug("test") }, true},
		{"warning drops info", "warning", func(l *Logger) { l.Info("test") }, false},
		{"error logs error", "error", func(l *Logger) { l.Error("test") }, true},
		{"error drops warn", "error", func(l *Logger) { l.Warn("test") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFn(New(Config{Level: tt.level, Output: &buf}))
			if got := buf.Len() > 0; got != tt.shouldLog {
				t.Errorf("expected shouldLog=%v, got %v", tt.shouldLog, got)
			}
		})
	}
}

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	log.WithRequestID("req-1").
		WithJobID("job-2").
		WithComponent("transcoder").
		WithObject("cat.mp4").
		WithStage("converting").
		Info("test message")

	entry := decode(t, &buf)
	want := map[string]string{
		"request_id": "req-1",
		"job_id":     "job-2",
		"component":  "transcoder",
		"object":     "cat.mp4",
		"stage":      "converting",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("expected %s=%q, got %v", k, v, entry[k])
		}
	}
}

func TestEmptyValuesAreSkipped(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	if log.WithJobID("") != log {
		t.Error("WithJobID(\"\") should return the same logger")
	}
	log.WithObject("").Info("test message")
	if _, ok := decode(t, &buf)["object"]; ok {
		t.Error("empty object attribute logged")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-abc")
	ctx = ContextWithJobID(ctx, "job-xyz")
	log.FromContext(ctx).Info("test message")

	entry := decode(t, &buf)
	if entry["request_id"] != "req-abc" || entry["job_id"] != "job-xyz" {
		t.Errorf("context IDs missing: %v", entry)
	}

	buf.Reset()
	log.FromContext(context.Background()).Info("bare")
	entry = decode(t, &buf)
	if _, ok := entry["request_id"]; ok {
		t.Errorf("unexpected request_id in %v", entry)
	}
}

func TestContextIDs(t *testing.T) {
	ctx := ContextWithJobID(ContextWithRequestID(context.Background(), "req-789"), "job-101")
	if got := RequestIDFromContext(ctx); got != "req-789" {
		t.Errorf("RequestIDFromContext = %q", got)
	}
	if got := JobIDFromContext(ctx); got != "job-101" {
		t.Errorf("JobIDFromContext = %q", got)
	}
	if JobIDFromContext(context.Background()) != "" {
		t.Error("expected empty job id")
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	if log.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected discard logger to drop error records")
	}
	log.Error("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %s, expected %s", tt.input, got, tt.expected)
			}
		})
	}
}

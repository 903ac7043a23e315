package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONLoggerRedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatJSON, Output: &buf, Level: slog.LevelInfo})

	logger.Info("worker started", slog.String("manifest_secret", "super-secret-value"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON line, got error: %v, line: %s", err, buf.String())
	}
	if entry["manifest_secret"] != "[REDACTED]" {
		t.Fatalf("expected manifest_secret to be redacted, got %v", entry["manifest_secret"])
	}
	if entry["service"] != "mpsim" {
		t.Fatalf("expected default service name mpsim, got %v", entry["service"])
	}
}

func TestWithJobAttachesScenarioAndTrial(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: FormatJSON, Output: &buf})
	ctx := NewContext(context.Background(), base)

	ctx = WithJob(ctx, "baseline", 3)
	FromContext(ctx).Info("engine started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON line: %v", err)
	}
	if entry["scenario"] != "baseline" {
		t.Fatalf("expected scenario baseline, got %v", entry["scenario"])
	}
	if entry["trial"].(float64) != 3 {
		t.Fatalf("expected trial 3, got %v", entry["trial"])
	}
	if ScenarioFromContext(ctx) != "baseline" {
		t.Fatalf("expected ScenarioFromContext to return baseline")
	}
}

func TestErrorContextIncludesCallerAndMessage(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: FormatText, Output: &buf})
	ctx := NewContext(context.Background(), base)

	ErrorContext(ctx, "conversion failed", errors.New("unsupported conversion"))

	out := buf.String()
	if !strings.Contains(out, "conversion failed") || !strings.Contains(out, "unsupported conversion") {
		t.Fatalf("expected log line to contain message and error, got: %s", out)
	}
}

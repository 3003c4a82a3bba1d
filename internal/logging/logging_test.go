package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", "info", "development")

	ctx := WithRequestID(context.Background(), "abc123")
	logger.InfoContext(ctx, "hello", "k", "v")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("not JSON: %v: %s", err, buf.String())
	}
	if entry["msg"] != "hello" || entry["k"] != "v" || entry["rid"] != "abc123" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNew_ProductionForcesJSON(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "text", "info", "production").Info("x")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", "warn", "development")
	logger.Info("dropped")
	logger.With("component", "test").Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "kept") || !strings.Contains(out, "component=test") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	if rid := RequestIDFromContext(context.Background()); rid != "" {
		t.Fatalf("got %q, want empty", rid)
	}
}

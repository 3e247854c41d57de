package utils

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("connection refused")
	err := NewAppError("rounds.fetch", KindUpstream, "upstream unreachable", base)
	wrapped := fmt.Errorf("cycle: %w", err)

	if got := KindOf(wrapped); got != KindUpstream {
		t.Fatalf("expected upstream kind, got %s", got)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected wrapped error to unwrap to base")
	}
	if got := KindOf(base); got != KindInternal {
		t.Fatalf("expected internal kind for plain error, got %s", got)
	}
	if !strings.Contains(err.Error(), "rounds.fetch: upstream unreachable") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestNewLoggerToRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn", true)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("expected JSON warn line, got %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug {
		t.Fatalf("expected debug level")
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("expected info default")
	}
}

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleHandlerIncludesComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	scoped := NewComponentLogger(logger, "mediacache")
	scoped.Info("cache hit", String(FieldCacheKey, "abc123"), String(FieldKind, "audio"))

	line := buf.String()
	if !strings.Contains(line, "mediacache: cache hit") {
		t.Errorf("line missing component prefix: %q", line)
	}
	if !strings.Contains(line, "cache_key=abc123") || !strings.Contains(line, "kind=audio") {
		t.Errorf("line missing attrs: %q", line)
	}
}

func TestJSONFormatSelected(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "loud") {
		t.Error("warn should pass at warn level")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("should vanish", Error(nil))
}

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"error":   slog.LevelError,
		"WARNING": slog.LevelWarn,
		" info ":  slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"":        slog.LevelDebug,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Fatalf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriterFormats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWithWriter(&buf, "warn", "json").With("component", "cycle").Warn("feed broken", "feed", "cs.IR")
	NewWithWriter(&buf, "warn", "json").Info("dropped")

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("expected a single json record: %v (%s)", err, buf.String())
	}
	if record["component"] != "cycle" || record["msg"] != "feed broken" {
		t.Fatalf("unexpected record %v", record)
	}

	buf.Reset()
	NewWithWriter(&buf, "info", "text").Info("cycle finished", "processed", 2)
	if !strings.Contains(buf.String(), "processed=2") {
		t.Fatalf("unexpected text output %q", buf.String())
	}
}

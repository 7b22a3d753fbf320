package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("failed to parse log line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

// TestLogger_IncludesOpFields verifies operation fields are present in log output.
func TestLogger_IncludesOpFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.WithOp(OpMeta{Service: "sophia", Op: "fetch", Key: "sophia:0123456789abcdef"}).
		Info(context.Background(), "fetch completed", Field{Key: "duration_ms", Value: 12.0})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]

	want := map[string]any{
		"msg":         "fetch completed",
		"level":       "INFO",
		"service":     "sophia",
		"op":          "fetch",
		"key":         "sophia:0123456789abcdef",
		"duration_ms": 12.0,
	}
	for k, v := range want {
		if e[k] != v {
			t.Errorf("%s = %v, want %v", k, e[k], v)
		}
	}
}

// TestLogger_RedactsSensitiveFields verifies credentials and cookies never reach output.
func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Info(context.Background(), "login",
		Field{Key: "password", Value: "hunter2"},
		Field{Key: "secret", Value: "hunter2"},
		Field{Key: "cookieString", Value: "_sophia_session=S; auth_token=A"},
		Field{Key: "AuthToken", Value: "A"},
		Field{Key: "sessionCookie", Value: "S"},
		Field{Key: "api_key", Value: "k"},
		Field{Key: "status", Value: 200},
	)

	out := buf.String()
	for _, leaked := range []string{"hunter2", "auth_token=A", `"A"`, `"S"`, `"k"`} {
		if strings.Contains(out, leaked) {
			t.Errorf("output leaked %s: %s", leaked, out)
		}
	}

	e := decodeLines(t, &buf)[0]
	if e["password"] != "[REDACTED]" || e["AuthToken"] != "[REDACTED]" {
		t.Errorf("sensitive fields not redacted: %v", e)
	}
	if e["status"] != 200.0 {
		t.Errorf("status = %v, want 200", e["status"])
	}
}

// TestLogger_LevelFiltering verifies messages below the level are dropped.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %s", len(entries), buf.String())
	}
	if entries[0]["msg"] != "warn" || entries[1]["msg"] != "error" {
		t.Errorf("unexpected entries: %v", entries)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"WARN", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
		{"", "INFO"},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in).String(); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Info(context.Background(), "ignored", Field{Key: "secret", Value: "x"})
	if l.WithOp(OpMeta{Service: "s"}) == nil {
		t.Fatal("WithOp should return non-nil logger")
	}
}

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestManagerLoggerWarnIncludesFields(t *testing.T) {
	var buf bytes.Buffer
	l := ManagerLogger{Log: zerolog.New(&buf)}

	l.Warn("dropped", "tag", "A", "reason", "timeout")

	out := buf.String()
	if !strings.Contains(out, `"tag":"A"`) {
		t.Fatalf("expected tag field in output, got %s", out)
	}
	if !strings.Contains(out, `"reason":"timeout"`) {
		t.Fatalf("expected reason field in output, got %s", out)
	}
}

func TestManagerLoggerErrorIgnoresOddKV(t *testing.T) {
	var buf bytes.Buffer
	l := ManagerLogger{Log: zerolog.New(&buf)}

	l.Error("failed", "tag")

	if buf.Len() == 0 {
		t.Fatalf("expected a log line even with a dangling kv")
	}
}

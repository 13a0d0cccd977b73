package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerWithServiceStampsEntries(t *testing.T) {
	l := NewLoggerWithService("svc-a")
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.WithField("k", "v").Info("hello")

	out := buf.String()
	if !strings.Contains(out, `"service":"svc-a"`) {
		t.Fatalf("expected service field on entry, got %s", out)
	}
	if !strings.Contains(out, `"k":"v"`) {
		t.Fatalf("expected caller field on entry, got %s", out)
	}
}

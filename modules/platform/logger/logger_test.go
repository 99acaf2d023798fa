package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WARN, nil, "chat")
	l.AddOutput(&buf)

	l.Info("hidden")
	l.Warn("socket %s dropped", "c-1")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("info written at warn level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "WARN: [chat] socket c-1 dropped") {
		t.Errorf("output = %q", buf.String())
	}

	l.SetLevel(DEBUG)
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "DEBUG: [chat] now visible") {
		t.Errorf("debug missing after SetLevel: %q", buf.String())
	}
}

func TestWithSharesOutputs(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger(INFO, nil, "fred-chat")
	root.AddOutput(&buf)

	root.With("presenter").Error("boom")
	if !strings.Contains(buf.String(), "ERROR: [presenter] boom") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": DEBUG, "WARNING": WARN, "error": ERROR, "": INFO, "loud": INFO}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

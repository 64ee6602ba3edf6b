package log_test

import (
	"bytes"
	"strings"
	"testing"

	"mousecap/internal/log"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, log.WARN)

	logger.Debug("debug message")
	logger.Info("info message")
	if buf.Len() != 0 {
		t.Fatalf("suppressed levels produced output: %q", buf.String())
	}

	logger.Warn("warn message")
	logger.Error("error message")
	out := buf.String()
	if !strings.Contains(out, "[WARN] warn message") {
		t.Errorf("missing warn line: %q", out)
	}
	if !strings.Contains(out, "[ERROR] error message") {
		t.Errorf("missing error line: %q", out)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, log.ERROR)

	logger.Debug("hidden")
	logger.SetLevel(log.DEBUG)
	logger.Debug("answer is %d", 42)
	if !strings.Contains(buf.String(), "[DEBUG] answer is 42") {
		t.Errorf("missing debug line: %q", buf.String())
	}
}

func TestLevelFromString(t *testing.T) {
	cases := map[string]log.LogLevel{
		"error":   log.ERROR,
		"WARN":    log.WARN,
		"warning": log.WARN,
		" info ":  log.INFO,
		"debug":   log.DEBUG,
		"bogus":   log.INFO,
		"":        log.INFO,
	}
	for in, want := range cases {
		if got := log.LevelFromString(in); got != want {
			t.Errorf("LevelFromString(%q): got %d, want %d", in, got, want)
		}
	}
}

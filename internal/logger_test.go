package internal

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LogLevelDebug},
		{"INFO", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"bogus", LogLevelInfo},
		{"", LogLevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLogLevel(tc.input); got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, expected %v", tc.input, got, tc.want)
		}
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelWarn)

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")

	output := buf.String()
	if strings.Contains(output, "debug line") || strings.Contains(output, "info line") {
		t.Errorf("Levels below warn should be suppressed: %s", output)
	}
	if !strings.Contains(output, "warn line") || !strings.Contains(output, "error line") {
		t.Errorf("Warn and error lines should be written: %s", output)
	}
}

func TestCookieRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug)

	logger.Info("sending Cookie: ndus=SECRETVALUE123; lang=en")

	output := buf.String()
	if strings.Contains(output, "SECRETVALUE123") {
		t.Errorf("Cookie value leaked into log output: %s", output)
	}
	if !strings.Contains(output, "[REDACTED]") {
		t.Errorf("Expected redaction placeholder in output: %s", output)
	}
}

func TestURLRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug)

	logger.LogAttempt("GET", "https://terabox.com/share/list?jsToken=ABCDEF123&shorturl=1AbC", 1, "status 200")

	output := buf.String()
	if strings.Contains(output, "ABCDEF123") {
		t.Errorf("jsToken leaked into log output: %s", output)
	}
	if !strings.Contains(output, "shorturl=1AbC") {
		t.Errorf("Non-sensitive parameters should survive redaction: %s", output)
	}
}

type staticRedactor struct{}

func (staticRedactor) Redact(input string) string {
	return strings.ReplaceAll(input, "hunter2", "*******")
}

func TestAddRedactor(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelInfo)
	logger.AddRedactor(staticRedactor{})

	logger.Info("password is hunter2")

	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("Custom redactor was not applied: %s", buf.String())
	}
}

func TestLoggerFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "warn"

	logger := NewLoggerFromConfig(cfg)
	if logger.Level() != LogLevelWarn {
		t.Errorf("Expected warn level, got %v", logger.Level())
	}

	cfg.EnableDebug = true
	logger = NewLoggerFromConfig(cfg)
	if logger.Level() != LogLevelDebug {
		t.Errorf("Debug flag should raise the level, got %v", logger.Level())
	}

	cfg.QuietMode = true
	logger = NewLoggerFromConfig(cfg)
	if logger.Level() != LogLevelError {
		t.Errorf("Quiet mode should drop to error level, got %v", logger.Level())
	}
}

package internal

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// LogLevel represents different logging levels.
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a level name to a LogLevel, defaulting to info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Redactor removes sensitive material from a log line before it is written.
type Redactor interface {
	Redact(input string) string
}

// CookieRedactor redacts session cookie and authorization values.
type CookieRedactor struct{}

// Redact implements Redactor.
func (r *CookieRedactor) Redact(input string) string {
	markers := []string{
		"ndus=",
		"BDUSS=",
		"csrfToken=",
		"Cookie:",
		"Set-Cookie:",
		"Authorization:",
		"Bearer ",
		"x-api-key:",
	}
	return redactAfter(input, markers, func(c byte) bool {
		return c == ' ' || c == ';' || c == '\n' || c == '\r'
	})
}

// URLRedactor redacts sensitive URL query parameters.
type URLRedactor struct{}

// Redact implements Redactor.
func (r *URLRedactor) Redact(input string) string {
	markers := []string{
		"access_token=",
		"refresh_token=",
		"client_secret=",
		"jsToken=",
		"sign=",
		"token=",
		"key=",
	}
	return redactAfter(input, markers, func(c byte) bool {
		return c == '&' || c == ' ' || c == '\n'
	})
}

// redactAfter replaces everything between each marker and the next delimiter
// with a placeholder.
func redactAfter(input string, markers []string, isDelim func(byte) bool) string {
	result := input
	for _, marker := range markers {
		lower := strings.ToLower(result)
		index := strings.Index(lower, strings.ToLower(marker))
		if index == -1 {
			continue
		}
		start := index + len(marker)
		end := start
		for end < len(result) && !isDelim(result[end]) {
			end++
		}
		if end > start {
			result = result[:start] + "[REDACTED]" + result[end:]
		}
	}
	return result
}

// SecureLogger is a leveled logger that redacts tokens, cookies and signed
// URLs before writing. It is constructed explicitly and passed to each
// component; there is no process-wide logger instance.
type SecureLogger struct {
	logger    *log.Logger
	level     LogLevel
	redactors []Redactor
}

// NewSecureLogger creates a logger writing to output at the given level.
func NewSecureLogger(output io.Writer, level LogLevel) *SecureLogger {
	return &SecureLogger{
		logger: log.New(output, "", 0),
		level:  level,
		redactors: []Redactor{
			&CookieRedactor{},
			&URLRedactor{},
		},
	}
}

// NewLoggerFromConfig builds a logger from the logging section of a Config.
// A configured log file falls back to stderr when it cannot be opened.
func NewLoggerFromConfig(cfg *Config) *SecureLogger {
	level := ParseLogLevel(cfg.LogLevel)
	if cfg.EnableDebug {
		level = LogLevelDebug
	}
	if cfg.QuietMode {
		level = LogLevelError
	}

	var output io.Writer = os.Stderr
	if cfg.LogFile != "" {
		if file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			output = file
		}
	}
	return NewSecureLogger(output, level)
}

// NopLogger returns a logger that discards everything. Used in tests.
func NopLogger() *SecureLogger {
	return NewSecureLogger(io.Discard, LogLevelError)
}

// AddRedactor registers an extra redactor.
func (sl *SecureLogger) AddRedactor(r Redactor) {
	sl.redactors = append(sl.redactors, r)
}

// SetLevel changes the logging level.
func (sl *SecureLogger) SetLevel(level LogLevel) {
	sl.level = level
}

// Level returns the current logging level.
func (sl *SecureLogger) Level() LogLevel {
	return sl.level
}

func (sl *SecureLogger) write(level LogLevel, format string, args ...interface{}) {
	if level > sl.level {
		return
	}
	message := fmt.Sprintf(format, args...)
	for _, r := range sl.redactors {
		message = r.Redact(message)
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	sl.logger.Printf("[%s] %s %s", timestamp, level.String(), message)
}

// Error logs an error message.
func (sl *SecureLogger) Error(format string, args ...interface{}) {
	sl.write(LogLevelError, format, args...)
}

// Warn logs a warning message.
func (sl *SecureLogger) Warn(format string, args ...interface{}) {
	sl.write(LogLevelWarn, format, args...)
}

// Info logs an info message.
func (sl *SecureLogger) Info(format string, args ...interface{}) {
	sl.write(LogLevelInfo, format, args...)
}

// Debug logs a debug message.
func (sl *SecureLogger) Debug(format string, args ...interface{}) {
	sl.write(LogLevelDebug, format, args...)
}

// LogAttempt records one transport attempt: method, url, attempt number and
// outcome, with sensitive query parameters redacted.
func (sl *SecureLogger) LogAttempt(method, url string, attempt int, outcome string) {
	sl.Debug("http %s %s attempt=%d outcome=%s", method, url, attempt, outcome)
}

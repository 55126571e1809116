package internal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different classes of extraction failures.
type ErrorType int

const (
	ErrInvalidURL ErrorType = iota
	ErrExtraction
	ErrDownload
	ErrNetworkTimeout
	ErrRateLimit
	ErrAuthRequired
	ErrInvalidResponse
	ErrFileNotFound
	ErrQuotaExceeded
)

// String returns the string representation of ErrorType.
func (et ErrorType) String() string {
	switch et {
	case ErrInvalidURL:
		return "InvalidURL"
	case ErrExtraction:
		return "Extraction"
	case ErrDownload:
		return "Download"
	case ErrNetworkTimeout:
		return "NetworkTimeout"
	case ErrRateLimit:
		return "RateLimit"
	case ErrAuthRequired:
		return "AuthRequired"
	case ErrInvalidResponse:
		return "InvalidResponse"
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrQuotaExceeded:
		return "QuotaExceeded"
	default:
		return "Unknown"
	}
}

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of ErrorSeverity.
func (es ErrorSeverity) String() string {
	switch es {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ExtractError is the shared error shape for every backend. Code carries the
// upstream errno or HTTP status when one exists.
type ExtractError struct {
	Code       int           `json:"errno"`
	Message    string        `json:"errmsg"`
	Type       ErrorType     `json:"type"`
	Severity   ErrorSeverity `json:"severity"`
	URL        string        `json:"url,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
	RetryAfter int           `json:"retry_after,omitempty"` // seconds
}

// Error implements the error interface.
func (e *ExtractError) Error() string {
	parts := []string{fmt.Sprintf("%s error (code %d)", e.Type.String(), e.Code)}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}
	return strings.Join(parts, " - ")
}

// ShortMessage returns a compact, user-facing message that still identifies
// the failure class, so callers can tell transient network failures from
// permanent extraction failures.
func (e *ExtractError) ShortMessage() string {
	if e.Message == "" {
		return e.Type.String()
	}
	return fmt.Sprintf("%s: %s", strings.ToLower(e.Type.String()), e.Message)
}

// IsRetryable reports whether repeating the call could plausibly succeed.
func (e *ExtractError) IsRetryable() bool {
	switch e.Type {
	case ErrNetworkTimeout, ErrRateLimit:
		return true
	case ErrInvalidResponse:
		return e.Code >= 500
	default:
		return false
	}
}

// WithURL attaches the request URL (redacted when logged).
func (e *ExtractError) WithURL(url string) *ExtractError {
	e.URL = url
	return e
}

// WithSuggestion attaches a remediation hint.
func (e *ExtractError) WithSuggestion(s string) *ExtractError {
	e.Suggestion = s
	return e
}

// WithRetryAfter sets the retry delay hint for rate-limit errors.
func (e *ExtractError) WithRetryAfter(seconds int) *ExtractError {
	e.RetryAfter = seconds
	return e
}

// NewExtractError creates an ExtractError with a default severity per type.
func NewExtractError(code int, message string, errorType ErrorType) *ExtractError {
	return &ExtractError{
		Code:     code,
		Message:  message,
		Type:     errorType,
		Severity: defaultSeverity(errorType),
	}
}

func defaultSeverity(errorType ErrorType) ErrorSeverity {
	switch errorType {
	case ErrRateLimit, ErrNetworkTimeout:
		return SeverityWarning
	case ErrQuotaExceeded:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// AsExtractError unwraps err into an *ExtractError when possible.
func AsExtractError(err error) (*ExtractError, bool) {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// ValidationError represents input validation failures.
type ValidationError struct {
	Field      string      `json:"field"`
	Message    string      `json:"message"`
	Value      interface{} `json:"value,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
	if e.Suggestion != "" {
		msg += " - Suggestion: " + e.Suggestion
	}
	return msg
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// WithSuggestion attaches a remediation hint.
func (e *ValidationError) WithSuggestion(s string) *ValidationError {
	e.Suggestion = s
	return e
}

// Common constructors.

// NewInvalidURLError flags a malformed or unsupported share URL.
func NewInvalidURLError(url, reason string) *ExtractError {
	return NewExtractError(400, fmt.Sprintf("invalid share URL: %s", reason), ErrInvalidURL).
		WithURL(url).
		WithSuggestion("Provide a valid share link, e.g. https://terabox.com/s/1AbC123")
}

// NewExtractionFailedError flags a permanent extraction failure (short-code
// not found, zero files, relay refused).
func NewExtractionFailedError(code int, reason string) *ExtractError {
	return NewExtractError(code, reason, ErrExtraction).
		WithSuggestion("Verify the share link is still valid, or switch to a different backend")
}

// NewDownloadLinkError flags a failed link-generation call.
func NewDownloadLinkError(reason string) *ExtractError {
	return NewExtractError(0, reason, ErrDownload).
		WithSuggestion("Link generation is best-effort; retrying the request is safe")
}

// NewNetworkTimeoutError flags a connectivity failure after retries.
func NewNetworkTimeoutError(operation string) *ExtractError {
	return NewExtractError(408, fmt.Sprintf("network failure during %s", operation), ErrNetworkTimeout).
		WithSuggestion("Check your connection and try again, or configure a proxy")
}

// NewRateLimitError flags an upstream 429 after retries.
func NewRateLimitError(retryAfter int) *ExtractError {
	return NewExtractError(429, "rate limit exceeded", ErrRateLimit).
		WithRetryAfter(retryAfter).
		WithSuggestion(fmt.Sprintf("Wait %d seconds before retrying", retryAfter))
}

// NewAuthRequiredError flags missing or expired credentials.
func NewAuthRequiredError(message string) *ExtractError {
	return NewExtractError(401, message, ErrAuthRequired).
		WithSuggestion("Supply a valid session cookie or API credentials for this backend")
}

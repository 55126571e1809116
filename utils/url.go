package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"teraext/internal"
)

// ShareRef is an immutable reference to a share: the user-supplied URL plus
// the canonical short-code derived from it. The short-code is stable across
// the service's mirror domains.
type ShareRef struct {
	OriginalURL string
	Domain      string
	ShortCode   string
}

// ShortURL returns the short-code in the "1"-prefixed form the listing APIs
// expect in their shorturl parameter.
func (r *ShareRef) ShortURL() string {
	return "1" + r.ShortCode
}

// String returns a string representation of the ShareRef.
func (r *ShareRef) String() string {
	return fmt.Sprintf("ShareRef{Domain: %s, ShortCode: %s}", r.Domain, r.ShortCode)
}

// URLValidator validates share URLs against the recognized mirror domains
// and extracts the canonical short-code.
type URLValidator struct {
	domainTokens []string
}

var shortCodePattern = regexp.MustCompile(`/s/1([a-zA-Z0-9_-]+)`)

// NewURLValidator creates a validator for the given domain tokens. Passing
// nil uses the default mirror list.
func NewURLValidator(domainTokens []string) *URLValidator {
	if len(domainTokens) == 0 {
		domainTokens = internal.DefaultConfig().DomainTokens
	}
	return &URLValidator{domainTokens: domainTokens}
}

// Validate checks that the URL is well-formed and contains one of the
// recognized domain substrings, case-insensitively.
func (v *URLValidator) Validate(rawURL string) error {
	if rawURL == "" {
		return internal.NewValidationError("url", "URL cannot be empty")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return internal.NewValidationError("url", fmt.Sprintf("invalid URL format: %v", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return internal.NewValidationError("url", "URL must use http or https")
	}

	host := strings.ToLower(parsed.Hostname())
	for _, token := range v.domainTokens {
		if strings.Contains(host, strings.ToLower(token)) {
			return nil
		}
	}
	return internal.NewInvalidURLError(rawURL, fmt.Sprintf("unrecognized domain: %s", host))
}

// Parse validates the URL and derives its canonical short-code from either
// the /s/1Xxxx path form or the surl query parameter.
func (v *URLValidator) Parse(rawURL string) (*ShareRef, error) {
	if err := v.Validate(rawURL); err != nil {
		return nil, err
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, internal.NewValidationError("url", fmt.Sprintf("failed to parse URL: %v", err))
	}

	code := extractShortCode(parsed)
	if code == "" {
		return nil, internal.NewExtractionFailedError(0, "unable to derive short-code from share URL")
	}
	return &ShareRef{
		OriginalURL: rawURL,
		Domain:      strings.ToLower(parsed.Hostname()),
		ShortCode:   code,
	}, nil
}

// extractShortCode pulls the short-code out of a parsed share URL. The surl
// query form carries the code without the leading "1"; the /s/ path form
// carries it with one.
func extractShortCode(parsed *url.URL) string {
	if surl := parsed.Query().Get("surl"); surl != "" {
		return strings.TrimPrefix(surl, "1")
	}
	if matches := shortCodePattern.FindStringSubmatch(parsed.Path); len(matches) > 1 {
		return matches[1]
	}
	// Last resort: an /s/ path without the customary "1" prefix.
	if idx := strings.Index(parsed.Path, "/s/"); idx != -1 {
		code := strings.Trim(parsed.Path[idx+len("/s/"):], "/")
		if code != "" {
			return code
		}
	}
	return ""
}

// NormalizeShareKey reduces a share URL to its domain-agnostic cache key so
// the same content reached via different mirrors maps to one entry. Falls
// back to the raw string for inputs no short-code can be derived from.
func NormalizeShareKey(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if code := extractShortCode(parsed); code != "" {
		return code
	}
	return rawURL
}

package utils

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"teraext/internal"
)

// Retryable HTTP statuses and methods per the transport contract.
var (
	retryStatuses = map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
	retryMethods = map[string]bool{
		http.MethodGet:     true,
		http.MethodHead:    true,
		http.MethodOptions: true,
		http.MethodPost:    true,
	}
)

// TransportConfig contains configuration for the HTTP transport.
type TransportConfig struct {
	Timeout     time.Duration
	MaxRetries  int // retries after the first attempt
	BackoffBase time.Duration
	BackoffMax  time.Duration
	UserAgents  []string
	ProxyURL    string
	// BrowserFingerprint switches the transport into browser-emulation
	// mode: every request carries a full browser header fingerprint. Used
	// only for endpoints behind bot detection (the signing relay).
	BrowserFingerprint bool
	// Rand drives backoff jitter and is injectable so retry behavior is
	// reproducible under test. Defaults to a time-seeded source.
	Rand *rand.Rand
}

// Request describes one outgoing call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Params  url.Values
	Body    []byte
	Cookies []*http.Cookie
}

// Transport is the shared HTTP layer: one pooled client per instance, bounded
// retries with exponential backoff, and a new user agent on every attempt.
// An instance is intended for one logical extraction at a time; concurrent
// callers should use separate instances.
type Transport struct {
	client      *http.Client
	logger      *internal.SecureLogger
	userAgents  []string
	uaStart     int
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration
	browser     bool
	rng         *rand.Rand

	// sleep is replaced in tests to observe backoff without waiting.
	sleep func(time.Duration)
}

// NewTransport creates a transport from config. A nil logger discards logs.
func NewTransport(cfg *TransportConfig, logger *internal.SecureLogger) *Transport {
	if logger == nil {
		logger = internal.NopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 1 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = internal.DefaultConfig().UserAgentList
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if cfg.ProxyURL != "" {
		if err := configureProxy(transport, cfg.ProxyURL); err != nil {
			logger.Warn("ignoring proxy %s: %v", cfg.ProxyURL, err)
		}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &Transport{
		client:      client,
		logger:      logger,
		userAgents:  cfg.UserAgents,
		uaStart:     rng.Intn(len(cfg.UserAgents)),
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
		browser:     cfg.BrowserFingerprint,
		rng:         rng,
		sleep:       time.Sleep,
	}
}

// NewTransportFromConfig builds a transport from the application config.
func NewTransportFromConfig(cfg *internal.Config, logger *internal.SecureLogger, browser bool) *Transport {
	return NewTransport(&TransportConfig{
		Timeout:            cfg.HTTPTimeout,
		MaxRetries:         cfg.MaxRetries,
		BackoffBase:        cfg.BackoffBase,
		BackoffMax:         cfg.BackoffMax,
		UserAgents:         cfg.UserAgentList,
		ProxyURL:           cfg.ProxyURL,
		BrowserFingerprint: browser,
	}, logger)
}

// configureProxy sets up http/https/socks5 proxying for the transport.
func configureProxy(transport *http.Transport, proxyURL string) error {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsed)
	case "socks5":
		dialer, err := proxy.SOCKS5("tcp", parsed.Host, nil, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 proxy: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", parsed.Scheme)
	}
	return nil
}

// UserAgentForAttempt returns the user agent used on a given attempt. The
// attempt index selects deterministically from the pool so retry behavior is
// reproducible.
func (t *Transport) UserAgentForAttempt(attempt int) string {
	return t.userAgents[(t.uaStart+attempt-1)%len(t.userAgents)]
}

// Get performs a GET with retry logic.
func (t *Transport) Get(rawURL string, headers map[string]string) (*http.Response, error) {
	return t.Do(&Request{Method: http.MethodGet, URL: rawURL, Headers: headers})
}

// Head performs a HEAD with retry logic, following redirects.
func (t *Transport) Head(rawURL string, headers map[string]string) (*http.Response, error) {
	return t.Do(&Request{Method: http.MethodHead, URL: rawURL, Headers: headers})
}

// Do executes the request with bounded retries. Statuses outside the retry
// set are returned to the caller unchanged; exhausting the retry budget
// surfaces a NetworkTimeout or RateLimit error.
func (t *Transport) Do(req *Request) (*http.Response, error) {
	fullURL := req.URL
	if len(req.Params) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + req.Params.Encode()
	}

	var lastErr error
	var lastStatus int

	totalAttempts := t.maxRetries + 1
	for attempt := 1; attempt <= totalAttempts; attempt++ {
		if attempt > 1 {
			t.sleep(t.backoffDelay(attempt - 1))
		}

		httpReq, err := t.buildRequest(req, fullURL, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := t.client.Do(httpReq)
		if err != nil {
			lastErr = err
			t.logger.LogAttempt(req.Method, fullURL, attempt, fmt.Sprintf("error: %v", err))
			if !isRetryableNetError(err) || !retryMethods[req.Method] {
				return nil, internal.NewNetworkTimeoutError(fmt.Sprintf("%s %s", req.Method, req.URL)).WithURL(fullURL)
			}
			continue
		}

		if retryStatuses[resp.StatusCode] && retryMethods[req.Method] {
			lastStatus = resp.StatusCode
			lastErr = nil
			resp.Body.Close()
			t.logger.LogAttempt(req.Method, fullURL, attempt, fmt.Sprintf("status %d, will retry", resp.StatusCode))
			continue
		}

		t.logger.LogAttempt(req.Method, fullURL, attempt, fmt.Sprintf("status %d", resp.StatusCode))
		return resp, nil
	}

	if lastStatus == http.StatusTooManyRequests {
		return nil, internal.NewRateLimitError(int(t.backoffMax / time.Second)).WithURL(fullURL)
	}
	if lastStatus != 0 {
		return nil, internal.NewExtractError(lastStatus,
			fmt.Sprintf("upstream kept returning %d after %d attempts", lastStatus, totalAttempts),
			internal.ErrNetworkTimeout).WithURL(fullURL)
	}
	return nil, internal.NewNetworkTimeoutError(
		fmt.Sprintf("%s %s after %d attempts: %v", req.Method, req.URL, totalAttempts, lastErr)).WithURL(fullURL)
}

// buildRequest constructs a fresh http.Request for one attempt, selecting the
// attempt's user agent and the header fingerprint for the transport mode.
func (t *Transport) buildRequest(req *Request, fullURL string, attempt int) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequest(req.Method, fullURL, body)
	if err != nil {
		return nil, internal.NewInvalidURLError(req.URL, err.Error())
	}

	httpReq.Header.Set("User-Agent", t.UserAgentForAttempt(attempt))
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Connection", "keep-alive")
	if t.browser {
		// Full browser fingerprint for endpoints behind bot detection.
		httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		httpReq.Header.Set("Sec-Ch-Ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`)
		httpReq.Header.Set("Sec-Ch-Ua-Mobile", "?0")
		httpReq.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)
		httpReq.Header.Set("Sec-Fetch-Dest", "document")
		httpReq.Header.Set("Sec-Fetch-Mode", "navigate")
		httpReq.Header.Set("Sec-Fetch-Site", "none")
		httpReq.Header.Set("Sec-Fetch-User", "?1")
		httpReq.Header.Set("Upgrade-Insecure-Requests", "1")
	} else {
		httpReq.Header.Set("Accept", "application/json, text/plain, */*")
		httpReq.Header.Set("Sec-Fetch-Dest", "empty")
		httpReq.Header.Set("Sec-Fetch-Mode", "cors")
		httpReq.Header.Set("Sec-Fetch-Site", "same-origin")
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	for _, cookie := range req.Cookies {
		httpReq.AddCookie(cookie)
	}
	return httpReq, nil
}

// backoffDelay computes the pause before retry n (1-based):
// base * 2^(n-1) plus 0.1..0.5s of jitter, capped at the configured maximum.
func (t *Transport) backoffDelay(retry int) time.Duration {
	delay := float64(t.backoffBase) * math.Pow(2, float64(retry-1))
	jitter := (0.1 + t.rng.Float64()*0.4) * float64(time.Second)
	delay += jitter
	if delay > float64(t.backoffMax) {
		delay = float64(t.backoffMax)
	}
	return time.Duration(delay)
}

// isRetryableNetError reports whether a client error is worth retrying.
func isRetryableNetError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"temporary failure",
		"i/o timeout",
		"eof",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

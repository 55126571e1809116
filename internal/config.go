package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the full application configuration. It is built once by the
// caller and passed explicitly to every component; the core keeps no
// process-wide mutable state.
type Config struct {
	// Transport
	HTTPTimeout   time.Duration
	MaxRetries    int // retries after the first attempt
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	UserAgentList []string
	ProxyURL      string

	// Share URL validation
	DomainTokens []string

	// Upstream endpoints
	APIBaseURL        string
	OpenAPIBaseURL    string
	RelayBaseURL      string
	CommercialBaseURL string

	// Credentials (collaborator-supplied)
	Cookie           string // raw session cookie for the cookie backend
	CommercialAPIKey string
	ClientID         string
	ClientSecret     string
	PrivateSecret    string
	AccessToken      string

	// Response cache
	CacheDir      string
	CacheTTLHours float64

	// Logging
	LogLevel    string
	EnableDebug bool
	QuietMode   bool
	LogFile     string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout: 30 * time.Second,
		MaxRetries:  3,
		BackoffBase: 1 * time.Second,
		BackoffMax:  30 * time.Second,
		UserAgentList: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/120.0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		},
		DomainTokens: []string{
			"terabox",
			"teraboxapp",
			"1024tera",
			"4funbox",
			"mirrobox",
			"nephobox",
			"freeterabox",
			"momerybox",
			"tibibox",
		},
		APIBaseURL:        "https://www.terabox.app",
		OpenAPIBaseURL:    "https://www.terabox.com",
		RelayBaseURL:      "https://terabox.hnn.workers.dev",
		CommercialBaseURL: "https://terabox-downloader-direct-download-link-generator.p.rapidapi.com",
		CacheDir:          defaultCacheDir(),
		CacheTTLHours:     12,
		LogLevel:          "info",
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + string(os.PathSeparator) + "teraext"
	}
	return ".teraext-cache"
}

// LoadFromEnv overrides configuration from TERAEXT_* environment variables.
func (c *Config) LoadFromEnv() {
	if timeout := os.Getenv("TERAEXT_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			c.HTTPTimeout = time.Duration(t) * time.Second
		}
	}
	if retries := os.Getenv("TERAEXT_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil && r >= 0 {
			c.MaxRetries = r
		}
	}
	if cookie := os.Getenv("TERAEXT_COOKIE"); cookie != "" {
		c.Cookie = cookie
	}
	if key := os.Getenv("TERAEXT_API_KEY"); key != "" {
		c.CommercialAPIKey = key
	}
	if id := os.Getenv("TERAEXT_CLIENT_ID"); id != "" {
		c.ClientID = id
	}
	if secret := os.Getenv("TERAEXT_CLIENT_SECRET"); secret != "" {
		c.ClientSecret = secret
	}
	if secret := os.Getenv("TERAEXT_PRIVATE_SECRET"); secret != "" {
		c.PrivateSecret = secret
	}
	if token := os.Getenv("TERAEXT_ACCESS_TOKEN"); token != "" {
		c.AccessToken = token
	}
	if proxy := os.Getenv("TERAEXT_PROXY"); proxy != "" {
		c.ProxyURL = proxy
	}
	if dir := os.Getenv("TERAEXT_CACHE_DIR"); dir != "" {
		c.CacheDir = dir
	}
	if ttl := os.Getenv("TERAEXT_CACHE_TTL_HOURS"); ttl != "" {
		if v, err := strconv.ParseFloat(ttl, 64); err == nil && v > 0 {
			c.CacheTTLHours = v
		}
	}
	if relay := os.Getenv("TERAEXT_RELAY_URL"); relay != "" {
		c.RelayBaseURL = relay
	}
	if level := os.Getenv("TERAEXT_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if debug := os.Getenv("TERAEXT_DEBUG"); debug != "" {
		c.EnableDebug = debug == "true" || debug == "1"
	}
	if quiet := os.Getenv("TERAEXT_QUIET"); quiet != "" {
		c.QuietMode = quiet == "true" || quiet == "1"
	}
	if logFile := os.Getenv("TERAEXT_LOG_FILE"); logFile != "" {
		c.LogFile = logFile
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid http timeout: %v (must be > 0)", c.HTTPTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries: %d (must be >= 0)", c.MaxRetries)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("invalid backoff base: %v (must be > 0)", c.BackoffBase)
	}
	if len(c.UserAgentList) == 0 {
		return fmt.Errorf("user agent list cannot be empty")
	}
	if len(c.DomainTokens) == 0 {
		return fmt.Errorf("domain token list cannot be empty")
	}
	if c.CacheTTLHours <= 0 {
		return fmt.Errorf("invalid cache ttl: %v hours (must be > 0)", c.CacheTTLHours)
	}
	return nil
}

package internal

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Expected 3 default retries, got %d", cfg.MaxRetries)
	}
	if cfg.CacheTTLHours != 12 {
		t.Errorf("Expected 12 hour default TTL, got %v", cfg.CacheTTLHours)
	}
	if len(cfg.UserAgentList) < 2 {
		t.Error("Expected a rotation pool of user agents")
	}
	if len(cfg.DomainTokens) == 0 {
		t.Error("Expected default mirror domain tokens")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TERAEXT_TIMEOUT", "60")
	t.Setenv("TERAEXT_RETRIES", "5")
	t.Setenv("TERAEXT_COOKIE", "ndus=abc")
	t.Setenv("TERAEXT_CACHE_TTL_HOURS", "0.5")
	t.Setenv("TERAEXT_RELAY_URL", "http://127.0.0.1:9999")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.HTTPTimeout != 60*time.Second {
		t.Errorf("Expected 60s timeout, got %v", cfg.HTTPTimeout)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("Expected 5 retries, got %d", cfg.MaxRetries)
	}
	if cfg.Cookie != "ndus=abc" {
		t.Errorf("Expected cookie from env, got %q", cfg.Cookie)
	}
	if cfg.CacheTTLHours != 0.5 {
		t.Errorf("Expected 0.5 hour TTL, got %v", cfg.CacheTTLHours)
	}
	if cfg.RelayBaseURL != "http://127.0.0.1:9999" {
		t.Errorf("Expected relay URL override, got %q", cfg.RelayBaseURL)
	}
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("TERAEXT_TIMEOUT", "not-a-number")
	t.Setenv("TERAEXT_RETRIES", "-2")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("Garbage timeout should keep the default, got %v", cfg.HTTPTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Negative retries should keep the default, got %d", cfg.MaxRetries)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero timeout")
	}

	cfg = DefaultConfig()
	cfg.UserAgentList = nil
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty user agent list")
	}

	cfg = DefaultConfig()
	cfg.CacheTTLHours = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for negative cache TTL")
	}
}

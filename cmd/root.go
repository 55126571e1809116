// Package cmd wires the CLI surface over the extraction core.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"teraext/cache"
	"teraext/extractor"
	"teraext/internal"
)

var (
	backendName string
	cookiesPath string
	proxyURL    string
	quiet       bool
	debug       bool
	logLevel    string
	logFile     string
	cacheDir    string
)

var rootCmd = &cobra.Command{
	Use:     "teraext",
	Short:   "Extract file listings and download links from Terabox share URLs",
	Version: "v1.0.0",
	Long: `TeraExt resolves Terabox share links into file trees and direct download
links through several interchangeable backends.

Backends:
  scrape      anonymous page scraping (default, no credentials)
  cookie      authenticated session via a Netscape cookie file
  relay       community signing relay with premium link support
  official    Terabox open platform OAuth API
  commercial  paid third-party extraction API

Examples:
  teraext extract https://terabox.com/s/1AbC123
  teraext extract -b relay https://1024tera.com/s/1AbC123
  teraext links -b relay --fs-id 1234 --auth auth.json
  teraext download https://terabox.com/s/1AbC123 -o movie.mp4
  teraext serve -p 8080

Environment Variables:
  TERAEXT_COOKIE       Raw session cookie string
  TERAEXT_API_KEY      Commercial API key
  TERAEXT_CLIENT_ID    Official API client id
  TERAEXT_PROXY        Proxy URL
  TERAEXT_CACHE_DIR    Response cache directory

DISCLAIMER: Respect Terabox's Terms of Service and copyright laws.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&backendName, "backend", "b", "scrape", "Extraction backend (scrape, cookie, relay, official, commercial)")
	rootCmd.PersistentFlags().StringVarP(&cookiesPath, "cookies", "c", "", "Path to Netscape-format cookie file (env: TERAEXT_COOKIE for raw value)")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS proxy URL (env: TERAEXT_PROXY)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress informational output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (env: TERAEXT_DEBUG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug, info, warn, error) (env: TERAEXT_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (env: TERAEXT_LOG_FILE)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Response cache directory (env: TERAEXT_CACHE_DIR)")
}

// buildConfig merges defaults, environment, and flags in that order.
func buildConfig() (*internal.Config, error) {
	cfg := internal.DefaultConfig()
	cfg.LoadFromEnv()

	if cookiesPath != "" {
		cookie, err := extractor.LoadCookieFile(cookiesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load cookies: %w", err)
		}
		cfg.Cookie = cookie
	}
	if proxyURL != "" {
		cfg.ProxyURL = proxyURL
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if debug {
		cfg.EnableDebug = true
		cfg.LogLevel = "debug"
	}
	if quiet {
		cfg.QuietMode = true
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func selectedBackend() (internal.Backend, error) {
	return internal.ParseBackend(backendName)
}

// buildExtractor assembles the facade plus its response cache. Cache setup
// failures degrade to an uncached extractor rather than aborting.
func buildExtractor(cfg *internal.Config, logger *internal.SecureLogger) (*extractor.Extractor, internal.ResponseCache) {
	store, err := cache.New(cfg.CacheDir, cfg.CacheTTLHours, logger)
	if err != nil {
		logger.Warn("response cache disabled: %v", err)
		return extractor.New(cfg, logger, nil), nil
	}
	return extractor.New(cfg, logger, store), store
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

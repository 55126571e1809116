package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"teraext/cache"
	"teraext/internal"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		fmt.Printf("removed %d expired entries\n", store.SweepExpired())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		fmt.Printf("removed %d entries\n", store.Clear())
		return nil
	},
}

func openCache() (*cache.Store, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	logger := internal.NewLoggerFromConfig(cfg)
	store, err := cache.New(cfg.CacheDir, cfg.CacheTTLHours, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return store, nil
}

func init() {
	cacheCmd.AddCommand(cacheSweepCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"teraext/api"
	"teraext/internal"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local extraction API",
	Long: `Serve the extraction core over HTTP on localhost.

Endpoints:
  GET    /api/health       liveness check
  POST   /api/extract      {"url": "...", "backend": "scrape"}
  POST   /api/links        {"fs_id": "...", "backend": "...", "auth": {...}}
  POST   /api/cache/sweep  remove expired cache entries
  DELETE /api/cache        remove all cache entries

Examples:
  teraext serve
  teraext serve -p 8080 -b relay`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		logger := internal.NewLoggerFromConfig(cfg)
		ext, store := buildExtractor(cfg, logger)

		server := api.NewServer(ext, store, logger, servePort)
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		if !cfg.QuietMode {
			fmt.Printf("Listening on http://%s\n", server.ActualAddr())
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		return server.Stop()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8299, "Port to listen on (0 picks a free port)")
	rootCmd.AddCommand(serveCmd)
}

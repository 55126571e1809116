package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"teraext/downloader"
	"teraext/extractor"
	"teraext/internal"
	"teraext/utils"
)

var (
	downloadOutput string
	downloadRate   string
)

var downloadCmd = &cobra.Command{
	Use:   "download <URL>",
	Short: "Extract a share URL and download its first file",
	Long: `Resolve a share URL, pick the first file in the tree, generate download
links, and save the fastest available link to disk.

Examples:
  teraext download https://terabox.com/s/1AbC123
  teraext download -b relay -o movie.mp4 -r 5M https://terabox.com/s/1AbC123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		backend, err := selectedBackend()
		if err != nil {
			return err
		}

		var rateLimitBytes int64
		if downloadRate != "" {
			rateLimitBytes, err = utils.ParseRateLimit(downloadRate)
			if err != nil {
				return fmt.Errorf("invalid rate limit format (use 1M, 500K, 2G): %w", err)
			}
		}

		logger := internal.NewLoggerFromConfig(cfg)
		ext, _ := buildExtractor(cfg, logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			logger.Info("interrupt received, cancelling download")
			cancel()
		}()

		result := ext.Extract(args[0], backend)
		if result.Status != internal.StatusSuccess {
			return fmt.Errorf("extraction failed: %s", result.ErrorMessage)
		}
		file := firstFile(result.FileTree)
		if file == nil {
			return fmt.Errorf("share contains no downloadable files")
		}
		logger.Info("selected %s (%d bytes)", file.Name, file.Size)

		links := ext.GenerateLinks(file.FsID, result.Auth, backend)
		if links.Status != internal.StatusSuccess {
			return fmt.Errorf("link generation failed: %s", links.ErrorMessage)
		}
		directURL := bestLink(links, backend)
		if directURL == "" {
			return fmt.Errorf("no usable download link returned")
		}

		outputPath := downloadOutput
		if outputPath == "" {
			outputPath = file.Name
		}

		engine := downloader.NewEngine(
			utils.NewTransportFromConfig(cfg, logger, backend == internal.BackendRelay),
			logger,
			downloader.Options{RateLimit: rateLimitBytes, Quiet: cfg.QuietMode},
		)
		summary, err := engine.Download(ctx, directURL, outputPath)
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		if !cfg.QuietMode {
			fmt.Println(summary)
		}
		return nil
	},
}

// firstFile walks the tree depth-first and returns the first regular file.
func firstFile(tree []*internal.FileNode) *internal.FileNode {
	for _, node := range tree {
		if !node.IsDir {
			return node
		}
		if found := firstFile(node.Children); found != nil {
			return found
		}
	}
	return nil
}

// bestLink prefers the fastest rank. Relay fast links are wrapped for the
// indirection layer, so they are unwrapped before fetching; a wrapped link
// that cannot be unwrapped is skipped rather than fetched as-is.
func bestLink(links *internal.DownloadLinkSet, backend internal.Backend) string {
	for _, rank := range []internal.LinkRank{internal.RankFast, internal.RankMedium, internal.RankSlow} {
		link, ok := links.Links[rank]
		if !ok || link == "" {
			continue
		}
		if backend == internal.BackendRelay && rank == internal.RankFast {
			raw, err := extractor.UnwrapLink(link)
			if err != nil {
				continue
			}
			return raw
		}
		return link
	}
	return ""
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "Output file path (default: the file's own name)")
	downloadCmd.Flags().StringVarP(&downloadRate, "limit-rate", "r", "", "Bandwidth limit (e.g., 5M for 5MB/s)")
	rootCmd.AddCommand(downloadCmd)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"teraext/internal"
)

var extractCmd = &cobra.Command{
	Use:   "extract <URL>",
	Short: "Resolve a share URL into its file tree and auth bundle",
	Long: `Resolve a Terabox share URL with the selected backend and print the
file tree, auth bundle, and any traversal warnings as JSON.

The result is always printed; a failed extraction carries status "failed"
and an error message instead of a file list.

Examples:
  teraext extract https://terabox.com/s/1AbC123
  teraext extract -b cookie -c cookies.txt https://terabox.com/s/1AbC123
  teraext extract -b commercial https://4funbox.com/s/1AbC123`,
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
		logger := internal.NewLoggerFromConfig(cfg)

		ext, _ := buildExtractor(cfg, logger)
		result := ext.Extract(args[0], backend)

		if err := printJSON(result); err != nil {
			return err
		}
		if result.Status != internal.StatusSuccess {
			os.Exit(1)
		}
		for _, warning := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", warning.Path, warning.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

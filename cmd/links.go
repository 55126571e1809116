package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"teraext/internal"
)

var (
	linksFsID     string
	linksAuthPath string
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Generate download links for a file from a saved auth bundle",
	Long: `Generate ranked download links for a single file using the auth bundle
from a previous extract run.

The auth file is the "auth" object of an extract result, saved as JSON.
Backends that need credentials beyond the bundle (cookie, relay, official,
commercial) read them from the environment as usual.

Examples:
  teraext extract https://terabox.com/s/1AbC123 > result.json
  jq .auth result.json > auth.json
  teraext links -b relay --fs-id 123456789 --auth auth.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if linksFsID == "" {
			return fmt.Errorf("--fs-id is required")
		}
		if linksAuthPath == "" {
			return fmt.Errorf("--auth is required")
		}

		data, err := os.ReadFile(linksAuthPath)
		if err != nil {
			return fmt.Errorf("failed to read auth file: %w", err)
		}
		var auth internal.AuthBundle
		if err := json.Unmarshal(data, &auth); err != nil {
			return fmt.Errorf("failed to parse auth file: %w", err)
		}

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
		links := ext.GenerateLinks(linksFsID, &auth, backend)

		if err := printJSON(links); err != nil {
			return err
		}
		if links.Status != internal.StatusSuccess {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	linksCmd.Flags().StringVar(&linksFsID, "fs-id", "", "Filesystem id of the file (from extract output)")
	linksCmd.Flags().StringVar(&linksAuthPath, "auth", "", "Path to JSON auth bundle from a previous extract")
	rootCmd.AddCommand(linksCmd)
}

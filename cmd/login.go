package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"teraext/internal"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Obtain an official API token via the device-code flow",
	Long: `Run the official API device-code flow. Prints a verification URL and
user code, then polls until the account is linked or the code expires.

Requires TERAEXT_CLIENT_ID, TERAEXT_CLIENT_SECRET, and
TERAEXT_PRIVATE_SECRET to be set.

Example:
  teraext login
  export TERAEXT_ACCESS_TOKEN=<token from output>
  teraext extract -b official https://terabox.com/s/1AbC123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		logger := internal.NewLoggerFromConfig(cfg)
		ext, _ := buildExtractor(cfg, logger)
		official := ext.Official()

		dc, err := official.RequestDeviceCode()
		if err != nil {
			return fmt.Errorf("failed to request device code: %w", err)
		}

		fmt.Printf("Visit %s and enter code: %s\n", dc.VerificationURL, dc.UserCode)
		fmt.Printf("Waiting for authorization (expires in %ds)...\n", dc.ExpiresIn)

		tokens, err := official.PollDeviceToken(dc)
		if err != nil {
			return fmt.Errorf("device authorization failed: %w", err)
		}

		fmt.Printf("\nAccess token:  %s\n", tokens.AccessToken)
		fmt.Printf("Refresh token: %s\n", tokens.RefreshToken)
		fmt.Printf("Expires in:    %ds\n", tokens.ExpiresIn)
		fmt.Printf("\nexport TERAEXT_ACCESS_TOKEN=%s\n", tokens.AccessToken)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

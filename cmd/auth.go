package cmd

import (
	"atlauth/internal/config"
	"atlauth/internal/oauth"

	"github.com/spf13/cobra"
)

// authCmd represents the auth command group.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Atlassian authentication",
	Long: `Manage Atlassian authentication for atlauth.

The auth command group drives the OAuth 2.0 (3LO) setup flow, reports the
resolved credential configuration, and clears stored tokens.

Examples:
  atlauth auth setup     # Run the interactive OAuth authorization flow
  atlauth auth status    # Show resolved credentials and token state
  atlauth auth clear     # Delete stored OAuth tokens`,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

// loadConfigAndStore loads the configuration and opens the file-backed
// token store shared by the auth subcommands.
func loadConfigAndStore() (*config.Config, *oauth.TokenStore, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := oauth.NewTokenStore(oauth.TokenStoreConfig{FileMode: true})
	if err != nil {
		return nil, nil, err
	}

	return cfg, store, nil
}

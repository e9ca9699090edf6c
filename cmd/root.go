package cmd

import (
	"os"

	"atlauth/internal/config"
	"atlauth/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	logLevel   string
	configPath string
)

// rootCmd represents the base command for the atlauth application.
var rootCmd = &cobra.Command{
	Use:   "atlauth",
	Short: "Authenticated session broker for Atlassian Jira and Confluence",
	Long: `atlauth brokers authenticated access to Atlassian Jira and Confluence
for MCP server deployments: it detects instance topology (Cloud vs
Server/Data-Center), resolves credentials by priority, manages the OAuth 2.0
(3LO) token lifecycle, and isolates per-request header-derived identities
from the shared session cache.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logging.ParseLevel(logLevel), os.Stderr)
		if configPath == "" {
			path, err := config.GetDefaultConfigPath()
			if err != nil {
				return err
			}
			configPath = path
		}
		return nil
	},
}

// SetVersion sets the version for the root command. Called from main to
// inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "atlauth version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default ~/.config/atlauth)")
	rootCmd.AddCommand(newVersionCmd())
}

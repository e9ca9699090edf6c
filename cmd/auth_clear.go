package cmd

import (
	"fmt"

	"atlauth/internal/oauth"

	"github.com/spf13/cobra"
)

// authClearCmd represents the auth clear command.
var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete stored OAuth tokens",
	Long: `Delete all stored OAuth tokens. The next session requiring OAuth will
fail until 'atlauth auth setup' is run again.`,
	RunE: runAuthClear,
}

func init() {
	authCmd.AddCommand(authClearCmd)
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	store, err := oauth.NewTokenStore(oauth.TokenStoreConfig{FileMode: true})
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	fmt.Println("Stored tokens cleared.")
	return nil
}

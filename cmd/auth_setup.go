package cmd

import (
	"context"
	"fmt"

	"atlauth/internal/oauth"
	"atlauth/internal/retry"

	"github.com/spf13/cobra"
)

var setupNoBrowserWait bool

// authSetupCmd represents the auth setup command.
var authSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the interactive OAuth 2.0 authorization flow",
	Long: `Run the interactive OAuth 2.0 (3LO) authorization flow.

setup prints an authorization URL to open in your browser, starts a loopback
callback listener on the configured redirect URI, exchanges the returned code
for tokens, and persists them for later sessions.

Requires ATLASSIAN_OAUTH_CLIENT_ID and ATLASSIAN_OAUTH_CLIENT_SECRET (or the
equivalent config.yaml entries). The cloud ID is discovered automatically
when not configured.`,
	RunE: runAuthSetup,
}

func init() {
	authSetupCmd.Flags().BoolVar(&setupNoBrowserWait, "no-wait", false,
		"Print the authorization URL and exit without waiting for the callback")
	authCmd.AddCommand(authSetupCmd)
}

func runAuthSetup(cmd *cobra.Command, args []string) error {
	cfg, store, err := loadConfigAndStore()
	if err != nil {
		return err
	}
	if !cfg.OAuth.Configured() {
		return fmt.Errorf("OAuth is not configured: set %s and %s",
			"ATLASSIAN_OAUTH_CLIENT_ID", "ATLASSIAN_OAUTH_CLIENT_SECRET")
	}

	manager := oauth.NewManager(oauth.ManagerConfig{
		OAuth:       cfg.OAuth,
		HTTPTimeout: cfg.HTTPTimeout,
		RetryPolicy: retry.DefaultPolicy(),
		Store:       store,
	})

	authReq, err := manager.Authorize()
	if err != nil {
		return fmt.Errorf("failed to start authorization flow: %w", err)
	}

	fmt.Println("Open the following URL in your browser to authorize access:")
	fmt.Println()
	fmt.Println("  " + authReq.URL)
	fmt.Println()

	if setupNoBrowserWait {
		fmt.Println("Re-run without --no-wait to complete the flow interactively.")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), oauth.CallbackTimeout)
	defer cancel()

	callback, err := oauth.NewCallbackServer(cfg.OAuth.RedirectURI)
	if err != nil {
		return err
	}
	if err := callback.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("Waiting for the callback on %s ...\n", cfg.OAuth.RedirectURI)

	result, err := callback.WaitForCallback(ctx)
	if err != nil {
		return fmt.Errorf("authorization callback not received: %w", err)
	}
	if result.IsError() {
		return fmt.Errorf("authorization failed: %s (%s)", result.Error, result.ErrorDescription)
	}

	creds, err := manager.ExchangeCode(ctx, result.Code, authReq.CodeVerifier, result.State)
	if err != nil {
		return err
	}

	o := creds.OAuth()
	fmt.Println()
	fmt.Println("Authorization complete.")
	fmt.Printf("  Cloud ID:      %s\n", o.CloudID)
	fmt.Printf("  Token expires: %s\n", o.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Println()
	fmt.Println("Tokens are stored and will be refreshed automatically.")
	return nil
}

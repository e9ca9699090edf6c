package cmd

import (
	"fmt"
	"time"

	"atlauth/internal/broker"
	"atlauth/internal/config"
	"atlauth/internal/credentials"
	"atlauth/internal/instance"

	"github.com/spf13/cobra"
)

// authStatusCmd represents the auth status command.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show resolved credentials and token state",
	Long: `Show which credential variant resolves for each configured service,
the detected instance topology, and OAuth token expiry. Secret values are
never printed.`,
	RunE: runAuthStatus,
}

func init() {
	authCmd.AddCommand(authStatusCmd)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, store, err := loadConfigAndStore()
	if err != nil {
		return err
	}

	b := broker.New(cfg, store)
	defer b.Close()

	for _, svc := range []*config.ServiceConfig{&cfg.Jira, &cfg.Confluence} {
		fmt.Printf("%s:\n", svc.Name)
		if !svc.Configured() {
			fmt.Println("  not configured")
			continue
		}
		fmt.Printf("  url:         %s\n", svc.URL)

		override, err := instance.ParseOverride(svc.InstanceOverride)
		if err != nil {
			fmt.Printf("  instance:    error: %v\n", err)
			continue
		}
		profile, err := instance.Detect(svc.URL, override)
		if err != nil {
			fmt.Printf("  instance:    error: %v\n", err)
			continue
		}
		fmt.Printf("  instance:    %s\n", profile.Kind)

		creds, err := credentials.Resolve(svc, &cfg.OAuth)
		if err != nil {
			fmt.Printf("  credentials: %v\n", err)
			continue
		}
		creds = b.OAuthManager().Hydrate(creds)
		fmt.Printf("  credentials: %s\n", creds)

		if o := creds.OAuth(); o != nil {
			switch {
			case o.AccessToken == "":
				fmt.Println("  token:       none (run 'atlauth auth setup')")
			case o.ExpiresAt.IsZero():
				fmt.Println("  token:       held, expiry unknown")
			case time.Now().After(o.ExpiresAt):
				fmt.Printf("  token:       expired %s\n", o.ExpiresAt.Format(time.RFC3339))
			default:
				fmt.Printf("  token:       valid until %s\n", o.ExpiresAt.Format(time.RFC3339))
			}
		}
	}

	return nil
}

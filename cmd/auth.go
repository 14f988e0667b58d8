package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/crm-enrich/pkg/zoho"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Inspect CRM credentials",
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Exchange the refresh token and report credential health",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Zoho.ClientID == "" || cfg.Zoho.ClientSecret == "" || cfg.Zoho.RefreshToken == "" {
			return eris.New("zoho client_id, client_secret and refresh_token are required")
		}

		tokens := zoho.NewTokenManager(zoho.Credentials{
			ClientID:     cfg.Zoho.ClientID,
			ClientSecret: cfg.Zoho.ClientSecret,
			RefreshToken: cfg.Zoho.RefreshToken,
			AccountsURL:  cfg.Zoho.AccountsURL,
		})
		defer tokens.Close()

		if err := tokens.Initialize(cmd.Context()); err != nil {
			return eris.Wrap(err, "token exchange failed")
		}

		status := tokens.Status()
		fmt.Println("credentials: ok")
		fmt.Printf("api domain:  %s\n", status.APIDomain)
		fmt.Printf("expires at:  %s (in %s)\n",
			status.ExpiresAt.Format(time.RFC3339),
			time.Until(status.ExpiresAt).Round(time.Second))
		return nil
	},
}

func init() {
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

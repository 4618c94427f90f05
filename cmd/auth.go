package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mindstream/mindstream/internal/auth"
	"github.com/mindstream/mindstream/internal/orgs"
	"github.com/spf13/cobra"
)

// privateKeyFile is the key the connected app trusts, stored per org.
const privateKeyFile = "server.key"

// newAuthCmd creates the 'auth' command group.
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Token operations for the selected org",
	}
	cmd.AddCommand(newAuthTokenCmd())
	return cmd
}

// newAuthTokenCmd creates the 'auth token' subcommand, which runs the full
// JWT bearer exchange and prints the resulting Data Cloud token.
func newAuthTokenCmd() *cobra.Command {
	var orgName string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Acquires and prints a Data Cloud access token",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			org, err := currentOrg(appInstance, orgName)
			if err != nil {
				return err
			}
			tokens, err := acquireTokens(cmd.Context(), appInstance, org)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "access_token: %s\ninstance_url: %s\n",
				tokens.AccessToken, tokens.InstanceURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&orgName, "org", "", "org username (defaults to the current org)")
	return cmd
}

// acquireTokens signs a bearer assertion with the org's private key and
// trades it for a Data Cloud token set.
func acquireTokens(ctx context.Context, appInstance App, org orgs.Org) (auth.TokenSet, error) {
	cfg := appInstance.GetConfig().Auth

	loginURL := org.LoginURL
	if loginURL == "" {
		loginURL = cfg.LoginURL
	}

	keyPath := filepath.Join(appInstance.GetRegistry().OrgDir(org.Username), privateKeyFile)
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return auth.TokenSet{}, fmt.Errorf("read private key %s: %w", keyPath, err)
	}

	assertion, err := auth.BuildAssertion(auth.AssertionConfig{
		Username:      org.Username,
		ConsumerKey:   org.ConsumerKey,
		PrivateKeyPEM: keyPEM,
		Audience:      loginURL,
		Lifetime:      cfg.TokenLifetime,
	}, time.Now())
	if err != nil {
		return auth.TokenSet{}, fmt.Errorf("build assertion for %s: %w", org.Username, err)
	}

	exchanger := auth.NewExchanger(loginURL, 30*time.Second, appInstance.GetLogger())
	return exchanger.Exchange(ctx, assertion)
}

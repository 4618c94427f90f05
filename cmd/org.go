package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/mindstream/mindstream/internal/auth"
	"github.com/mindstream/mindstream/internal/orgs"
	"github.com/spf13/cobra"
)

// newOrgCmd creates the 'org' command group for managing registered orgs.
func newOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage registered Salesforce orgs",
	}
	cmd.AddCommand(newOrgAddCmd(), newOrgListCmd(), newOrgUseCmd())
	return cmd
}

// newOrgAddCmd registers an org by asking the Salesforce CLI for its
// connection details.
func newOrgAddCmd() *cobra.Command {
	var consumerKey string
	cmd := &cobra.Command{
		Use:   "add <username-or-alias>",
		Short: "Registers an org resolved via the sf CLI",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			info, err := auth.NewSalesforceCLI(appInstance.GetLogger()).DisplayOrg(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			org := orgs.Org{
				Username:    info.Username,
				Alias:       info.Alias,
				OrgID:       info.OrgID,
				InstanceURL: info.InstanceURL,
				LoginURL:    info.LoginURL,
				ConsumerKey: consumerKey,
			}
			if err := appInstance.GetRegistry().Add(org); err != nil {
				return err
			}

			dir := appInstance.GetRegistry().OrgDir(org.Username)
			color.Green("✓ Registered %s\n", org.Username)
			fmt.Fprintf(cmd.OutOrStdout(), "Place the connected app's private key at %s/%s\n", dir, privateKeyFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&consumerKey, "consumer-key", "", "connected app consumer key used for the JWT bearer flow")
	return cmd
}

// newOrgListCmd prints every registered org, marking the current one.
func newOrgListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists registered orgs",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			list, err := appInstance.GetRegistry().List()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orgs registered. Run 'mindstream org add <username>'.")
				return nil
			}

			current, _ := appInstance.GetRegistry().Current()
			for _, org := range list {
				line := org.Username
				if org.Alias != "" {
					line = fmt.Sprintf("%s (%s)", org.Username, org.Alias)
				}
				if org.Username == current.Username {
					color.Green("* %s\n", line)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", line)
				}
			}
			return nil
		},
	}
}

// newOrgUseCmd marks an org as the default target for other commands.
func newOrgUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <username>",
		Short: "Sets the current org",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.GetRegistry().SetCurrent(args[0]); err != nil {
				return err
			}
			color.Green("✓ Current org set to %s\n", args[0])
			return nil
		},
	}
}

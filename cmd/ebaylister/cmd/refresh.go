package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the tokens of every connected account now",
		Long: "Runs one keep-alive pass: every account whose access token is close to\n" +
			"expiry is refreshed and saved. Failures are reported per account.",
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := newApp(c.Context())
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.engine.RefreshAll(c.Context()); err != nil {
				return fmt.Errorf("refreshing accounts: %w", err)
			}
			_, err = fmt.Fprintln(c.OutOrStdout(), "All accounts are up to date.")
			return err
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

func quotaCmd() *cobra.Command {
	var environment string

	c := &cobra.Command{
		Use:   "quota",
		Short: "Show API call usage and the Trading API quota",
		Example: `  ebaylister quota
  ebaylister quota --environment production --output json`,
		RunE: func(c *cobra.Command, _ []string) error {
			env := domain.Environment(environment)
			if env != "" && !env.Valid() {
				return fmt.Errorf("unknown environment %q", environment)
			}

			a, err := newApp(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			rep, err := a.engine.Quota(c.Context(), env)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(c.OutOrStdout(), rep)
			}
			return printQuota(c.OutOrStdout(), rep)
		},
	}

	c.Flags().StringVar(&environment, "environment", "", "eBay environment; defaults to the active account's")

	return c
}

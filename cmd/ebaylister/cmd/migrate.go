package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Import a legacy single-account token file",
		Long: "Looks for a legacy token file at the configured legacy paths and, when\n" +
			"no account registry exists yet, imports it as a connected account. The\n" +
			"legacy file is renamed with a .backup suffix. Every command does this on\n" +
			"startup; this command reports the outcome.",
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := newApp(c.Context())
			if err != nil {
				return err
			}
			defer a.close()
			out := c.OutOrStdout()
			if a.migrated == "" {
				_, err = fmt.Fprintf(out, "Nothing to migrate; registry at %s.\n", a.registry)
				return err
			}
			_, err = fmt.Fprintf(out, "Migrated legacy tokens to account %s.\n", a.migrated)
			return err
		},
	}
}

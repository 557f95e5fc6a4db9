// Package cmd implements the ebaylister CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "ebaylister",
	Short: "Publish listings to eBay from connected seller accounts",
	Long: "ebaylister connects eBay seller accounts through OAuth, keeps their tokens\n" +
		"alive, and publishes fixed price listings and images through the Trading\n" +
		"and Media APIs. It runs as an API server or as one-shot commands.",
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return validateOutput()
	},
}

// Root returns the root cobra command for documentation generation.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().String("output", "table", "output format (table, json)")

	cobra.CheckErr(viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")))
	cobra.CheckErr(viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output")))

	rootCmd.AddCommand(
		serveCmd(),
		accountsCmd(),
		migrateCmd(),
		refreshCmd(),
		listingCmd(),
		imageCmd(),
		quotaCmd(),
		versionCmd(),
	)
}

func initConfig() {
	viper.SetEnvPrefix("LISTER")
	viper.AutomaticEnv()
}

func configPath() string {
	return viper.GetString("config")
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}

func validateOutput() error {
	switch viper.GetString("output") {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table or json)", viper.GetString("output"))
	}
}

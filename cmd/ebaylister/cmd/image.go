package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func imageCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "image",
		Short: "Host images for listings",
	}
	root.AddCommand(imageUploadCmd())
	return root
}

func imageUploadCmd() *cobra.Command {
	var viaTrading bool

	c := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image and print its hosted URL",
		Example: `  ebaylister image upload front.jpg
  ebaylister image upload back.png --via-trading`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0]) //nolint:gosec // image path from trusted CLI argument
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}

			a, err := newApp(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.engine.UploadImage(c.Context(), filepath.Base(args[0]), data, viaTrading)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(c.OutOrStdout(), res)
			}
			return printResult(c.OutOrStdout(), res)
		},
	}

	c.Flags().BoolVar(&viaTrading, "via-trading", false, "upload through the Trading API even when the Media API is enabled")

	return c
}

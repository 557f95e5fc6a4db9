package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fizic37/delcampe-ebay/internal/ebay"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

func listingCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "listing",
		Short: "Publish or verify fixed price listings",
		Long: "Submit a listing described in a YAML or JSON file for the active account.\n" +
			"Business policies are resolved from the account when the file names none.",
	}

	root.AddCommand(
		listingSubmitCmd("publish", "Publish a listing", false),
		listingSubmitCmd("verify", "Validate a listing with eBay without publishing it", true),
	)

	return root
}

func listingSubmitCmd(use, short string, verify bool) *cobra.Command {
	var (
		file     string
		policies domain.BusinessPolicySet
	)

	c := &cobra.Command{
		Use:   use,
		Short: short,
		Example: fmt.Sprintf(`  ebaylister listing %[1]s --file postcard.yaml
  ebaylister listing %[1]s -f postcard.yaml --payment-policy 6196944000 --output json`, use),
		RunE: func(c *cobra.Command, _ []string) error {
			req, err := readListingFile(file)
			if err != nil {
				return err
			}
			req.Policies = policies

			a, err := newApp(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.engine.Publish(c.Context(), req, verify)
			var apiErr *ebay.APIError
			if err != nil && !(res != nil && errors.As(err, &apiErr)) {
				return err
			}

			out := c.OutOrStdout()
			if jsonOutput() {
				if perr := outputJSON(out, res); perr != nil {
					return perr
				}
			} else if perr := printResult(out, res); perr != nil {
				return perr
			}
			return err
		},
	}

	c.Flags().StringVarP(&file, "file", "f", "", "listing file (YAML or JSON)")
	c.Flags().StringVar(&policies.FulfillmentID, "fulfillment-policy", "", "fulfillment policy ID")
	c.Flags().StringVar(&policies.PaymentID, "payment-policy", "", "payment policy ID")
	c.Flags().StringVar(&policies.ReturnID, "return-policy", "", "return policy ID")
	cobra.CheckErr(c.MarkFlagRequired("file"))

	return c
}

// readListingFile decodes a listing from YAML, which also accepts JSON.
// Unknown fields are rejected so typos do not silently drop data.
func readListingFile(path string) (domain.ListingRequest, error) {
	var req domain.ListingRequest

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // listing path from trusted CLI flag
	}
	if err != nil {
		return req, fmt.Errorf("reading listing file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, fmt.Errorf("listing file %s is empty", path)
		}
		return req, fmt.Errorf("parsing listing file %s: %w", path, err)
	}
	return req, nil
}

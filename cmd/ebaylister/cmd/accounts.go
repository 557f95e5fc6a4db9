package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

func accountsCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "accounts",
		Short: "Manage connected eBay seller accounts",
		Long: "Connect seller accounts through eBay's consent page, switch the account\n" +
			"listings are published for, and disconnect accounts.",
	}

	root.AddCommand(
		accountsListCmd(),
		accountsConnectCmd(),
		accountsUseCmd(),
		accountsRemoveCmd(),
	)

	return root
}

func accountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connected accounts",
		Example: `  ebaylister accounts list
  ebaylister accounts list --output json`,
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := newApp(c.Context())
			if err != nil {
				return err
			}
			defer a.close()
			accounts, active := a.engine.Accounts()
			out := c.OutOrStdout()
			if jsonOutput() {
				return outputJSON(out, accountsJSON(accounts, active))
			}
			if len(accounts) == 0 {
				_, err := fmt.Fprintln(out, "No accounts connected.")
				return err
			}
			return printAccountsTable(out, accounts, active, time.Now())
		},
	}
}

func accountsConnectCmd() *cobra.Command {
	var (
		environment string
		redirect    string
	)

	c := &cobra.Command{
		Use:   "connect",
		Short: "Connect a seller account",
		Long: "Prints eBay's consent URL. After granting access, paste the URL eBay\n" +
			"redirected the browser to, or pass it with --redirect.",
		Example: `  ebaylister accounts connect
  ebaylister accounts connect --environment production`,
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := newApp(c.Context())
			if err != nil {
				return err
			}
			defer a.close()
			env := domain.Environment(environment)
			if env != "" && !env.Valid() {
				return fmt.Errorf("unknown environment %q", environment)
			}

			consentURL, state, err := a.engine.AuthURL(env)
			if err != nil {
				return err
			}
			out := c.OutOrStdout()
			fmt.Fprintf(out, "Open this URL and grant access:\n\n  %s\n\n", consentURL)

			if redirect == "" {
				fmt.Fprint(out, "Paste the URL eBay redirected to: ")
				redirect, err = readLine(c.InOrStdin())
				if err != nil {
					return err
				}
			}

			code, returned, err := parseRedirect(redirect, state)
			if err != nil {
				return err
			}
			env, err = a.engine.ConsumeState(returned)
			if err != nil {
				return err
			}

			acct, err := a.engine.Connect(c.Context(), env, code)
			if err != nil {
				return err
			}
			if jsonOutput() {
				_, active := a.engine.Accounts()
				return outputJSON(out, accountsJSON([]domain.Account{acct}, active)[0])
			}
			_, err = fmt.Fprintf(out, "Connected %s (%s) as %s.\n", acct.Username, acct.Environment, acct.Key())
			return err
		},
	}

	c.Flags().StringVar(&environment, "environment", "", "eBay environment (sandbox, production); defaults to the configured one")
	c.Flags().StringVar(&redirect, "redirect", "", "URL eBay redirected to after consent")

	return c
}

func accountsUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "use <key>",
		Short:   "Switch the active account",
		Example: `  ebaylister accounts use fizic37_production`,
		Args:    cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp(c.Context())
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.engine.SetActive(args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.OutOrStdout(), "Active account is now %s.\n", args[0])
			return err
		},
	}
}

func accountsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <key>",
		Short:   "Disconnect an account",
		Example: `  ebaylister accounts remove fizic37_sandbox`,
		Args:    cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp(c.Context())
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.engine.Disconnect(args[0]); err != nil {
				return err
			}
			out := c.OutOrStdout()
			fmt.Fprintf(out, "Disconnected %s.\n", args[0])
			if _, active := a.engine.Accounts(); active != "" {
				_, err = fmt.Fprintf(out, "Active account is now %s.\n", active)
			}
			return err
		},
	}
}

func readLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("reading redirect URL: %w", err)
		}
		return "", errors.New("no redirect URL given")
	}
	return strings.TrimSpace(sc.Text()), nil
}

// parseRedirect extracts the authorization code and state from the URL eBay
// redirected to. A bare code is paired with the issued state.
func parseRedirect(raw, issued string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errors.New("no redirect URL given")
	}
	if !strings.Contains(raw, "?") {
		return raw, issued, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parsing redirect URL: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", "", fmt.Errorf("authorization declined: %s", e)
	}
	code := q.Get("code")
	if code == "" {
		return "", "", errors.New("redirect URL has no code parameter")
	}
	state := q.Get("state")
	if state == "" {
		state = issued
	}
	return code, state, nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fizic37/delcampe-ebay/internal/engine"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

const timeLayout = "2006-01-02 15:04:05"

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

// accountJSON is an account as printed, without credential material.
type accountJSON struct {
	Key         string             `json:"key"`
	UserID      string             `json:"user_id"`
	Username    string             `json:"username"`
	Environment domain.Environment `json:"environment"`
	Active      bool               `json:"active"`
	TokenExpiry time.Time          `json:"token_expiry"`
	ConnectedAt time.Time          `json:"connected_at"`
	LastUsedAt  time.Time          `json:"last_used_at"`
}

func accountsJSON(accounts []domain.Account, active string) []accountJSON {
	out := make([]accountJSON, 0, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		out = append(out, accountJSON{
			Key:         a.Key(),
			UserID:      a.UserID,
			Username:    a.Username,
			Environment: a.Environment,
			Active:      a.Key() == active,
			TokenExpiry: a.TokenExpiry,
			ConnectedAt: a.ConnectedAt,
			LastUsedAt:  a.LastUsedAt,
		})
	}
	return out
}

func printAccountsTable(w io.Writer, accounts []domain.Account, active string, now time.Time) error {
	tw := newTabWriter(w)
	tw.writef("ACTIVE\tKEY\tUSERNAME\tENVIRONMENT\tTOKEN\tLAST USED\n")
	for i := range accounts {
		a := &accounts[i]
		marker := ""
		if a.Key() == active {
			marker = "*"
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\t%s\n",
			marker,
			a.Key(),
			truncate(a.Username, 30),
			a.Environment,
			tokenState(a.TokenExpiry, now),
			formatTime(a.LastUsedAt),
		)
	}
	return tw.finish()
}

func tokenState(expiry, now time.Time) string {
	if !now.Before(expiry) {
		return "expired"
	}
	return "valid for " + expiry.Sub(now).Truncate(time.Minute).String()
}

func printResult(w io.Writer, res *domain.ProtocolResult) error {
	tw := newTabWriter(w)
	status := "failed"
	if res.Success {
		status = "ok"
	}
	tw.writef("Status:\t%s\n", status)
	if res.Ack != "" {
		tw.writef("Ack:\t%s\n", res.Ack)
	}
	if res.ItemID != "" {
		tw.writef("Item ID:\t%s\n", res.ItemID)
	}
	if res.ImageURL != "" {
		tw.writef("Image URL:\t%s\n", res.ImageURL)
	}
	if res.ImageExpiresAt != nil {
		tw.writef("Expires:\t%s\n", formatTime(*res.ImageExpiresAt))
	}
	if res.Message != "" {
		tw.writef("Message:\t%s\n", res.Message)
	}
	for _, warn := range res.Warnings {
		tw.writef("Warning:\t%s\n", warn)
	}
	for _, e := range res.Errors {
		tw.writef("Error:\t%s %s\n", e.Code, e.Message())
	}
	return tw.finish()
}

func printQuota(w io.Writer, rep *engine.QuotaReport) error {
	tw := newTabWriter(w)
	tw.writef("Environment:\t%s\n", rep.Environment)
	limit := "unlimited"
	if rep.Local.Limit > 0 {
		limit = fmt.Sprintf("%d (%d remaining)", rep.Local.Limit, rep.Local.Remaining)
	}
	tw.writef("Local calls:\t%d of %s\n", rep.Local.Count, limit)
	tw.writef("Local reset:\t%s\n", formatTime(rep.Local.ResetAt))
	if rep.RemoteError != "" {
		tw.writef("Remote:\tunavailable: %s\n", rep.RemoteError)
	}
	if err := tw.finish(); err != nil {
		return err
	}
	if len(rep.Remote) == 0 {
		return nil
	}

	tw = newTabWriter(w)
	tw.writef("\nRESOURCE\tCOUNT\tLIMIT\tREMAINING\tRESET\n")
	for _, q := range rep.Remote {
		tw.writef("%s\t%d\t%d\t%d\t%s\n", q.Resource, q.Count, q.Limit, q.Remaining, formatTime(q.ResetAt))
	}
	return tw.finish()
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return strings.TrimSpace(s[:maxLen-3]) + "..."
}

// Package notify reports seller accounts that need attention, such as an
// account whose refresh token eBay no longer accepts.
package notify

import (
	"context"
	"time"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// AccountAlert describes one account whose scheduled refresh failed.
type AccountAlert struct {
	AccountKey  string
	Username    string
	Environment domain.Environment
	Reason      string
	// ReconnectRequired is set when eBay rejected the refresh grant and the
	// seller has to go through the consent flow again.
	ReconnectRequired bool
	TokenExpiry       time.Time
	FailedAt          time.Time
}

// Notifier delivers account alerts.
type Notifier interface {
	SendAlert(ctx context.Context, alert *AccountAlert) error
	SendBatchAlert(ctx context.Context, alerts []AccountAlert) error
}

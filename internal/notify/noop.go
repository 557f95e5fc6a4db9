package notify

import (
	"context"
	"log/slog"
)

// NoOpNotifier is used when no alert backend is configured. Alerts still
// reach the log so a failing account is visible somewhere.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that only logs.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// SendAlert logs the alert.
func (n *NoOpNotifier) SendAlert(ctx context.Context, alert *AccountAlert) error {
	n.log.WarnContext(ctx, "account needs attention",
		"account", alert.AccountKey,
		"environment", string(alert.Environment),
		"reconnect_required", alert.ReconnectRequired,
		"reason", alert.Reason,
	)
	return nil
}

// SendBatchAlert logs every alert of the batch.
func (n *NoOpNotifier) SendBatchAlert(ctx context.Context, alerts []AccountAlert) error {
	for i := range alerts {
		_ = n.SendAlert(ctx, &alerts[i])
	}
	return nil
}

package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// TokenRefreshes returns a timeseries panel showing refresh grants by result.
func TokenRefreshes() *timeseries.PanelBuilder {
	return hourlyBars("Token Refreshes", "OAuth refresh grants per hour by result",
		"lister_token_refreshes_total", "result", "{{result}}", thirdWidth)
}

// TokenExchanges returns a timeseries panel showing code exchanges and
// application token grants by result.
func TokenExchanges() *timeseries.PanelBuilder {
	return hourlyBars("Token Grants", "Authorization code and client credential grants per hour",
		"lister_token_exchanges_total", "grant, result", "{{grant}} {{result}}", thirdWidth)
}

// KeepaliveFailures returns a stat panel showing accounts whose scheduled
// refresh failed in the past 24 hours.
func KeepaliveFailures() *stat.PanelBuilder {
	return dailyCount("Keep-alive Failures (24h)", "Accounts whose scheduled token refresh failed",
		"lister_keepalive_failures_total")
}

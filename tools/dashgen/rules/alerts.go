package rules

// AlertRules returns a PrometheusRule CR containing alert rules for
// ebaylister operational monitoring.
func AlertRules() PrometheusRule {
	return newPrometheusRule("lister-alerts", RuleGroup{
		Name: "lister-alerts",
		Rules: []Rule{
			{
				Alert: "ListerDown",
				Expr:  `absent(up{job="ebaylister"})`,
				For:   "2m",
				Labels: map[string]string{
					"severity": "critical",
				},
				Annotations: map[string]string{
					"summary":     "eBay lister is down",
					"description": "The ebaylister job has been absent for more than 2 minutes.",
				},
			},
			{
				Alert: "ListerNotReady",
				Expr:  `lister_readyz_up == 0`,
				For:   "5m",
				Labels: map[string]string{
					"severity": "warning",
				},
				Annotations: map[string]string{
					"summary":     "No usable eBay account",
					"description": "The readiness probe reports no active account with application keys for more than 5 minutes.",
				},
			},
			{
				Alert: "ListerHighErrorRate",
				Expr:  `lister:http_errors:rate5m / lister:http_requests:rate5m > 0.05`,
				For:   "5m",
				Labels: map[string]string{
					"severity": "warning",
				},
				Annotations: map[string]string{
					"summary":     "High HTTP error rate on the eBay lister",
					"description": "More than 5% of HTTP requests are returning 5xx errors over the last 5 minutes.",
				},
			},
			{
				Alert: "ListerTradingFailures",
				Expr:  `lister:trading_failures:rate5m / lister:trading_calls:rate5m > 0.5`,
				For:   "15m",
				Labels: map[string]string{
					"severity": "warning",
				},
				Annotations: map[string]string{
					"summary":     "Most Trading API calls are rejected",
					"description": "More than half of the Trading API calls over 15 minutes did not end in Success or Warning.",
				},
			},
			{
				Alert: "ListerTokenRefreshFailing",
				Expr:  `lister:token_refresh_failures:rate5m > 0`,
				For:   "15m",
				Labels: map[string]string{
					"severity": "critical",
				},
				Annotations: map[string]string{
					"summary":     "OAuth token refresh is failing",
					"description": "Refresh grants have been failing for 15 minutes. Affected accounts must be reconnected.",
				},
			},
			{
				Alert: "ListerKeepaliveFailures",
				Expr:  `increase(lister_keepalive_failures_total[1h]) > 0`,
				For:   "0m",
				Labels: map[string]string{
					"severity": "warning",
				},
				Annotations: map[string]string{
					"summary":     "Scheduled account refresh failed",
					"description": "At least one account could not be kept alive during the last hour.",
				},
			},
			{
				Alert: "ListerEbayQuotaHigh",
				Expr:  `lister_ebay_daily_usage > 4000`,
				For:   "5m",
				Labels: map[string]string{
					"severity": "warning",
				},
				Annotations: map[string]string{
					"summary":     "eBay API daily usage is above 80% of the quota",
					"description": "Daily eBay API usage has exceeded 4000 calls (default limit is 5000).",
				},
			},
			{
				Alert: "ListerEbayLimitReached",
				Expr:  `increase(lister_ebay_daily_limit_hits_total[5m]) > 0`,
				For:   "0m",
				Labels: map[string]string{
					"severity": "critical",
				},
				Annotations: map[string]string{
					"summary":     "eBay API daily limit has been reached",
					"description": "The local daily call budget is spent. Listings and uploads fail until the window resets.",
				},
			},
		},
	})
}

package rules

// RecordingRules returns a PrometheusRule CR containing pre-computed rate
// expressions used by dashboards and alert rules.
func RecordingRules() PrometheusRule {
	return newPrometheusRule("lister-recording-rules", RuleGroup{
		Name: "lister-recording",
		Rules: []Rule{
			{
				Record: "lister:http_requests:rate5m",
				Expr:   `sum(rate(lister_http_requests_total[5m]))`,
			},
			{
				Record: "lister:http_errors:rate5m",
				Expr:   `sum(rate(lister_http_requests_total{status=~"5.."}[5m]))`,
			},
			{
				Record: "lister:ebay_api_calls:rate5m",
				Expr:   `rate(lister_ebay_api_calls_total[5m])`,
			},
			{
				Record: "lister:trading_calls:rate5m",
				Expr:   `sum(rate(lister_trading_calls_total[5m]))`,
			},
			{
				Record: "lister:trading_failures:rate5m",
				Expr:   `sum(rate(lister_trading_calls_total{ack!~"Success|Warning"}[5m]))`,
			},
			{
				Record: "lister:token_refresh_failures:rate5m",
				Expr:   `sum(rate(lister_token_refreshes_total{result="error"}[5m]))`,
			},
		},
	})
}

package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// RequestRate returns a timeseries panel showing the HTTP request rate.
func RequestRate() *timeseries.PanelBuilder {
	return series("Request Rate", "HTTP requests per second", thirdWidth).
		WithTarget(PromQuery(`lister:http_requests:rate5m`, "req/s", "A")).
		Unit("reqps").
		Legend(tableLegend("mean", "max")).
		Tooltip(multiTooltip())
}

// LatencyPercentiles returns a timeseries panel showing p50, p95, and p99
// HTTP request latencies.
func LatencyPercentiles() *timeseries.PanelBuilder {
	const histogram = "lister_http_request_duration_seconds"
	return series("Latency Percentiles", "HTTP request duration percentiles", thirdWidth).
		WithTarget(PromQuery(quantile("0.50", histogram, ""), "p50", "A")).
		WithTarget(PromQuery(quantile("0.95", histogram, ""), "p95", "B")).
		WithTarget(PromQuery(quantile("0.99", histogram, ""), "p99", "C")).
		Unit("s").
		Legend(tableLegend("mean", "max")).
		Tooltip(multiTooltip())
}

// ErrorRate returns a timeseries panel showing the HTTP 5xx error rate
// as a percentage.
func ErrorRate() *timeseries.PanelBuilder {
	return series("Error Rate %", "HTTP 5xx error rate as percentage of total requests", thirdWidth).
		WithTarget(PromQuery(
			`lister:http_errors:rate5m / lister:http_requests:rate5m * 100`,
			"error %", "A",
		)).
		Unit("percent").
		Thresholds(thresholds("green", level{1, "yellow"}, level{5, "red"})).
		ColorScheme(thresholdColors())
}

package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// TradingCalls returns a timeseries panel showing Trading API calls per
// minute, split by call name and acknowledgement.
func TradingCalls() *timeseries.PanelBuilder {
	return series("Trading Calls / min", "Trading API calls by call name and Ack", thirdWidth).
		WithTarget(PromQuery(
			`sum by (call, ack) (rate(`+jobSelector("lister_trading_calls_total")+`[5m])) * 60`,
			"{{call}} {{ack}}", "A",
		)).
		Legend(tableLegend("mean", "max")).
		Tooltip(multiTooltip())
}

// TradingLatency returns a timeseries panel showing the p95 Trading API
// latency per call name.
func TradingLatency() *timeseries.PanelBuilder {
	return series("Trading Latency (p95)", "95th percentile Trading API call duration", thirdWidth).
		WithTarget(PromQuery(quantile("0.95", "lister_trading_call_duration_seconds", "call"), "{{call}}", "A")).
		Unit("s").
		Thresholds(thresholds("green", level{5, "yellow"}, level{20, "red"}))
}

// TradingFailureRatio returns a timeseries panel showing the share of
// Trading API calls eBay rejected.
func TradingFailureRatio() *timeseries.PanelBuilder {
	return series("Trading Failures %", "Trading API calls that did not end in Success or Warning", thirdWidth).
		WithTarget(PromQuery(
			`lister:trading_failures:rate5m / lister:trading_calls:rate5m * 100`,
			"failure %", "A",
		)).
		Unit("percent").
		Thresholds(thresholds("green", level{10, "yellow"}, level{50, "red"})).
		ColorScheme(thresholdColors())
}

package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// APICallsRate returns a timeseries panel showing the rate of calls that
// passed the local rate limiter.
func APICallsRate() *timeseries.PanelBuilder {
	return series("API Calls Rate", "Rate-limited eBay API calls per second", thirdWidth).
		WithTarget(PromQuery(`lister:ebay_api_calls:rate5m`, "calls/s", "A")).
		Unit("reqps")
}

// DailyUsage returns a timeseries panel showing the rolling 24h eBay API
// usage against the daily limit.
func DailyUsage() *timeseries.PanelBuilder {
	return series("Daily Usage vs Limit",
		fmt.Sprintf("Rolling 24h eBay API call count (default limit: %d)", EbayDailyLimit), thirdWidth).
		WithTarget(PromQuery(jobSelector("lister_ebay_daily_usage"), "usage", "A")).
		Thresholds(thresholds("green",
			level{EbayDailyLimit * 0.8, "yellow"},
			level{EbayDailyLimit, "red"},
		)).
		ColorScheme(thresholdColors())
}

// LimitHits returns a stat panel showing the number of daily limit hits
// in the past 24 hours.
func LimitHits() *stat.PanelBuilder {
	return dailyCount("Limit Hits (24h)", "Calls refused because the daily budget was spent",
		"lister_ebay_daily_limit_hits_total")
}

package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// MediaUploads returns a timeseries panel showing Media API uploads by
// result.
func MediaUploads() *timeseries.PanelBuilder {
	return hourlyBars("Image Uploads", "Media API image uploads per hour by result",
		"lister_media_uploads_total", "result", "{{result}}", halfWidth)
}

// PolicyLookupFailures returns a timeseries panel showing failed business
// policy lookups by kind.
func PolicyLookupFailures() *timeseries.PanelBuilder {
	return hourlyBars("Policy Lookup Failures", "Failed business policy lookups per hour by kind",
		"lister_policy_lookup_failures_total", "kind", "{{kind}}", halfWidth).
		Thresholds(thresholds("green", level{1, "yellow"}, level{5, "red"})).
		ColorScheme(thresholdColors())
}

package main

import "errors"

// KnownMetrics is the set of metric names exported by ebaylister plus the
// recording rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// HTTP metrics.
	"lister_http_request_duration_seconds": true,
	"lister_http_requests_total":           true,

	// Health metrics.
	"lister_healthz_up": true,
	"lister_readyz_up":  true,

	// OAuth metrics.
	"lister_token_refreshes_total":      true,
	"lister_token_exchanges_total":      true,
	"lister_identity_resolutions_total": true,

	// Trading API metrics.
	"lister_trading_calls_total":           true,
	"lister_trading_call_duration_seconds": true,

	// REST API metrics.
	"lister_media_uploads_total":          true,
	"lister_policy_lookup_failures_total": true,

	// Quota metrics.
	"lister_ebay_api_calls_total":        true,
	"lister_ebay_daily_usage":            true,
	"lister_ebay_daily_limit_hits_total": true,

	// Account metrics.
	"lister_accounts_connected":       true,
	"lister_keepalive_failures_total": true,

	// Recording rules.
	"lister:http_requests:rate5m":          true,
	"lister:http_errors:rate5m":            true,
	"lister:ebay_api_calls:rate5m":         true,
	"lister:trading_calls:rate5m":          true,
	"lister:trading_failures:rate5m":       true,
	"lister:token_refresh_failures:rate5m": true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}

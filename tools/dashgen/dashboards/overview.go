// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/fizic37/delcampe-ebay/tools/dashgen/panels"
)

// BuildOverview constructs the lister overview dashboard with all metric rows.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("eBay Lister Overview").
		Uid("lister-overview").
		Tags([]string{"lister", "ebay"}).
		Refresh("30s").
		Time("now-6h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(datasourceVar())

	// Row 1: Overview.
	b.WithRow(dashboard.NewRowBuilder("Overview").
		WithPanel(panels.HealthzStat()).
		WithPanel(panels.ReadyzStat()).
		WithPanel(panels.AccountsStat()).
		WithPanel(panels.QuotaGauge()).
		WithPanel(panels.UptimeStat()))

	// Row 2: HTTP.
	b.WithRow(dashboard.NewRowBuilder("HTTP").
		WithPanel(panels.RequestRate()).
		WithPanel(panels.LatencyPercentiles()).
		WithPanel(panels.ErrorRate()))

	// Row 3: Trading API.
	b.WithRow(dashboard.NewRowBuilder("Trading API").
		WithPanel(panels.TradingCalls()).
		WithPanel(panels.TradingLatency()).
		WithPanel(panels.TradingFailureRatio()))

	// Row 4: OAuth.
	b.WithRow(dashboard.NewRowBuilder("OAuth").
		WithPanel(panels.TokenRefreshes()).
		WithPanel(panels.TokenExchanges()).
		WithPanel(panels.KeepaliveFailures()))

	// Row 5: eBay quota.
	b.WithRow(dashboard.NewRowBuilder("eBay Quota").
		WithPanel(panels.APICallsRate()).
		WithPanel(panels.DailyUsage()).
		WithPanel(panels.LimitHits()))

	// Row 6: Media and policies.
	b.WithRow(dashboard.NewRowBuilder("Media & Policies").
		WithPanel(panels.MediaUploads()).
		WithPanel(panels.PolicyLookupFailures()))

	return b
}

func datasourceVar() *dashboard.DatasourceVariableBuilder {
	return dashboard.NewDatasourceVariableBuilder("datasource").
		Label("Datasource").
		Type("prometheus")
}

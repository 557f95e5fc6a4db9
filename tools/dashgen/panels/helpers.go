// Package panels provides Grafana dashboard panel builders for ebaylister
// metrics.
package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/cog"
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/grafana/grafana-foundation-sdk/go/prometheus"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// EbayDailyLimit is the default daily call budget of the rate limiter.
const EbayDailyLimit = 5000

// Job is the scrape job label of the lister.
const Job = "ebaylister"

// Grid sizes on Grafana's 24-column layout.
const (
	StatWidth  = 6
	StatHeight = 4
	TSHeight   = 8

	thirdWidth = 8
	halfWidth  = 12
)

// jobSelector scopes a raw metric to the lister job.
func jobSelector(metric string) string {
	return metric + `{job="` + Job + `"}`
}

// quantile returns a histogram_quantile expression over the lister job.
func quantile(q, histogram, by string) string {
	group := "le"
	if by != "" {
		group = by + ", le"
	}
	return "histogram_quantile(" + q + ", sum(rate(" + jobSelector(histogram+"_bucket") + "[5m])) by (" + group + "))"
}

// increase sums the growth of a counter over window, split by the given
// labels.
func increase(counter, by, window string) string {
	inner := "increase(" + jobSelector(counter) + "[" + window + "])"
	if by == "" {
		return inner
	}
	return "sum by (" + by + ") (" + inner + ")"
}

// DSRef returns a datasource reference pointing at the ${datasource}
// template variable.
func DSRef() dashboard.DataSourceRef {
	return dashboard.DataSourceRef{
		Type: cog.ToPtr("prometheus"),
		Uid:  cog.ToPtr("${datasource}"),
	}
}

// PromQuery builds a Prometheus query target.
func PromQuery(expr, legendFormat, refID string) *prometheus.DataqueryBuilder {
	return prometheus.NewDataqueryBuilder().
		Expr(expr).
		LegendFormat(legendFormat).
		RefId(refID)
}

// series starts a line chart with the dashboard's common styling. Callers
// add targets and may override thresholds and colors.
func series(title, description string, span uint32) *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title(title).
		Description(description).
		Datasource(DSRef()).
		Height(TSHeight).
		Span(span).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(thresholds("green")).
		ColorScheme(paletteColors()).
		DrawStyle(common.GraphDrawStyleLine)
}

// hourlyBars is a bar chart of a counter's hourly increase per label set.
func hourlyBars(title, description, counter, by, legend string, span uint32) *timeseries.PanelBuilder {
	return series(title, description, span).
		WithTarget(PromQuery(increase(counter, by, "1h"), legend, "A")).
		DrawStyle(common.GraphDrawStyleBars)
}

// dailyCount is a stat with a background color showing how often a counter
// grew over the past day.
func dailyCount(title, description, counter string) *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title(title).
		Description(description).
		Datasource(DSRef()).
		Height(TSHeight).
		Span(thirdWidth).
		WithTarget(PromQuery(increase(counter, "", "24h"), "", "A")).
		Thresholds(thresholds("green", level{1, "yellow"}, level{3, "red"})).
		ColorScheme(thresholdColors()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}

// level is a threshold step starting at value.
type level struct {
	value float64
	color string
}

// thresholds builds absolute thresholds: base below the first level, then
// each level's color from its value up.
func thresholds(base string, levels ...level) cog.Builder[dashboard.ThresholdsConfig] {
	steps := []dashboard.Threshold{{Color: base}}
	for _, l := range levels {
		steps = append(steps, dashboard.Threshold{Value: cog.ToPtr(l.value), Color: l.color})
	}
	return dashboard.NewThresholdsConfigBuilder().
		Mode(dashboard.ThresholdsModeAbsolute).
		Steps(steps)
}

func thresholdColors() cog.Builder[dashboard.FieldColor] {
	return dashboard.NewFieldColorBuilder().
		Mode(dashboard.FieldColorModeIdThresholds)
}

func paletteColors() cog.Builder[dashboard.FieldColor] {
	return dashboard.NewFieldColorBuilder().
		Mode(dashboard.FieldColorModeIdPaletteClassic)
}

// tableLegend shows the legend as a table with the given calculations.
func tableLegend(calcs ...string) *common.VizLegendOptionsBuilder {
	return common.NewVizLegendOptionsBuilder().
		DisplayMode(common.LegendDisplayModeTable).
		Placement(common.LegendPlacementBottom).
		Calcs(calcs)
}

func multiTooltip() *common.VizTooltipOptionsBuilder {
	return common.NewVizTooltipOptionsBuilder().
		Mode(common.TooltipDisplayModeMulti).
		Sort(common.SortOrderDescending)
}

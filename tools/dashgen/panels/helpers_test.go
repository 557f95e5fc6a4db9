package panels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpressionHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "job selector",
			got:  jobSelector("lister_accounts_connected"),
			want: `lister_accounts_connected{job="ebaylister"}`,
		},
		{
			name: "quantile without grouping",
			got:  quantile("0.95", "lister_http_request_duration_seconds", ""),
			want: `histogram_quantile(0.95, sum(rate(lister_http_request_duration_seconds_bucket{job="ebaylister"}[5m])) by (le))`,
		},
		{
			name: "quantile by call",
			got:  quantile("0.5", "lister_trading_call_duration_seconds", "call"),
			want: `histogram_quantile(0.5, sum(rate(lister_trading_call_duration_seconds_bucket{job="ebaylister"}[5m])) by (call, le))`,
		},
		{
			name: "plain increase",
			got:  increase("lister_keepalive_failures_total", "", "24h"),
			want: `increase(lister_keepalive_failures_total{job="ebaylister"}[24h])`,
		},
		{
			name: "increase by labels",
			got:  increase("lister_token_exchanges_total", "grant, result", "1h"),
			want: `sum by (grant, result) (increase(lister_token_exchanges_total{job="ebaylister"}[1h]))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestThresholds(t *testing.T) {
	t.Parallel()

	cfg, err := thresholds("green", level{1, "yellow"}, level{3, "red"}).Build()
	assert.NoError(t, err)
	if assert.Len(t, cfg.Steps, 3) {
		assert.Nil(t, cfg.Steps[0].Value)
		assert.Equal(t, "green", cfg.Steps[0].Color)
		assert.InDelta(t, 3.0, *cfg.Steps[2].Value, 0.0001)
		assert.Equal(t, "red", cfg.Steps[2].Color)
	}
}

package ebay

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Analytics API context and name of the Trading API.
const (
	TradingAPIContext = "tradingapi"
	TradingAPIName    = "tradingapi"
)

// rateLimitResponse is the top-level Analytics API response.
type rateLimitResponse struct {
	RateLimits []rateLimitEntry `json:"rateLimits"`
}

// rateLimitEntry represents one API context in the Analytics response.
type rateLimitEntry struct {
	APIContext string     `json:"apiContext"`
	APIName    string     `json:"apiName"`
	APIVersion string     `json:"apiVersion"`
	Resources  []resource `json:"resources"`
}

type resource struct {
	Name  string      `json:"name"`
	Rates []quotaRate `json:"rates"`
}

type quotaRate struct {
	Count      int64  `json:"count"`
	Limit      int64  `json:"limit"`
	Remaining  int64  `json:"remaining"`
	Reset      string `json:"reset"`
	TimeWindow int64  `json:"timeWindow"`
}

// QuotaState holds the parsed rate limit state for a single eBay API resource.
type QuotaState struct {
	Resource   string        `json:"resource"`
	Count      int64         `json:"count"`
	Limit      int64         `json:"limit"`
	Remaining  int64         `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	TimeWindow time.Duration `json:"time_window"`
}

// AnalyticsClient queries the eBay Developer Analytics API for the
// application's rate limit state. It needs an application token, not a
// user token.
type AnalyticsClient struct {
	tokens TokenProvider
	url    string
	client *resty.Client
}

// NewAnalyticsClient creates a client for the rate limit endpoint at url.
func NewAnalyticsClient(url string, tokens TokenProvider, hc *http.Client) *AnalyticsClient {
	if hc == nil {
		hc = NewHTTPClient(10 * time.Second)
	}
	return &AnalyticsClient{
		tokens: tokens,
		url:    url,
		client: resty.NewWithClient(hc),
	}
}

// TradingQuota returns the quota of every Trading API resource.
func (c *AnalyticsClient) TradingQuota(ctx context.Context) ([]QuotaState, error) {
	return c.Quota(ctx, TradingAPIContext, TradingAPIName)
}

// Quota returns the quota of every resource of one API.
func (c *AnalyticsClient) Quota(ctx context.Context, apiContext, apiName string) ([]QuotaState, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting auth token: %w", err)
	}

	var apiResp rateLimitResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("api_context", apiContext).
		SetQueryParam("api_name", apiName).
		ForceContentType("application/json").
		SetResult(&apiResp).
		Get(c.url)
	if err != nil {
		if resp != nil && !resp.IsError() && resp.StatusCode() != 0 {
			return nil, fmt.Errorf("parsing analytics response: %w", err)
		}
		return nil, &TransportError{Op: "get rate limits", Err: err}
	}
	if resp.IsError() {
		return nil, &TransportError{
			Op:         "get rate limits",
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}

	return extractQuotas(apiResp, apiName)
}

// extractQuotas flattens the first rate of every resource of apiName.
func extractQuotas(resp rateLimitResponse, apiName string) ([]QuotaState, error) {
	var out []QuotaState
	for _, entry := range resp.RateLimits {
		if !strings.EqualFold(entry.APIName, apiName) {
			continue
		}
		for _, res := range entry.Resources {
			if len(res.Rates) == 0 {
				continue
			}
			r := res.Rates[0]

			resetAt, err := time.Parse(time.RFC3339, r.Reset)
			if err != nil {
				return nil, fmt.Errorf("parsing reset time %q: %w", r.Reset, err)
			}

			out = append(out, QuotaState{
				Resource:   res.Name,
				Count:      r.Count,
				Limit:      r.Limit,
				Remaining:  r.Remaining,
				ResetAt:    resetAt,
				TimeWindow: time.Duration(r.TimeWindow) * time.Second,
			})
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("api %q not found in analytics response", apiName)
	}
	return out, nil
}

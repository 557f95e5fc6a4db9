package ebay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/fizic37/delcampe-ebay/internal/metrics"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

const defaultMarketplace = "EBAY_US"

// Business policy kinds, used as metric labels.
const (
	PolicyFulfillment = "fulfillment"
	PolicyPayment     = "payment"
	PolicyReturn      = "return"
)

type fulfillmentPolicyResponse struct {
	Total    int `json:"total"`
	Policies []struct {
		ID   string `json:"fulfillmentPolicyId"`
		Name string `json:"name"`
	} `json:"fulfillmentPolicies"`
}

type paymentPolicyResponse struct {
	Total    int `json:"total"`
	Policies []struct {
		ID   string `json:"paymentPolicyId"`
		Name string `json:"name"`
	} `json:"paymentPolicies"`
}

type returnPolicyResponse struct {
	Total    int `json:"total"`
	Policies []struct {
		ID   string `json:"returnPolicyId"`
		Name string `json:"name"`
	} `json:"returnPolicies"`
}

// PolicyResolver reads the seller's business policies from the Sell
// Account API. It implements PolicyLookup.
type PolicyResolver struct {
	baseURL     string
	marketplace string
	client      *resty.Client
	log         *slog.Logger
}

// PolicyOption configures the PolicyResolver.
type PolicyOption func(*PolicyResolver)

// WithPolicyMarketplace overrides the default marketplace.
func WithPolicyMarketplace(m string) PolicyOption {
	return func(r *PolicyResolver) {
		r.marketplace = m
	}
}

// WithPolicyLogger sets the logger.
func WithPolicyLogger(l *slog.Logger) PolicyOption {
	return func(r *PolicyResolver) {
		r.log = l
	}
}

// NewPolicyResolver creates a resolver against the Sell Account API rooted
// at baseURL.
func NewPolicyResolver(baseURL string, hc *http.Client, opts ...PolicyOption) *PolicyResolver {
	if hc == nil {
		hc = NewHTTPClient(0)
	}
	r := &PolicyResolver{
		baseURL:     baseURL,
		marketplace: defaultMarketplace,
		client:      resty.NewWithClient(hc),
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks up the first fulfillment, payment and return policy. The
// three lookups run concurrently and fail independently; a failed lookup
// leaves its member empty. Resolve never returns an error.
func (r *PolicyResolver) Resolve(ctx context.Context, accessToken string) domain.BusinessPolicySet {
	var (
		set         domain.BusinessPolicySet
		fulfillment fulfillmentPolicyResponse
		payment     paymentPolicyResponse
		returns     returnPolicyResponse
		g           errgroup.Group
	)

	g.Go(func() error {
		if r.fetch(ctx, accessToken, PolicyFulfillment, "/fulfillment_policy", &fulfillment) &&
			len(fulfillment.Policies) > 0 {
			set.FulfillmentID = fulfillment.Policies[0].ID
		}
		return nil
	})
	g.Go(func() error {
		if r.fetch(ctx, accessToken, PolicyPayment, "/payment_policy", &payment) &&
			len(payment.Policies) > 0 {
			set.PaymentID = payment.Policies[0].ID
		}
		return nil
	})
	g.Go(func() error {
		if r.fetch(ctx, accessToken, PolicyReturn, "/return_policy", &returns) &&
			len(returns.Policies) > 0 {
			set.ReturnID = returns.Policies[0].ID
		}
		return nil
	})
	_ = g.Wait() //nolint:errcheck // lookups report failures through logs and metrics

	if set.Empty() {
		r.log.Warn("no business policies resolved", "marketplace", r.marketplace)
	}
	return set
}

// fetch GETs one policy list into out and reports whether it succeeded.
func (r *PolicyResolver) fetch(ctx context.Context, token, kind, path string, out any) bool {
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		SetHeader(headerMarketplaceID, r.marketplace).
		SetQueryParam("marketplace_id", r.marketplace).
		ForceContentType("application/json").
		SetResult(out).
		Get(r.baseURL + path)

	switch {
	case err != nil:
		err = &TransportError{Op: "get " + kind + " policy", Err: err}
	case resp.IsError():
		err = &TransportError{
			Op:         "get " + kind + " policy",
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode()),
		}
	default:
		return true
	}

	metrics.PolicyLookupFailuresTotal.WithLabelValues(kind).Inc()
	r.log.Warn("business policy lookup failed", "kind", kind, "error", err)
	return false
}

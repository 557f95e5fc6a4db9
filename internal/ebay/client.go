// Package ebay provides the eBay seller API integration: OAuth2 token
// management, identity resolution, the XML Trading API, business policy
// lookups and image hosting, abstracted behind interfaces for testability.
package ebay

import (
	"context"
	"net/http"
	"time"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

const defaultRequestTimeout = 60 * time.Second

// Credentials are the application keys of one environment.
type Credentials struct {
	ClientID     string
	ClientSecret string
	// RuName is the redirect URL name registered for the application. eBay
	// expects it in place of a redirect URI.
	RuName string
	Scopes []string
}

// TokenProvider defines the interface for obtaining OAuth2 access tokens.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// TradingAPI defines the listing operations of the XML Trading API.
type TradingAPI interface {
	AddFixedPriceItem(ctx context.Context, req domain.ListingRequest) (*domain.ProtocolResult, error)
	VerifyAddFixedPriceItem(ctx context.Context, req domain.ListingRequest) (*domain.ProtocolResult, error)
	UploadImage(ctx context.Context, filename string, data []byte) (*domain.ProtocolResult, error)
}

// ImageUploader uploads images to eBay picture hosting.
type ImageUploader interface {
	Upload(ctx context.Context, filename string, data []byte) (*domain.ProtocolResult, error)
}

// PolicyLookup resolves a seller's business policies.
type PolicyLookup interface {
	Resolve(ctx context.Context, accessToken string) domain.BusinessPolicySet
}

// NewHTTPClient returns the HTTP client used for eBay calls. A zero or
// negative timeout falls back to the default request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &http.Client{Timeout: timeout}
}

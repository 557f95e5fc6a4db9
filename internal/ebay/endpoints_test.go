package ebay_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fizic37/delcampe-ebay/internal/ebay"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

func TestEndpointsFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env           domain.Environment
		wantToken     string
		wantAuthorize string
		wantTrading   string
		wantIdentity  string
		wantMedia     string
	}{
		{
			env:           domain.EnvSandbox,
			wantToken:     "https://api.sandbox.ebay.com/identity/v1/oauth2/token",
			wantAuthorize: "https://auth.sandbox.ebay.com/oauth2/authorize",
			wantTrading:   "https://api.sandbox.ebay.com/ws/api.dll",
			wantIdentity:  "https://apiz.sandbox.ebay.com/commerce/identity/v1/user",
			wantMedia:     "https://apim.sandbox.ebay.com/commerce/media/v1_beta/image",
		},
		{
			env:           domain.EnvProduction,
			wantToken:     "https://api.ebay.com/identity/v1/oauth2/token",
			wantAuthorize: "https://auth.ebay.com/oauth2/authorize",
			wantTrading:   "https://api.ebay.com/ws/api.dll",
			wantIdentity:  "https://apiz.ebay.com/commerce/identity/v1/user",
			wantMedia:     "https://apim.ebay.com/commerce/media/v1_beta/image",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.env), func(t *testing.T) {
			t.Parallel()

			ep := ebay.EndpointsFor(tt.env)
			assert.Equal(t, tt.wantToken, ep.TokenURL())
			assert.Equal(t, tt.wantAuthorize, ep.AuthorizeURL())
			assert.Equal(t, tt.wantTrading, ep.TradingURL())
			assert.Equal(t, tt.wantIdentity, ep.IdentityUserURL())
			assert.Equal(t, tt.wantMedia, ep.MediaBaseURL())
		})
	}
}

func TestEndpoints_Override(t *testing.T) {
	t.Parallel()

	ep := ebay.EndpointsFor(domain.EnvSandbox).Override(ebay.Endpoints{
		API:   "http://localhost:8089/",
		Media: "http://localhost:8089",
	})

	assert.Equal(t, "http://localhost:8089/ws/api.dll", ep.TradingURL())
	assert.Equal(t, "http://localhost:8089/sell/account/v1", ep.AccountBaseURL())
	assert.Equal(t, "http://localhost:8089/commerce/media/v1_beta/image", ep.MediaBaseURL())
	assert.Equal(t, "https://auth.sandbox.ebay.com/oauth2/authorize", ep.AuthorizeURL())
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	apiErr := &ebay.APIError{
		Call: ebay.CallAddFixedPriceItem,
		Ack:  ebay.AckFailure,
		Errors: []domain.ProtocolErrorDetail{
			{Code: "87", ShortMessage: "Invalid category."},
			{Code: "240", ShortMessage: "short", LongMessage: "The item cannot be listed."},
		},
	}
	assert.Equal(t,
		"AddFixedPriceItem failed (ack Failure): [87] Invalid category.; [240] The item cannot be listed.",
		apiErr.Error())

	authErr := &ebay.AuthError{Op: "refresh", StatusCode: 400, Err: errors.New("invalid_grant")}
	assert.Equal(t, "auth refresh failed (status 400): invalid_grant", authErr.Error())

	ve := &ebay.ValidationError{Fields: []string{"Title is required", "ImageURLs needs at least 1 entries"}}
	assert.Equal(t, "invalid request: Title is required; ImageURLs needs at least 1 entries", ve.Error())
}

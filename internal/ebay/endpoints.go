package ebay

import (
	"strings"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// Endpoints holds the base URLs of one eBay environment. The identity and
// media APIs live on their own host prefixes.
type Endpoints struct {
	API      string
	Auth     string
	Identity string
	Media    string
}

var defaultEndpoints = map[domain.Environment]Endpoints{
	domain.EnvSandbox: {
		API:      "https://api.sandbox.ebay.com",
		Auth:     "https://auth.sandbox.ebay.com",
		Identity: "https://apiz.sandbox.ebay.com",
		Media:    "https://apim.sandbox.ebay.com",
	},
	domain.EnvProduction: {
		API:      "https://api.ebay.com",
		Auth:     "https://auth.ebay.com",
		Identity: "https://apiz.ebay.com",
		Media:    "https://apim.ebay.com",
	},
}

// EndpointsFor returns the default endpoints of env. Unknown environments
// resolve to production.
func EndpointsFor(env domain.Environment) Endpoints {
	if e, ok := defaultEndpoints[env]; ok {
		return e
	}
	return defaultEndpoints[domain.EnvProduction]
}

// Override replaces every non-empty field of o.
func (e Endpoints) Override(o Endpoints) Endpoints {
	if o.API != "" {
		e.API = o.API
	}
	if o.Auth != "" {
		e.Auth = o.Auth
	}
	if o.Identity != "" {
		e.Identity = o.Identity
	}
	if o.Media != "" {
		e.Media = o.Media
	}
	return e
}

// TokenURL is the OAuth2 token endpoint.
func (e Endpoints) TokenURL() string {
	return trim(e.API) + "/identity/v1/oauth2/token"
}

// AuthorizeURL is the OAuth2 consent page.
func (e Endpoints) AuthorizeURL() string {
	return trim(e.Auth) + "/oauth2/authorize"
}

// TradingURL is the single Trading API endpoint.
func (e Endpoints) TradingURL() string {
	return trim(e.API) + "/ws/api.dll"
}

// IdentityUserURL returns the user lookup endpoint.
func (e Endpoints) IdentityUserURL() string {
	return trim(e.Identity) + "/commerce/identity/v1/user"
}

// AccountBaseURL is the root of the Sell Account API.
func (e Endpoints) AccountBaseURL() string {
	return trim(e.API) + "/sell/account/v1"
}

// MediaBaseURL is the root of the Media API image resources.
func (e Endpoints) MediaBaseURL() string {
	return trim(e.Media) + "/commerce/media/v1_beta/image"
}

// AnalyticsURL is the Developer Analytics rate limit endpoint.
func (e Endpoints) AnalyticsURL() string {
	return trim(e.API) + "/developer/analytics/v1_beta/rate_limit/"
}

func trim(s string) string {
	return strings.TrimRight(s, "/")
}

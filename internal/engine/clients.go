package engine

import (
	"context"
	"log/slog"

	"github.com/fizic37/delcampe-ebay/internal/account"
	"github.com/fizic37/delcampe-ebay/internal/config"
	"github.com/fizic37/delcampe-ebay/internal/ebay"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// TokenManager is the part of ebay.TokenStore the engine drives.
type TokenManager interface {
	ebay.TokenProvider
	EnsureValid(ctx context.Context) (domain.TokenSet, error)
	ExchangeCode(ctx context.Context, code string) (domain.TokenSet, error)
	AuthCodeURL(state string) string
	Inject(t domain.TokenSet)
	SetPersister(p ebay.TokenPersister)
}

// QuotaLookup reports the remote Trading API call quota.
type QuotaLookup interface {
	TradingQuota(ctx context.Context) ([]ebay.QuotaState, error)
}

// EnvClients bundles the eBay clients of one environment. Tokens follows
// whichever account of the environment is active; NewStore builds
// standalone stores for connecting and keeping other accounts alive.
type EnvClients struct {
	Tokens   TokenManager
	NewStore func(t domain.TokenSet) TokenManager
	Identity account.IdentityLookup
	Trading  ebay.TradingAPI
	Media    ebay.ImageUploader
	Policies ebay.PolicyLookup
	Quota    QuotaLookup
	Limiter  *ebay.RateLimiter
}

// NewEnvClients wires the clients of env from configuration.
func NewEnvClients(env domain.Environment, cfg *config.EbayConfig, log *slog.Logger) *EnvClients {
	ec := cfg.Env(env)
	creds := ebay.Credentials{
		ClientID:     ec.ClientID,
		ClientSecret: ec.ClientSecret,
		RuName:       ec.RuName,
		Scopes:       cfg.Scopes,
	}
	ep := ebay.EndpointsFor(env).Override(ebay.Endpoints{
		API:      ec.APIURL,
		Auth:     ec.AuthURL,
		Identity: ec.IdentityURL,
		Media:    ec.MediaURL,
	})
	hc := ebay.NewHTTPClient(cfg.RequestTimeout)
	log = log.With("environment", string(env))

	newStore := func(t domain.TokenSet) *ebay.TokenStore {
		return ebay.NewTokenStore(env, creds, ep,
			ebay.WithHTTPClient(hc),
			ebay.WithLogger(log),
			ebay.WithTokens(t),
		)
	}
	tokens := newStore(domain.TokenSet{})

	limiter := ebay.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, cfg.RateLimit.DailyLimit)

	trading := ebay.NewTradingClient(ep.TradingURL(), tokens,
		ebay.WithTradingHTTPClient(hc),
		ebay.WithSiteID(cfg.SiteID),
		ebay.WithCompatibilityLevel(cfg.CompatibilityLevel),
		ebay.WithDefaultCurrency(cfg.Currency),
		ebay.WithDefaultListingDuration(cfg.ListingDuration),
		ebay.WithTradingRateLimiter(limiter),
		ebay.WithTradingLogger(log),
	)
	policies := ebay.NewPolicyResolver(ep.AccountBaseURL(), hc,
		ebay.WithPolicyMarketplace(cfg.Marketplace),
		ebay.WithPolicyLogger(log),
	)

	c := &EnvClients{
		Tokens:   tokens,
		NewStore: func(t domain.TokenSet) TokenManager { return newStore(t) },
		Identity: ebay.NewIdentityResolver(env, ep, hc, ebay.WithIdentityLogger(log)),
		Trading:  trading,
		Policies: policies,
		Quota:    ebay.NewAnalyticsClient(ep.AnalyticsURL(), tokens.AppTokenProvider(), hc),
		Limiter:  limiter,
	}
	if cfg.MediaAPIEnabled() {
		c.Media = ebay.NewMediaClient(ep.MediaBaseURL(), tokens, hc,
			ebay.WithMediaRateLimiter(limiter),
			ebay.WithMediaLogger(log),
		)
	}
	return c
}

// StoreFactory adapts the clients to account.StoreFactory for migration.
func StoreFactory(clients map[domain.Environment]*EnvClients) account.StoreFactory {
	return func(env domain.Environment, t domain.TokenSet) account.TokenRefresher {
		c, ok := clients[env]
		if !ok {
			return missingEnv(env)
		}
		return c.NewStore(t)
	}
}

// IdentityFactory adapts the clients to account.IdentityFactory.
func IdentityFactory(clients map[domain.Environment]*EnvClients) account.IdentityFactory {
	return func(env domain.Environment) account.IdentityLookup {
		c, ok := clients[env]
		if !ok {
			return missingEnv(env)
		}
		return c.Identity
	}
}

// missingEnv fails every call for an environment without application keys.
type missingEnv domain.Environment

func (m missingEnv) err() error {
	return &ebay.AuthError{Op: "configure", Err: errEnvNotConfigured(domain.Environment(m))}
}

func (m missingEnv) EnsureValid(context.Context) (domain.TokenSet, error) {
	return domain.TokenSet{}, m.err()
}

func (m missingEnv) Resolve(context.Context, string) (domain.Identity, error) {
	return domain.Identity{}, m.err()
}

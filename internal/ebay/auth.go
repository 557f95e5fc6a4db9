package ebay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/fizic37/delcampe-ebay/internal/metrics"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// RefreshSkew is how long before expiry an access token is treated as
// expired.
const RefreshSkew = 300 * time.Second

// DefaultAppScope is the scope of application tokens when none is given.
const DefaultAppScope = "https://api.ebay.com/oauth/api_scope"

// refreshGroup collapses concurrent refresh grants for the same refresh
// token, across every TokenStore in the process. eBay may revoke a refresh
// token once it has been used, so a second in-flight grant would fail.
var refreshGroup singleflight.Group

// TokenPersister saves a token set after a successful grant.
type TokenPersister interface {
	PersistTokens(ctx context.Context, t domain.TokenSet) error
}

// TokenPersisterFunc adapts a function to TokenPersister.
type TokenPersisterFunc func(ctx context.Context, t domain.TokenSet) error

// PersistTokens calls f.
func (f TokenPersisterFunc) PersistTokens(ctx context.Context, t domain.TokenSet) error {
	return f(ctx, t)
}

// TokenStore holds one account's user tokens and refreshes them through
// the eBay OAuth2 token endpoint. It is safe for concurrent use. The
// credentials it holds can be swapped with Inject so one store can follow
// whichever account is active.
type TokenStore struct {
	env        domain.Environment
	oauth      *oauth2.Config
	httpClient *http.Client
	log        *slog.Logger
	nowFunc    func() time.Time

	mu        sync.Mutex
	tokens    domain.TokenSet
	persister TokenPersister

	appMu     sync.Mutex
	appTokens map[string]*oauth2.Token
}

// TokenStoreOption configures the TokenStore.
type TokenStoreOption func(*TokenStore)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) TokenStoreOption {
	return func(s *TokenStore) {
		s.httpClient = c
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) TokenStoreOption {
	return func(s *TokenStore) {
		s.nowFunc = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) TokenStoreOption {
	return func(s *TokenStore) {
		s.log = l
	}
}

// WithPersister sets where refreshed tokens are saved.
func WithPersister(p TokenPersister) TokenStoreOption {
	return func(s *TokenStore) {
		s.persister = p
	}
}

// WithTokens seeds the store with existing tokens.
func WithTokens(t domain.TokenSet) TokenStoreOption {
	return func(s *TokenStore) {
		s.tokens = t
	}
}

// NewTokenStore creates a token store for env using the given endpoints.
func NewTokenStore(
	env domain.Environment,
	creds Credentials,
	ep Endpoints,
	opts ...TokenStoreOption,
) *TokenStore {
	s := &TokenStore{
		env: env,
		oauth: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RuName,
			Scopes:       creds.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   ep.AuthorizeURL(),
				TokenURL:  ep.TokenURL(),
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: NewHTTPClient(0),
		log:        slog.Default(),
		nowFunc:    time.Now,
		appTokens:  make(map[string]*oauth2.Token),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Environment returns the environment the store issues tokens for.
func (s *TokenStore) Environment() domain.Environment {
	return s.env
}

// Token returns a valid access token. It implements TokenProvider.
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	t, err := s.EnsureValid(ctx)
	if err != nil {
		return "", err
	}
	return t.AccessToken, nil
}

// Tokens returns a copy of the current token set.
func (s *TokenStore) Tokens() domain.TokenSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// Inject replaces the held tokens in place.
func (s *TokenStore) Inject(t domain.TokenSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
}

// SetPersister replaces the persister used after grants. A nil persister
// disables persistence.
func (s *TokenStore) SetPersister(p TokenPersister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persister = p
}

// AuthCodeURL returns the consent page URL the seller must visit to
// authorize the application.
func (s *TokenStore) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// EnsureValid returns the current tokens, refreshing them first when the
// access token is missing or expires within RefreshSkew. A refresh failure
// is returned as is; the expired token is never handed out. When the store
// is rebound with Inject during a grant, the result of that grant is dropped
// and the rebound tokens are validated instead.
func (s *TokenStore) EnsureValid(ctx context.Context) (domain.TokenSet, error) {
	for {
		s.mu.Lock()
		cur := s.tokens
		persister := s.persister
		s.mu.Unlock()

		if s.fresh(cur) {
			return cur, nil
		}
		if cur.RefreshToken == "" {
			return domain.TokenSet{}, &AuthError{Op: "refresh", Err: ErrNoRefreshToken}
		}

		v, err, _ := refreshGroup.Do(cur.RefreshToken, func() (any, error) {
			// A flight that ended after cur was read may already have spent
			// this refresh token.
			if latest := s.Tokens(); latest.RefreshToken != cur.RefreshToken || s.fresh(latest) {
				return latest, nil
			}
			next, err := s.refresh(ctx, cur.RefreshToken)
			if err != nil {
				return nil, err
			}
			s.mu.Lock()
			if s.tokens.RefreshToken == cur.RefreshToken {
				s.tokens = next
			}
			s.mu.Unlock()
			s.persist(ctx, persister, next)
			return next, nil
		})
		if err != nil {
			return domain.TokenSet{}, err
		}
		next, _ := v.(domain.TokenSet) //nolint:errcheck // the group only returns TokenSet

		s.mu.Lock()
		switch {
		case sameTokens(s.tokens, next):
		case s.tokens.RefreshToken == cur.RefreshToken:
			// The flight ran on another store holding the same refresh token.
			s.tokens = next
		default:
			s.mu.Unlock()
			if err := ctx.Err(); err != nil {
				return domain.TokenSet{}, err
			}
			continue
		}
		s.mu.Unlock()
		return next, nil
	}
}

func sameTokens(a, b domain.TokenSet) bool {
	return a.AccessToken == b.AccessToken &&
		a.RefreshToken == b.RefreshToken &&
		a.Expiry.Equal(b.Expiry)
}

// ExchangeCode runs the authorization code grant and replaces the held
// tokens with the result.
func (s *TokenStore) ExchangeCode(ctx context.Context, code string) (domain.TokenSet, error) {
	tok, err := s.oauth.Exchange(s.clientContext(ctx), code)
	if err != nil {
		metrics.TokenExchangesTotal.WithLabelValues("authorization_code", "error").Inc()
		return domain.TokenSet{}, wrapAuthError("exchange", err)
	}
	metrics.TokenExchangesTotal.WithLabelValues("authorization_code", "success").Inc()

	t := s.tokenSet(tok, "")

	s.mu.Lock()
	s.tokens = t
	persister := s.persister
	s.mu.Unlock()

	s.persist(ctx, persister, t)
	s.log.Info("authorization code exchanged", "environment", s.env, "expires_at", t.Expiry)
	return t, nil
}

// AppToken returns an application access token from the client credentials
// grant, cached until it nears expiry.
func (s *TokenStore) AppToken(ctx context.Context, scopes ...string) (string, error) {
	if len(scopes) == 0 {
		scopes = []string{DefaultAppScope}
	}
	key := strings.Join(scopes, " ")

	s.appMu.Lock()
	defer s.appMu.Unlock()

	if tok, ok := s.appTokens[key]; ok && s.nowFunc().Before(tok.Expiry.Add(-RefreshSkew)) {
		return tok.AccessToken, nil
	}

	cc := clientcredentials.Config{
		ClientID:     s.oauth.ClientID,
		ClientSecret: s.oauth.ClientSecret,
		TokenURL:     s.oauth.Endpoint.TokenURL,
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tok, err := cc.Token(s.clientContext(ctx))
	if err != nil {
		metrics.TokenExchangesTotal.WithLabelValues("client_credentials", "error").Inc()
		return "", wrapAuthError("client credentials", err)
	}
	metrics.TokenExchangesTotal.WithLabelValues("client_credentials", "success").Inc()

	tok.Expiry = s.expiry(tok)
	s.appTokens[key] = tok
	return tok.AccessToken, nil
}

// AppTokenProvider returns a TokenProvider issuing application tokens for
// scopes.
func (s *TokenStore) AppTokenProvider(scopes ...string) TokenProvider {
	return TokenProviderFunc(func(ctx context.Context) (string, error) {
		return s.AppToken(ctx, scopes...)
	})
}

func (s *TokenStore) fresh(t domain.TokenSet) bool {
	return t.AccessToken != "" && s.nowFunc().Before(t.Expiry.Add(-RefreshSkew))
}

func (s *TokenStore) refresh(ctx context.Context, refreshToken string) (domain.TokenSet, error) {
	src := s.oauth.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		s.log.Warn("token refresh failed", "environment", s.env, "error", err)
		return domain.TokenSet{}, wrapAuthError("refresh", err)
	}
	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()

	t := s.tokenSet(tok, refreshToken)
	s.log.Debug("token refreshed", "environment", s.env, "expires_at", t.Expiry)
	return t, nil
}

// tokenSet converts tok, keeping fallbackRefresh when the endpoint omitted
// a new refresh token.
func (s *TokenStore) tokenSet(tok *oauth2.Token, fallbackRefresh string) domain.TokenSet {
	t := domain.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       s.expiry(tok).UTC(),
	}
	if t.RefreshToken == "" {
		t.RefreshToken = fallbackRefresh
	}
	return t
}

func (s *TokenStore) expiry(tok *oauth2.Token) time.Time {
	if tok.ExpiresIn > 0 {
		return s.nowFunc().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return tok.Expiry
}

func (s *TokenStore) persist(ctx context.Context, p TokenPersister, t domain.TokenSet) {
	if p == nil {
		return
	}
	if err := p.PersistTokens(ctx, t); err != nil {
		s.log.Error("persisting refreshed tokens", "environment", s.env, "error", err)
	}
}

func (s *TokenStore) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// wrapAuthError attaches the provider's status and raw body when the grant
// was rejected.
func wrapAuthError(op string, err error) error {
	ae := &AuthError{Op: op, Err: err}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		ae.Body = string(re.Body)
		if re.Response != nil {
			ae.StatusCode = re.Response.StatusCode
		}
	}
	return ae
}

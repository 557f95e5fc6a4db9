package ebay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/fizic37/delcampe-ebay/internal/metrics"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// Identity strategy names, recorded in domain.Identity.Source.
const (
	SourceJWT  = "jwt"
	SourceREST = "identity_api"
	SourceHash = "token_hash"
)

var (
	userIDClaims   = []string{"http://schemas.ebay.com/identity/claims/userid", "sub", "user_id", "userId"}
	usernameClaims = []string{"preferred_username", "username", "name"}
)

// IdentityStrategy is one way of mapping an access token to the user it
// belongs to.
type IdentityStrategy interface {
	Name() string
	Resolve(ctx context.Context, accessToken string) (domain.Identity, error)
}

// IdentityResolver tries its strategies in order and returns the first
// identity resolved.
type IdentityResolver struct {
	strategies []IdentityStrategy
	log        *slog.Logger
}

// IdentityOption configures the IdentityResolver.
type IdentityOption func(*IdentityResolver)

// WithStrategies replaces the default strategy chain.
func WithStrategies(s ...IdentityStrategy) IdentityOption {
	return func(r *IdentityResolver) {
		r.strategies = s
	}
}

// WithIdentityLogger sets the logger.
func WithIdentityLogger(l *slog.Logger) IdentityOption {
	return func(r *IdentityResolver) {
		r.log = l
	}
}

// NewIdentityResolver creates a resolver that decodes the token claims,
// then asks the identity API, then falls back to a hash of the token.
func NewIdentityResolver(
	env domain.Environment,
	ep Endpoints,
	hc *http.Client,
	opts ...IdentityOption,
) *IdentityResolver {
	if hc == nil {
		hc = NewHTTPClient(0)
	}
	r := &IdentityResolver{
		strategies: []IdentityStrategy{
			JWTStrategy{},
			NewRESTStrategy(ep.IdentityUserURL(), hc),
			HashStrategy{Env: env},
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the identity behind accessToken.
func (r *IdentityResolver) Resolve(ctx context.Context, accessToken string) (domain.Identity, error) {
	var errs []error
	for _, s := range r.strategies {
		id, err := s.Resolve(ctx, accessToken)
		if err != nil {
			r.log.Debug("identity strategy failed", "strategy", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		id.Source = s.Name()
		metrics.IdentityResolutionsTotal.WithLabelValues(s.Name()).Inc()
		return id, nil
	}
	return domain.Identity{}, fmt.Errorf("resolving identity: %w", errors.Join(errs...))
}

// JWTStrategy reads the user from the claims of a JWT access token.
type JWTStrategy struct{}

// Name implements IdentityStrategy.
func (JWTStrategy) Name() string { return SourceJWT }

// Resolve implements IdentityStrategy.
func (JWTStrategy) Resolve(_ context.Context, accessToken string) (domain.Identity, error) {
	claims, err := decodeClaims(accessToken)
	if err != nil {
		return domain.Identity{}, err
	}

	userID := firstClaim(claims, userIDClaims)
	if userID == "" {
		return domain.Identity{}, errors.New("no user id claim")
	}
	username := firstClaim(claims, usernameClaims)
	if username == "" {
		username = userID
	}
	return domain.Identity{UserID: userID, Username: username}, nil
}

func decodeClaims(token string) (map[string]any, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("token is not a JWT")
	}

	payload := strings.NewReplacer("-", "+", "_", "/").Replace(parts[1])
	if m := len(payload) % 4; m != 0 {
		payload += strings.Repeat("=", 4-m)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding JWT payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var claims map[string]any
	if err := dec.Decode(&claims); err != nil {
		return nil, fmt.Errorf("parsing JWT claims: %w", err)
	}
	return claims, nil
}

func firstClaim(claims map[string]any, names []string) string {
	for _, n := range names {
		switch v := claims[n].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// RESTStrategy asks the Commerce Identity API for the user.
type RESTStrategy struct {
	url    string
	client *resty.Client
}

// NewRESTStrategy creates a strategy calling the user endpoint at url.
func NewRESTStrategy(url string, hc *http.Client) *RESTStrategy {
	return &RESTStrategy{url: url, client: resty.NewWithClient(hc)}
}

// Name implements IdentityStrategy.
func (*RESTStrategy) Name() string { return SourceREST }

type identityUserResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Resolve implements IdentityStrategy.
func (s *RESTStrategy) Resolve(ctx context.Context, accessToken string) (domain.Identity, error) {
	var out identityUserResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetHeader("Accept", "application/json").
		ForceContentType("application/json").
		SetResult(&out).
		Get(s.url)
	if err != nil {
		return domain.Identity{}, &TransportError{Op: "get identity user", Err: err}
	}
	if resp.IsError() {
		return domain.Identity{}, &TransportError{
			Op:         "get identity user",
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}
	if out.UserID == "" {
		return domain.Identity{}, errors.New("identity response has no userId")
	}
	if out.Username == "" {
		out.Username = out.UserID
	}
	return domain.Identity{UserID: out.UserID, Username: out.Username}, nil
}

// HashStrategy synthesizes a stable identity from a hash of the token. It
// never fails. The ebay_user_ prefix cannot collide with a real eBay user
// id.
type HashStrategy struct {
	Env domain.Environment
}

// Name implements IdentityStrategy.
func (HashStrategy) Name() string { return SourceHash }

// Resolve implements IdentityStrategy.
func (s HashStrategy) Resolve(_ context.Context, accessToken string) (domain.Identity, error) {
	sum := sha256.Sum256([]byte(accessToken))
	h := hex.EncodeToString(sum[:])[:8]
	return domain.Identity{
		UserID:   "ebay_user_" + h,
		Username: "eBay_" + string(s.Env) + "_" + h,
	}, nil
}

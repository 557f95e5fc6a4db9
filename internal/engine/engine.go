// Package engine runs listing operations on behalf of the active eBay
// seller account and keeps every connected account's tokens alive.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fizic37/delcampe-ebay/internal/account"
	"github.com/fizic37/delcampe-ebay/internal/ebay"
	"github.com/fizic37/delcampe-ebay/internal/metrics"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

const (
	defaultPolicyTTL = time.Hour
	defaultStateTTL  = 15 * time.Minute
)

var (
	// ErrNoActiveAccount is returned when no seller account is active.
	ErrNoActiveAccount = errors.New("no active eBay account")
	// ErrUnknownState is returned for OAuth callbacks with a state the
	// engine did not issue or that has expired.
	ErrUnknownState = errors.New("unknown or expired authorization state")
	// ErrEnvNotConfigured is returned for environments without
	// application keys.
	ErrEnvNotConfigured = errors.New("no application keys configured")
)

func errEnvNotConfigured(env domain.Environment) error {
	return fmt.Errorf("environment %s: %w", env, ErrEnvNotConfigured)
}

// binding tracks which account an environment's token store holds.
type binding struct {
	mu  sync.RWMutex
	key string
}

type cachedPolicies struct {
	set     domain.BusinessPolicySet
	expires time.Time
}

type pendingAuth struct {
	env     domain.Environment
	expires time.Time
}

// Engine routes listing operations to the clients of the active account's
// environment.
type Engine struct {
	registry   *account.Registry
	clients    map[domain.Environment]*EnvClients
	defaultEnv domain.Environment
	log        *slog.Logger
	nowFunc    func() time.Time
	policyTTL  time.Duration
	stateTTL   time.Duration

	bindings map[domain.Environment]*binding

	mu       sync.Mutex
	policies map[string]cachedPolicies
	states   map[string]pendingAuth
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowFunc = f
	}
}

// WithPolicyTTL sets how long resolved business policies are reused.
func WithPolicyTTL(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.policyTTL = d
	}
}

// WithDefaultEnvironment sets the environment used for new connections
// when the caller does not name one.
func WithDefaultEnvironment(env domain.Environment) EngineOption {
	return func(e *Engine) {
		e.defaultEnv = env
	}
}

// NewEngine creates a new Engine over the registry and the per-environment
// clients.
func NewEngine(
	reg *account.Registry,
	clients map[domain.Environment]*EnvClients,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		registry:   reg,
		clients:    clients,
		defaultEnv: domain.EnvSandbox,
		log:        slog.Default(),
		nowFunc:    time.Now,
		policyTTL:  defaultPolicyTTL,
		stateTTL:   defaultStateTTL,
		bindings:   make(map[domain.Environment]*binding, len(clients)),
		policies:   make(map[string]cachedPolicies),
		states:     make(map[string]pendingAuth),
	}
	for _, opt := range opts {
		opt(eng)
	}
	for env := range clients {
		eng.bindings[env] = &binding{}
	}
	return eng
}

// Accounts returns every connected account sorted by key, along with the
// key of the active one.
func (eng *Engine) Accounts() ([]domain.Account, string) {
	return eng.registry.List(), eng.registry.ActiveKey()
}

// Environments returns the environments with application keys, sorted.
func (eng *Engine) Environments() []domain.Environment {
	envs := make([]domain.Environment, 0, len(eng.clients))
	for env := range eng.clients {
		envs = append(envs, env)
	}
	slices.Sort(envs)
	return envs
}

// Ready reports whether the engine can serve listing operations: at least
// one environment is configured and the active account, if any, belongs to
// a configured environment.
func (eng *Engine) Ready() error {
	if len(eng.clients) == 0 {
		return ErrEnvNotConfigured
	}
	if a := eng.registry.Active(); a != nil {
		if _, ok := eng.clients[a.Environment]; !ok {
			return errEnvNotConfigured(a.Environment)
		}
	}
	return nil
}

// DefaultEnvironment returns the environment used for new connections.
func (eng *Engine) DefaultEnvironment() domain.Environment {
	return eng.defaultEnv
}

// session is an operation holding the active account's environment bound.
type session struct {
	account domain.Account
	clients *EnvClients
	release func()
}

// acquire binds the active account into its environment's token store and
// holds the binding until release is called, so a concurrent switch cannot
// swap the credentials mid-operation.
func (eng *Engine) acquire() (*session, error) {
	for {
		active := eng.registry.Active()
		if active == nil {
			return nil, ErrNoActiveAccount
		}
		c, ok := eng.clients[active.Environment]
		if !ok {
			return nil, errEnvNotConfigured(active.Environment)
		}
		b := eng.bindings[active.Environment]
		key := active.Key()

		b.mu.RLock()
		if b.key == key {
			return &session{account: *active, clients: c, release: b.mu.RUnlock}, nil
		}
		b.mu.RUnlock()

		b.mu.Lock()
		if b.key != key {
			// Re-read so tokens refreshed since Active() are not lost.
			if cur, ok := eng.registry.Get(key); ok {
				c.Tokens.Inject(cur.Tokens())
				c.Tokens.SetPersister(eng.registry.Persister(key))
				b.key = key
				eng.log.Info("bound account", "account", key, "environment", string(active.Environment))
			}
		}
		b.mu.Unlock()
	}
}

// unbind forgets the binding of key so the next operation re-injects it.
func (eng *Engine) unbind(key string) {
	for _, b := range eng.bindings {
		b.mu.Lock()
		if b.key == key {
			b.key = ""
		}
		b.mu.Unlock()
	}
	eng.mu.Lock()
	delete(eng.policies, key)
	eng.mu.Unlock()
}

// Publish submits req as a fixed price listing for the active account, or
// only validates it when verify is set. Business policies are resolved
// when the request carries none.
func (eng *Engine) Publish(
	ctx context.Context,
	req domain.ListingRequest,
	verify bool,
) (*domain.ProtocolResult, error) {
	s, err := eng.acquire()
	if err != nil {
		return nil, err
	}
	defer s.release()

	if req.Policies.Empty() {
		req.Policies = eng.businessPolicies(ctx, s)
	}

	call := eng.log.With("account", s.account.Key(), "verify", verify)
	var res *domain.ProtocolResult
	if verify {
		res, err = s.clients.Trading.VerifyAddFixedPriceItem(ctx, req)
	} else {
		res, err = s.clients.Trading.AddFixedPriceItem(ctx, req)
	}
	if err != nil {
		call.Error("listing failed", "title", req.Title, "error", err)
		return res, err
	}
	if len(res.Warnings) > 0 {
		call.Warn("listing accepted with warnings", "item_id", res.ItemID, "warnings", res.Warnings)
	} else {
		call.Info("listing accepted", "item_id", res.ItemID)
	}
	return res, nil
}

// businessPolicies returns the cached policy set of the session's account,
// resolving it when missing or stale. An empty result is not cached.
func (eng *Engine) businessPolicies(ctx context.Context, s *session) domain.BusinessPolicySet {
	if s.clients.Policies == nil {
		return domain.BusinessPolicySet{}
	}
	key := s.account.Key()
	now := eng.nowFunc()

	eng.mu.Lock()
	cached, ok := eng.policies[key]
	eng.mu.Unlock()
	if ok && now.Before(cached.expires) {
		return cached.set
	}

	token, err := s.clients.Tokens.Token(ctx)
	if err != nil {
		eng.log.Warn("skipping business policy lookup", "account", key, "error", err)
		return domain.BusinessPolicySet{}
	}

	set := s.clients.Policies.Resolve(ctx, token)
	if !set.Empty() {
		eng.mu.Lock()
		eng.policies[key] = cachedPolicies{set: set, expires: now.Add(eng.policyTTL)}
		eng.mu.Unlock()
	}
	return set
}

// UploadImage hosts an image for the active account. The Media API is used
// when configured unless viaTrading forces the Trading API upload.
func (eng *Engine) UploadImage(
	ctx context.Context,
	filename string,
	data []byte,
	viaTrading bool,
) (*domain.ProtocolResult, error) {
	s, err := eng.acquire()
	if err != nil {
		return nil, err
	}
	defer s.release()

	if viaTrading || s.clients.Media == nil {
		return s.clients.Trading.UploadImage(ctx, filename, data)
	}
	return s.clients.Media.Upload(ctx, filename, data)
}

// AuthURL returns the consent page URL for env along with the state value
// the callback must echo. An empty env selects the default environment.
func (eng *Engine) AuthURL(env domain.Environment) (string, string, error) {
	if env == "" {
		env = eng.defaultEnv
	}
	c, ok := eng.clients[env]
	if !ok {
		return "", "", errEnvNotConfigured(env)
	}

	state := uuid.NewString()
	now := eng.nowFunc()

	eng.mu.Lock()
	for k, p := range eng.states {
		if now.After(p.expires) {
			delete(eng.states, k)
		}
	}
	eng.states[state] = pendingAuth{env: env, expires: now.Add(eng.stateTTL)}
	eng.mu.Unlock()

	return c.Tokens.AuthCodeURL(state), state, nil
}

// ConsumeState returns the environment an authorization state was issued
// for. Each state is accepted once.
func (eng *Engine) ConsumeState(state string) (domain.Environment, error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	p, ok := eng.states[state]
	if !ok {
		return "", ErrUnknownState
	}
	delete(eng.states, state)
	if eng.nowFunc().After(p.expires) {
		return "", ErrUnknownState
	}
	return p.env, nil
}

// Connect exchanges an authorization code for tokens, resolves the seller
// behind them and stores the account. An empty env selects the default
// environment.
func (eng *Engine) Connect(ctx context.Context, env domain.Environment, code string) (domain.Account, error) {
	if env == "" {
		env = eng.defaultEnv
	}
	c, ok := eng.clients[env]
	if !ok {
		return domain.Account{}, errEnvNotConfigured(env)
	}

	tokens, err := c.NewStore(domain.TokenSet{}).ExchangeCode(ctx, code)
	if err != nil {
		return domain.Account{}, err
	}

	id, err := c.Identity.Resolve(ctx, tokens.AccessToken)
	if err != nil {
		return domain.Account{}, fmt.Errorf("resolving seller identity: %w", err)
	}

	now := eng.nowFunc().UTC()
	acct := domain.Account{
		UserID:      id.UserID,
		Username:    id.Username,
		Environment: env,
		ConnectedAt: now,
		LastUsedAt:  now,
	}
	acct.ApplyTokens(tokens)

	key, err := eng.registry.Add(acct)
	if err != nil {
		return domain.Account{}, fmt.Errorf("storing account: %w", err)
	}
	eng.unbind(key)

	stored, _ := eng.registry.Get(key)
	eng.log.Info("account connected",
		"account", key,
		"username", stored.Username,
		"identity_source", id.Source,
	)
	return stored, nil
}

// SetActive switches the active account.
func (eng *Engine) SetActive(key string) error {
	ok, err := eng.registry.SetActive(key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", account.ErrNotFound, key)
	}
	eng.log.Info("active account changed", "account", key)
	return nil
}

// Disconnect removes the account stored under key.
func (eng *Engine) Disconnect(key string) error {
	ok, err := eng.registry.Remove(key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", account.ErrNotFound, key)
	}
	eng.unbind(key)
	eng.log.Info("account disconnected", "account", key, "active", eng.registry.ActiveKey())
	return nil
}

// RefreshError reports the failed keep-alive refresh of one account.
type RefreshError struct {
	Account domain.Account
	Err     error
}

func (e *RefreshError) Error() string {
	return e.Account.Key() + ": " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// RefreshErrors returns the per-account failures joined into err by
// RefreshAll.
func RefreshErrors(err error) []*RefreshError {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	var out []*RefreshError
	for _, e := range errs {
		var re *RefreshError
		if errors.As(e, &re) {
			out = append(out, re)
		}
	}
	return out
}

// RefreshAll refreshes every stored account whose access token is close to
// expiry and persists the result. Failures are collected, not fatal.
func (eng *Engine) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, a := range eng.registry.List() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := eng.refreshAccount(ctx, a); err != nil {
			metrics.KeepaliveFailuresTotal.Inc()
			eng.log.Warn("keep-alive refresh failed", "account", a.Key(), "error", err)
			errs = append(errs, &RefreshError{Account: a, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (eng *Engine) refreshAccount(ctx context.Context, a domain.Account) error {
	c, ok := eng.clients[a.Environment]
	if !ok {
		return errEnvNotConfigured(a.Environment)
	}
	key := a.Key()

	// The bound store refreshes through the registry persister already.
	b := eng.bindings[a.Environment]
	b.mu.RLock()
	if b.key == key {
		defer b.mu.RUnlock()
		_, err := c.Tokens.EnsureValid(ctx)
		return err
	}
	b.mu.RUnlock()

	store := c.NewStore(a.Tokens())
	store.SetPersister(eng.registry.Persister(key))
	_, err := store.EnsureValid(ctx)
	return err
}

// QuotaReport combines the local rate limiter state with eBay's view of the
// Trading API quota.
type QuotaReport struct {
	Environment domain.Environment `json:"environment"`
	Local       ebay.Usage         `json:"local"`
	Remote      []ebay.QuotaState  `json:"remote,omitempty"`
	RemoteError string             `json:"remote_error,omitempty"`
}

// Quota reports call quotas for env, or the active account's environment
// when env is empty.
func (eng *Engine) Quota(ctx context.Context, env domain.Environment) (*QuotaReport, error) {
	if env == "" {
		if a := eng.registry.Active(); a != nil {
			env = a.Environment
		} else {
			env = eng.defaultEnv
		}
	}
	c, ok := eng.clients[env]
	if !ok {
		return nil, errEnvNotConfigured(env)
	}

	rep := &QuotaReport{Environment: env}
	if c.Limiter != nil {
		rep.Local = c.Limiter.Usage()
	}
	if c.Quota != nil {
		remote, err := c.Quota.TradingQuota(ctx)
		if err != nil {
			eng.log.Warn("quota lookup failed", "environment", string(env), "error", err)
			rep.RemoteError = err.Error()
		}
		rep.Remote = remote
	}
	return rep, nil
}

package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fizic37/delcampe-ebay/internal/account"
	"github.com/fizic37/delcampe-ebay/internal/ebay"
	ebayMocks "github.com/fizic37/delcampe-ebay/internal/ebay/mocks"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// quietLogger returns a logger that discards output for tests.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTokens is an in-memory TokenManager. When next is set, EnsureValid
// behaves like a refresh to next and persists it.
type fakeTokens struct {
	mu          sync.Mutex
	tokens      domain.TokenSet
	persister   ebay.TokenPersister
	injected    []domain.TokenSet
	next        *domain.TokenSet
	ensureErr   error
	ensureCalls int
	exchange    domain.TokenSet
	exchangeErr error
}

func (f *fakeTokens) EnsureValid(ctx context.Context) (domain.TokenSet, error) {
	f.mu.Lock()
	f.ensureCalls++
	if f.ensureErr != nil {
		f.mu.Unlock()
		return domain.TokenSet{}, f.ensureErr
	}
	if f.next != nil {
		f.tokens = *f.next
	}
	t, p := f.tokens, f.persister
	f.mu.Unlock()

	if f.next != nil && p != nil {
		if err := p.PersistTokens(ctx, t); err != nil {
			return domain.TokenSet{}, err
		}
	}
	return t, nil
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	t, err := f.EnsureValid(ctx)
	return t.AccessToken, err
}

func (f *fakeTokens) ExchangeCode(context.Context, string) (domain.TokenSet, error) {
	return f.exchange, f.exchangeErr
}

func (f *fakeTokens) AuthCodeURL(state string) string {
	return "https://auth.example.test/oauth2/authorize?state=" + state
}

func (f *fakeTokens) Inject(t domain.TokenSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = t
	f.injected = append(f.injected, t)
}

func (f *fakeTokens) SetPersister(p ebay.TokenPersister) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persister = p
}

func (f *fakeTokens) injectedTokens() []domain.TokenSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TokenSet(nil), f.injected...)
}

type stubIdentity struct {
	id  domain.Identity
	err error
}

func (s stubIdentity) Resolve(context.Context, string) (domain.Identity, error) {
	return s.id, s.err
}

type stubQuota struct {
	states []ebay.QuotaState
	err    error
}

func (s stubQuota) TradingQuota(context.Context) ([]ebay.QuotaState, error) {
	return s.states, s.err
}

type testRig struct {
	eng      *Engine
	reg      *account.Registry
	tokens   *fakeTokens
	trading  *ebayMocks.MockTradingAPI
	media    *ebayMocks.MockImageUploader
	policies *ebayMocks.MockPolicyLookup
	clients  *EnvClients
}

func newRig(t *testing.T, accounts ...domain.Account) *testRig {
	t.Helper()

	reg, err := account.Open(
		filepath.Join(t.TempDir(), "accounts.json"),
		account.WithNowFunc(func() time.Time { return testNow }),
		account.WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	for _, a := range accounts {
		_, err := reg.Add(a)
		require.NoError(t, err)
	}

	r := &testRig{
		reg:      reg,
		tokens:   &fakeTokens{},
		trading:  ebayMocks.NewMockTradingAPI(t),
		media:    ebayMocks.NewMockImageUploader(t),
		policies: ebayMocks.NewMockPolicyLookup(t),
	}
	r.clients = &EnvClients{
		Tokens: r.tokens,
		NewStore: func(ts domain.TokenSet) TokenManager {
			return &fakeTokens{tokens: ts}
		},
		Identity: stubIdentity{id: domain.Identity{UserID: "newseller", Username: "New Seller", Source: ebay.SourceJWT}},
		Trading:  r.trading,
		Media:    r.media,
		Policies: r.policies,
		Quota:    stubQuota{},
		Limiter:  ebay.NewRateLimiter(5, 10, 100),
	}
	r.eng = NewEngine(reg, map[domain.Environment]*EnvClients{domain.EnvSandbox: r.clients},
		WithLogger(quietLogger()),
		WithNowFunc(func() time.Time { return testNow }),
	)
	return r
}

func seller(id string) domain.Account {
	return domain.Account{
		UserID:       id,
		Username:     "user-" + id,
		Environment:  domain.EnvSandbox,
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		TokenExpiry:  testNow.Add(2 * time.Hour),
	}
}

func listing() domain.ListingRequest {
	return domain.ListingRequest{
		Title:       "X",
		Description: "Postcard",
		Price:       "5.00",
		CategoryID:  "262042",
		ConditionID: 3000,
		Country:     "RO",
		Location:    "Bucharest",
		ImageURLs:   []string{"https://img"},
	}
}

var resolvedPolicies = domain.BusinessPolicySet{
	FulfillmentID: "6196932000",
	ReturnID:      "6196955000",
}

func TestNewEngine_Defaults(t *testing.T) {
	t.Parallel()

	eng := NewEngine(nil, map[domain.Environment]*EnvClients{domain.EnvSandbox: {}})
	assert.Equal(t, defaultPolicyTTL, eng.policyTTL)
	assert.Equal(t, domain.EnvSandbox, eng.DefaultEnvironment())
	assert.Contains(t, eng.bindings, domain.EnvSandbox)
	assert.NotNil(t, eng.log)
}

func TestAccountsAndReady(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("bob"), seller("alice"))

	accounts, active := r.eng.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice", accounts[0].UserID)
	assert.Equal(t, "bob_sandbox", active)
	assert.Equal(t, []domain.Environment{domain.EnvSandbox}, r.eng.Environments())
	require.NoError(t, r.eng.Ready())

	prod := seller("carol")
	prod.Environment = domain.EnvProduction
	_, err := r.reg.Add(prod)
	require.NoError(t, err)
	require.NoError(t, r.eng.SetActive(prod.Key()))
	require.ErrorIs(t, r.eng.Ready(), ErrEnvNotConfigured)

	empty := NewEngine(r.reg, nil)
	require.ErrorIs(t, empty.Ready(), ErrEnvNotConfigured)
}

func TestPublish_NoActiveAccount(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	_, err := r.eng.Publish(context.Background(), listing(), false)
	require.ErrorIs(t, err, ErrNoActiveAccount)
}

func TestPublish_BindsAccountAndCachesPolicies(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"))

	r.policies.EXPECT().Resolve(mock.Anything, "access-alice").Return(resolvedPolicies).Once()
	r.trading.EXPECT().
		AddFixedPriceItem(mock.Anything, mock.MatchedBy(func(req domain.ListingRequest) bool {
			return req.Policies == resolvedPolicies
		})).
		Return(&domain.ProtocolResult{Success: true, Ack: ebay.AckSuccess, ItemID: "110445566"}, nil).
		Twice()

	for range 2 {
		res, err := r.eng.Publish(context.Background(), listing(), false)
		require.NoError(t, err)
		assert.Equal(t, "110445566", res.ItemID)
	}

	injected := r.tokens.injectedTokens()
	require.Len(t, injected, 1, "the account is bound once")
	assert.Equal(t, "access-alice", injected[0].AccessToken)
}

func TestPublish_PolicyCacheExpires(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"))
	now := testNow
	r.eng.nowFunc = func() time.Time { return now }

	r.policies.EXPECT().Resolve(mock.Anything, mock.Anything).Return(resolvedPolicies).Twice()
	r.trading.EXPECT().VerifyAddFixedPriceItem(mock.Anything, mock.Anything).
		Return(&domain.ProtocolResult{Success: true}, nil).Twice()

	_, err := r.eng.Publish(context.Background(), listing(), true)
	require.NoError(t, err)

	now = now.Add(defaultPolicyTTL + time.Second)
	_, err = r.eng.Publish(context.Background(), listing(), true)
	require.NoError(t, err)
}

func TestPublish_EmptyPoliciesAreNotCached(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"))

	r.policies.EXPECT().Resolve(mock.Anything, mock.Anything).Return(domain.BusinessPolicySet{}).Twice()
	r.trading.EXPECT().AddFixedPriceItem(mock.Anything, mock.Anything).
		Return(&domain.ProtocolResult{Success: true, ItemID: "1"}, nil).Twice()

	for range 2 {
		_, err := r.eng.Publish(context.Background(), listing(), false)
		require.NoError(t, err)
	}
}

func TestPublish_ExplicitPoliciesSkipLookup(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"))

	req := listing()
	req.Policies = domain.BusinessPolicySet{PaymentID: "explicit"}
	r.trading.EXPECT().VerifyAddFixedPriceItem(mock.Anything, req).
		Return(&domain.ProtocolResult{Success: true, Ack: ebay.AckWarning, Warnings: []string{"w"}}, nil).
		Once()

	res, err := r.eng.Publish(context.Background(), req, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"w"}, res.Warnings)
}

func TestPublish_APIErrorCarriesResult(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"))

	details := []domain.ProtocolErrorDetail{{Code: "87", ShortMessage: "Invalid category."}}
	apiErr := &ebay.APIError{Call: ebay.CallAddFixedPriceItem, Ack: ebay.AckFailure, Errors: details}
	r.policies.EXPECT().Resolve(mock.Anything, mock.Anything).Return(domain.BusinessPolicySet{})
	r.trading.EXPECT().AddFixedPriceItem(mock.Anything, mock.Anything).
		Return(&domain.ProtocolResult{Success: false, Errors: details}, apiErr)

	res, err := r.eng.Publish(context.Background(), listing(), false)
	var got *ebay.APIError
	require.ErrorAs(t, err, &got)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, details, res.Errors)
}

func TestPublish_TokenFailureSkipsPolicies(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"))
	r.tokens.ensureErr = &ebay.AuthError{Op: "refresh", Err: errors.New("invalid_grant")}

	r.trading.EXPECT().AddFixedPriceItem(mock.Anything, mock.MatchedBy(func(req domain.ListingRequest) bool {
		return req.Policies.Empty()
	})).Return(nil, r.tokens.ensureErr)

	_, err := r.eng.Publish(context.Background(), listing(), false)
	var authErr *ebay.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestPublish_SwitchRebindsAndPersistsToNewAccount(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"), seller("bob"))

	r.policies.EXPECT().Resolve(mock.Anything, mock.Anything).Return(resolvedPolicies)
	r.trading.EXPECT().AddFixedPriceItem(mock.Anything, mock.Anything).
		Return(&domain.ProtocolResult{Success: true, ItemID: "1"}, nil)

	_, err := r.eng.Publish(context.Background(), listing(), false)
	require.NoError(t, err)

	require.NoError(t, r.eng.SetActive("bob_sandbox"))
	_, err = r.eng.Publish(context.Background(), listing(), false)
	require.NoError(t, err)

	injected := r.tokens.injectedTokens()
	require.Len(t, injected, 2)
	assert.Equal(t, "access-bob", injected[1].AccessToken)

	// A refresh through the shared store lands on bob, not alice.
	rotated := domain.TokenSet{AccessToken: "bob-rotated", Expiry: testNow.Add(3 * time.Hour)}
	r.tokens.next = &rotated
	_, err = r.tokens.EnsureValid(context.Background())
	require.NoError(t, err)

	bob, _ := r.reg.Get("bob_sandbox")
	alice, _ := r.reg.Get("alice_sandbox")
	assert.Equal(t, "bob-rotated", bob.AccessToken)
	assert.Equal(t, "access-alice", alice.AccessToken)
}

func TestSetActive_Unknown(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"))
	err := r.eng.SetActive("nobody_sandbox")
	require.ErrorIs(t, err, account.ErrNotFound)
}

func TestUploadImage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		viaTrading bool
		noMedia    bool
		wantMedia  bool
	}{
		{name: "media api", wantMedia: true},
		{name: "forced trading", viaTrading: true},
		{name: "no media client", noMedia: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newRig(t, seller("alice"))
			if tt.noMedia {
				r.clients.Media = nil
			}

			data := []byte("png")
			wantURL := "https://i.ebayimg.com/trading.png"
			if tt.wantMedia {
				wantURL = "https://i.ebayimg.com/media.png"
				r.media.EXPECT().Upload(mock.Anything, "front.png", data).
					Return(&domain.ProtocolResult{Success: true, ImageURL: wantURL}, nil)
			} else {
				r.trading.EXPECT().UploadImage(mock.Anything, "front.png", data).
					Return(&domain.ProtocolResult{Success: true, ImageURL: wantURL}, nil)
			}

			res, err := r.eng.UploadImage(context.Background(), "front.png", data, tt.viaTrading)
			require.NoError(t, err)
			assert.Equal(t, wantURL, res.ImageURL)
		})
	}
}

func TestConnect(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.spawnExchange(domain.TokenSet{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		Expiry:       testNow.Add(2 * time.Hour),
	}, nil)

	acct, err := r.eng.Connect(context.Background(), "", "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "newseller_sandbox", acct.Key())
	assert.Equal(t, "New Seller", acct.Username)
	assert.Equal(t, "new-refresh", acct.RefreshToken)
	assert.True(t, acct.ConnectedAt.Equal(testNow))
	assert.Equal(t, "newseller_sandbox", r.reg.ActiveKey(), "first account becomes active")
	assert.Empty(t, r.tokens.injectedTokens(), "the shared store is not touched")
}

func TestConnect_Errors(t *testing.T) {
	t.Parallel()

	t.Run("exchange rejected", func(t *testing.T) {
		t.Parallel()

		r := newRig(t)
		r.spawnExchange(domain.TokenSet{}, &ebay.AuthError{Op: "exchange", StatusCode: 400})

		_, err := r.eng.Connect(context.Background(), domain.EnvSandbox, "bad")
		var authErr *ebay.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Empty(t, r.reg.List())
	})

	t.Run("identity fails", func(t *testing.T) {
		t.Parallel()

		r := newRig(t)
		r.spawnExchange(domain.TokenSet{AccessToken: "a"}, nil)
		r.clients.Identity = stubIdentity{err: errors.New("all strategies failed")}

		_, err := r.eng.Connect(context.Background(), domain.EnvSandbox, "code")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "resolving seller identity")
	})

	t.Run("environment not configured", func(t *testing.T) {
		t.Parallel()

		r := newRig(t)
		_, err := r.eng.Connect(context.Background(), domain.EnvProduction, "code")
		require.ErrorIs(t, err, ErrEnvNotConfigured)
		assert.Contains(t, err.Error(), "environment production")
	})
}

// spawnExchange makes stores built by NewStore answer ExchangeCode with
// tokens and err.
func (r *testRig) spawnExchange(tokens domain.TokenSet, err error) {
	r.clients.NewStore = func(ts domain.TokenSet) TokenManager {
		return &fakeTokens{tokens: ts, exchange: tokens, exchangeErr: err}
	}
}

func TestAuthURLAndConsumeState(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	now := testNow
	r.eng.nowFunc = func() time.Time { return now }

	url, state, err := r.eng.AuthURL("")
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.True(t, strings.HasSuffix(url, "state="+state))

	env, err := r.eng.ConsumeState(state)
	require.NoError(t, err)
	assert.Equal(t, domain.EnvSandbox, env)

	_, err = r.eng.ConsumeState(state)
	require.ErrorIs(t, err, ErrUnknownState, "states are single use")

	_, state, err = r.eng.AuthURL(domain.EnvSandbox)
	require.NoError(t, err)
	now = now.Add(defaultStateTTL + time.Minute)
	_, err = r.eng.ConsumeState(state)
	require.ErrorIs(t, err, ErrUnknownState, "states expire")

	_, _, err = r.eng.AuthURL(domain.EnvProduction)
	require.Error(t, err)
}

func TestDisconnect(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"), seller("bob"))

	r.policies.EXPECT().Resolve(mock.Anything, mock.Anything).Return(resolvedPolicies)
	r.trading.EXPECT().AddFixedPriceItem(mock.Anything, mock.Anything).
		Return(&domain.ProtocolResult{Success: true, ItemID: "1"}, nil)

	_, err := r.eng.Publish(context.Background(), listing(), false)
	require.NoError(t, err)

	require.NoError(t, r.eng.Disconnect("alice_sandbox"))
	assert.Equal(t, "bob_sandbox", r.reg.ActiveKey())
	assert.Empty(t, r.eng.bindings[domain.EnvSandbox].key)
	assert.NotContains(t, r.eng.policies, "alice_sandbox")

	require.ErrorIs(t, r.eng.Disconnect("alice_sandbox"), account.ErrNotFound)
}

func TestRefreshAll(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"), seller("bob"))

	// Bind alice so her refresh goes through the shared store.
	r.policies.EXPECT().Resolve(mock.Anything, mock.Anything).Return(domain.BusinessPolicySet{})
	r.trading.EXPECT().AddFixedPriceItem(mock.Anything, mock.Anything).
		Return(&domain.ProtocolResult{Success: true, ItemID: "1"}, nil)
	_, err := r.eng.Publish(context.Background(), listing(), false)
	require.NoError(t, err)

	aliceNext := domain.TokenSet{AccessToken: "alice-2", Expiry: testNow.Add(2 * time.Hour)}
	r.tokens.next = &aliceNext
	bobNext := domain.TokenSet{AccessToken: "bob-2", RefreshToken: "refresh-bob-2", Expiry: testNow.Add(2 * time.Hour)}
	var seeds []domain.TokenSet
	r.clients.NewStore = func(ts domain.TokenSet) TokenManager {
		seeds = append(seeds, ts)
		return &fakeTokens{tokens: ts, next: &bobNext}
	}

	require.NoError(t, r.eng.RefreshAll(context.Background()))

	alice, _ := r.reg.Get("alice_sandbox")
	bob, _ := r.reg.Get("bob_sandbox")
	assert.Equal(t, "alice-2", alice.AccessToken)
	assert.Equal(t, "refresh-alice", alice.RefreshToken)
	assert.Equal(t, "bob-2", bob.AccessToken)
	assert.Equal(t, "refresh-bob-2", bob.RefreshToken)
	assert.Equal(t, 2, r.tokens.ensureCalls, "policy lookup plus alice's keep-alive")
	require.Len(t, seeds, 1, "only the unbound account needs its own store")
	assert.Equal(t, "access-bob", seeds[0].AccessToken)
}

func TestRefreshAll_CollectsFailures(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"), seller("bob"))
	r.clients.NewStore = func(ts domain.TokenSet) TokenManager {
		if ts.RefreshToken == "refresh-bob" {
			return &fakeTokens{tokens: ts, ensureErr: errors.New("invalid_grant")}
		}
		return &fakeTokens{tokens: ts}
	}

	err := r.eng.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bob_sandbox: invalid_grant")
	assert.NotContains(t, err.Error(), "alice_sandbox")
}

func TestQuota(t *testing.T) {
	t.Parallel()

	r := newRig(t, seller("alice"))
	r.clients.Quota = stubQuota{states: []ebay.QuotaState{{Resource: "AddFixedPriceItem", Limit: 5000}}}

	rep, err := r.eng.Quota(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.EnvSandbox, rep.Environment)
	assert.Equal(t, int64(100), rep.Local.Limit)
	require.Len(t, rep.Remote, 1)
	assert.Empty(t, rep.RemoteError)

	r.clients.Quota = stubQuota{err: errors.New("403")}
	rep, err = r.eng.Quota(context.Background(), domain.EnvSandbox)
	require.NoError(t, err)
	assert.Equal(t, "403", rep.RemoteError)

	_, err = r.eng.Quota(context.Background(), domain.EnvProduction)
	require.Error(t, err)
}

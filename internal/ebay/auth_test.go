package ebay_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fizic37/delcampe-ebay/internal/ebay"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

var testCreds = ebay.Credentials{
	ClientID:     "test-app-id",
	ClientSecret: "test-cert-id",
	RuName:       "Test_RuName",
	Scopes:       []string{"https://api.ebay.com/oauth/api_scope/sell.inventory"},
}

// userTokenJSON returns an eBay user token response. An empty refresh token
// is left out of the body.
func userTokenJSON(access, refresh string) []byte {
	if refresh == "" {
		return []byte(fmt.Sprintf(
			`{"access_token":%q,"expires_in":7200,"token_type":"User Access Token"}`,
			access,
		))
	}
	return []byte(fmt.Sprintf(
		`{"access_token":%q,"refresh_token":%q,"expires_in":7200,"refresh_token_expires_in":47304000,"token_type":"User Access Token"}`,
		access, refresh,
	))
}

// tokenServer serves the OAuth2 token endpoint with h and counts requests.
func tokenServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newStore(srv *httptest.Server, opts ...ebay.TokenStoreOption) *ebay.TokenStore {
	ep := ebay.Endpoints{API: srv.URL, Auth: srv.URL}
	return ebay.NewTokenStore(domain.EnvSandbox, testCreds, ep, opts...)
}

func TestTokenStore_EnsureValid_RefreshSkew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		expiresIn time.Duration
		wantCalls int32
	}{
		{name: "expires in one hour", expiresIn: time.Hour, wantCalls: 0},
		{name: "expires just outside skew", expiresIn: ebay.RefreshSkew + time.Minute, wantCalls: 0},
		{name: "expires inside skew", expiresIn: ebay.RefreshSkew - time.Minute, wantCalls: 1},
		{name: "already expired", expiresIn: -time.Hour, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			refresh := "rt-skew-" + tt.name
			srv, calls := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write(userTokenJSON("fresh-token", ""))
			})

			store := newStore(srv, ebay.WithTokens(domain.TokenSet{
				AccessToken:  "old-token",
				RefreshToken: refresh,
				Expiry:       time.Now().Add(tt.expiresIn),
			}))

			got, err := store.EnsureValid(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, calls.Load())

			if tt.wantCalls == 0 {
				assert.Equal(t, "old-token", got.AccessToken)
				return
			}
			assert.Equal(t, "fresh-token", got.AccessToken)
			assert.Equal(t, refresh, got.RefreshToken, "omitted refresh token is retained")
			assert.WithinDuration(t, time.Now().Add(2*time.Hour), got.Expiry, 10*time.Second)
			assert.Equal(t, got, store.Tokens())
		})
	}
}

func TestTokenStore_EnsureValid_RefreshRequest(t *testing.T) {
	t.Parallel()

	srv, _ := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/identity/v1/oauth2/token", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok, "basic auth header")
		assert.Equal(t, "test-app-id", user)
		assert.Equal(t, "test-cert-id", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-request", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(userTokenJSON("new-access", "rt-rotated"))
	})

	store := newStore(srv, ebay.WithTokens(domain.TokenSet{
		AccessToken:  "expired",
		RefreshToken: "rt-request",
		Expiry:       time.Now().Add(-time.Minute),
	}))

	got, err := store.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-access", got.AccessToken)
	assert.Equal(t, "rt-rotated", got.RefreshToken)
}

func TestTokenStore_EnsureValid_NoRefreshToken(t *testing.T) {
	t.Parallel()

	srv, calls := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	store := newStore(srv, ebay.WithTokens(domain.TokenSet{
		AccessToken: "expired",
		Expiry:      time.Now().Add(-time.Minute),
	}))

	_, err := store.EnsureValid(context.Background())
	require.Error(t, err)

	var authErr *ebay.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, ebay.ErrNoRefreshToken)
	assert.Zero(t, authErr.StatusCode)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTokenStore_EnsureValid_ProviderRejects(t *testing.T) {
	t.Parallel()

	srv, _ := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(
			`{"error":"invalid_grant","error_description":"the provided authorization refresh token is invalid"}`,
		))
	})

	store := newStore(srv, ebay.WithTokens(domain.TokenSet{
		AccessToken:  "expired",
		RefreshToken: "rt-rejected",
		Expiry:       time.Now().Add(-time.Minute),
	}))

	_, err := store.EnsureValid(context.Background())
	require.Error(t, err)

	var authErr *ebay.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "invalid_grant")
	assert.False(t, errors.Is(err, ebay.ErrNoRefreshToken))

	// The expired token is not kept as if it were usable.
	assert.Equal(t, "expired", store.Tokens().AccessToken)
}

func TestTokenStore_EnsureValid_Persists(t *testing.T) {
	t.Parallel()

	srv, _ := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(userTokenJSON("persisted-access", ""))
	})

	var saved []domain.TokenSet
	persister := ebay.TokenPersisterFunc(func(_ context.Context, ts domain.TokenSet) error {
		saved = append(saved, ts)
		return nil
	})

	store := newStore(srv,
		ebay.WithPersister(persister),
		ebay.WithTokens(domain.TokenSet{
			AccessToken:  "expired",
			RefreshToken: "rt-persist",
			Expiry:       time.Now().Add(-time.Minute),
		}),
	)

	got, err := store.EnsureValid(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, got, saved[0])
}

func TestTokenStore_EnsureValid_PersistFailureStillReturnsToken(t *testing.T) {
	t.Parallel()

	srv, _ := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(userTokenJSON("unsaved-access", ""))
	})

	store := newStore(srv,
		ebay.WithPersister(ebay.TokenPersisterFunc(func(context.Context, domain.TokenSet) error {
			return errors.New("disk full")
		})),
		ebay.WithTokens(domain.TokenSet{RefreshToken: "rt-persist-fail"}),
	)

	got, err := store.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unsaved-access", got.AccessToken)
}

func TestTokenStore_EnsureValid_SingleRefreshInFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv, calls := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(userTokenJSON("shared-token", ""))
	})

	store := newStore(srv, ebay.WithTokens(domain.TokenSet{
		AccessToken:  "expired",
		RefreshToken: "rt-concurrent",
		Expiry:       time.Now().Add(-time.Minute),
	}))

	const goroutines = 10
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		tokens  = make([]string, goroutines)
		errs    = make([]error, goroutines)
	)
	started.Add(goroutines)
	wg.Add(goroutines)
	for i := range goroutines {
		go func(i int) {
			defer wg.Done()
			started.Done()
			tokens[i], errs[i] = store.Token(context.Background())
		}(i)
	}

	started.Wait()
	// Give every goroutine time to join the in-flight refresh.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range goroutines {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared-token", tokens[i])
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenStore_EnsureValid_NoSecondGrantAfterFlightEnds(t *testing.T) {
	t.Parallel()

	var grants atomic.Int32
	srv, _ := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("refresh_token") == "rt-once" {
			grants.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(userTokenJSON("fresh-token", ""))
	})

	// The first clock read belongs to the slow caller: it has taken its
	// snapshot of the expired tokens and stalls before the freshness check.
	var (
		first   atomic.Bool
		stalled = make(chan struct{})
		resume  = make(chan struct{})
	)
	clock := func() time.Time {
		if first.CompareAndSwap(false, true) {
			close(stalled)
			<-resume
		}
		return time.Now()
	}

	store := newStore(srv,
		ebay.WithNowFunc(clock),
		ebay.WithTokens(domain.TokenSet{
			AccessToken:  "expired",
			RefreshToken: "rt-once",
			Expiry:       time.Now().Add(-time.Minute),
		}),
	)

	type result struct {
		tokens domain.TokenSet
		err    error
	}
	slow := make(chan result, 1)
	go func() {
		got, err := store.EnsureValid(context.Background())
		slow <- result{got, err}
	}()
	<-stalled

	fast, err := store.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", fast.AccessToken)

	close(resume)
	res := <-slow
	require.NoError(t, res.err)
	assert.Equal(t, fast, res.tokens)
	assert.Equal(t, int32(1), grants.Load())
}

func TestTokenStore_EnsureValid_ReboundDuringRefresh(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	srv, calls := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(userTokenJSON("account-a-fresh", ""))
	})

	store := newStore(srv, ebay.WithTokens(domain.TokenSet{
		AccessToken:  "account-a-expired",
		RefreshToken: "rt-a",
		Expiry:       time.Now().Add(-time.Minute),
	}))

	type result struct {
		tokens domain.TokenSet
		err    error
	}
	done := make(chan result, 1)
	go func() {
		got, err := store.EnsureValid(context.Background())
		done <- result{got, err}
	}()

	<-entered
	accountB := domain.TokenSet{
		AccessToken:  "account-b",
		RefreshToken: "rt-b",
		Expiry:       time.Now().Add(time.Hour),
	}
	store.Inject(accountB)
	close(release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, accountB, res.tokens)
	assert.Equal(t, accountB, store.Tokens())
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenStore_Inject(t *testing.T) {
	t.Parallel()

	srv, calls := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newStore(srv, ebay.WithNowFunc(func() time.Time { return now }))

	injected := domain.TokenSet{
		AccessToken:  "account-b",
		RefreshToken: "rt-b",
		Expiry:       now.Add(time.Hour),
	}
	store.Inject(injected)

	got, err := store.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, injected, got)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTokenStore_ExchangeCode(t *testing.T) {
	t.Parallel()

	srv, _ := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "auth-code-123", r.PostForm.Get("code"))
		assert.Equal(t, "Test_RuName", r.PostForm.Get("redirect_uri"))

		_, _, ok := r.BasicAuth()
		assert.True(t, ok)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(userTokenJSON("exchanged-access", "exchanged-refresh"))
	})

	var saved atomic.Int32
	store := newStore(srv, ebay.WithPersister(ebay.TokenPersisterFunc(
		func(context.Context, domain.TokenSet) error {
			saved.Add(1)
			return nil
		},
	)))

	got, err := store.ExchangeCode(context.Background(), "auth-code-123")
	require.NoError(t, err)
	assert.Equal(t, "exchanged-access", got.AccessToken)
	assert.Equal(t, "exchanged-refresh", got.RefreshToken)
	assert.Equal(t, got, store.Tokens())
	assert.Equal(t, int32(1), saved.Load())
}

func TestTokenStore_ExchangeCode_Rejected(t *testing.T) {
	t.Parallel()

	srv, _ := tokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"client authentication failed"}`))
	})

	_, err := newStore(srv).ExchangeCode(context.Background(), "bad-code")
	require.Error(t, err)

	var authErr *ebay.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "exchange", authErr.Op)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "invalid_client")
}

func TestTokenStore_AppToken(t *testing.T) {
	t.Parallel()

	srv, calls := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, ebay.DefaultAppScope, r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"app-token","expires_in":7200,"token_type":"Application Access Token"}`))
	})

	store := newStore(srv)

	tok, err := store.AppToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "app-token", tok)

	tok, err = store.AppTokenProvider(ebay.DefaultAppScope).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "app-token", tok)
	assert.Equal(t, int32(1), calls.Load(), "second call is served from cache")
}

func TestTokenStore_AuthCodeURL(t *testing.T) {
	t.Parallel()

	store := ebay.NewTokenStore(
		domain.EnvSandbox,
		testCreds,
		ebay.EndpointsFor(domain.EnvSandbox),
	)

	raw := store.AuthCodeURL("state-xyz")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "auth.sandbox.ebay.com", u.Host)
	assert.Equal(t, "/oauth2/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "test-app-id", q.Get("client_id"))
	assert.Equal(t, "Test_RuName", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://api.ebay.com/oauth/api_scope/sell.inventory", q.Get("scope"))
	assert.Equal(t, "state-xyz", q.Get("state"))
}

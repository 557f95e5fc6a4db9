package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fizic37/delcampe-ebay/internal/account"
	"github.com/fizic37/delcampe-ebay/internal/config"
	"github.com/fizic37/delcampe-ebay/internal/ebay"
	"github.com/fizic37/delcampe-ebay/internal/engine"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, m *mockServer, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	m.routes().ServeHTTP(rec, req)
	return rec
}

func TestToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		form       url.Values
		basicAuth  bool
		wantStatus int
		wantBody   string
	}{
		{
			name:       "authorization code",
			form:       url.Values{"grant_type": {"authorization_code"}, "code": {"c"}},
			basicAuth:  true,
			wantStatus: http.StatusOK,
			wantBody:   `"refresh_token":"mock-refresh-`,
		},
		{
			name:       "refresh",
			form:       url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"mock-refresh-1"}},
			basicAuth:  true,
			wantStatus: http.StatusOK,
			wantBody:   `"token_type":"User Access Token"`,
		},
		{
			name:       "foreign refresh token",
			form:       url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"other"}},
			basicAuth:  true,
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid_grant",
		},
		{
			name:       "client credentials",
			form:       url.Values{"grant_type": {"client_credentials"}},
			basicAuth:  true,
			wantStatus: http.StatusOK,
			wantBody:   "mock-app-token-",
		},
		{
			name:       "missing client auth",
			form:       url.Values{"grant_type": {"client_credentials"}},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "invalid_client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newMockServer(testLogger(), "http://localhost/cb", "http://mock")
			req := httptest.NewRequest(http.MethodPost, "/identity/v1/oauth2/token", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.basicAuth {
				req.SetBasicAuth("app-id", "cert-id")
			}

			rec := serve(t, m, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestUserToken_ResolvesThroughJWTStrategy(t *testing.T) {
	t.Parallel()

	id, err := ebay.JWTStrategy{}.Resolve(context.Background(), userToken(7))
	require.NoError(t, err)
	assert.Equal(t, mockUserID, id.UserID)
	assert.Equal(t, mockUsername, id.Username)
}

func TestAuthorize_RedirectsWithState(t *testing.T) {
	t.Parallel()

	m := newMockServer(testLogger(), "http://localhost:8080/oauth/callback", "http://mock")
	rec := serve(t, m, httptest.NewRequest(http.MethodGet, "/oauth2/authorize?state=st-1&client_id=app", http.NoBody))

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/oauth/callback", loc.Path)
	assert.Equal(t, "st-1", loc.Query().Get("state"))
	assert.NotEmpty(t, loc.Query().Get("code"))
}

func TestCreateImage(t *testing.T) {
	t.Parallel()

	m := newMockServer(testLogger(), "", "http://mock")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "front.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/commerce/media/v1_beta/image/create_image_from_file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer token")

	rec := serve(t, m, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "http://mock/commerce/media/v1_beta/image/mock-image-1", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodPost, "/commerce/media/v1_beta/image/create_image_from_file", http.NoBody)
	req.Header.Set("Authorization", "Bearer token")
	assert.Equal(t, http.StatusBadRequest, serve(t, m, req).Code)
}

func TestTrading_UnknownCall(t *testing.T) {
	t.Parallel()

	m := newMockServer(testLogger(), "", "http://mock")
	req := httptest.NewRequest(http.MethodPost, "/ws/api.dll", strings.NewReader(
		`<GetUserRequest xmlns="urn:ebay:apis:eBLBaseComponents"><RequesterCredentials><eBayAuthToken>t</eBayAuthToken></RequesterCredentials></GetUserRequest>`,
	))
	req.Header.Set("X-EBAY-API-CALL-NAME", "GetUser")

	rec := serve(t, m, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Ack>Failure</Ack>")
	assert.Contains(t, rec.Body.String(), "<GetUserResponse")
}

// TestEndToEnd drives the engine through the real eBay clients against the
// mock: connect, publish, reject, host images and read the quota.
func TestEndToEnd(t *testing.T) {
	t.Parallel()

	m := newMockServer(testLogger(), "http://localhost:8080/oauth/callback", "")
	srv := httptest.NewServer(m.routes())
	t.Cleanup(srv.Close)
	m.baseURL = srv.URL

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`ebay:
  environment: sandbox
  sandbox:
    client_id: app-id
    client_secret: cert-id
    ru_name: Mock-RuName
    api_url: %[1]s
    auth_url: %[1]s
    identity_url: %[1]s
    media_url: %[1]s
accounts:
  registry_path: %[2]s
`, srv.URL, filepath.Join(dir, "accounts.json"))), 0o600))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	log := testLogger()
	clients := map[domain.Environment]*engine.EnvClients{
		domain.EnvSandbox: engine.NewEnvClients(domain.EnvSandbox, &cfg.Ebay, log),
	}
	reg, err := account.Open(cfg.Accounts.RegistryPath, account.WithLogger(log))
	require.NoError(t, err)
	eng := engine.NewEngine(reg, clients, engine.WithLogger(log))
	ctx := context.Background()

	consent, state, err := eng.AuthURL("")
	require.NoError(t, err)

	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := noRedirect.Get(consent)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state, loc.Query().Get("state"))

	env, err := eng.ConsumeState(loc.Query().Get("state"))
	require.NoError(t, err)
	acct, err := eng.Connect(ctx, env, loc.Query().Get("code"))
	require.NoError(t, err)
	assert.Equal(t, "mockseller_sandbox", acct.Key())
	assert.Equal(t, "mockseller_sandbox", reg.ActiveKey())

	listing := domain.ListingRequest{
		Title:       "Bucuresti - Calea Victoriei, 1910",
		Description: "Unused postcard",
		Price:       "5.00",
		ConditionID: 3000,
		CategoryID:  "262042",
		Country:     "RO",
		Location:    "Bucharest",
		ImageURLs:   []string{"https://i.ebayimg.com/00/s/front.jpg"},
	}

	res, err := eng.Publish(ctx, listing, false)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "110553394321", res.ItemID)

	listing.Title = "FAIL " + listing.Title
	res, err = eng.Publish(ctx, listing, true)
	var apiErr *ebay.APIError
	require.ErrorAs(t, err, &apiErr)
	require.NotNil(t, res)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "21919303", res.Errors[0].Code)

	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	img, err := eng.UploadImage(ctx, "front.jpg", jpeg, false)
	require.NoError(t, err)
	assert.Contains(t, img.ImageURL, "mock-image-1")
	require.NotNil(t, img.ImageExpiresAt)

	img, err = eng.UploadImage(ctx, "back.jpg", jpeg, true)
	require.NoError(t, err)
	assert.Contains(t, img.ImageURL, "/00/s/mock-2/")

	rep, err := eng.Quota(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, rep.RemoteError)
	require.Len(t, rep.Remote, 1)
	assert.Equal(t, "TradingAPI", rep.Remote[0].Resource)
	assert.EqualValues(t, 1, rep.Remote[0].Count)

	require.NoError(t, eng.RefreshAll(ctx))
}

package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fizic37/delcampe-ebay/internal/account"
	"github.com/fizic37/delcampe-ebay/internal/api/handlers"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

func connected(id string, env domain.Environment, expiry time.Time) domain.Account {
	return domain.Account{
		UserID:       id,
		Username:     "user-" + id,
		Environment:  env,
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		TokenExpiry:  expiry,
	}
}

func TestAccountHandler_List(t *testing.T) {
	t.Parallel()

	now := time.Now()
	svc := newMockService()
	svc.On("Accounts").Return([]domain.Account{
		connected("alice", domain.EnvProduction, now.Add(time.Hour)),
		connected("bob", domain.EnvSandbox, now.Add(-time.Minute)),
	}, "alice_production").Once()

	_, api := humatest.New(t)
	handlers.RegisterAccountRoutes(api, handlers.NewAccountHandler(svc))

	resp := api.Get("/api/v1/accounts")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotContains(t, resp.Body.String(), "access-alice")
	assert.NotContains(t, resp.Body.String(), "refresh-bob")

	var body struct {
		Accounts []handlers.AccountView `json:"accounts"`
		Active   string                 `json:"active_key"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Accounts, 2)
	assert.Equal(t, "alice_production", body.Active)
	assert.True(t, body.Accounts[0].Active)
	assert.False(t, body.Accounts[0].TokenExpired)
	assert.False(t, body.Accounts[1].Active)
	assert.True(t, body.Accounts[1].TokenExpired)
	svc.AssertExpectations(t)
}

func TestAccountHandler_ListEmpty(t *testing.T) {
	t.Parallel()

	svc := newMockService()
	svc.On("Accounts").Return(nil, "").Once()

	_, api := humatest.New(t)
	handlers.RegisterAccountRoutes(api, handlers.NewAccountHandler(svc))

	resp := api.Get("/api/v1/accounts")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"accounts":[],"active_key":""}`, stripSchema(t, resp.Body.Bytes()))
}

func TestAccountHandler_Activate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		key        string
		setErr     error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "switches the active account",
			key:        "bob_sandbox",
			wantStatus: http.StatusOK,
			wantBody:   `"active_key":"bob_sandbox"`,
		},
		{
			name:       "unknown account",
			key:        "ghost_sandbox",
			setErr:     fmt.Errorf("%w: ghost_sandbox", account.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantBody:   "ghost_sandbox",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newMockService()
			svc.On("SetActive", tt.key).Return(tt.setErr).Once()
			if tt.setErr == nil {
				svc.On("Accounts").Return([]domain.Account{
					connected("bob", domain.EnvSandbox, time.Now().Add(time.Hour)),
				}, tt.key).Once()
			}

			_, api := humatest.New(t)
			handlers.RegisterAccountRoutes(api, handlers.NewAccountHandler(svc))

			resp := api.Put("/api/v1/accounts/" + tt.key + "/active")
			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.Contains(t, resp.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestAccountHandler_Disconnect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "removes the account", wantStatus: http.StatusNoContent},
		{name: "unknown account", err: account.ErrNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newMockService()
			svc.On("Disconnect", "alice_sandbox").Return(tt.err).Once()

			_, api := humatest.New(t)
			handlers.RegisterAccountRoutes(api, handlers.NewAccountHandler(svc))

			resp := api.Delete("/api/v1/accounts/alice_sandbox")
			assert.Equal(t, tt.wantStatus, resp.Code)
			svc.AssertExpectations(t)
		})
	}
}

// stripSchema drops the $schema link huma adds to object responses.
func stripSchema(t *testing.T, body []byte) string {
	t.Helper()

	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	delete(m, "$schema")
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}

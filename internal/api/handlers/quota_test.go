package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fizic37/delcampe-ebay/internal/api/handlers"
	"github.com/fizic37/delcampe-ebay/internal/ebay"
	"github.com/fizic37/delcampe-ebay/internal/engine"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

func TestQuotaHandler_GetQuota(t *testing.T) {
	t.Parallel()

	resetAt := time.Date(2026, 10, 20, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		path       string
		env        domain.Environment
		report     *engine.QuotaReport
		err        error
		wantStatus int
		wantBody   []string
	}{
		{
			name: "active account environment",
			path: "/api/v1/quota",
			env:  "",
			report: &engine.QuotaReport{
				Environment: domain.EnvSandbox,
				Local:       ebay.Usage{Count: 142, Limit: 5000, Remaining: 4858, ResetAt: resetAt},
				Remote: []ebay.QuotaState{
					{Resource: "TradingAPI", Count: 12, Limit: 5000, Remaining: 4988, ResetAt: resetAt},
				},
			},
			wantStatus: http.StatusOK,
			wantBody:   []string{`"remaining":4858`, `"resource":"TradingAPI"`, `"environment":"sandbox"`},
		},
		{
			name: "remote lookup failure is reported in the body",
			path: "/api/v1/quota?environment=production",
			env:  domain.EnvProduction,
			report: &engine.QuotaReport{
				Environment: domain.EnvProduction,
				Local:       ebay.Usage{Limit: 5000, Remaining: 5000, ResetAt: resetAt},
				RemoteError: "getting auth token: invalid_client",
			},
			wantStatus: http.StatusOK,
			wantBody:   []string{`"remote_error":"getting auth token: invalid_client"`},
		},
		{
			name:       "environment without keys",
			path:       "/api/v1/quota?environment=production",
			env:        domain.EnvProduction,
			err:        engine.ErrEnvNotConfigured,
			wantStatus: http.StatusBadRequest,
			wantBody:   []string{"no application keys"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newMockService()
			svc.On("Quota", mock.Anything, tt.env).Return(tt.report, tt.err).Once()

			_, api := humatest.New(t)
			handlers.RegisterQuotaRoutes(api, handlers.NewQuotaHandler(svc))

			resp := api.Get(tt.path)
			assert.Equal(t, tt.wantStatus, resp.Code)
			for _, want := range tt.wantBody {
				assert.Contains(t, resp.Body.String(), want)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestToHumaError_Mapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "auth", err: &ebay.AuthError{Op: "refresh"}, wantStatus: http.StatusUnauthorized},
		{name: "protocol", err: &ebay.ProtocolError{Op: "GetAccessRules"}, wantStatus: http.StatusBadGateway},
		{name: "deadline", err: &ebay.TransportError{Op: "quota", Err: contextDeadline()}, wantStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newMockService()
			svc.On("Quota", mock.Anything, domain.Environment("")).Return(nil, tt.err).Once()

			_, api := humatest.New(t)
			handlers.RegisterQuotaRoutes(api, handlers.NewQuotaHandler(svc))

			resp := api.Get("/api/v1/quota")
			assert.Equal(t, tt.wantStatus, resp.Code)
		})
	}
}

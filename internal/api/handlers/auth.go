package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// AuthService runs the OAuth authorization code flow.
type AuthService interface {
	AuthURL(env domain.Environment) (string, string, error)
	ConsumeState(state string) (domain.Environment, error)
	Connect(ctx context.Context, env domain.Environment, code string) (domain.Account, error)
	Accounts() ([]domain.Account, string)
}

// AuthHandler connects seller accounts through eBay's consent page.
type AuthHandler struct {
	svc     AuthService
	nowFunc func() time.Time
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc, nowFunc: time.Now}
}

// AuthURLInput selects the environment to connect.
type AuthURLInput struct {
	Environment string `query:"environment" doc:"eBay environment; defaults to the configured one" enum:"sandbox,production,"`
}

// AuthURLOutput is the response body for the consent URL.
type AuthURLOutput struct {
	Body struct {
		URL   string `json:"url"   doc:"eBay consent page to open in a browser"`
		State string `json:"state" doc:"Opaque value eBay echoes to the callback"`
	}
}

// AuthURL returns the consent page URL for an environment.
func (h *AuthHandler) AuthURL(_ context.Context, in *AuthURLInput) (*AuthURLOutput, error) {
	u, state, err := h.svc.AuthURL(domain.Environment(in.Environment))
	if err != nil {
		return nil, toHumaError(err)
	}
	resp := &AuthURLOutput{}
	resp.Body.URL = u
	resp.Body.State = state
	return resp, nil
}

// CallbackInput carries the parameters eBay appends to the accept or
// decline URL.
type CallbackInput struct {
	Code             string `query:"code"              doc:"Authorization code"`
	State            string `query:"state"             doc:"State issued with the consent URL"`
	Error            string `query:"error"             doc:"Set when the seller declined consent"`
	ErrorDescription string `query:"error_description" doc:"Provider description of the error"`
}

// CallbackOutput is the response body for a completed connection.
type CallbackOutput struct {
	Body struct {
		Status  string      `json:"status"  example:"connected"`
		Account AccountView `json:"account"`
	}
}

// Callback exchanges the authorization code and stores the account.
func (h *AuthHandler) Callback(ctx context.Context, in *CallbackInput) (*CallbackOutput, error) {
	if in.Error != "" {
		msg := "authorization declined: " + in.Error
		if in.ErrorDescription != "" {
			msg += ": " + in.ErrorDescription
		}
		return nil, huma.Error400BadRequest(msg)
	}
	if in.Code == "" || in.State == "" {
		return nil, huma.Error400BadRequest("code and state are required")
	}

	env, err := h.svc.ConsumeState(in.State)
	if err != nil {
		return nil, toHumaError(err)
	}

	acct, err := h.svc.Connect(ctx, env, in.Code)
	if err != nil {
		return nil, toHumaError(err)
	}

	_, active := h.svc.Accounts()

	resp := &CallbackOutput{}
	resp.Body.Status = "connected"
	resp.Body.Account = newAccountView(&acct, active, h.nowFunc())
	return resp, nil
}

// RegisterAuthRoutes registers the OAuth endpoints with the Huma API.
func RegisterAuthRoutes(api huma.API, h *AuthHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-auth-url",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/url",
		Summary:     "Get the eBay consent URL",
		Description: "Returns the URL a seller opens to grant this application access to their account.",
		Tags:        []string{"auth"},
	}, h.AuthURL)

	huma.Register(api, huma.Operation{
		OperationID: "oauth-callback",
		Method:      http.MethodGet,
		Path:        "/oauth/callback",
		Summary:     "OAuth callback",
		Description: "Completes the authorization code flow and stores the connected account.",
		Tags:        []string{"auth"},
	}, h.Callback)
}

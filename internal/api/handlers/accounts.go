package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// AccountService lists and switches connected seller accounts.
type AccountService interface {
	Accounts() ([]domain.Account, string)
	SetActive(key string) error
	Disconnect(key string) error
}

// AccountHandler manages the seller account registry.
type AccountHandler struct {
	svc     AccountService
	nowFunc func() time.Time
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc AccountService) *AccountHandler {
	return &AccountHandler{svc: svc, nowFunc: time.Now}
}

// AccountView is an account without its credential material.
type AccountView struct {
	Key          string             `json:"key"           example:"fizic37_production"  doc:"Registry key"`
	UserID       string             `json:"user_id"       example:"fizic37"             doc:"eBay user ID"`
	Username     string             `json:"username"      example:"fizic37"             doc:"eBay display name"`
	Environment  domain.Environment `json:"environment"   example:"production"          doc:"eBay environment" enum:"sandbox,production"`
	Active       bool               `json:"active"                                      doc:"Whether listings are published for this account"`
	TokenExpiry  time.Time          `json:"token_expiry"  example:"2026-10-19T14:30:00Z" doc:"Access token expiry"`
	TokenExpired bool               `json:"token_expired"                               doc:"Whether the access token needs a refresh"`
	ConnectedAt  time.Time          `json:"connected_at"                                doc:"When the account was first connected"`
	LastUsedAt   time.Time          `json:"last_used_at"                                doc:"When the account was last activated or refreshed"`
}

func newAccountView(a *domain.Account, activeKey string, now time.Time) AccountView {
	return AccountView{
		Key:          a.Key(),
		UserID:       a.UserID,
		Username:     a.Username,
		Environment:  a.Environment,
		Active:       a.Key() == activeKey,
		TokenExpiry:  a.TokenExpiry,
		TokenExpired: !now.Before(a.TokenExpiry),
		ConnectedAt:  a.ConnectedAt,
		LastUsedAt:   a.LastUsedAt,
	}
}

// AccountListOutput is the response body for the account list.
type AccountListOutput struct {
	Body struct {
		Accounts  []AccountView `json:"accounts"   doc:"Connected accounts sorted by key"`
		ActiveKey string        `json:"active_key" doc:"Key of the active account, empty when none" example:"fizic37_production"`
	}
}

// AccountKeyInput identifies an account by registry key.
type AccountKeyInput struct {
	Key string `path:"key" doc:"Account registry key (user ID and environment)" example:"fizic37_sandbox"`
}

// List returns every connected account.
func (h *AccountHandler) List(_ context.Context, _ *struct{}) (*AccountListOutput, error) {
	return h.list(), nil
}

// Activate makes the account the target of listing operations.
func (h *AccountHandler) Activate(_ context.Context, in *AccountKeyInput) (*AccountListOutput, error) {
	if err := h.svc.SetActive(in.Key); err != nil {
		return nil, toHumaError(err)
	}
	return h.list(), nil
}

// Disconnect removes the account and its tokens.
func (h *AccountHandler) Disconnect(_ context.Context, in *AccountKeyInput) (*struct{}, error) {
	if err := h.svc.Disconnect(in.Key); err != nil {
		return nil, toHumaError(err)
	}
	return nil, nil
}

func (h *AccountHandler) list() *AccountListOutput {
	accounts, active := h.svc.Accounts()
	now := h.nowFunc()

	resp := &AccountListOutput{}
	resp.Body.ActiveKey = active
	resp.Body.Accounts = make([]AccountView, 0, len(accounts))
	for i := range accounts {
		resp.Body.Accounts = append(resp.Body.Accounts, newAccountView(&accounts[i], active, now))
	}
	return resp
}

// RegisterAccountRoutes registers account endpoints with the Huma API.
func RegisterAccountRoutes(api huma.API, h *AccountHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-accounts",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts",
		Summary:     "List connected eBay accounts",
		Description: "Returns every connected seller account without credentials, and which one is active.",
		Tags:        []string{"accounts"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "activate-account",
		Method:      http.MethodPut,
		Path:        "/api/v1/accounts/{key}/active",
		Summary:     "Switch the active account",
		Description: "Makes the account the target of subsequent listing and image operations.",
		Tags:        []string{"accounts"},
	}, h.Activate)

	huma.Register(api, huma.Operation{
		OperationID:   "disconnect-account",
		Method:        http.MethodDelete,
		Path:          "/api/v1/accounts/{key}",
		Summary:       "Disconnect an account",
		Description:   "Removes the account and its tokens. Another account becomes active if this one was.",
		Tags:          []string{"accounts"},
		DefaultStatus: http.StatusNoContent,
	}, h.Disconnect)
}

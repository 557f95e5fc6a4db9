package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fizic37/delcampe-ebay/internal/account"
	"github.com/fizic37/delcampe-ebay/internal/ebay"
	"github.com/fizic37/delcampe-ebay/internal/engine"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// toHumaError maps engine and eBay client errors to HTTP problems.
func toHumaError(err error) error {
	var (
		valErr   *ebay.ValidationError
		apiErr   *ebay.APIError
		authErr  *ebay.AuthError
		transErr *ebay.TransportError
		protoErr *ebay.ProtocolError
	)

	switch {
	case errors.Is(err, engine.ErrNoActiveAccount):
		return huma.Error409Conflict("no active eBay account; connect or select one first")
	case errors.Is(err, account.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, engine.ErrUnknownState):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, engine.ErrEnvNotConfigured):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, ebay.ErrDailyLimitReached):
		return huma.Error429TooManyRequests(err.Error())
	case errors.Is(err, ebay.ErrUnsupportedImage):
		return huma.NewError(http.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &valErr):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.As(err, &apiErr):
		return huma.Error422UnprocessableEntity(err.Error(), detailErrors(apiErr.Errors)...)
	case errors.As(err, &authErr):
		return huma.Error401Unauthorized("eBay authorization failed, reconnect the account: " + err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout("eBay API timed out: " + err.Error())
	case errors.As(err, &transErr), errors.As(err, &protoErr):
		return huma.Error502BadGateway("eBay API error: " + err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}

func detailErrors(details []domain.ProtocolErrorDetail) []error {
	errs := make([]error, 0, len(details))
	for _, d := range details {
		errs = append(errs, &huma.ErrorDetail{
			Message:  d.Message(),
			Location: "ebay",
			Value:    d.Code,
		})
	}
	return errs
}

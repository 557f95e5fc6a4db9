package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fizic37/delcampe-ebay/internal/engine"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// QuotaService reports API call quotas per environment.
type QuotaService interface {
	Quota(ctx context.Context, env domain.Environment) (*engine.QuotaReport, error)
}

// QuotaHandler provides the eBay API quota status endpoint.
type QuotaHandler struct {
	svc QuotaService
}

// NewQuotaHandler creates a new QuotaHandler.
func NewQuotaHandler(svc QuotaService) *QuotaHandler {
	return &QuotaHandler{svc: svc}
}

// QuotaInput selects the environment to report.
type QuotaInput struct {
	Environment string `query:"environment" doc:"eBay environment; defaults to the active account's" enum:"sandbox,production,"`
}

// QuotaOutput is the response body for the quota endpoint.
type QuotaOutput struct {
	Body *engine.QuotaReport
}

// GetQuota returns the local rate limiter state and eBay's view of the
// Trading API quota. A failed remote lookup is reported in the body.
func (h *QuotaHandler) GetQuota(ctx context.Context, in *QuotaInput) (*QuotaOutput, error) {
	rep, err := h.svc.Quota(ctx, domain.Environment(in.Environment))
	if err != nil {
		return nil, toHumaError(err)
	}
	return &QuotaOutput{Body: rep}, nil
}

// RegisterQuotaRoutes registers the quota endpoint with the Huma API.
func RegisterQuotaRoutes(api huma.API, h *QuotaHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-quota",
		Method:      http.MethodGet,
		Path:        "/api/v1/quota",
		Summary:     "Get eBay API quota status",
		Description: "Returns the local daily call usage and the Trading API quota reported by eBay.",
		Tags:        []string{"ebay"},
	}, h.GetQuota)
}

// Package handlers implements HTTP handlers for the eBay lister API.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// ReadinessChecker reports whether listing operations can be served.
type ReadinessChecker interface {
	Ready() error
	Environments() []domain.Environment
	Accounts() ([]domain.Account, string)
}

// HealthHandler serves the liveness and readiness probes. They stay on
// plain echo routes so they are not part of the OpenAPI document.
type HealthHandler struct {
	checker ReadinessChecker
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(c ReadinessChecker) *HealthHandler {
	return &HealthHandler{checker: c}
}

// Healthz returns 200 while the process is running.
func (*HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// Readyz returns 200 with the configured environments and the active
// account, or 503 with the reason listing operations would fail.
func (h *HealthHandler) Readyz(c echo.Context) error {
	if err := h.checker.Ready(); err != nil {
		return c.JSON(
			http.StatusServiceUnavailable,
			StatusResponse{Status: "unavailable", Reason: err.Error()},
		)
	}

	envs := h.checker.Environments()
	resp := StatusResponse{
		Status:       "ready",
		Environments: make([]string, 0, len(envs)),
	}
	for _, env := range envs {
		resp.Environments = append(resp.Environments, string(env))
	}
	_, resp.ActiveAccount = h.checker.Accounts()

	return c.JSON(http.StatusOK, resp)
}

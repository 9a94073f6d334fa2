// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	creds   CredentialStore
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, creds CredentialStore) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		creds:   creds,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.creds != nil {
		resp["credentials"] = h.creds.State()
	}
	return c.JSON(http.StatusOK, resp)
}

// handlers_services.go - Conversion service catalogue
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/doc2md/backend/internal/filecheck"
	"github.com/doc2md/backend/internal/models"
)

// ServicesHandlerImpl implements the ServicesHandler interface
type ServicesHandlerImpl struct {
	validator BatchValidator
	creds     CredentialStore
}

// NewServicesHandler creates a new services handler
func NewServicesHandler(validator BatchValidator, creds CredentialStore) ServicesHandler {
	return &ServicesHandlerImpl{validator: validator, creds: creds}
}

type serviceInfo struct {
	ID        models.ServiceSelection `json:"id"`
	Name      string                  `json:"name"`
	Primary   bool                    `json:"primary"`
	Available bool                    `json:"available"`
	AllowList filecheck.AllowList     `json:"allowList"`
}

// HandleListServices returns allow-lists and size ceilings so the client can
// pre-validate a selection before uploading it.
func (h *ServicesHandlerImpl) HandleListServices(c echo.Context) error {
	creds := h.creds.Get()
	return c.JSON(http.StatusOK, []serviceInfo{
		{
			ID:        models.ServiceCloudflare,
			Name:      "Cloudflare Workers AI",
			Primary:   true,
			Available: creds.Configured(),
			AllowList: h.validator.AllowList(models.ServiceCloudflare),
		},
		{
			ID:        models.ServiceMistral,
			Name:      "Mistral OCR",
			Available: creds.HasSecondaryKey(),
			AllowList: h.validator.AllowList(models.ServiceMistral),
		},
	})
}

// handlers_credentials.go - Credential store handlers
package api

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"

	"github.com/doc2md/backend/internal/credentials"
	"github.com/doc2md/backend/internal/models"
)

// CredentialsHandlerImpl implements the CredentialsHandler interface
type CredentialsHandlerImpl struct {
	store CredentialStore
}

// NewCredentialsHandler creates a new credentials handler
func NewCredentialsHandler(store CredentialStore) CredentialsHandler {
	return &CredentialsHandlerImpl{store: store}
}

type credentialsResponse struct {
	State           credentials.State  `json:"state"`
	Credentials     models.Credentials `json:"credentials"`
	HasSecondaryKey bool               `json:"hasSecondaryKey"`
}

func newCredentialsResponse(state credentials.State, creds models.Credentials) credentialsResponse {
	return credentialsResponse{
		State:           state,
		Credentials:     creds.Masked(),
		HasSecondaryKey: creds.HasSecondaryKey(),
	}
}

// HandleGetCredentials returns the configuration state with masked secrets
func (h *CredentialsHandlerImpl) HandleGetCredentials(c echo.Context) error {
	return c.JSON(http.StatusOK, newCredentialsResponse(h.store.State(), h.store.Get()))
}

// HandleSaveCredentials validates and persists a full credential set
func (h *CredentialsHandlerImpl) HandleSaveCredentials(c echo.Context) error {
	var req models.Credentials
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	saved, err := h.store.Save(req)
	if err != nil {
		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			return NewFieldErrors(fieldErrs)
		}
		return NewInternalError("failed to save credentials", err)
	}
	return c.JSON(http.StatusOK, newCredentialsResponse(credentials.StateConfigured, saved))
}

// HandleClearCredentials removes every stored field
func (h *CredentialsHandlerImpl) HandleClearCredentials(c echo.Context) error {
	if err := h.store.Clear(); err != nil {
		return NewInternalError("failed to clear credentials", err)
	}
	return c.JSON(http.StatusOK, newCredentialsResponse(credentials.StateUnconfigured, models.Credentials{}))
}

// interfaces.go - Handler and dependency interfaces
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/doc2md/backend/internal/credentials"
	"github.com/doc2md/backend/internal/filecheck"
	"github.com/doc2md/backend/internal/models"
	"github.com/doc2md/backend/internal/upstream/cloudflare"
)

// ConvertHandler is the forwarding endpoint for single-file conversions
type ConvertHandler interface {
	HandleConvert(c echo.Context) error
	HandleSecondaryConvert(c echo.Context) error
}

// CredentialsHandler manages stored credentials
type CredentialsHandler interface {
	HandleGetCredentials(c echo.Context) error
	HandleSaveCredentials(c echo.Context) error
	HandleClearCredentials(c echo.Context) error
}

// BatchHandler starts and reports conversion batches
type BatchHandler interface {
	HandleStartBatch(c echo.Context) error
	HandleGetBatch(c echo.Context) error
	HandleGetBatchMsgpack(c echo.Context) error
}

// ServicesHandler describes the available conversion services
type ServicesHandler interface {
	HandleListServices(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// MarkdownConverter is the primary-service client used by the forwarding endpoint
type MarkdownConverter interface {
	ToMarkdown(ctx context.Context, accountID, token string, file cloudflare.File) (string, error)
}

// CredentialStore is the credential holder; *credentials.Store satisfies it
type CredentialStore interface {
	Get() models.Credentials
	State() credentials.State
	Save(creds models.Credentials) (models.Credentials, error)
	Clear() error
}

// BatchValidator checks a whole batch before anything is stored
type BatchValidator interface {
	ValidateBatch(service models.ServiceSelection, candidates []models.UploadCandidate) error
	AllowList(service models.ServiceSelection) filecheck.AllowList
}

// BatchManager runs batches in the background; *batch.Manager satisfies it
type BatchManager interface {
	Start(service models.ServiceSelection, creds models.Credentials, files []*models.FileInfo) models.Batch
	Get(id string) (models.Batch, error)
	Subscribe(id string) (<-chan models.Batch, func(), error)
}

// routes.go - Route registration helpers
package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/doc2md/backend/internal/models"
	"github.com/doc2md/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store       storage.Store
	Converter   MarkdownConverter
	Credentials CredentialStore
	Validator   BatchValidator
	Batches     BatchManager
	// EnvCredentials back the forwarding endpoint when a request has no headers
	EnvCredentials models.Credentials
	Version        string
	Logger         *slog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health      HealthHandler
	Convert     ConvertHandler
	Credentials CredentialsHandler
	Batch       BatchHandler
	Services    ServicesHandler
	WebSocket   *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:      NewHealthHandler(deps.Version, deps.Credentials),
		Convert:     NewConvertHandler(deps.Store, deps.Converter, deps.EnvCredentials, deps.Logger),
		Credentials: NewCredentialsHandler(deps.Credentials),
		Batch:       NewBatchHandler(deps.Store, deps.Validator, deps.Credentials, deps.Batches, deps.Logger),
		Services:    NewServicesHandler(deps.Validator, deps.Credentials),
		WebSocket:   NewWebSocketHandler(deps.Batches, deps.Logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Forwarding endpoint, plus the legacy alias
	apiGroup.POST("/cloudflare/convert", handlers.Convert.HandleConvert)
	apiGroup.POST("/convert", handlers.Convert.HandleConvert)
	apiGroup.POST("/mistral/convert", handlers.Convert.HandleSecondaryConvert)

	apiGroup.GET("/services", handlers.Services.HandleListServices)

	apiGroup.GET("/credentials", handlers.Credentials.HandleGetCredentials)
	apiGroup.PUT("/credentials", handlers.Credentials.HandleSaveCredentials)
	apiGroup.DELETE("/credentials", handlers.Credentials.HandleClearCredentials)

	apiGroup.POST("/batches", handlers.Batch.HandleStartBatch)
	apiGroup.GET("/batches/:id", handlers.Batch.HandleGetBatch)
	apiGroup.GET("/batches/:id/msgpack", handlers.Batch.HandleGetBatchMsgpack)

	apiGroup.GET("/ws/batches/:id", handlers.WebSocket.HandleBatchProgress)
}

// SetupMiddleware installs the central error handler
func SetupMiddleware(e *echo.Echo, logger *slog.Logger) {
	e.HTTPErrorHandler = ErrorHandler(logger)
}

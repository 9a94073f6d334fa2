// handlers_convert.go - Forwarding endpoint for the primary conversion service
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/doc2md/backend/internal/convert"
	"github.com/doc2md/backend/internal/models"
	"github.com/doc2md/backend/internal/storage"
	"github.com/doc2md/backend/internal/upstream"
	"github.com/doc2md/backend/internal/upstream/cloudflare"
)

// ConvertHandlerImpl implements the ConvertHandler interface
type ConvertHandlerImpl struct {
	store     storage.Store
	converter MarkdownConverter
	defaults  models.Credentials
	logger    *slog.Logger
}

// NewConvertHandler creates a forwarding handler. defaults are the
// process-level credentials used when a request carries no headers.
func NewConvertHandler(store storage.Store, converter MarkdownConverter, defaults models.Credentials, logger *slog.Logger) ConvertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConvertHandlerImpl{
		store:     store,
		converter: converter,
		defaults:  defaults,
		logger:    logger.With("component", "forwarder"),
	}
}

// HandleConvert relays one multipart "file" to the primary service and
// returns {markdown}. The temporary copy is removed on every exit path.
func (h *ConvertHandlerImpl) HandleConvert(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file uploaded", err)
	}

	req := c.Request()
	accountID := headerOr(req, convert.HeaderAccountID, h.defaults.AccountID)
	token := headerOr(req, convert.HeaderAPIToken, h.defaults.APIToken)
	if accountID == "" || token == "" {
		return NewMissingCredentialsError("missing credentials: account id and api token are required")
	}

	src, err := fh.Open()
	if err != nil {
		return NewBadRequestError("failed to read upload", err)
	}
	defer src.Close()

	mimeType := fh.Header.Get(echo.HeaderContentType)
	info, err := h.store.Save(fh.Filename, mimeType, src)
	if err != nil {
		return NewInternalError("failed to store upload", err)
	}
	defer func() {
		if err := h.store.Delete(info.ID); err != nil {
			h.logger.Warn("failed to delete temp file", "file", info.ID, "error", err)
		}
	}()

	content, err := h.store.Open(info.ID)
	if err != nil {
		return NewInternalError("failed to read stored upload", err)
	}
	defer content.Close()

	markdown, err := h.converter.ToMarkdown(req.Context(), accountID, token, cloudflare.File{
		Name:        info.Name,
		ContentType: info.MimeType,
		Content:     content,
	})
	if err != nil {
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			return NewUpstreamError(statusErr.Status, statusErr.Body, err)
		}
		return NewInternalError(conversionFailure(err), err)
	}

	h.logger.Info("file converted", "file", info.Name, "size", info.Size)
	return c.JSON(http.StatusOK, map[string]string{"markdown": markdown})
}

// HandleSecondaryConvert exists so clients get a clear answer: the secondary
// service is only reachable through batches.
func (h *ConvertHandlerImpl) HandleSecondaryConvert(c echo.Context) error {
	return NewNotImplementedError("mistral conversion is not available on this endpoint; submit a batch instead")
}

func conversionFailure(err error) string {
	switch {
	case errors.Is(err, cloudflare.ErrMalformedEnvelope):
		return cloudflare.ErrMalformedEnvelope.Error()
	case errors.Is(err, cloudflare.ErrUnsuccessful):
		return cloudflare.ErrUnsuccessful.Error()
	case convert.Classify(err) == convert.KindTimeout:
		return "conversion timed out"
	default:
		return "conversion failed"
	}
}

func headerOr(req *http.Request, name, fallback string) string {
	if v := req.Header.Get(name); v != "" {
		return v
	}
	return fallback
}

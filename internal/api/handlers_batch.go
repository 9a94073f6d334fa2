// handlers_batch.go - Conversion batch handlers
package api

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/doc2md/backend/internal/batch"
	"github.com/doc2md/backend/internal/convert"
	"github.com/doc2md/backend/internal/filecheck"
	"github.com/doc2md/backend/internal/models"
	"github.com/doc2md/backend/internal/storage"
)

// HeaderSecondaryKey carries the secondary-service key on batch requests.
const HeaderSecondaryKey = "x-mistral-api-key"

// BatchHandlerImpl implements the BatchHandler interface
type BatchHandlerImpl struct {
	store     storage.Store
	validator BatchValidator
	creds     CredentialStore
	batches   BatchManager
	logger    *slog.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(store storage.Store, validator BatchValidator, creds CredentialStore, batches BatchManager, logger *slog.Logger) BatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchHandlerImpl{
		store:     store,
		validator: validator,
		creds:     creds,
		batches:   batches,
		logger:    logger.With("component", "batches"),
	}
}

type startBatchResponse struct {
	BatchID string             `json:"batchId"`
	Status  models.BatchStatus `json:"status"`
}

// HandleStartBatch validates the whole multipart batch and starts converting
// it. Nothing is stored or converted unless every file is accepted.
func (h *BatchHandlerImpl) HandleStartBatch(c echo.Context) error {
	service, err := models.ParseServiceSelection(c.FormValue("service"))
	if err != nil {
		return NewBadRequestError("invalid service", err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("expected multipart form", err)
	}
	headers := append([]*multipart.FileHeader{}, form.File["files"]...)
	headers = append(headers, form.File["files[]"]...)

	candidates := make([]models.UploadCandidate, len(headers))
	for i, fh := range headers {
		candidates[i] = formCandidate(fh)
	}

	if err := h.validator.ValidateBatch(service, candidates); err != nil {
		var batchErr *filecheck.BatchError
		if errors.As(err, &batchErr) {
			return NewRejectedFilesError(batchErr)
		}
		return NewBadRequestError(err.Error(), err)
	}

	creds := h.requestCredentials(c.Request())
	if err := requireCredentials(service, creds); err != nil {
		return err
	}

	infos := make([]*models.FileInfo, 0, len(headers))
	for _, fh := range headers {
		info, err := h.saveUpload(fh)
		if err != nil {
			h.discard(infos)
			return NewInternalError("failed to store upload", err)
		}
		infos = append(infos, info)
	}

	started := h.batches.Start(service, creds, infos)
	return c.JSON(http.StatusAccepted, startBatchResponse{BatchID: started.ID, Status: started.Status})
}

// HandleGetBatch returns the current batch snapshot as JSON
func (h *BatchHandlerImpl) HandleGetBatch(c echo.Context) error {
	b, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

// HandleGetBatchMsgpack returns the current batch snapshot as MessagePack
func (h *BatchHandlerImpl) HandleGetBatchMsgpack(c echo.Context) error {
	b, err := h.lookup(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(b)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

func (h *BatchHandlerImpl) lookup(c echo.Context) (models.Batch, error) {
	id := c.Param("id")
	if id == "" {
		return models.Batch{}, NewValidationError("id")
	}
	b, err := h.batches.Get(id)
	if errors.Is(err, batch.ErrNotFound) {
		return models.Batch{}, NewNotFoundError("batch", id)
	}
	if err != nil {
		return models.Batch{}, NewInternalError("failed to load batch", err)
	}
	return b, nil
}

// requestCredentials prefers request headers, field by field, over the store.
func (h *BatchHandlerImpl) requestCredentials(req *http.Request) models.Credentials {
	stored := h.creds.Get()
	return models.Credentials{
		AccountID:    headerOr(req, convert.HeaderAccountID, stored.AccountID),
		APIToken:     headerOr(req, convert.HeaderAPIToken, stored.APIToken),
		SecondaryKey: headerOr(req, HeaderSecondaryKey, stored.SecondaryKey),
	}
}

func requireCredentials(service models.ServiceSelection, creds models.Credentials) error {
	if service.IsPrimary() && !creds.Configured() {
		return NewMissingCredentialsError("missing credentials: account id and api token are required")
	}
	if !service.IsPrimary() && !creds.HasSecondaryKey() {
		return NewMissingCredentialsError("missing credentials: a mistral api key is required")
	}
	return nil
}

func (h *BatchHandlerImpl) saveUpload(fh *multipart.FileHeader) (*models.FileInfo, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return h.store.Save(fh.Filename, fh.Header.Get(echo.HeaderContentType), src)
}

func (h *BatchHandlerImpl) discard(infos []*models.FileInfo) {
	for _, info := range infos {
		if err := h.store.Delete(info.ID); err != nil {
			h.logger.Warn("failed to delete temp file", "file", info.ID, "error", err)
		}
	}
}

func formCandidate(fh *multipart.FileHeader) models.UploadCandidate {
	return models.UploadCandidate{
		Name:     fh.Filename,
		MimeType: fh.Header.Get(echo.HeaderContentType),
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

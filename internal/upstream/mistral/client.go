// Package mistral wraps the three Mistral endpoints used for OCR: file
// upload, signed URL retrieval and OCR processing.
package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/doc2md/backend/internal/models"
	"github.com/doc2md/backend/internal/upstream"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.mistral.ai"
	// DefaultModel is the OCR model requested.
	DefaultModel = "mistral-ocr-latest"
	// DefaultPurpose tags uploaded files for OCR.
	DefaultPurpose = "ocr"
	// DefaultExpiryHours is the signed URL lifetime.
	DefaultExpiryHours = 24
)

const serviceName = "mistral"

// ErrEmptyField means a 2xx reply lacked the field the next step needs.
var ErrEmptyField = errors.New("mistral response missing expected field")

// Options configures a Client. Zero values use the defaults above.
type Options struct {
	BaseURL     string
	Model       string
	Purpose     string
	ExpiryHours int
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client calls the Mistral files and OCR APIs.
type Client struct {
	baseURL     string
	model       string
	purpose     string
	expiryHours int
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		model:       opts.Model,
		purpose:     opts.Purpose,
		expiryHours: opts.ExpiryHours,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.purpose == "" {
		c.purpose = DefaultPurpose
	}
	if c.expiryHours <= 0 {
		c.expiryHours = DefaultExpiryHours
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// File is the document to upload.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Page is one OCR result page.
type Page struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type fileResponse struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt int64  `json:"created_at"`
	Filename  string `json:"filename"`
	Purpose   string `json:"purpose"`
}

type signedURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrResponse struct {
	Pages []Page `json:"pages"`
}

// UploadFile sends the file with the configured purpose and returns its id.
func (c *Client) UploadFile(ctx context.Context, key string, file File) (string, error) {
	c.logger.Debug("mistral upload", "file", file.Name, "mime", file.ContentType)

	body, contentType, err := upstream.MultipartBody(upstream.FilePart{
		Field:       "file",
		Filename:    file.Name,
		ContentType: file.ContentType,
		Content:     file.Content,
	}, map[string]string{"purpose": c.purpose})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", body)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var out fileResponse
	if err := c.do(req, key, "upload", &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("upload: %w (id)", ErrEmptyField)
	}
	return out.ID, nil
}

// SignedURL requests a time-limited URL for an uploaded file.
func (c *Client) SignedURL(ctx context.Context, key, fileID string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/files/%s/url?expiry=%s", c.baseURL, url.PathEscape(fileID), strconv.Itoa(c.expiryHours))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building signed url request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var out signedURLResponse
	if err := c.do(req, key, "signed url", &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("signed url: %w (url)", ErrEmptyField)
	}
	return out.URL, nil
}

// OCR submits documentURL and returns the pages in reply order.
func (c *Client) OCR(ctx context.Context, key, documentURL string, kind models.InputKind) ([]Page, error) {
	doc := ocrDocument{Type: "document_url", DocumentURL: documentURL}
	if kind == models.InputImage {
		doc = ocrDocument{Type: "image_url", ImageURL: documentURL}
	}

	payload, err := json.Marshal(ocrRequest{Model: c.model, Document: doc})
	if err != nil {
		return nil, fmt.Errorf("encoding ocr request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ocr", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out ocrResponse
	if err := c.do(req, key, "ocr", &out); err != nil {
		return nil, err
	}
	return out.Pages, nil
}

// JoinPages concatenates page Markdown with a blank line between pages.
func JoinPages(pages []Page) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = p.Markdown
	}
	return strings.Join(parts, "\n\n")
}

func (c *Client) do(req *http.Request, key, op string, out any) error {
	upstream.SetBearer(req, key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mistral %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := upstream.NewStatusError(serviceName, op, resp)
		c.logger.Warn("mistral API error", "op", op, "status", statusErr.Status, "body", statusErr.Body)
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mistral %s: decoding response: %w", op, err)
	}
	return nil
}

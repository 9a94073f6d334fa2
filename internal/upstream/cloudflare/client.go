// Package cloudflare calls the Workers AI toMarkdown endpoint.
package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/doc2md/backend/internal/upstream"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

const serviceName = "cloudflare"

// ErrMalformedEnvelope means the reply was 2xx but had no result[0].data.
var ErrMalformedEnvelope = errors.New("cloudflare returned an unexpected response format")

// ErrUnsuccessful means the envelope reported success=false.
var ErrUnsuccessful = errors.New("cloudflare API call failed")

// File is the document to convert.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// envelope is the standard API reply wrapper.
type envelope struct {
	Success bool `json:"success"`
	Result  []struct {
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
		Format   string `json:"format"`
		Data     string `json:"data"`
	} `json:"result"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Client talks to the toMarkdown API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ToMarkdown uploads file as the multipart "files" field and returns the
// Markdown of the first result.
func (c *Client) ToMarkdown(ctx context.Context, accountID, token string, file File) (string, error) {
	body, contentType, err := upstream.MultipartBody(upstream.FilePart{
		Field:       "files",
		Filename:    file.Name,
		ContentType: file.ContentType,
		Content:     file.Content,
	}, nil)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/ai/tomarkdown", c.baseURL, url.PathEscape(accountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	upstream.SetBearer(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling cloudflare: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := upstream.NewStatusError(serviceName, "tomarkdown", resp)
		c.logger.Warn("cloudflare API error", "status", statusErr.Status, "body", statusErr.Body)
		return "", statusErr
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if !env.Success {
		c.logger.Warn("cloudflare reported failure", "errors", env.Errors)
		return "", ErrUnsuccessful
	}
	if len(env.Result) == 0 || env.Result[0].Data == "" {
		return "", ErrMalformedEnvelope
	}
	return env.Result[0].Data, nil
}

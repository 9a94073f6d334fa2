package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/doc2md/backend/internal/models"
	"github.com/doc2md/backend/internal/upstream"
)

// Header names understood by the forwarding endpoint.
const (
	HeaderAccountID = "x-account-id"
	HeaderAPIToken  = "x-api-token"
)

// ForwardingPath is the forwarding endpoint route.
const ForwardingPath = "/api/cloudflare/convert"

// ErrMissingMarkdown means the forwarding endpoint replied 2xx without markdown.
var ErrMissingMarkdown = errors.New("response has no markdown field")

// ForwardingBackend sends each file to the forwarding endpoint, which adds
// bearer auth and relays it to the primary service.
type ForwardingBackend struct {
	baseURL    string
	httpClient *http.Client
}

// NewForwardingBackend targets the forwarding endpoint under baseURL.
func NewForwardingBackend(baseURL string, httpClient *http.Client) *ForwardingBackend {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ForwardingBackend{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Convert implements Backend.
func (b *ForwardingBackend) Convert(ctx context.Context, creds models.Credentials, file models.UploadCandidate) (string, error) {
	content, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", file.Name, err)
	}
	defer content.Close()

	body, contentType, err := upstream.MultipartBody(upstream.FilePart{
		Field:       "file",
		Filename:    file.Name,
		ContentType: file.MimeType,
		Content:     content,
	}, nil)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+ForwardingPath, body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderAccountID, creds.AccountID)
	req.Header.Set(HeaderAPIToken, creds.APIToken)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling forwarding endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", upstream.NewStatusError("cloudflare", "convert", resp)
	}

	var out struct {
		Markdown *string `json:"markdown"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding forwarding response: %w", err)
	}
	if out.Markdown == nil {
		return "", ErrMissingMarkdown
	}
	return *out.Markdown, nil
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/doc2md/backend/internal/filecheck"
	"github.com/doc2md/backend/internal/models"
	"github.com/doc2md/backend/internal/upstream/cloudflare"
)

type uploadFile struct {
	field    string
	name     string
	mimeType string
	data     []byte
}

func newMultipartRequest(t *testing.T, target string, files []uploadFile, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		if f.mimeType != "" {
			h.Set("Content-Type", f.mimeType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func requireAPIError(t *testing.T, err error) *APIError {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.Truef(t, ok, "expected *APIError, got %T", err)
	return apiErr
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// fakeConverter stands in for the primary-service client.
type fakeConverter struct {
	mu       sync.Mutex
	markdown string
	err      error
	calls    []fakeConvertCall
}

type fakeConvertCall struct {
	AccountID   string
	Token       string
	Name        string
	ContentType string
	Content     string
}

func (f *fakeConverter) ToMarkdown(_ context.Context, accountID, token string, file cloudflare.File) (string, error) {
	data, _ := io.ReadAll(file.Content)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeConvertCall{
		AccountID:   accountID,
		Token:       token,
		Name:        file.Name,
		ContentType: file.ContentType,
		Content:     string(data),
	})
	if f.err != nil {
		return "", f.err
	}
	if f.markdown != "" {
		return f.markdown, nil
	}
	return "# " + file.Name, nil
}

func (f *fakeConverter) Calls() []fakeConvertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeConvertCall(nil), f.calls...)
}

// directBackend converts through a MarkdownConverter without the HTTP hop.
type directBackend struct {
	conv MarkdownConverter
}

func (b *directBackend) Convert(ctx context.Context, creds models.Credentials, file models.UploadCandidate) (string, error) {
	r, err := file.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()
	return b.conv.ToMarkdown(ctx, creds.AccountID, creds.APIToken, cloudflare.File{Name: file.Name, ContentType: file.MimeType, Content: r})
}

func filecheckValidator() *filecheck.Validator {
	return filecheck.New(0)
}

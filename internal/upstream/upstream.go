// Package upstream holds helpers shared by the vendor API clients.
package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// maxErrorBody bounds how much of an error reply is kept for diagnosis.
const maxErrorBody = 64 << 10

// StatusError is a non-2xx reply from a vendor API.
type StatusError struct {
	Service string
	Op      string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	body := e.Body
	if body == "" {
		body = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s failed (%d): %s", e.Service, e.Op, e.Status, body)
}

// NewStatusError drains resp.Body into a StatusError. JSON bodies are
// compacted, anything else is kept as trimmed text.
func NewStatusError(service, op string, resp *http.Response) *StatusError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := strings.TrimSpace(string(data))

	var compact bytes.Buffer
	if json.Valid(data) && json.Compact(&compact, data) == nil {
		body = compact.String()
	}
	return &StatusError{Service: service, Op: op, Status: resp.StatusCode, Body: body}
}

// SetBearer sets the Authorization header.
func SetBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// FilePart describes one file field of a multipart body.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

// MultipartBody encodes fields and one file part, returning the body and its
// Content-Type header value.
func MultipartBody(file FilePart, fields map[string]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", k, err)
		}
	}

	filename := file.Filename
	if filename == "" {
		filename = "uploaded_file"
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(file.Field), escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return nil, "", fmt.Errorf("copying file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

package upstream

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatusError(t *testing.T) {
	t.Run("json body is compacted", func(t *testing.T) {
		resp := &http.Response{StatusCode: 401, Body: io.NopCloser(strings.NewReader("{\n  \"detail\": \"bad key\"\n}"))}
		err := NewStatusError("mistral", "upload", resp)
		assert.Equal(t, 401, err.Status)
		assert.Equal(t, `{"detail":"bad key"}`, err.Body)
		assert.Equal(t, `mistral upload failed (401): {"detail":"bad key"}`, err.Error())
	})

	t.Run("text body is trimmed", func(t *testing.T) {
		resp := &http.Response{StatusCode: 403, Body: io.NopCloser(strings.NewReader(" forbidden\n"))}
		err := NewStatusError("cloudflare", "tomarkdown", resp)
		assert.Equal(t, "forbidden", err.Body)
	})

	t.Run("empty body falls back to status text", func(t *testing.T) {
		resp := &http.Response{StatusCode: 502, Body: io.NopCloser(strings.NewReader(""))}
		err := NewStatusError("mistral", "ocr", resp)
		assert.Contains(t, err.Error(), "Bad Gateway")
	})
}

func TestMultipartBody(t *testing.T) {
	body, contentType, err := MultipartBody(FilePart{
		Field:    "files",
		Filename: `we"ird.pdf`,
		Content:  strings.NewReader("%PDF"),
	}, map[string]string{"purpose": "ocr"})
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	reader := multipart.NewReader(body, params["boundary"])
	form, err := reader.ReadForm(1 << 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"ocr"}, form.Value["purpose"])
	require.Len(t, form.File["files"], 1)
	fh := form.File["files"][0]
	assert.Equal(t, `we"ird.pdf`, fh.Filename)
	assert.Equal(t, "application/octet-stream", fh.Header.Get("Content-Type"))
}

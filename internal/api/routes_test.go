package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doc2md/backend/internal/batch"
	"github.com/doc2md/backend/internal/convert"
	"github.com/doc2md/backend/internal/models"
	"github.com/doc2md/backend/internal/storage"
	"github.com/doc2md/backend/internal/upstream"
)

type testServer struct {
	*httptest.Server
	store     *storage.LocalStore
	converter *fakeConverter
	batches   *batch.Manager
}

// newTestServer wires the real stack with the primary backend looping back
// through the server's own forwarding endpoint.
func newTestServer(t *testing.T, conv *fakeConverter) *testServer {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	e := echo.New()
	SetupMiddleware(e, nil)
	ts := httptest.NewUnstartedServer(e)

	orchestrator := convert.NewOrchestrator(
		convert.NewForwardingBackend("http://"+ts.Listener.Addr().String(), nil),
		&directBackend{conv: conv},
		nil,
	)
	manager := batch.NewManager(orchestrator, store, 10*time.Second, nil)

	RegisterRoutes(e, NewHandlers(&Dependencies{
		Store:       store,
		Converter:   conv,
		Credentials: newCredentialStore(t, configuredCreds),
		Validator:   filecheckValidator(),
		Batches:     manager,
		Version:     "test",
	}))

	ts.Start()
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: store, converter: conv, batches: manager}
}

func (s *testServer) waitBatch(t *testing.T, id string) models.Batch {
	t.Helper()
	var b models.Batch
	require.Eventually(t, func() bool {
		var err error
		b, err = s.batches.Get(id)
		return err == nil && b.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return b
}

func (s *testServer) postBatch(t *testing.T, service string, files []uploadFile) startBatchResponse {
	t.Helper()
	req := newMultipartRequest(t, s.URL+"/api/batches", files, map[string]string{"service": service})
	req.RequestURI = ""
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out startBatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRoutes_ErrorBodyShape(t *testing.T) {
	conv := &fakeConverter{err: &upstream.StatusError{Status: http.StatusForbidden, Body: "forbidden"}}
	srv := newTestServer(t, conv)

	req := newMultipartRequest(t, srv.URL+"/api/cloudflare/convert", []uploadFile{{field: "file", name: "a.pdf", data: []byte("x")}}, nil)
	req.RequestURI = ""
	req.Header.Set(convert.HeaderAccountID, "acct")
	req.Header.Set(convert.HeaderAPIToken, "tok")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "upstream error: forbidden", body["error"])
	assert.Equal(t, "UPSTREAM_ERROR", body["code"])
}

func TestRoutes_SecondaryStubAndHealth(t *testing.T) {
	srv := newTestServer(t, &fakeConverter{})

	resp, err := http.Post(srv.URL+"/api/mistral/convert", "application/octet-stream", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"status":"ok"`)
	assert.Contains(t, string(data), `"credentials":"configured"`)
}

func TestRoutes_PrimaryBatchThroughForwardingEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeConverter{})

	started := srv.postBatch(t, "cloudflare", []uploadFile{
		{field: "files", name: "one.pdf", mimeType: "application/pdf", data: []byte("1")},
		{field: "files", name: "two.docx", data: []byte("2")},
	})
	b := srv.waitBatch(t, started.BatchID)

	require.Equal(t, models.BatchStatusComplete, b.Status, b.Error)
	assert.Equal(t, []models.ConversionResult{
		{Name: "one.pdf", Markdown: "# one.pdf"},
		{Name: "two.docx", Markdown: "# two.docx"},
	}, b.Results)

	calls := srv.converter.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "acct", calls[0].AccountID)
	assert.Equal(t, "tok", calls[0].Token)
	assert.Equal(t, "1", calls[0].Content)

	assert.Empty(t, srv.store.List(), "batch and forwarding copies are both removed")
}

func TestRoutes_FailedBatchReportsFile(t *testing.T) {
	conv := &fakeConverter{err: &upstream.StatusError{Status: http.StatusUnauthorized, Body: "bad token"}}
	srv := newTestServer(t, conv)

	started := srv.postBatch(t, "cloudflare", []uploadFile{
		{field: "files", name: "a.pdf", mimeType: "application/pdf", data: []byte("a")},
		{field: "files", name: "b.pdf", mimeType: "application/pdf", data: []byte("b")},
	})
	b := srv.waitBatch(t, started.BatchID)

	assert.Equal(t, models.BatchStatusError, b.Status)
	assert.Equal(t, "a.pdf", b.FailedFile)
	assert.Equal(t, string(convert.KindUpstream), b.ErrorKind)
	assert.Contains(t, b.Error, "upstream error: bad token")
	assert.Nil(t, b.Results)
	assert.Len(t, conv.Calls(), 1, "the batch stops at the first failure")
	assert.Empty(t, srv.store.List())
}

func TestRoutes_BatchProgressWebSocket(t *testing.T) {
	srv := newTestServer(t, &fakeConverter{})

	started := srv.postBatch(t, "mistral", []uploadFile{
		{field: "files", name: "scan.png", mimeType: "image/png", data: []byte("png")},
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/batches/" + started.BatchID
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var final WSMessage
	for {
		var msg WSMessage
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.Type == MsgTypeComplete || msg.Type == MsgTypeError {
			final = msg
			break
		}
	}

	assert.Equal(t, MsgTypeComplete, final.Type)
	require.NotNil(t, final.Batch)
	assert.Equal(t, []models.ConversionResult{{Name: "scan.png", Markdown: "# scan.png"}}, final.Batch.Results)
}

func TestRoutes_WebSocketUnknownBatch(t *testing.T) {
	srv := newTestServer(t, &fakeConverter{})

	resp, err := http.Get(srv.URL + "/api/ws/batches/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/doc2md/backend/internal/batch"
	"github.com/doc2md/backend/internal/models"
)

// WebSocket message types for batch progress
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WSMessage is the envelope for every frame in both directions
type WSMessage struct {
	Type      string        `json:"type"`
	Batch     *models.Batch `json:"batch,omitempty"`
	Message   string        `json:"message,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// WebSocketHandler streams batch snapshots to the browser
type WebSocketHandler struct {
	batches  BatchManager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new batch progress handler
func NewWebSocketHandler(batches BatchManager, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		batches: batches,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		logger: logger.With("component", "websocket"),
	}
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Timestamp = time.Now().UnixMilli()
	return c.ws.WriteJSON(msg)
}

// HandleBatchProgress upgrades the connection and sends a snapshot on every
// change until the batch reaches a terminal state.
func (wsh *WebSocketHandler) HandleBatchProgress(c echo.Context) error {
	id := c.Param("id")
	updates, cancel, err := wsh.batches.Subscribe(id)
	if errors.Is(err, batch.ErrNotFound) {
		return NewNotFoundError("batch", id)
	}
	if err != nil {
		return NewInternalError("failed to subscribe", err)
	}
	defer cancel()

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	conn := &wsConn{ws: ws}
	log := wsh.logger.With("batch", id)
	log.Debug("client connected")

	conn.send(WSMessage{Type: MsgTypeConnected})

	closed := make(chan struct{})
	go wsh.readLoop(conn, closed, log)

	for {
		select {
		case <-closed:
			log.Debug("client disconnected")
			return nil
		case b, ok := <-updates:
			if !ok {
				// Intermediate snapshots may have been dropped; Get has the final one.
				final, err := wsh.batches.Get(id)
				if err != nil {
					conn.send(WSMessage{Type: MsgTypeError, Message: err.Error()})
					return nil
				}
				wsh.sendFinal(conn, final)
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return nil
			}
			if b.Status.Terminal() {
				continue
			}
			if err := conn.send(WSMessage{Type: MsgTypeProgress, Batch: &b}); err != nil {
				log.Debug("write failed", "error", err)
				return nil
			}
		}
	}
}

func (wsh *WebSocketHandler) sendFinal(conn *wsConn, b models.Batch) {
	msgType := MsgTypeComplete
	if b.Status != models.BatchStatusComplete {
		msgType = MsgTypeError
	}
	conn.send(WSMessage{Type: msgType, Batch: &b, Message: b.Error})
}

func (wsh *WebSocketHandler) readLoop(conn *wsConn, closed chan<- struct{}, log *slog.Logger) {
	defer close(closed)
	for {
		var msg WSMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("connection error", "error", err)
			}
			return
		}
		if msg.Type == MsgTypePing {
			conn.send(WSMessage{Type: MsgTypePong})
		}
	}
}

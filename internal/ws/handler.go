// Package ws streams live terminal sessions over WebSocket. Output frames
// are binary PTY bytes; control frames (input, resize, ping) are JSON.
package ws

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/termhost/ptybridge"
	"github.com/termhost/ptybridge/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the CORS middleware
	},
}

// Message is one JSON control frame from the client.
type Message struct {
	Type  string `json:"type"`
	Input string `json:"input,omitempty"`
	Cols  int    `json:"cols,omitempty"`
	Rows  int    `json:"rows,omitempty"`
}

// Handler manages WebSocket attachments to live sessions.
type Handler struct {
	bridge       *ptybridge.Bridge
	log          *logging.Logger
	readBufSize  int
	pollInterval time.Duration
}

// NewHandler creates a new WebSocket handler.
func NewHandler(bridge *ptybridge.Bridge, log *logging.Logger, readBufSize int) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	if readBufSize <= 0 {
		readBufSize = 8192
	}
	return &Handler{
		bridge:       bridge,
		log:          log,
		readBufSize:  readBufSize,
		pollInterval: 20 * time.Millisecond,
	}
}

// HandleAttach upgrades the connection and bridges it to the session: PTY
// output flows out as binary frames, input/resize commands flow in as JSON.
// The attachment ends when the session reaches end-of-stream or the client
// disconnects; the session itself stays registered either way.
func (h *Handler) HandleAttach(c *gin.Context) {
	handle, err := strconv.Atoi(c.Param("id"))
	if err != nil || handle <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session handle"})
		return
	}
	if _, ok := h.bridge.Info(handle); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.bridge.Metrics().WSConnections.Inc()
	defer h.bridge.Metrics().WSConnections.Dec()

	// gorilla/websocket allows one concurrent writer per connection.
	var writeMu sync.Mutex
	send := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(messageType, data)
	}
	sendJSON := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	done := make(chan struct{})
	go h.pumpOutput(handle, send, sendJSON, done)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "input":
			if status := h.bridge.Write(handle, []byte(msg.Input)); status != ptybridge.StatusSuccess {
				sendStatus(sendJSON, "input", status)
			}
		case "resize":
			if status := h.bridge.Resize(handle, msg.Cols, msg.Rows); status != ptybridge.StatusSuccess {
				sendStatus(sendJSON, "resize", status)
			}
		case "ping":
			sendJSON(map[string]interface{}{"type": "pong"})
		}
	}
	close(done)
}

// sendStatus reports a rejected client command back over the socket, so an
// attached client writing to an exited session is not left guessing.
func sendStatus(sendJSON func(interface{}) error, op string, status int) {
	frame := map[string]interface{}{
		"type": "error",
		"op":   op,
		"code": status,
	}
	if status == ptybridge.StatusChildExited {
		frame["error"] = "child exited"
	} else {
		frame["error"] = "invalid arguments"
	}
	sendJSON(frame)
}

// pumpOutput polls the session and forwards output until end-of-stream or
// client disconnect. On end-of-stream it sends a final exit frame.
func (h *Handler) pumpOutput(handle int, send func(int, []byte) error, sendJSON func(interface{}) error, done <-chan struct{}) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	buf := make([]byte, h.readBufSize)
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		n := h.bridge.Read(handle, buf)
		switch {
		case n == ptybridge.StatusChildExited:
			sendJSON(map[string]interface{}{
				"type":      "exit",
				"exit_code": h.bridge.ExitCode(handle),
			})
			send(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
			return
		case n < 0:
			return
		case n > 0:
			if err := send(websocket.BinaryMessage, buf[:n]); err != nil {
				return
			}
		}
	}
}

package server

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/termhost/ptybridge"
	"github.com/termhost/ptybridge/internal/logging"
)

// Handlers routes REST calls to the bridge.
type Handlers struct {
	bridge      *ptybridge.Bridge
	log         *logging.Logger
	readBufSize int
}

// NewHandlers creates the REST handler set.
func NewHandlers(bridge *ptybridge.Bridge, log *logging.Logger, readBufSize int) *Handlers {
	if log == nil {
		log = logging.Nop()
	}
	if readBufSize <= 0 {
		readBufSize = 8192
	}
	return &Handlers{
		bridge:      bridge,
		log:         log,
		readBufSize: readBufSize,
	}
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": len(h.bridge.Sessions()),
	})
}

type spawnRequest struct {
	Command string `json:"command" binding:"required"`
	Cwd     string `json:"cwd"`
	Cols    int    `json:"cols"`
	Rows    int    `json:"rows"`
}

// Spawn creates a new session. Omitted dimensions default to 80x24;
// explicitly non-positive ones are rejected.
func (h *Handlers) Spawn(c *gin.Context) {
	var req spawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Cols == 0 {
		req.Cols = 80
	}
	if req.Rows == 0 {
		req.Rows = 24
	}

	handle := h.bridge.Spawn(req.Command, req.Cwd, req.Cols, req.Rows)
	if handle <= 0 {
		h.log.Debug("spawn rejected", zap.String("command", req.Command))
		c.JSON(http.StatusBadRequest, gin.H{"error": "spawn failed"})
		return
	}
	h.log.Info("session spawned",
		zap.Int("handle", handle),
		zap.String("command", req.Command))

	info, _ := h.bridge.Info(handle)
	c.JSON(http.StatusCreated, info)
}

// List returns metadata for all live sessions.
func (h *Handlers) List(c *gin.Context) {
	sessions := h.bridge.Sessions()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Get returns metadata for one session.
func (h *Handlers) Get(c *gin.Context) {
	handle, ok := h.handleParam(c)
	if !ok {
		return
	}
	info, found := h.bridge.Info(handle)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.JSON(http.StatusOK, info)
}

type inputRequest struct {
	Input       string `json:"input"`
	InputBase64 string `json:"input_base64"`
}

// Input submits bytes to the session's terminal. Binary-safe payloads go in
// input_base64; plain text in input.
func (h *Handlers) Input(c *gin.Context) {
	handle, ok := h.handleParam(c)
	if !ok {
		return
	}

	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data := []byte(req.Input)
	if req.InputBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.InputBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 input"})
			return
		}
		data = decoded
	}

	h.respondStatus(c, h.bridge.Write(handle, data))
}

// Output polls the session once and returns whatever was available, base64
// encoded alongside a best-effort string form. eof is set once the stream
// has fully drained after the child exited.
func (h *Handlers) Output(c *gin.Context) {
	handle, ok := h.handleParam(c)
	if !ok {
		return
	}
	if _, found := h.bridge.Info(handle); !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}

	max := h.readBufSize
	if v := c.Query("max"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max"})
			return
		}
		max = parsed
	}

	buf := make([]byte, max)
	n := h.bridge.Read(handle, buf)
	switch {
	case n == ptybridge.StatusChildExited:
		c.JSON(http.StatusOK, gin.H{
			"output":        "",
			"output_base64": "",
			"length":        0,
			"eof":           true,
			"exit_code":     h.bridge.ExitCode(handle),
		})
	case n < 0:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"output":        string(buf[:n]),
			"output_base64": base64.StdEncoding.EncodeToString(buf[:n]),
			"length":        n,
			"eof":           false,
		})
	}
}

type resizeRequest struct {
	Cols int `json:"cols" binding:"required"`
	Rows int `json:"rows" binding:"required"`
}

// Resize changes terminal dimensions.
func (h *Handlers) Resize(c *gin.Context) {
	handle, ok := h.handleParam(c)
	if !ok {
		return
	}

	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.respondStatus(c, h.bridge.Resize(handle, req.Cols, req.Rows))
}

// Kill terminates the session's child but keeps the handle alive so the
// remaining output can still be drained.
func (h *Handlers) Kill(c *gin.Context) {
	handle, ok := h.handleParam(c)
	if !ok {
		return
	}
	if _, found := h.bridge.Info(handle); !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	h.respondStatus(c, h.bridge.Kill(handle))
}

// Close releases the session entirely.
func (h *Handlers) Close(c *gin.Context) {
	handle, ok := h.handleParam(c)
	if !ok {
		return
	}
	if _, found := h.bridge.Info(handle); !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	h.bridge.Close(handle)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) handleParam(c *gin.Context) (int, bool) {
	handle, err := strconv.Atoi(c.Param("id"))
	if err != nil || handle <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session handle"})
		return 0, false
	}
	return handle, true
}

func (h *Handlers) respondStatus(c *gin.Context, status int) {
	switch status {
	case ptybridge.StatusSuccess:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case ptybridge.StatusChildExited:
		c.JSON(http.StatusGone, gin.H{"error": "child exited"})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session or invalid arguments"})
	}
}

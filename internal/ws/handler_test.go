package ws_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termhost/ptybridge"
	"github.com/termhost/ptybridge/internal/config"
	"github.com/termhost/ptybridge/internal/server"
)

func attachURL(ts *httptest.Server, handle int) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + fmt.Sprintf("/sessions/%d/attach", handle)
}

func setup(t *testing.T) (*httptest.Server, *ptybridge.Bridge) {
	t.Helper()
	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	srv := server.New(cfg, nil, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts, srv.Bridge()
}

func TestAttach_UnknownSession(t *testing.T) {
	ts, _ := setup(t)

	_, resp, err := websocket.DefaultDialer.Dial(attachURL(ts, 999), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestAttach_InputEchoesAsBinaryFrames(t *testing.T) {
	ts, bridge := setup(t)

	handle := bridge.Spawn("cat", "/tmp", 80, 24)
	require.Greater(t, handle, 0)
	defer bridge.Close(handle)

	conn, _, err := websocket.DefaultDialer.Dial(attachURL(ts, handle), nil)
	require.NoError(t, err)
	defer conn.Close()

	payload, err := json.Marshal(map[string]interface{}{"type": "input", "input": "ping\n"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var out []byte
	for {
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if msgType == websocket.BinaryMessage {
			out = append(out, data...)
		}
		if bytes.Contains(out, []byte("ping")) {
			return
		}
	}
}

func TestAttach_ExitFrameOnSessionEnd(t *testing.T) {
	ts, bridge := setup(t)

	handle := bridge.Spawn("echo farewell", "/tmp", 80, 24)
	require.Greater(t, handle, 0)
	defer bridge.Close(handle)

	conn, _, err := websocket.DefaultDialer.Dial(attachURL(ts, handle), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var out []byte
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// Normal closure after the exit frame is acceptable.
			break
		}
		if msgType == websocket.BinaryMessage {
			out = append(out, data...)
			continue
		}
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame["type"] == "exit" {
			assert.Contains(t, frame, "exit_code")
			break
		}
	}
	assert.Contains(t, string(out), "farewell")
}

func TestAttach_RejectedCommandReportsError(t *testing.T) {
	ts, bridge := setup(t)

	handle := bridge.Spawn("sleep 60", "/tmp", 80, 24)
	require.Greater(t, handle, 0)
	defer bridge.Close(handle)

	conn, _, err := websocket.DefaultDialer.Dial(attachURL(ts, handle), nil)
	require.NoError(t, err)
	defer conn.Close()

	payload, _ := json.Marshal(map[string]interface{}{"type": "resize", "cols": 0, "rows": 40})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if msgType != websocket.TextMessage {
			continue
		}
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame["type"] == "error" {
			assert.Equal(t, "resize", frame["op"])
			assert.Equal(t, float64(ptybridge.StatusError), frame["code"])
			return
		}
	}
}

func TestAttach_Ping(t *testing.T) {
	ts, bridge := setup(t)

	handle := bridge.Spawn("sleep 60", "/tmp", 80, 24)
	require.Greater(t, handle, 0)
	defer bridge.Close(handle)

	conn, _, err := websocket.DefaultDialer.Dial(attachURL(ts, handle), nil)
	require.NoError(t, err)
	defer conn.Close()

	payload, _ := json.Marshal(map[string]interface{}{"type": "ping"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if msgType != websocket.TextMessage {
			continue
		}
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame["type"] == "pong" {
			return
		}
	}
}

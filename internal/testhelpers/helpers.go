// Package testhelpers provides websocket and HTTP helpers shared by the
// package tests that drive a running roomchat server.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// DefaultTimeout bounds every blocking read in these helpers.
const DefaultTimeout = 2 * time.Second

// WebSocketURL converts an httptest server URL into its /ws endpoint.
func WebSocketURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

// ConnectWebSocket dials url presenting origin. The connection is closed
// when the test ends.
func ConnectWebSocket(t *testing.T, url, origin string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err, "dial %s", url)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Emit writes one frame carrying data.
func Emit(t *testing.T, conn *websocket.Conn, event protocol.Event, data any) {
	t.Helper()
	frame, err := protocol.Encode(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// EmitRaw writes data as a single text message without framing it.
func EmitRaw(t *testing.T, conn *websocket.Conn, data []byte) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// ReadFrame reads the next frame, failing the test after DefaultTimeout.
func ReadFrame(t *testing.T, conn *websocket.Conn) protocol.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(DefaultTimeout)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	frame, err := protocol.Decode(raw)
	require.NoError(t, err)
	return frame
}

// ExpectFrame reads the next frame and requires it to be event.
func ExpectFrame(t *testing.T, conn *websocket.Conn, event protocol.Event) protocol.Frame {
	t.Helper()
	frame := ReadFrame(t, conn)
	require.Equal(t, event, frame.Event)
	return frame
}

// ExpectNoFrame requires that nothing arrives on conn within wait. The
// connection must not be read from afterwards, since gorilla connections are
// unusable after a read timeout.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, got %s", raw)
	}
}

// Setup binds conn to userID and waits for the acknowledgement.
func Setup(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	Emit(t, conn, protocol.EventSetup, protocol.User{ID: userID})
	ExpectFrame(t, conn, protocol.EventConnected)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// MakeRequest executes an HTTP request with a 5-second timeout.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// DecodeJSON decodes the response body into a value of type T.
func DecodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/tsukuyomi/internal/app"
	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/metrics"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

func echoApp(t *testing.T) *app.App {
	t.Helper()
	setCookie := handler.Around(func(in *input.Input, next handler.Handler) (output.Responder, error) {
		in.Cookies.Add(&http.Cookie{Name: "session", Value: "abc", Path: "/"})
		return next.Handle(in)
	})
	a, err := app.Build(func(s *app.Scope) error {
		return s.At("/ws", endpoint.Get(endpoint.Call1(
			Extractor(Config{Subprotocols: []string{"echo"}}),
			func(ws *Ws) (output.Responder, error) {
				return ws.Finish(Echo), nil
			},
		)), setCookie)
	})
	require.NoError(t, err)
	return a
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestFinish_Echo(t *testing.T) {
	srv := httptest.NewServer(echoApp(t))
	defer srv.Close()

	before := testutil.ToFloat64(metrics.WebSocketConnections)

	dialer := websocket.Dialer{Subprotocols: []string{"echo"}}
	conn, res, err := dialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, res.StatusCode)
	assert.Equal(t, "echo", conn.Subprotocol())
	assert.Contains(t, res.Header.Get("Set-Cookie"), "session=abc")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, "ping", string(data))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.WebSocketConnections) == before+1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.WebSocketConnections) == before
	}, time.Second, 10*time.Millisecond)
}

func TestExtractor_RejectsBadHandshake(t *testing.T) {
	a := echoApp(t)

	handshake := func(mutate func(h http.Header)) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Connection", "keep-alive, Upgrade")
		req.Header.Set("Upgrade", "websocket")
		req.Header.Set("Sec-WebSocket-Version", "13")
		req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
		mutate(req.Header)
		return req
	}

	tests := []struct {
		name   string
		mutate func(h http.Header)
	}{
		{"no connection upgrade", func(h http.Header) { h.Set("Connection", "keep-alive") }},
		{"no upgrade header", func(h http.Header) { h.Del("Upgrade") }},
		{"missing key", func(h http.Header) { h.Del("Sec-WebSocket-Key") }},
		{"wrong version", func(h http.Header) { h.Set("Sec-WebSocket-Version", "8") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.ServeHTTP(rec, handshake(tt.mutate))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}

	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, handshake(func(h http.Header) { h.Set("Sec-WebSocket-Version", "8") }))
	assert.Equal(t, "13", rec.Header().Get("Sec-WebSocket-Version"))
}

func TestFinish_RejectsCrossOrigin(t *testing.T) {
	srv := httptest.NewServer(echoApp(t))
	defer srv.Close()

	header := http.Header{"Origin": {"https://evil.example"}}
	_, res, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestExtractor_UpgradeFailureDetailFollowsEnv(t *testing.T) {
	// httptest.ResponseRecorder cannot be hijacked, so the upgrader fails
	// with a 500 after the handshake headers have been accepted.
	upgrade := func(env string) map[string]any {
		t.Helper()
		a, err := app.Build(func(s *app.Scope) error {
			return s.At("/ws", endpoint.Get(endpoint.Call1(
				Extractor(Config{Env: env}),
				func(ws *Ws) (output.Responder, error) {
					return ws.Finish(Echo), nil
				},
			)))
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Connection", "Upgrade")
		req.Header.Set("Upgrade", "websocket")
		req.Header.Set("Sec-WebSocket-Version", "13")
		req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
		rec := httptest.NewRecorder()
		a.ServeHTTP(rec, req)
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	assert.Contains(t, upgrade("development")["detail"], "Hijacker")
	assert.Equal(t, "Internal Server Error", upgrade("production")["detail"])
	assert.Equal(t, "Internal Server Error", upgrade("")["detail"])
}

func TestHasToken(t *testing.T) {
	h := http.Header{"Connection": {"keep-alive", "UPGRADE"}}
	assert.True(t, hasToken(h, "Connection", "upgrade"))
	assert.False(t, hasToken(h, "Connection", "close"))
	assert.False(t, hasToken(h, "Upgrade", "websocket"))
}

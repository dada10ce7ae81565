// Package websocket upgrades requests to WebSocket connections using
// gorilla/websocket.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/tsukuyomi/internal/extractor"
	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/metrics"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
	"github.com/Togather-Foundation/tsukuyomi/internal/problem"
)

const supportedVersion = "13"

var (
	ErrMethod          = errors.New("websocket handshake requires GET")
	ErrConnectionToken = errors.New("missing Connection: upgrade")
	ErrUpgradeToken    = errors.New("missing Upgrade: websocket")
	ErrVersion         = errors.New("unsupported Sec-WebSocket-Version")
	ErrMissingKey      = errors.New("missing Sec-WebSocket-Key")
)

// Config tunes the upgrader.
type Config struct {
	ReadBufferSize    int
	WriteBufferSize   int
	HandshakeTimeout  time.Duration
	Subprotocols      []string
	EnableCompression bool
	// CheckOrigin defaults to rejecting cross-origin requests.
	CheckOrigin func(r *http.Request) bool
	// Env controls how much of a failed upgrade's cause reaches the client,
	// as in problem.Write. Empty is treated as production.
	Env string
}

// Ws is a validated WebSocket handshake waiting to be finished.
type Ws struct {
	upgrader  *websocket.Upgrader
	protocols []string
}

// Protocols returns the subprotocols requested by the client.
func (ws *Ws) Protocols() []string {
	return ws.protocols
}

// Extractor validates the handshake headers and yields a *Ws.
func Extractor(cfg Config) extractor.Extractor[*Ws] {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		Subprotocols:      cfg.Subprotocols,
		EnableCompression: cfg.EnableCompression,
		CheckOrigin:       cfg.CheckOrigin,
		Error:             errorWriter(cfg.Env),
	}
	return extractor.Func[*Ws](func(in *input.Input) (*Ws, error) {
		if err := validate(in.Request); err != nil {
			return nil, err
		}
		return &Ws{upgrader: upgrader, protocols: websocket.Subprotocols(in.Request)}, nil
	})
}

func validate(r *http.Request) error {
	if r.Method != http.MethodGet {
		return httperr.BadRequest(ErrMethod)
	}
	if !hasToken(r.Header, "Connection", "upgrade") {
		return httperr.BadRequest(ErrConnectionToken)
	}
	if !hasToken(r.Header, "Upgrade", "websocket") {
		return httperr.BadRequest(ErrUpgradeToken)
	}
	if r.Header.Get("Sec-WebSocket-Version") != supportedVersion {
		return httperr.BadRequest(ErrVersion).WithHeader("Sec-WebSocket-Version", supportedVersion)
	}
	if strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key")) == "" {
		return httperr.BadRequest(ErrMissingKey)
	}
	return nil
}

// hasToken reports whether the comma-separated header contains token,
// ignoring case.
func hasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}

// errorWriter renders handshake failures detected by the upgrader. Origin
// rejections keep their 403; anything else the client got wrong is a 400.
func errorWriter(env string) func(http.ResponseWriter, *http.Request, int, error) {
	return func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		var opts []problem.Option
		switch status {
		case http.StatusForbidden, http.StatusInternalServerError:
		default:
			status = http.StatusBadRequest
		}
		if status < 500 {
			opts = append(opts, problem.WithDetail(reason.Error()))
		}
		problem.Write(w, r, status, problem.TypeFor(status), http.StatusText(status), reason, env, opts...)
	}
}

// Handler runs on an upgraded connection. The connection is closed when it
// returns.
type Handler func(ctx context.Context, conn *websocket.Conn) error

// Finish returns a responder that completes the handshake and runs fn on the
// connection. Cookies set by the handler chain are sent with the 101 response.
func (ws *Ws) Finish(fn Handler) output.Responder {
	return output.Raw(func(w http.ResponseWriter, r *http.Request) {
		header := http.Header{}
		for _, c := range w.Header().Values("Set-Cookie") {
			header.Add("Set-Cookie", c)
		}
		w.Header().Del("Set-Cookie")

		conn, err := ws.upgrader.Upgrade(w, r, header)
		if err != nil {
			// The upgrader has already written the error response.
			return
		}
		defer func() { _ = conn.Close() }()

		// The server's read and write timeouts do not apply to the session.
		_ = conn.NetConn().SetDeadline(time.Time{})

		metrics.WebSocketConnections.Inc()
		defer metrics.WebSocketConnections.Dec()

		logger := zerolog.Ctx(r.Context())
		logger.Debug().Str("subprotocol", conn.Subprotocol()).Msg("websocket connected")
		if err := fn(r.Context(), conn); err != nil && !isClosed(err) {
			logger.Warn().Err(err).Msg("websocket session ended with error")
			return
		}
		logger.Debug().Msg("websocket closed")
	})
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

// Echo writes every message back to the peer until it closes the connection.
func Echo(ctx context.Context, conn *websocket.Conn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(kind, data); err != nil {
			return err
		}
	}
}

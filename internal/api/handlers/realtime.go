package handlers

import (
	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
	"github.com/Togather-Foundation/tsukuyomi/internal/websocket"
)

// EchoSocket upgrades to a WebSocket that echoes every message back.
func EchoSocket(cfg websocket.Config) handler.Handler {
	return endpoint.Get(endpoint.Call1(websocket.Extractor(cfg), func(ws *websocket.Ws) (output.Responder, error) {
		return ws.Finish(websocket.Echo), nil
	}))
}

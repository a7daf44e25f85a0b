package ogsync

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ymattw/ogsync/internal/sio"
)

// Transport is an open named-event connection. Emit and Close must be safe
// for concurrent use.
type Transport interface {
	Emit(event string, payload any) error
	Close() error
}

// FrameHandler receives inbound events. A Transport calls it from a single
// goroutine in arrival order, and last with EventNameDisconnect once the
// connection is gone.
type FrameHandler func(event string, data json.RawMessage)

// Dialer opens a Transport. Dial returns once the connection is usable for
// Emit, or fails when ctx expires.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header, handler FrameHandler) (Transport, error)
}

// websocketDialer speaks Socket.IO v4 over gorilla/websocket.
type websocketDialer struct {
	logger *zap.Logger
}

func (d websocketDialer) Dial(ctx context.Context, url string, header http.Header, handler FrameHandler) (Transport, error) {
	conn, err := sio.Dial(ctx, url, header, sio.Handler(handler), d.logger)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

package sio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DisconnectEvent is delivered to the Handler exactly once, after the read
// loop stops. Its payload is a JSON string with the reason.
const DisconnectEvent = "disconnect"

const writeWait = 10 * time.Second

// ErrConnectRefused is returned by Dial when the server answers the namespace
// connect with CONNECT_ERROR.
var ErrConnectRefused = errors.New("sio: connect refused")

// Handler receives every inbound event. It is always called from the single
// read goroutine of a Conn, in arrival order.
type Handler func(event string, data json.RawMessage)

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int64  `json:"pingInterval"` // ms
	PingTimeout  int64  `json:"pingTimeout"`  // ms
}

// Conn is a connected Socket.IO client. Emit and Close are safe for
// concurrent use.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	handler Handler
	logger  *zap.Logger

	sid          string
	pingInterval time.Duration
	pingTimeout  time.Duration

	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens the websocket at rawURL and completes the Engine.IO open and
// Socket.IO namespace connect exchange. It returns once the server has
// acknowledged the connect, or fails when ctx expires first. Inbound events
// are delivered to handler from then on.
func Dial(ctx context.Context, rawURL string, header http.Header, handler Handler, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return nil, fmt.Errorf("sio: dial: %w", err)
	}

	c := &Conn{
		ws:      ws,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
	if err := c.handshake(ctx); err != nil {
		ws.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

// SID returns the Engine.IO session id assigned by the server.
func (c *Conn) SID() string {
	return c.sid
}

// Done is closed when the read loop has stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) handshake(ctx context.Context) error {
	// Unblock reads when ctx is canceled without a deadline.
	stop := context.AfterFunc(ctx, func() {
		c.ws.SetReadDeadline(time.Now())
	})
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		c.ws.SetReadDeadline(deadline)
	}

	msg, err := c.readText()
	if err != nil {
		return fmt.Errorf("sio: waiting for open: %w", err)
	}
	if msg[0] != eioOpen {
		return fmt.Errorf("sio: expected open packet, got %q", msg)
	}
	var open openPacket
	if err := json.Unmarshal(msg[1:], &open); err != nil {
		return fmt.Errorf("sio: open packet: %w", err)
	}
	c.sid = open.SID
	c.pingInterval = time.Duration(open.PingInterval) * time.Millisecond
	c.pingTimeout = time.Duration(open.PingTimeout) * time.Millisecond

	if err := c.write([]byte{eioMessage, sioConnect}); err != nil {
		return fmt.Errorf("sio: connect: %w", err)
	}

	for {
		msg, err := c.readText()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("sio: waiting for connect: %w", ctx.Err())
			}
			return fmt.Errorf("sio: waiting for connect: %w", err)
		}
		switch msg[0] {
		case eioPing:
			if err := c.write([]byte{eioPong}); err != nil {
				return err
			}
		case eioMessage:
			p, err := DecodePacket(msg[1:])
			if err != nil {
				return err
			}
			switch p.Type {
			case sioConnect:
				c.ws.SetReadDeadline(time.Time{})
				c.logger.Debug("socket.io connected", zap.String("sid", c.sid))
				return nil
			case sioConnectError:
				return fmt.Errorf("%w: %s", ErrConnectRefused, p.Data)
			}
		case eioClose:
			return errors.New("sio: server closed during connect")
		}
	}
}

func (c *Conn) readText() ([]byte, error) {
	for {
		kind, msg, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage && len(msg) > 0 {
			return msg, nil
		}
	}
}

func (c *Conn) readLoop() {
	reason := "io client disconnect"
	defer func() {
		c.ws.Close()
		close(c.done)
		data, _ := json.Marshal(reason)
		c.handler(DisconnectEvent, data)
	}()

	for {
		var deadline time.Time
		if c.pingInterval > 0 {
			deadline = time.Now().Add(c.pingInterval + c.pingTimeout)
		}
		c.ws.SetReadDeadline(deadline)
		msg, err := c.readText()
		if err != nil {
			if !c.closing.Load() {
				reason = "transport error"
				c.logger.Warn("socket.io read failed", zap.Error(err))
			}
			return
		}

		switch msg[0] {
		case eioPing:
			if err := c.write([]byte{eioPong}); err != nil {
				reason = "transport error"
				return
			}
		case eioClose:
			reason = "transport close"
			return
		case eioMessage:
			if c.handleMessage(msg[1:]) {
				reason = "io server disconnect"
				return
			}
		case eioNoop, eioPong:
		default:
			c.logger.Debug("unexpected engine.io packet", zap.ByteString("frame", msg))
		}
	}
}

// handleMessage reports true when the server disconnected the namespace.
func (c *Conn) handleMessage(b []byte) bool {
	p, err := DecodePacket(b)
	if err != nil {
		c.logger.Debug("dropping malformed packet", zap.Error(err))
		return false
	}
	switch p.Type {
	case sioEvent:
		event, data, err := DecodeEvent(p.Data)
		if err != nil {
			c.logger.Debug("dropping malformed event", zap.Error(err))
			return false
		}
		c.handler(event, data)
	case sioDisconnect:
		return true
	case sioConnectError:
		c.logger.Warn("socket.io connect error", zap.ByteString("data", p.Data))
	case sioConnect, sioAck:
	}
	return false
}

// Emit sends event with payload. A nil payload emits the event name alone.
func (c *Conn) Emit(event string, payload any) error {
	frame, err := EncodeEvent(event, payload)
	if err != nil {
		return err
	}
	if c.closing.Load() {
		return net.ErrClosed
	}
	return c.write(frame)
}

func (c *Conn) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Close disconnects the namespace and closes the websocket. It does not wait
// for the read loop, so it may be called from a Handler.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.write([]byte{eioMessage, sioDisconnect})
		err = c.ws.Close()
	})
	return err
}

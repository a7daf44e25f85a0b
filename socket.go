package ogsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Credentials are the session secrets the realtime API authenticates with.
// They are obtained through Client and never change during a session.
type Credentials struct {
	AccessToken      string
	ChatAuth         string
	NotificationAuth string
	UserJWT          string
	UserID           int64
	Username         string
}

type SocketState int

const (
	SocketDisconnected SocketState = iota
	SocketConnecting
	SocketAuthenticating
	SocketReady
)

func (s SocketState) String() string {
	return [...]string{"Disconnected", "Connecting", "Authenticating", "Ready"}[s]
}

// connection is one dialed transport. Frames from a transport that is no
// longer current are ignored.
type connection struct {
	transport Transport
	gone      chan struct{}
	goneOnce  sync.Once
}

// Socket is the realtime connection to OGS. It authenticates, keeps the clock
// synchronization estimate and routes game events to connected Games.
//
// The owner must call Disconnect on every exit path.
type Socket struct {
	ID uuid.UUID

	creds   Credentials
	config  Config
	dialer  Dialer
	handler Handler
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	state   SocketState
	conn    *connection
	attempt int                // bumped by Disconnect to abandon a dial in flight
	cancel  context.CancelFunc // cancels the dial in flight

	syncMu    sync.RWMutex
	clockSync ClockSync

	gamesMu sync.RWMutex
	games   map[int64]*Game
}

// NewSocket returns a disconnected Socket. handler receives socket level
// events (notification, active_game, ERROR, hostinfo, unrecognized events and
// an unexpected disconnect) and is the default handler of connected games; it
// may be nil.
func NewSocket(creds Credentials, handler Handler, opts ...Option) *Socket {
	o := buildOptions(opts)
	id := uuid.New()
	logger := o.logger.With(zap.String("socket_id", id.String()))
	dialer := o.dialer
	if dialer == nil {
		dialer = websocketDialer{logger: logger}
	}
	return &Socket{
		ID:      id,
		creds:   creds,
		config:  o.config,
		dialer:  dialer,
		handler: handler,
		logger:  logger,
		now:     time.Now,
		games:   make(map[int64]*Game),
	}
}

func (s *Socket) State() SocketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ClockSync returns the latest latency and drift estimate.
func (s *Socket) ClockSync() ClockSync {
	s.syncMu.RLock()
	defer s.syncMu.RUnlock()
	return s.clockSync
}

// Connect dials the realtime endpoint and authenticates. The server does not
// acknowledge authenticate, so Connect waits Config.SettleDelay and fails
// with ErrAuthFailed if the server hangs up meanwhile. The whole exchange is
// bounded by ctx and Config.ConnectTimeout.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SocketDisconnected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: socket is %s", ErrConnectFailed, state)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.state = SocketConnecting
	s.attempt++
	attempt := s.attempt
	s.cancel = cancel
	s.mu.Unlock()

	if s.config.ConnectTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, s.config.ConnectTimeout)
		defer cancelTimeout()
	}

	s.logger.Info("Connecting to websocket", zap.String("url", s.config.RealtimeURL))
	c := &connection{gone: make(chan struct{})}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.creds.AccessToken)
	transport, err := s.dialer.Dial(ctx, s.config.RealtimeURL, header, func(event string, data json.RawMessage) {
		s.dispatch(c, event, data)
	})
	c.transport = transport

	s.mu.Lock()
	if s.attempt != attempt {
		s.mu.Unlock()
		if err == nil {
			transport.Close()
		}
		return fmt.Errorf("%w: disconnected while dialing", ErrConnectFailed)
	}
	s.cancel = nil
	if err != nil {
		s.state = SocketDisconnected
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	s.conn = c
	s.state = SocketAuthenticating
	s.mu.Unlock()

	s.logger.Info("Connected to websocket, authenticating")
	err = transport.Emit(emitAuthenticate, map[string]any{
		"auth":      s.creds.ChatAuth,
		"player_id": s.creds.UserID,
		"username":  s.creds.Username,
		"jwt":       s.creds.UserJWT,
	})
	if err != nil {
		s.abort(c)
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	settle := time.NewTimer(s.config.SettleDelay)
	defer settle.Stop()
	select {
	case <-settle.C:
	case <-c.gone:
		s.abort(c)
		return fmt.Errorf("%w: server closed the connection", ErrAuthFailed)
	case <-ctx.Done():
		s.abort(c)
		return fmt.Errorf("%w: %w", ErrConnectFailed, ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != c {
		return fmt.Errorf("%w: disconnected while authenticating", ErrAuthFailed)
	}
	s.state = SocketReady
	s.logger.Info("Authenticated to websocket")
	return nil
}

// abort drops a connection that failed during Connect.
func (s *Socket) abort(c *connection) {
	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
		s.state = SocketDisconnected
	}
	s.mu.Unlock()
	c.transport.Close()
}

func (s *Socket) emit(event string, payload any) error {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	if err := c.transport.Emit(event, payload); err != nil {
		return fmt.Errorf("failed to emit %q: %w", event, err)
	}
	return nil
}

// Ping sends a timestamped ping. The answer updates ClockSync; ping at
// least once before relying on clock projections.
func (s *Socket) Ping() error {
	now := s.now()
	cs := s.ClockSync()
	s.logger.Debug("Pinging websocket")
	err := s.emit(emitPing, map[string]any{
		"client":  now.UnixMilli(),
		"drift":   cs.Drift,
		"latency": cs.Latency,
	})
	if err != nil {
		return err
	}
	s.syncMu.Lock()
	s.clockSync.LastPing = now
	s.syncMu.Unlock()
	return nil
}

// HostInfo asks the server to describe itself; the answer arrives as a
// hostinfo event.
func (s *Socket) HostInfo() error {
	return s.emit(emitHostInfo, nil)
}

func (s *Socket) NotificationConnect() error {
	s.logger.Info("Connecting to notifications")
	return s.emit(emitNotificationConnect, map[string]any{
		"auth":      s.creds.NotificationAuth,
		"player_id": s.creds.UserID,
		"username":  s.creds.Username,
	})
}

func (s *Socket) ChatConnect() error {
	s.logger.Info("Connecting to chat")
	return s.emit(emitChatConnect, map[string]any{
		"auth":      s.creds.ChatAuth,
		"player_id": s.creds.UserID,
		"username":  s.creds.Username,
	})
}

// GameConnect subscribes to a game and returns its Game, which becomes
// Active once the subscription is sent. Events go to handler, or to the
// socket handler when handler is nil.
func (s *Socket) GameConnect(gameID int64, handler Handler) (*Game, error) {
	if state := s.State(); state != SocketReady {
		return nil, fmt.Errorf("%w: socket is %s", ErrNotConnected, state)
	}
	if handler == nil {
		handler = s.handler
	}

	s.gamesMu.Lock()
	if _, ok := s.games[gameID]; ok {
		s.gamesMu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrGameConnected, gameID)
	}
	g := newGame(s, gameID, handler)
	s.games[gameID] = g
	s.gamesMu.Unlock()

	if err := g.connect(); err != nil {
		s.gamesMu.Lock()
		delete(s.games, gameID)
		s.gamesMu.Unlock()
		g.disconnect(false)
		return nil, err
	}
	return g, nil
}

// GameDisconnect unsubscribes from a game. Later events for it are dropped.
func (s *Socket) GameDisconnect(gameID int64) error {
	s.gamesMu.Lock()
	g, ok := s.games[gameID]
	delete(s.games, gameID)
	s.gamesMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	return g.disconnect(true)
}

// Game returns a connected game.
func (s *Socket) Game(gameID int64) (*Game, bool) {
	s.gamesMu.RLock()
	defer s.gamesMu.RUnlock()
	g, ok := s.games[gameID]
	return g, ok
}

// Games returns all connected games.
func (s *Socket) Games() []*Game {
	s.gamesMu.RLock()
	defer s.gamesMu.RUnlock()
	games := make([]*Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g)
	}
	return games
}

func (s *Socket) takeGames() []*Game {
	s.gamesMu.Lock()
	defer s.gamesMu.Unlock()
	games := make([]*Game, 0, len(s.games))
	for id, g := range s.games {
		games = append(games, g)
		delete(s.games, id)
	}
	return games
}

// Disconnect unsubscribes every game, then closes the transport. A Connect
// still dialing is abandoned and fails with ErrConnectFailed. Calling it
// again is a no-op.
func (s *Socket) Disconnect() error {
	s.mu.Lock()
	c := s.conn
	if c == nil {
		if s.state == SocketConnecting {
			s.logger.Info("Abandoning websocket dial")
			s.attempt++
			s.state = SocketDisconnected
			s.cancel()
			s.cancel = nil
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("Disconnecting from websocket")
	var errs []error
	for _, g := range s.takeGames() {
		errs = append(errs, g.disconnect(true))
	}

	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
		s.state = SocketDisconnected
	}
	s.mu.Unlock()
	errs = append(errs, c.transport.Close())
	return errors.Join(errs...)
}

func (s *Socket) dispatch(c *connection, event string, data json.RawMessage) {
	ev := parseEvent(event)
	if ev.IsGame() {
		g, ok := s.Game(ev.GameID)
		if !ok {
			s.logger.Debug("Dropping event of unconnected game", zap.String("event", event))
			return
		}
		g.handle(ev, data)
		return
	}

	switch ev.Kind {
	case EventPong:
		s.onPong(data)
		return
	case EventDisconnect:
		if !s.onTransportGone(c, data) {
			return
		}
	case EventError:
		s.logger.Error("Got error", zap.ByteString("data", data))
	case EventHostInfo, EventActiveGame, EventNotification:
		s.logger.Debug("Got "+event, zap.ByteString("data", data))
	case EventOther:
		s.logger.Debug("Got event", zap.String("event", event), zap.ByteString("data", data))
	}
	s.notify(event, data)
}

func (s *Socket) notify(event string, data json.RawMessage) {
	if s.handler != nil {
		s.handler(event, data)
	}
}

func (s *Socket) onPong(data json.RawMessage) {
	var pong struct {
		Client float64 `json:"client"` // ms
		Server float64 `json:"server"` // ms
	}
	if err := json.Unmarshal(data, &pong); err != nil {
		s.logger.Debug("Dropping malformed pong", zap.Error(err))
		return
	}

	now := s.now()
	nowMs := float64(now.UnixNano()) / float64(time.Millisecond)
	latency := nowMs - pong.Client
	drift := (nowMs - latency/2) - pong.Server

	s.syncMu.Lock()
	s.clockSync.Latency = latency / 1000
	s.clockSync.Drift = drift / 1000
	s.clockSync.LastPong = now
	s.syncMu.Unlock()
	s.logger.Debug("Got pong", zap.Float64("latency", latency/1000), zap.Float64("drift", drift/1000))
}

// onTransportGone reports whether the disconnect was unexpected, in which case
// all games are dropped and the socket becomes Disconnected.
func (s *Socket) onTransportGone(c *connection, data json.RawMessage) bool {
	c.goneOnce.Do(func() { close(c.gone) })

	s.mu.Lock()
	if s.conn != c {
		s.mu.Unlock()
		return false
	}
	s.conn = nil
	s.state = SocketDisconnected
	s.mu.Unlock()

	s.logger.Warn("Websocket disconnected", zap.ByteString("reason", data))
	for _, g := range s.takeGames() {
		g.disconnect(false)
	}
	return true
}

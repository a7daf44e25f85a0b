package ogsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Handler receives events after their effect has been applied. For game
// events the name is the sub-event, e.g. "move" or "clock"; data is the raw
// payload. Handlers run on the socket's read goroutine and must not block.
type Handler func(event string, data json.RawMessage)

type GameStatus int

const (
	GameConnecting GameStatus = iota
	GameActive
	GameDisconnected
)

func (s GameStatus) String() string {
	return [...]string{"Connecting", "Active", "Disconnected"}[s]
}

// ChatType selects the audience of a game chat message.
type ChatType string

const (
	ChatMain      ChatType = "main"
	ChatMalkovich ChatType = "malkovich"
	ChatHidden    ChatType = "hidden"
	ChatPersonal  ChatType = "personal"
)

// Game is a connected game. It mirrors the game state and clock from server
// events and sends player commands. Commands are safe for concurrent use and
// return once the frame is written; the server's answer arrives as events.
type Game struct {
	id      int64
	socket  *Socket
	handler Handler
	logger  *zap.Logger

	mu           sync.RWMutex
	status       GameStatus
	state        *GameState
	clock        *GameClock
	pendingClock *ClockFrame // clock frames seen before the time control, coalesced
}

func newGame(s *Socket, gameID int64, handler Handler) *Game {
	return &Game{
		id:      gameID,
		socket:  s,
		handler: handler,
		logger:  s.logger.With(zap.Int64("game_id", gameID)),
		status:  GameConnecting,
		state:   NewGameState(gameID),
		clock:   NewGameClock(),
	}
}

func (g *Game) ID() int64 {
	return g.id
}

func (g *Game) Status() GameStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// State returns a copy of the game state.
func (g *Game) State() GameState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.clone()
}

// Clock returns a copy of the game clock.
func (g *Game) Clock() GameClock {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.clock.clone()
}

func (g *Game) connect() error {
	g.logger.Info("Connecting to game")
	err := g.socket.emit(emitGameConnect, map[string]any{
		"game_id":   g.id,
		"player_id": g.socket.creds.UserID,
		"chat":      false,
	})
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.status == GameConnecting {
		g.status = GameActive
	}
	g.mu.Unlock()
	return nil
}

// disconnect marks the game Disconnected, emitting the unsubscribe frame when
// notify is set. It is a no-op on a game that is already disconnected.
func (g *Game) disconnect(notify bool) error {
	g.mu.Lock()
	if g.status == GameDisconnected {
		g.mu.Unlock()
		return nil
	}
	g.status = GameDisconnected
	g.mu.Unlock()

	g.logger.Info("Disconnected from game")
	if !notify {
		return nil
	}
	return g.socket.emit(emitGameDisconnect, map[string]any{
		"game_id": g.id,
	})
}

// Disconnect unsubscribes from the game and removes it from its socket.
func (g *Game) Disconnect() error {
	err := g.socket.GameDisconnect(g.id)
	if errors.Is(err, ErrUnknownGame) {
		return nil
	}
	return err
}

func (g *Game) command(event string, payload map[string]any) error {
	if status := g.Status(); status != GameActive {
		return fmt.Errorf("%w: game %d is %s", ErrGameNotActive, g.id, status)
	}
	payload["auth"] = g.socket.creds.ChatAuth
	payload["game_id"] = g.id
	return g.socket.emit(event, payload)
}

// Move submits a move in server notation: two SGF letters, or PassMove.
// Legality is left to the server.
func (g *Game) Move(move string) error {
	g.logger.Info("Submitting move", zap.String("move", move))
	return g.command(emitGameMove, map[string]any{
		"player_id": g.socket.creds.UserID,
		"move":      move,
	})
}

// PlayAt submits a move at zero based board coordinates.
func (g *Game) PlayAt(x, y int) error {
	return g.Move(OriginCoordinate{X: x, Y: y}.SGF())
}

func (g *Game) Pass() error {
	return g.Move(PassMove)
}

func (g *Game) Resign() error {
	g.logger.Info("Resigning game")
	return g.command(emitGameResign, map[string]any{})
}

// Cancel aborts the game, which the server only allows within the first
// moves.
func (g *Game) Cancel() error {
	g.logger.Info("Canceling game")
	return g.command(emitGameCancel, map[string]any{})
}

// Undo requests taking back the move numbered moveNumber.
func (g *Game) Undo(moveNumber int) error {
	g.logger.Info("Requesting undo", zap.Int("move_number", moveNumber))
	return g.command(emitUndoRequest, map[string]any{"move_number": moveNumber})
}

func (g *Game) CancelUndo(moveNumber int) error {
	g.logger.Info("Canceling undo", zap.Int("move_number", moveNumber))
	return g.command(emitUndoCancel, map[string]any{"move_number": moveNumber})
}

func (g *Game) AcceptUndo(moveNumber int) error {
	g.logger.Info("Accepting undo", zap.Int("move_number", moveNumber))
	return g.command(emitUndoAccept, map[string]any{"move_number": moveNumber})
}

// Pause stops the clocks, for time controls that allow it.
func (g *Game) Pause() error {
	g.logger.Info("Pausing game")
	return g.command(emitGamePause, map[string]any{})
}

func (g *Game) Resume() error {
	g.logger.Info("Resuming game")
	return g.command(emitGameResume, map[string]any{})
}

// SendChat posts body to the game chat, attached to moveNumber.
func (g *Game) SendChat(body string, kind ChatType, moveNumber int) error {
	g.logger.Info("Sending chat message", zap.String("type", string(kind)))
	return g.command(emitGameChat, map[string]any{
		"body":        body,
		"type":        kind,
		"move_number": moveNumber,
	})
}

// RequestGameData asks the server to resend the gamedata snapshot.
func (g *Game) RequestGameData() error {
	if status := g.Status(); status != GameActive {
		return fmt.Errorf("%w: game %d is %s", ErrGameNotActive, g.id, status)
	}
	return g.socket.emit(gameEventName(g.id, EventNameGameData), map[string]any{})
}

// handle applies one inbound game event and then notifies the handler.
func (g *Game) handle(ev Event, data json.RawMessage) {
	g.logger.Debug("Received game event", zap.String("event", ev.Sub), zap.ByteString("data", data))

	switch ev.Kind {
	case EventGameMove:
		var m MoveFrame
		if g.decode(ev, data, &m) {
			g.mu.Lock()
			g.state.ApplyMove(&m)
			g.mu.Unlock()
		}

	case EventGameData:
		var d GameData
		if g.decode(ev, data, &d) {
			g.applySnapshot(&d)
		}

	case EventGameClock:
		var f ClockFrame
		if g.decode(ev, data, &f) {
			g.mu.Lock()
			g.applyClock(&f)
			g.mu.Unlock()
		}

	case EventGamePhase:
		var phase GamePhase
		if g.decode(ev, data, &phase) {
			g.mu.Lock()
			g.state.ApplyPhase(phase)
			g.mu.Unlock()
		}

	case EventGameLatency:
		var l LatencyFrame
		if g.decode(ev, data, &l) {
			g.mu.Lock()
			g.state.ApplyLatency(&l)
			g.mu.Unlock()
		}

	case EventGameUndoRequested:
		var n int
		if g.decode(ev, data, &n) {
			g.mu.Lock()
			g.state.ApplyUndoRequest(n)
			g.mu.Unlock()
		}

	case EventGameUndoAccepted, EventGameUndoCanceled:
		g.mu.Lock()
		g.state.ClearUndoRequest()
		g.mu.Unlock()
	}

	if g.handler != nil {
		g.handler(ev.Sub, data)
	}
}

// decode reports whether v holds something worth applying. A field of the
// wrong type is removed from the frame and the rest is decoded again, leaving
// that field unset; a frame of the wrong shape is dropped.
func (g *Game) decode(ev Event, data json.RawMessage, v any) bool {
	for {
		err := json.Unmarshal(data, v)
		if err == nil {
			return true
		}
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) || typeErr.Field == "" {
			g.logger.Debug("Dropping malformed frame", zap.String("event", ev.Sub), zap.Error(err))
			return false
		}
		g.logger.Debug("Ignoring malformed field", zap.String("event", ev.Sub), zap.Error(err))
		if data, err = withoutField(data, typeErr.Field); err != nil {
			g.logger.Debug("Dropping malformed frame", zap.String("event", ev.Sub), zap.Error(err))
			return false
		}
		reflect.ValueOf(v).Elem().SetZero()
	}
}

// withoutField removes the top level key of a dotted field path.
func withoutField(data json.RawMessage, field string) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	key, _, _ := strings.Cut(field, ".")
	if _, ok := fields[key]; !ok {
		return nil, fmt.Errorf("field %q not found", key)
	}
	delete(fields, key)
	return json.Marshal(fields)
}

func (g *Game) applySnapshot(d *GameData) {
	var clock *ClockFrame
	if len(d.Clock) > 0 {
		var f ClockFrame
		if g.decode(Event{Sub: EventNameGameData}, d.Clock, &f) {
			clock = &f
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.ApplySnapshot(d)
	if g.state.ClockSystem() == SystemUnknown {
		if clock != nil {
			g.applyClock(clock)
		}
		return
	}
	if pending := g.pendingClock; pending != nil {
		g.pendingClock = nil
		g.applyClock(pending)
	}
	if clock != nil {
		g.applyClock(clock)
	}
}

// applyClock must be called with g.mu held. Frames arriving before the time
// control is known are applied for their scalars and kept for replay.
func (g *Game) applyClock(f *ClockFrame) {
	system := g.state.ClockSystem()
	if system == SystemUnknown {
		if g.pendingClock == nil {
			cp := *f
			g.pendingClock = &cp
		} else {
			g.pendingClock.coalesce(f)
		}
	}
	if err := g.clock.Update(system, f, g.socket.ClockSync(), g.socket.now()); err != nil {
		g.logger.Debug("Ignoring malformed clock fields", zap.Error(err))
	}
}

package ogsync

import (
	"strconv"
	"strings"
)

// Outbound event names.
const (
	emitAuthenticate        = "authenticate"
	emitPing                = "net/ping"
	emitHostInfo            = "hostinfo"
	emitNotificationConnect = "notification/connect"
	emitChatConnect         = "chat/connect"
	emitGameConnect         = "game/connect"
	emitGameDisconnect      = "game/disconnect"
	emitGameMove            = "game/move"
	emitGamePause           = "game/pause"
	emitGameResume          = "game/resume"
	emitGameResign          = "game/resign"
	emitGameCancel          = "game/cancel"
	emitUndoRequest         = "game/undo/request"
	emitUndoCancel          = "game/undo/cancel"
	emitUndoAccept          = "game/undo/accept"
	emitGameChat            = "game/chat"
)

// EventKind classifies an inbound event name.
type EventKind int

const (
	EventOther EventKind = iota // not in the fixed vocabulary, forwarded as is

	// Socket scope.
	EventHostInfo
	EventPong
	EventActiveGame
	EventNotification
	EventError
	EventDisconnect

	// Game scope, named game/{id}/{sub}.
	EventGameOther
	EventGameMove
	EventGameData
	EventGameClock
	EventGamePhase
	EventGameLatency
	EventGameUndoRequested
	EventGameUndoAccepted
	EventGameUndoCanceled
)

// Inbound event names, as sent by the server. Game events are the sub-event
// part of game/{id}/{sub}.
const (
	EventNameHostInfo     = "hostinfo"
	EventNamePong         = "net/pong"
	EventNameActiveGame   = "active_game"
	EventNameNotification = "notification"
	EventNameError        = "ERROR"
	EventNameDisconnect   = "disconnect"

	EventNameMove          = "move"
	EventNameGameData      = "gamedata"
	EventNameClock         = "clock"
	EventNamePhase         = "phase"
	EventNameLatency       = "latency"
	EventNameUndoRequested = "undo_requested"
	EventNameUndoAccepted  = "undo_accepted"
	EventNameUndoCanceled  = "undo_canceled"
)

var socketEvents = map[string]EventKind{
	EventNameHostInfo:     EventHostInfo,
	EventNamePong:         EventPong,
	EventNameActiveGame:   EventActiveGame,
	EventNameNotification: EventNotification,
	EventNameError:        EventError,
	EventNameDisconnect:   EventDisconnect,
}

var gameEvents = map[string]EventKind{
	EventNameMove:          EventGameMove,
	EventNameGameData:      EventGameData,
	EventNameClock:         EventGameClock,
	EventNamePhase:         EventGamePhase,
	EventNameLatency:       EventGameLatency,
	EventNameUndoRequested: EventGameUndoRequested,
	EventNameUndoAccepted:  EventGameUndoAccepted,
	EventNameUndoCanceled:  EventGameUndoCanceled,
}

// Event is a parsed inbound event name.
type Event struct {
	Kind   EventKind
	GameID int64  // game scope only
	Sub    string // game scope only, e.g. "move"
}

// IsGame reports whether the event is scoped to a game.
func (e Event) IsGame() bool {
	return e.Kind >= EventGameOther
}

// parseEvent classifies name. "game/{id}/{sub}" with a numeric id is game
// scoped, sub may itself contain slashes.
func parseEvent(name string) Event {
	if rest, ok := strings.CutPrefix(name, "game/"); ok {
		idStr, sub, ok := strings.Cut(rest, "/")
		if ok && sub != "" {
			if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
				kind, known := gameEvents[sub]
				return Event{Kind: cond(known, kind, EventGameOther), GameID: id, Sub: sub}
			}
		}
	}
	return Event{Kind: socketEvents[name]}
}

func gameEventName(gameID int64, sub string) string {
	return "game/" + strconv.FormatInt(gameID, 10) + "/" + sub
}

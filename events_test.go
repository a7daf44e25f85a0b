package ogsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEvent(t *testing.T) {
	for _, tc := range []struct {
		name string
		want Event
	}{
		{name: "net/pong", want: Event{Kind: EventPong}},
		{name: "hostinfo", want: Event{Kind: EventHostInfo}},
		{name: "active_game", want: Event{Kind: EventActiveGame}},
		{name: "notification", want: Event{Kind: EventNotification}},
		{name: "ERROR", want: Event{Kind: EventError}},
		{name: "disconnect", want: Event{Kind: EventDisconnect}},
		{name: "seekgraph/global", want: Event{Kind: EventOther}},
		{name: "game/42/move", want: Event{Kind: EventGameMove, GameID: 42, Sub: "move"}},
		{name: "game/42/gamedata", want: Event{Kind: EventGameData, GameID: 42, Sub: "gamedata"}},
		{name: "game/42/clock", want: Event{Kind: EventGameClock, GameID: 42, Sub: "clock"}},
		{name: "game/42/phase", want: Event{Kind: EventGamePhase, GameID: 42, Sub: "phase"}},
		{name: "game/42/latency", want: Event{Kind: EventGameLatency, GameID: 42, Sub: "latency"}},
		{name: "game/42/undo_requested", want: Event{Kind: EventGameUndoRequested, GameID: 42, Sub: "undo_requested"}},
		{name: "game/42/undo_accepted", want: Event{Kind: EventGameUndoAccepted, GameID: 42, Sub: "undo_accepted"}},
		{name: "game/42/undo_canceled", want: Event{Kind: EventGameUndoCanceled, GameID: 42, Sub: "undo_canceled"}},
		{name: "game/42/chat", want: Event{Kind: EventGameOther, GameID: 42, Sub: "chat"}},
		{name: "game/42/reviews/new", want: Event{Kind: EventGameOther, GameID: 42, Sub: "reviews/new"}},
		{name: "game/connect", want: Event{Kind: EventOther}},
		{name: "game/abc/move", want: Event{Kind: EventOther}},
		{name: "game/42/", want: Event{Kind: EventOther}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := parseEvent(tc.name)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want.Kind >= EventGameOther, got.IsGame())
		})
	}
}

func TestGameEventName(t *testing.T) {
	assert.Equal(t, "game/9/gamedata", gameEventName(9, EventNameGameData))
}

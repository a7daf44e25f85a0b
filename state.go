package ogsync

import (
	"encoding/json"
	"fmt"
)

// InitialState is the setup position, as strings of SGF coordinates.
type InitialState struct {
	Black string `json:"black"`
	White string `json:"white"`
}

// GameData is the payload of a gamedata snapshot. Absent keys leave the
// corresponding GameState fields unchanged.
type GameData struct {
	GameID        *int64          `json:"game_id"`
	GameName      *string         `json:"game_name"`
	Players       *PlayerPair     `json:"players"`
	Rules         *string         `json:"rules"`
	Width         *int            `json:"width"`
	Height        *int            `json:"height"`
	Ranked        *bool           `json:"ranked"`
	Handicap      *int            `json:"handicap"`
	Komi          *float64        `json:"komi"`
	Private       *bool           `json:"private"`
	TimeControl   *TimeControl    `json:"time_control"`
	Phase         *GamePhase      `json:"phase"`
	Moves         []Move          `json:"moves"`
	InitialState  *InitialState   `json:"initial_state"`
	InitialPlayer *string         `json:"initial_player"`
	StartTime     *Timestamp      `json:"start_time"`
	Clock         json.RawMessage `json:"clock"`
}

// PlayerPair carries each colour separately so a snapshot naming only one
// player leaves the other untouched.
type PlayerPair struct {
	Black *Player `json:"black"`
	White *Player `json:"white"`
}

// LatencyFrame is the payload of a game latency event.
type LatencyFrame struct {
	PlayerID int64   `json:"player_id"`
	Latency  float64 `json:"latency"` // ms
}

// MoveFrame is the payload of a game move event.
type MoveFrame struct {
	GameID     int64 `json:"game_id"`
	Move       *Move `json:"move"`
	MoveNumber int   `json:"move_number"`
}

// GameState mirrors the metadata of one game. Every Apply method is last
// write wins; frames carry no sequence number, so a stale frame delivered out
// of order would overwrite newer state.
type GameState struct {
	GameID        int64
	GameName      string
	Players       Players
	Rules         string
	Width         int
	Height        int
	Ranked        bool
	Handicap      int
	Komi          float64
	Private       bool
	TimeControl   TimeControl
	Phase         GamePhase
	Moves         []Move
	InitialState  InitialState
	InitialPlayer string
	StartTime     Timestamp

	// Latency is the last reported per-move latency in milliseconds, by
	// player id.
	Latency map[int64]float64

	// UndoRequested is the move number of a pending undo request, 0 when
	// there is none.
	UndoRequested int

	snapshotted bool

	// The initial fields are fixed by the first snapshot carrying them.
	haveInitialState  bool
	haveInitialPlayer bool
	haveStartTime     bool
}

func NewGameState(gameID int64) *GameState {
	return &GameState{
		GameID:  gameID,
		Latency: make(map[int64]float64),
	}
}

// ClockSystem returns the clock variant selected by the time control.
func (s *GameState) ClockSystem() ClockSystem {
	return ParseClockSystem(s.TimeControl.System)
}

// HasSnapshot reports whether a gamedata snapshot has been applied.
func (s *GameState) HasSnapshot() bool {
	return s.snapshotted
}

// ApplySnapshot replaces the metadata carried by a gamedata event. The move
// list is replaced as a whole. The initial position, initial player and start
// time are each taken from the first snapshot that carries them.
func (s *GameState) ApplySnapshot(d *GameData) {
	if d.GameName != nil {
		s.GameName = *d.GameName
	}
	if d.Players != nil {
		if d.Players.Black != nil {
			s.Players.Black = *d.Players.Black
		}
		if d.Players.White != nil {
			s.Players.White = *d.Players.White
		}
	}
	if d.Rules != nil {
		s.Rules = *d.Rules
	}
	if d.Width != nil {
		s.Width = *d.Width
	}
	if d.Height != nil {
		s.Height = *d.Height
	}
	if d.Ranked != nil {
		s.Ranked = *d.Ranked
	}
	if d.Handicap != nil {
		s.Handicap = *d.Handicap
	}
	if d.Komi != nil {
		s.Komi = *d.Komi
	}
	if d.Private != nil {
		s.Private = *d.Private
	}
	if d.TimeControl != nil {
		s.TimeControl = *d.TimeControl
	}
	if d.Phase != nil {
		s.Phase = *d.Phase
	}
	if d.Moves != nil {
		s.Moves = append([]Move(nil), d.Moves...)
	}
	if d.InitialState != nil && !s.haveInitialState {
		s.InitialState = *d.InitialState
		s.haveInitialState = true
	}
	if d.InitialPlayer != nil && !s.haveInitialPlayer {
		s.InitialPlayer = *d.InitialPlayer
		s.haveInitialPlayer = true
	}
	if d.StartTime != nil && !s.haveStartTime {
		s.StartTime = *d.StartTime
		s.haveStartTime = true
	}
	s.snapshotted = true
}

// ApplyMove appends one move. A frame without a move is ignored.
func (s *GameState) ApplyMove(m *MoveFrame) {
	if m.Move == nil {
		return
	}
	s.Moves = append(s.Moves, *m.Move)
}

func (s *GameState) ApplyPhase(phase GamePhase) {
	s.Phase = phase
}

func (s *GameState) ApplyLatency(l *LatencyFrame) {
	s.Latency[l.PlayerID] = l.Latency
}

func (s *GameState) ApplyUndoRequest(moveNumber int) {
	s.UndoRequested = moveNumber
}

func (s *GameState) ClearUndoRequest() {
	s.UndoRequested = 0
}

// BoardSize returns the board width, which equals the height on square
// boards.
func (s GameState) BoardSize() int {
	return s.Width
}

// MoveNumber returns the number of moves played so far.
func (s GameState) MoveNumber() int {
	return len(s.Moves)
}

func (s GameState) String() string {
	return fmt.Sprintf("%d %q (B) %s vs (W) %s, %dx%d %s, %d moves, %s",
		s.GameID, s.GameName,
		s.Players.Black, s.Players.White,
		s.Width, s.Height, s.TimeControl,
		len(s.Moves), s.Phase)
}

func (s *GameState) clone() GameState {
	cp := *s
	cp.Moves = append([]Move(nil), s.Moves...)
	cp.Latency = make(map[int64]float64, len(s.Latency))
	for k, v := range s.Latency {
		cp.Latency[k] = v
	}
	return cp
}

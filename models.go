package ogsync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type PlayerColor int

const (
	PlayerUnknown PlayerColor = iota
	PlayerBlack
	PlayerWhite
)

func (p PlayerColor) String() string {
	return [...]string{"Unknown", "Black", "White"}[p]
}

// User is the subset of /api/v1/me used to identify the session owner.
type User struct {
	ID           int64
	Username     string
	Professional bool
	Ranking      float32
}

// Timestamp is a customized Time struct.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts Unix timestamps in seconds or milliseconds, integral
// or fractional. A JSON null leaves the value untouched.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	ts, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return typeError(b, t)
	}
	if ts > 1_000_000_000_000 { // Assume milliseconds
		t.Time = time.UnixMilli(int64(ts))
	} else {
		sec, frac := math.Modf(ts)
		t.Time = time.Unix(int64(sec), int64(frac*1e9))
	}
	return nil
}

// typeError reports a value custom decoders cannot accept. encoding/json
// fills in the field path, which lets Game drop only the offending key.
func typeError(b []byte, v any) error {
	kind := "number"
	switch b = bytes.TrimSpace(b); {
	case len(b) == 0:
		kind = "empty"
	case b[0] == '"':
		kind = "string"
	case b[0] == '{':
		kind = "object"
	case b[0] == '[':
		kind = "array"
	case b[0] == 't' || b[0] == 'f':
		kind = "bool"
	case b[0] == 'n':
		kind = "null"
	}
	return &json.UnmarshalTypeError{Value: kind, Type: reflect.TypeOf(v).Elem()}
}

// MarshalJSON writes milliseconds, the unit OGS uses on the wire.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.UnixMilli(), 10)), nil
}

// GamePhase is reported by the server and otherwise opaque; values other than
// the constants below are kept as received.
type GamePhase string

const (
	PlayPhase         GamePhase = "play"
	StoneRemovalPhase GamePhase = "stone removal"
	FinishedPhase     GamePhase = "finished"
)

// Player is a game participant as carried in gamedata.
type Player struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Professional bool    `json:"professional"`
	Rank         float32 `json:"rank"`
}

func (p Player) String() string {
	return p.Username + "[" + p.Ranking() + "]"
}

// Ranking returns the player's OGS ranking as a string in notation like "1p",
// "2d", "3k" etc.
func (p *Player) Ranking() string {
	if p.Professional {
		return fmt.Sprintf("%.fp", p.Rank-36)
	}
	if p.Rank >= 1037 {
		return fmt.Sprintf("%.fp", p.Rank-1036)
	} else if p.Rank >= 30 {
		return fmt.Sprintf("%.fd", p.Rank-29)
	} else if p.Rank >= 1 {
		return fmt.Sprintf("%.fk", 30-math.Floor(float64(p.Rank)))
	}
	return "?"
}

type Players struct {
	Black Player `json:"black"`
	White Player `json:"white"`
}

// TimeControl describes the clock rules of a game. System selects the
// PlayerClock variant, the remaining fields depend on it.
type TimeControl struct {
	System          string  `json:"system"`
	TimeControl     string  `json:"time_control"`
	Speed           string  `json:"speed"`
	PauseOnWeekends bool    `json:"pause_on_weekends"`
	MainTime        float64 `json:"main_time"`
	PeriodTime      float64 `json:"period_time"`
	Periods         int     `json:"periods"`
	InitialTime     float64 `json:"initial_time"`
	TimeIncrement   float64 `json:"time_increment"`
	MaxTime         float64 `json:"max_time"`
	PerMove         float64 `json:"per_move"`
	TotalTime       float64 `json:"total_time"`
}

func (t TimeControl) String() string {
	switch ParseClockSystem(t.System) {
	case SystemByoyomi:
		return fmt.Sprintf("%s %s+%sx%d", t.System, prettyTime(t.MainTime), prettyTime(t.PeriodTime), t.Periods)
	case SystemFischer:
		return fmt.Sprintf("%s %s+%s up to %s", t.System, prettyTime(t.InitialTime), prettyTime(t.TimeIncrement), prettyTime(t.MaxTime))
	case SystemSimple:
		return fmt.Sprintf("%s %s/move", t.System, prettyTime(t.PerMove))
	case SystemAbsolute:
		return fmt.Sprintf("%s %s", t.System, prettyTime(t.TotalTime))
	}
	return t.System
}

// Move is one entry of a game's move list, sent as [x, y, timeDelta, ...].
// Coordinates (-1, -1) denote a pass.
type Move struct {
	OriginCoordinate
	TimeDelta float64
}

// UnmarshalJSON decodes the array form used by OGS. Trailing elements past
// the time delta (player id, edit info) are ignored and the delta itself is
// optional.
func (m *Move) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) < 2 {
		return typeError(data, m)
	}

	var x, y int
	if json.Unmarshal(raw[0], &x) != nil || json.Unmarshal(raw[1], &y) != nil {
		return typeError(data, m)
	}

	var timeDelta float64
	if len(raw) > 2 && !bytes.Equal(raw[2], []byte("null")) {
		if err := json.Unmarshal(raw[2], &timeDelta); err != nil {
			return typeError(data, m)
		}
	}

	m.X, m.Y, m.TimeDelta = x, y, timeDelta
	return nil
}

// MarshalJSON writes the array form.
func (m Move) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{m.X, m.Y, m.TimeDelta})
}

// PassMove is the move string the server accepts as a pass.
const PassMove = ".."

// OriginCoordinate is zero base coordinate.
type OriginCoordinate struct {
	X int
	Y int
}

func (c OriginCoordinate) String() string {
	return fmt.Sprintf("[%d,%d]", c.X, c.Y)
}

func (c OriginCoordinate) IsPass() bool {
	return c.X == -1 || c.Y == -1
}

// SGF returns the two letter move string the server expects, PassMove for a
// pass.
func (c OriginCoordinate) SGF() string {
	if c.IsPass() {
		return PassMove
	}
	return fmt.Sprintf("%c%c", rune('a'+c.X), rune('a'+c.Y))
}

func (c OriginCoordinate) ToA1Coordinate(boardSize int) (*A1Coordinate, error) {
	if c.X < 0 || c.X >= boardSize || c.Y < 0 || c.Y >= boardSize {
		return nil, fmt.Errorf("OriginCoordinate %s is out of board bounds [0-%d]", c, boardSize-1)
	}

	col := 'A' + rune(c.X)
	if c.X >= 8 { // Skip 'I'
		col += 1
	}
	row := boardSize - c.Y // Reverse counting
	return &A1Coordinate{Col: col, Row: row}, nil
}

// A1Coordinate is coordinate represented in format "A1", note letter 'I' is
// skipped.
type A1Coordinate struct {
	Col rune // 'A', 'B', ... (skip 'I')
	Row int  // 1, 2, ...
}

// NewA1Coordinate creates an instance from a coordinate string in format "A1".
func NewA1Coordinate(coord string) (*A1Coordinate, error) {
	if len(coord) < 2 {
		return nil, fmt.Errorf("invalid coordinate string %q", coord)
	}

	col := rune(strings.ToUpper(coord)[0])
	row := coord[1:]

	if col < 'A' || col > 'Z' || col == 'I' {
		return nil, fmt.Errorf("invalid column letter '%c' in coordinate %q: must be A-H or J-Z (or a-h or j-z)", col, coord)
	}
	rowNum, err := strconv.Atoi(row)
	if err != nil || rowNum <= 0 || rowNum > 25 {
		return nil, fmt.Errorf("invalid row number format in coordinate %q: %w", coord, err)
	}
	return &A1Coordinate{Col: col, Row: rowNum}, nil
}

func (c A1Coordinate) String() string {
	return fmt.Sprintf("%c%d", c.Col, c.Row)
}

func (c A1Coordinate) ToOriginCoordinate(boardSize int) (*OriginCoordinate, error) {
	col := c.Col
	if col >= 'a' && col <= 'z' {
		col -= 'a' - 'A' // to upper case
	}

	var x int
	if col >= 'A' && col <= 'H' {
		x = int(col - 'A')
	} else if col >= 'J' && col <= 'Z' { // Account for skipped 'I'
		x = int(col - 'A' - 1)
	} else {
		return nil, fmt.Errorf("invalid column letter '%c' in A1Coordinate %q: must be A-H or J-Z (or a-h or j-z)", col, c)
	}

	y := boardSize - c.Row
	if x < 0 || x >= boardSize || y < 0 || y >= boardSize {
		return nil, fmt.Errorf("coordinate %q is out of board bounds [0-%d]", c, boardSize-1)
	}
	return &OriginCoordinate{X: x, Y: y}, nil
}

// Equivalent to Python `return x if b else y`
func cond[T any](b bool, x, y T) T {
	if b {
		return x
	}
	return y
}

func prettyTime(seconds float64) string {
	days := math.Floor(seconds / 86400)
	seconds -= days * 86400
	hours := math.Floor(seconds / 3600)
	seconds -= hours * 3600
	minutes := math.Floor(seconds / 60)
	seconds -= minutes * 60

	if days > 0 {
		if hours > 0 {
			return fmt.Sprintf("%.0fd%.0fh", days, hours)
		}
		// "1d" is confusing, use "24h" instead
		return fmt.Sprintf("%.0fh", days*24)
	}
	if hours > 0 {
		return fmt.Sprintf("%.0fh%.0fm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%.0f:%02.0f", minutes, seconds)
	}
	return fmt.Sprintf("%.0fs", seconds)
}

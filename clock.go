package ogsync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ClockSystem names a time control variant. It selects the shape of the
// per-player time records of a GameClock.
type ClockSystem string

const (
	SystemUnknown  ClockSystem = "" // time control not received yet
	SystemNone     ClockSystem = "none"
	SystemSimple   ClockSystem = "simple"
	SystemByoyomi  ClockSystem = "byoyomi"
	SystemFischer  ClockSystem = "fischer"
	SystemCanadian ClockSystem = "canadian"
	SystemAbsolute ClockSystem = "absolute"
)

// ParseClockSystem maps the time control "system" string sent by the server.
// Unrecognized names map to SystemNone.
func ParseClockSystem(s string) ClockSystem {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return SystemUnknown
	case "byoyomi":
		return SystemByoyomi
	case "fischer", "fisher":
		return SystemFischer
	case "simple":
		return SystemSimple
	case "canadian":
		return SystemCanadian
	case "absolute":
		return SystemAbsolute
	}
	return SystemNone
}

// PlayerClock is one player's remaining time. The concrete type always
// matches the owning GameClock's System:
//
//	SystemUnknown, SystemNone, SystemSimple  *NoneTime
//	SystemByoyomi                            *ByoyomiTime
//	SystemFischer                            *FischerTime
//	SystemCanadian, SystemAbsolute           *UnsupportedTime
type PlayerClock interface {
	// merge overwrites the fields present in fields and ignores unknown
	// keys. Malformed values leave the field unchanged and are reported.
	merge(fields map[string]json.RawMessage) error
	clone() PlayerClock
}

// NoneTime has no fields.
type NoneTime struct{}

// ByoyomiTime is a main time bank followed by a number of fixed periods.
type ByoyomiTime struct {
	ThinkingTime float64 `json:"thinking_time"`
	Periods      int     `json:"periods"`
	PeriodTime   float64 `json:"period_time"`
}

// FischerTime is a main time bank that grows by an increment after each move.
type FischerTime struct {
	ThinkingTime float64 `json:"thinking_time"`
	SkipBonus    bool    `json:"skip_bonus"`
}

// UnsupportedTime stands in for canadian and absolute clocks, whose records
// are not modeled. Updates are ignored.
type UnsupportedTime struct{}

func newPlayerClock(system ClockSystem) PlayerClock {
	switch system {
	case SystemByoyomi:
		return &ByoyomiTime{}
	case SystemFischer:
		return &FischerTime{}
	case SystemCanadian, SystemAbsolute:
		return &UnsupportedTime{}
	}
	return &NoneTime{}
}

func (t *NoneTime) merge(map[string]json.RawMessage) error { return nil }
func (t *NoneTime) clone() PlayerClock                     { c := *t; return &c }

func (t *UnsupportedTime) merge(map[string]json.RawMessage) error { return nil }
func (t *UnsupportedTime) clone() PlayerClock                     { c := *t; return &c }

func (t *ByoyomiTime) merge(fields map[string]json.RawMessage) error {
	return errors.Join(
		mergeFloat(fields, "thinking_time", &t.ThinkingTime),
		mergeInt(fields, "periods", &t.Periods),
		mergeFloat(fields, "period_time", &t.PeriodTime),
	)
}

func (t *ByoyomiTime) clone() PlayerClock { c := *t; return &c }

func (t *FischerTime) merge(fields map[string]json.RawMessage) error {
	return errors.Join(
		mergeFloat(fields, "thinking_time", &t.ThinkingTime),
		mergeBool(fields, "skip_bonus", &t.SkipBonus),
	)
}

func (t *FischerTime) clone() PlayerClock { c := *t; return &c }

func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func mergeFloat(fields map[string]json.RawMessage, key string, dst *float64) error {
	raw, ok := present(fields, key)
	if !ok {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

// mergeInt accepts integral floats such as 4.0.
func mergeInt(fields map[string]json.RawMessage, key string, dst *int) error {
	var f float64
	if err := mergeFloat(fields, key, &f); err != nil {
		return err
	}
	if _, ok := present(fields, key); ok {
		*dst = int(f)
	}
	return nil
}

func mergeBool(fields map[string]json.RawMessage, key string, dst *bool) error {
	raw, ok := present(fields, key)
	if !ok {
		return nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

// PlayerRef identifies the player on turn. The server sends a numeric player
// id; a colour name is accepted as well.
type PlayerRef string

func (p *PlayerRef) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return typeError(b, p)
		}
		*p = PlayerRef(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return typeError(b, p)
	}
	*p = PlayerRef(b)
	return nil
}

// ClockFrame is the payload of a game clock event. Absent keys leave the
// corresponding GameClock fields unchanged.
type ClockFrame struct {
	GameID        *int64          `json:"game_id"`
	CurrentPlayer *PlayerRef      `json:"current_player"`
	BlackPlayerID *int64          `json:"black_player_id"`
	WhitePlayerID *int64          `json:"white_player_id"`
	LastMove      *Timestamp      `json:"last_move"`
	Expiration    *Timestamp      `json:"expiration"`
	PausedSince   *Timestamp      `json:"paused_since"`
	BlackTime     json.RawMessage `json:"black_time"`
	WhiteTime     json.RawMessage `json:"white_time"`
}

// coalesce folds next into f so that applying f once has the effect of
// applying both frames in order.
func (f *ClockFrame) coalesce(next *ClockFrame) {
	if next.GameID != nil {
		f.GameID = next.GameID
	}
	if next.CurrentPlayer != nil {
		f.CurrentPlayer = next.CurrentPlayer
	}
	if next.BlackPlayerID != nil {
		f.BlackPlayerID = next.BlackPlayerID
	}
	if next.WhitePlayerID != nil {
		f.WhitePlayerID = next.WhitePlayerID
	}
	if next.LastMove != nil {
		f.LastMove = next.LastMove
	}
	if next.Expiration != nil {
		f.Expiration = next.Expiration
	}
	if next.PausedSince != nil {
		f.PausedSince = next.PausedSince
	}
	f.BlackTime = coalesceObject(f.BlackTime, next.BlackTime)
	f.WhiteTime = coalesceObject(f.WhiteTime, next.WhiteTime)
}

// coalesceObject overlays the keys of next on prev. A next that is not an
// object would be ignored by the merge, so prev is kept.
func coalesceObject(prev, next json.RawMessage) json.RawMessage {
	var overlay map[string]json.RawMessage
	if json.Unmarshal(next, &overlay) != nil || overlay == nil {
		return prev
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(prev, &fields) != nil || fields == nil {
		return next
	}
	for k, v := range overlay {
		fields[k] = v
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return next
	}
	return out
}

// ClockSync is the socket's clock synchronization estimate, in seconds.
// Drift is how far the local clock runs ahead of the server's.
type ClockSync struct {
	Latency  float64
	Drift    float64
	LastPing time.Time
	LastPong time.Time
}

// ServerTime converts a local instant to server time.
func (s ClockSync) ServerTime(local time.Time) time.Time {
	return local.Add(-seconds(s.Drift))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// GameClock mirrors the server clock of one game.
type GameClock struct {
	System        ClockSystem
	CurrentPlayer PlayerRef
	BlackPlayerID int64
	WhitePlayerID int64
	LastMove      Timestamp
	Expiration    Timestamp
	PausedSince   Timestamp
	BlackTime     PlayerClock
	WhiteTime     PlayerClock

	// Server time at which the last frame was applied, and the socket
	// latency and drift estimates at that moment.
	ReceivedAt       time.Time
	LatencyAtReceipt float64
	DriftAtReceipt   float64
}

// NewGameClock returns a clock whose time control is not known yet.
func NewGameClock() *GameClock {
	return &GameClock{
		BlackTime: newPlayerClock(SystemUnknown),
		WhiteTime: newPlayerClock(SystemUnknown),
	}
}

// Update applies frame under the given time control system. When system
// differs from the current one both time records are recreated empty before
// anything is merged. Scalars present in frame are overwritten, the per-player
// records are merged key by key. The returned error lists malformed fields,
// which were left unchanged; the rest of the frame is still applied.
func (c *GameClock) Update(system ClockSystem, frame *ClockFrame, sync ClockSync, now time.Time) error {
	if system != c.System || c.BlackTime == nil || c.WhiteTime == nil {
		c.System = system
		c.BlackTime = newPlayerClock(system)
		c.WhiteTime = newPlayerClock(system)
	}

	if frame.CurrentPlayer != nil {
		c.CurrentPlayer = *frame.CurrentPlayer
	}
	if frame.BlackPlayerID != nil {
		c.BlackPlayerID = *frame.BlackPlayerID
	}
	if frame.WhitePlayerID != nil {
		c.WhitePlayerID = *frame.WhitePlayerID
	}
	if frame.LastMove != nil {
		c.LastMove = *frame.LastMove
	}
	if frame.Expiration != nil {
		c.Expiration = *frame.Expiration
	}
	if frame.PausedSince != nil {
		c.PausedSince = *frame.PausedSince
	}

	err := errors.Join(
		mergePlayerClock(c.BlackTime, "black_time", frame.BlackTime),
		mergePlayerClock(c.WhiteTime, "white_time", frame.WhiteTime),
	)

	c.ReceivedAt = sync.ServerTime(now)
	c.LatencyAtReceipt = sync.Latency
	c.DriftAtReceipt = sync.Drift
	return err
}

func mergePlayerClock(t PlayerClock, key string, raw json.RawMessage) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := t.merge(fields); err != nil {
		return fmt.Errorf("%s.%w", key, err)
	}
	return nil
}

// CurrentColor resolves CurrentPlayer against the player ids of the clock.
func (c *GameClock) CurrentColor() PlayerColor {
	switch strings.ToLower(string(c.CurrentPlayer)) {
	case "":
		return PlayerUnknown
	case "black":
		return PlayerBlack
	case "white":
		return PlayerWhite
	case strconv.FormatInt(c.BlackPlayerID, 10):
		return PlayerBlack
	case strconv.FormatInt(c.WhitePlayerID, 10):
		return PlayerWhite
	}
	return PlayerUnknown
}

func (c *GameClock) clone() GameClock {
	cp := *c
	if c.BlackTime != nil {
		cp.BlackTime = c.BlackTime.clone()
	}
	if c.WhiteTime != nil {
		cp.WhiteTime = c.WhiteTime.clone()
	}
	return cp
}

// ComputedClock is a player's clock projected to a point in time.
type ComputedClock struct {
	System         ClockSystem
	MainTime       float64
	PeriodsLeft    int
	PeriodTimeLeft float64
	SuddenDeath    bool
	TimedOut       bool
}

// Project estimates the given player's remaining time at the local instant
// now, counting down from the last move for the player on turn. It returns nil
// for systems without a modeled time record.
func (c *GameClock) Project(player PlayerColor, now time.Time) *ComputedClock {
	var t PlayerClock
	switch player {
	case PlayerBlack:
		t = c.BlackTime
	case PlayerWhite:
		t = c.WhiteTime
	default:
		return nil
	}
	onTurn := c.CurrentColor() == player && c.PausedSince.IsZero()

	start := cond(c.LastMove.IsZero(), c.ReceivedAt, c.LastMove.Time)
	serverNow := now.Add(-seconds(c.DriftAtReceipt))
	elapsed := cond(onTurn, math.Max(0, serverNow.Sub(start).Seconds()), 0)

	switch t := t.(type) {
	case *FischerTime:
		mainTime := t.ThinkingTime - elapsed
		return &ComputedClock{
			System:      c.System,
			MainTime:    math.Max(0, mainTime),
			SuddenDeath: mainTime < 10,
			TimedOut:    mainTime < 0,
		}

	case *ByoyomiTime:
		mainTime := t.ThinkingTime - elapsed
		periodsLeft := t.Periods
		periodTimeLeft := t.PeriodTime
		if mainTime < 0 {
			overTime := -mainTime
			mainTime = 0
			if t.PeriodTime > 0 {
				periodsUsed := math.Floor(overTime / t.PeriodTime)
				periodsLeft -= int(periodsUsed)
				periodTimeLeft = t.PeriodTime - (overTime - periodsUsed*t.PeriodTime)
			} else {
				periodsLeft = 0
				periodTimeLeft = 0
			}
		}
		return &ComputedClock{
			System:         c.System,
			MainTime:       mainTime,
			PeriodsLeft:    max(periodsLeft, 0),
			PeriodTimeLeft: math.Max(periodTimeLeft, 0),
			SuddenDeath:    mainTime == 0 && periodsLeft <= 1,
			TimedOut:       mainTime == 0 && periodsLeft <= 0,
		}
	}
	return nil
}

func (c ComputedClock) String() string {
	if c.TimedOut {
		return "Timeout"
	}

	switch c.System {
	case SystemFischer:
		return fmt.Sprintf("%s%s", prettyTime(c.MainTime), cond(c.SuddenDeath, " (SD)", ""))
	case SystemByoyomi:
		if c.SuddenDeath {
			return fmt.Sprintf("%s (SD)", prettyTime(c.PeriodTimeLeft))
		}
		if c.MainTime > 0 {
			return fmt.Sprintf("%s + %s (%d)", prettyTime(c.MainTime), prettyTime(c.PeriodTimeLeft), c.PeriodsLeft)
		}
		return fmt.Sprintf("%s (%d)", prettyTime(c.PeriodTimeLeft), c.PeriodsLeft)
	}
	return "??:??"
}

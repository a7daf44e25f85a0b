package ogsync

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clockFrame(t *testing.T, s string) *ClockFrame {
	t.Helper()
	var f ClockFrame
	require.NoError(t, json.Unmarshal([]byte(s), &f))
	return &f
}

func jsonKeys(t *testing.T, v any) []string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestParseClockSystem(t *testing.T) {
	for in, want := range map[string]ClockSystem{
		"":          SystemUnknown,
		"byoyomi":   SystemByoyomi,
		"Fischer":   SystemFischer,
		"fisher":    SystemFischer,
		"simple":    SystemSimple,
		"canadian":  SystemCanadian,
		"absolute":  SystemAbsolute,
		"none":      SystemNone,
		"hourglass": SystemNone,
	} {
		assert.Equal(t, want, ParseClockSystem(in), "ParseClockSystem(%q)", in)
	}
}

func TestGameClock_Update_ByoyomiPartialMerge(t *testing.T) {
	c := NewGameClock()
	now := time.Now()

	require.NoError(t, c.Update(SystemByoyomi, clockFrame(t, `{
		"current_player": 100,
		"black_player_id": 100,
		"white_player_id": 200,
		"black_time": {"thinking_time": 300, "periods": 5, "period_time": 30},
		"white_time": {"thinking_time": 280, "periods": 5, "period_time": 30}
	}`), ClockSync{}, now))
	require.NoError(t, c.Update(SystemByoyomi, clockFrame(t, `{
		"black_time": {"periods": 4}
	}`), ClockSync{}, now))

	assert.Equal(t, &ByoyomiTime{ThinkingTime: 300, Periods: 4, PeriodTime: 30}, c.BlackTime)
	assert.Equal(t, &ByoyomiTime{ThinkingTime: 280, Periods: 5, PeriodTime: 30}, c.WhiteTime)
	assert.Equal(t, PlayerRef("100"), c.CurrentPlayer)
	assert.Equal(t, PlayerBlack, c.CurrentColor())
}

func TestGameClock_Update_SystemChangeResetsRecords(t *testing.T) {
	c := NewGameClock()
	now := time.Now()

	require.NoError(t, c.Update(SystemByoyomi, clockFrame(t, `{
		"black_time": {"thinking_time": 300, "periods": 5, "period_time": 30}
	}`), ClockSync{}, now))
	require.NoError(t, c.Update(SystemFischer, clockFrame(t, `{
		"black_time": {"thinking_time": 90}
	}`), ClockSync{}, now))

	require.IsType(t, &FischerTime{}, c.BlackTime)
	assert.Equal(t, &FischerTime{ThinkingTime: 90}, c.BlackTime)
	assert.Equal(t, []string{"skip_bonus", "thinking_time"}, jsonKeys(t, c.BlackTime))
	assert.Equal(t, &FischerTime{}, c.WhiteTime)
	assert.Equal(t, SystemFischer, c.System)
}

func TestGameClock_Update_IgnoresForeignKeys(t *testing.T) {
	c := NewGameClock()
	require.NoError(t, c.Update(SystemByoyomi, clockFrame(t, `{
		"black_time": {"thinking_time": 10, "skip_bonus": true, "main_time": 99}
	}`), ClockSync{}, time.Now()))

	assert.Equal(t, []string{"period_time", "periods", "thinking_time"}, jsonKeys(t, c.BlackTime))
	assert.Equal(t, &ByoyomiTime{ThinkingTime: 10}, c.BlackTime)
}

func TestGameClock_Update_MalformedFieldKeepsOldValue(t *testing.T) {
	c := NewGameClock()
	now := time.Now()
	require.NoError(t, c.Update(SystemByoyomi, clockFrame(t, `{
		"black_time": {"thinking_time": 300, "periods": 5, "period_time": 30}
	}`), ClockSync{}, now))

	err := c.Update(SystemByoyomi, clockFrame(t, `{
		"black_time": {"thinking_time": "soon", "periods": 3, "period_time": null}
	}`), ClockSync{}, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "black_time.thinking_time")
	assert.Equal(t, &ByoyomiTime{ThinkingTime: 300, Periods: 3, PeriodTime: 30}, c.BlackTime)
}

func TestGameClock_Update_UnsupportedSystems(t *testing.T) {
	for _, system := range []ClockSystem{SystemCanadian, SystemAbsolute} {
		c := NewGameClock()
		require.NoError(t, c.Update(system, clockFrame(t, `{
			"black_time": {"thinking_time": 300, "moves_left": 20}
		}`), ClockSync{}, time.Now()))
		assert.IsType(t, &UnsupportedTime{}, c.BlackTime)
		assert.Nil(t, c.Project(PlayerBlack, time.Now()))
	}
}

func TestGameClock_Update_StampsReceipt(t *testing.T) {
	c := NewGameClock()
	now := time.Unix(1_700_000_000, 0)
	sync := ClockSync{Latency: 0.2, Drift: 2}

	require.NoError(t, c.Update(SystemNone, clockFrame(t, `{}`), sync, now))
	assert.Equal(t, now.Add(-2*time.Second), c.ReceivedAt)
	assert.Equal(t, 0.2, c.LatencyAtReceipt)
	assert.Equal(t, 2.0, c.DriftAtReceipt)
	assert.IsType(t, &NoneTime{}, c.BlackTime)
}

func TestGameClock_Project(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	lastMove := Timestamp{now.Add(-45 * time.Second)}

	t.Run("fischer", func(t *testing.T) {
		c := &GameClock{
			System:        SystemFischer,
			CurrentPlayer: "100",
			BlackPlayerID: 100,
			WhitePlayerID: 200,
			LastMove:      lastMove,
			BlackTime:     &FischerTime{ThinkingTime: 60},
			WhiteTime:     &FischerTime{ThinkingTime: 120},
		}
		black := c.Project(PlayerBlack, now)
		require.NotNil(t, black)
		assert.InDelta(t, 15, black.MainTime, 1e-6)
		assert.False(t, black.SuddenDeath)

		white := c.Project(PlayerWhite, now)
		require.NotNil(t, white)
		assert.InDelta(t, 120, white.MainTime, 1e-6)
	})

	t.Run("byoyomi overtime", func(t *testing.T) {
		c := &GameClock{
			System:        SystemByoyomi,
			CurrentPlayer: "white",
			LastMove:      lastMove,
			BlackTime:     &ByoyomiTime{ThinkingTime: 10, Periods: 3, PeriodTime: 30},
			WhiteTime:     &ByoyomiTime{ThinkingTime: 10, Periods: 3, PeriodTime: 30},
		}
		white := c.Project(PlayerWhite, now)
		require.NotNil(t, white)
		assert.Equal(t, 0.0, white.MainTime)
		assert.Equal(t, 2, white.PeriodsLeft)
		assert.InDelta(t, 25, white.PeriodTimeLeft, 1e-6)
		assert.False(t, white.TimedOut)
		assert.Equal(t, "25s (2)", white.String())
	})

	t.Run("paused clock does not run", func(t *testing.T) {
		c := &GameClock{
			System:        SystemFischer,
			CurrentPlayer: "black",
			LastMove:      lastMove,
			PausedSince:   Timestamp{now.Add(-time.Minute)},
			BlackTime:     &FischerTime{ThinkingTime: 60},
			WhiteTime:     &FischerTime{ThinkingTime: 60},
		}
		assert.InDelta(t, 60, c.Project(PlayerBlack, now).MainTime, 1e-6)
	})

	t.Run("drift shifts elapsed time", func(t *testing.T) {
		c := &GameClock{
			System:         SystemFischer,
			CurrentPlayer:  "black",
			LastMove:       lastMove,
			DriftAtReceipt: 5, // local clock 5s ahead
			BlackTime:      &FischerTime{ThinkingTime: 60},
			WhiteTime:      &FischerTime{ThinkingTime: 60},
		}
		assert.InDelta(t, 20, c.Project(PlayerBlack, now).MainTime, 1e-6)
	})
}

func TestPlayerRef_UnmarshalJSON(t *testing.T) {
	for _, tc := range []struct {
		input   string
		want    PlayerRef
		wantErr bool
	}{
		{input: `123`, want: "123"},
		{input: `"black"`, want: "black"},
		{input: `true`, wantErr: true},
		{input: `{}`, wantErr: true},
	} {
		t.Run(tc.input, func(t *testing.T) {
			var got PlayerRef
			err := json.Unmarshal([]byte(tc.input), &got)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

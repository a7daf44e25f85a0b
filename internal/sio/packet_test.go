package sio

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEvent(t *testing.T) {
	for _, tc := range []struct {
		name    string
		event   string
		payload any
		want    string
	}{
		{
			name:  "no payload",
			event: "hostinfo",
			want:  `42["hostinfo"]`,
		},
		{
			name:    "map payload",
			event:   "game/move",
			payload: map[string]any{"game_id": 9, "move": ".."},
			want:    `42["game/move",{"game_id":9,"move":".."}]`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EncodeEvent(tc.event, tc.payload)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestDecodePacket(t *testing.T) {
	for _, tc := range []struct {
		name    string
		input   string
		want    Packet
		wantErr bool
	}{
		{
			name:  "connect ack",
			input: `0{"sid":"abc"}`,
			want:  Packet{Type: sioConnect, Namespace: "/", AckID: -1, Data: json.RawMessage(`{"sid":"abc"}`)},
		},
		{
			name:  "event",
			input: `2["net/pong",{"client":1}]`,
			want:  Packet{Type: sioEvent, Namespace: "/", AckID: -1, Data: json.RawMessage(`["net/pong",{"client":1}]`)},
		},
		{
			name:  "event with namespace and ack id",
			input: `2/admin,12["x"]`,
			want:  Packet{Type: sioEvent, Namespace: "/admin", AckID: 12, Data: json.RawMessage(`["x"]`)},
		},
		{
			name:  "disconnect",
			input: `1`,
			want:  Packet{Type: sioDisconnect, Namespace: "/", AckID: -1},
		},
		{
			name:    "empty",
			input:   ``,
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodePacket([]byte(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeEvent(t *testing.T) {
	for _, tc := range []struct {
		name     string
		input    string
		wantName string
		wantData string
		wantErr  bool
	}{
		{
			name:     "with payload",
			input:    `["game/7/phase","finished"]`,
			wantName: "game/7/phase",
			wantData: `"finished"`,
		},
		{
			name:     "name only",
			input:    `["hostinfo"]`,
			wantName: "hostinfo",
		},
		{
			name:     "extra arguments dropped",
			input:    `["notification",{"a":1},2]`,
			wantName: "notification",
			wantData: `{"a":1}`,
		},
		{
			name:    "not an array",
			input:   `{"a":1}`,
			wantErr: true,
		},
		{
			name:    "empty array",
			input:   `[]`,
			wantErr: true,
		},
		{
			name:    "numeric name",
			input:   `[1]`,
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			name, data, err := DecodeEvent(json.RawMessage(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, name)
			assert.Equal(t, tc.wantData, string(data))
		})
	}
}

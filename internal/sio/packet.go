// Package sio implements the client side of the Socket.IO v4 protocol over a
// single websocket (Engine.IO v4, websocket transport only), which is all the
// OGS realtime endpoint needs.
package sio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Engine.IO packet types, the first byte of every text frame.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// Socket.IO packet types, the byte following an Engine.IO message type.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioAck          = '3'
	sioConnectError = '4'
)

// Packet is a decoded Socket.IO packet.
type Packet struct {
	Type      byte
	Namespace string // "/" when absent
	AckID     int    // -1 when absent
	Data      json.RawMessage
}

var errShortPacket = errors.New("sio: empty packet")

// EncodeEvent returns the text frame for emitting event with an optional
// payload on the default namespace.
func EncodeEvent(event string, payload any) ([]byte, error) {
	args := []any{event}
	if payload != nil {
		args = append(args, payload)
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("sio: encode %q: %w", event, err)
	}
	return append([]byte{eioMessage, sioEvent}, body...), nil
}

// DecodePacket parses the Socket.IO part of an Engine.IO message, i.e. the
// frame with its leading '4' already stripped.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) == 0 {
		return Packet{}, errShortPacket
	}
	p := Packet{Type: b[0], Namespace: "/", AckID: -1}
	rest := b[1:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = string(rest)
			return p, nil
		}
		p.Namespace = string(rest[:end])
		rest = rest[end+1:]
	}

	n := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	if n > 0 {
		id, err := strconv.Atoi(string(rest[:n]))
		if err != nil {
			return Packet{}, fmt.Errorf("sio: ack id %q: %w", rest[:n], err)
		}
		p.AckID = id
		rest = rest[n:]
	}

	if len(rest) > 0 {
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// DecodeEvent splits the data of an EVENT packet into the event name and its
// first argument. Extra arguments are dropped.
func DecodeEvent(data json.RawMessage) (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return "", nil, fmt.Errorf("sio: event body: %w", err)
	}
	if len(args) == 0 {
		return "", nil, errors.New("sio: event without name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("sio: event name: %w", err)
	}
	if len(args) == 1 {
		return name, nil, nil
	}
	return name, args[1], nil
}

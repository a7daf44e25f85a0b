package ogsync

import "errors"

var (
	// ErrConnectFailed wraps transport failures while connecting, including
	// the connect timeout.
	ErrConnectFailed = errors.New("ogsync: connect failed")

	// ErrAuthFailed is returned when the server drops the connection while
	// the authenticate handshake settles.
	ErrAuthFailed = errors.New("ogsync: authentication failed")

	// ErrNotConnected is returned for operations that need a Ready socket.
	ErrNotConnected = errors.New("ogsync: socket not connected")

	// ErrUnknownGame is returned for a game id that is not connected.
	ErrUnknownGame = errors.New("ogsync: unknown game")

	// ErrGameConnected is returned when connecting a game twice.
	ErrGameConnected = errors.New("ogsync: game already connected")

	// ErrGameNotActive is returned by game commands after disconnect.
	ErrGameNotActive = errors.New("ogsync: game not active")
)

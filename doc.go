// Package ogsync keeps a local mirror of OGS (online-go.com) games in sync
// over the realtime API, and sends player commands back.
//
// A Socket authenticates one realtime connection, estimates latency and clock
// drift from ping/pong, and routes game events to the connected Games. Each
// Game merges gamedata snapshots, moves and clock frames into its GameState
// and GameClock as they arrive.
//
// Example usage:
//
// 1. Login once and persist credentials
//
//	client := ogsync.NewClient(clientID, clientSecret)
//	err := client.Login(ctx, username, password)
//	// if err != nil { ... }
//
//	client.Save(secretFile)
//
// 2. Load a client from a credential file and connect to a game
//
//	client, err := ogsync.LoadClient(ctx, secretFile, ogsync.WithLogger(logger))
//	// if err != nil { ... }
//
//	socket, err := client.Connect(ctx, nil)
//	// if err != nil { ... }
//	defer socket.Disconnect()
//
//	game, err := socket.GameConnect(12345, func(event string, data json.RawMessage) {
//		fmt.Printf("Received %s\n", event)
//	})
//	// if err != nil { ... }
//
//	state := game.State()
//	fmt.Printf("Game %s\n", state)
//
// See real examples in demo/ which is a working minimal OGS client program
// that you can use to watch and play games on OGS.
package ogsync

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ymattw/ogsync"
)

func connect(ctx context.Context, opts []ogsync.Option, args ...string) {
	if len(args) != 1 {
		logger.Fatal("Syntax: connect <gameID>")
	}
	gameID, err := parseGameID(args[0])
	if err != nil {
		logger.Fatal("invalid game", zap.Error(err))
	}

	client := loadClient(ctx, opts)

	// Handlers run on the socket read loop, never block there.
	events := make(chan string, 64)
	forward := func(event string, data json.RawMessage) {
		select {
		case events <- event:
		default:
			logger.Warn("Event channel full, dropping", zap.String("event", event))
		}
	}

	socket, err := client.Connect(ctx, func(event string, data json.RawMessage) {
		switch event {
		case ogsync.EventNameError, ogsync.EventNameDisconnect:
			logger.Warn("Socket event", zap.String("event", event), zap.ByteString("data", data))
			forward(event, data)
		}
	})
	if err != nil {
		logger.Fatal("connect error", zap.Error(err))
	}
	defer socket.Disconnect()

	if err := socket.Ping(); err != nil {
		logger.Warn("ping error", zap.Error(err))
	}
	game, err := socket.GameConnect(gameID, forward)
	if err != nil {
		logger.Fatal("game connect error", zap.Error(err))
	}

	lines := readLines()
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-events:
			switch ev {
			case ogsync.EventNameDisconnect:
				fmt.Println("Lost connection to server")
				return
			case ogsync.EventNameGameData, ogsync.EventNameMove, ogsync.EventNamePhase:
				state := game.State()
				if ev != ogsync.EventNamePhase {
					if b, err := fetchBoard(ctx, client, gameID); err != nil {
						logger.Warn("board fetch error", zap.Error(err))
					} else {
						b.draw()
					}
				}
				show(game, client.UserID)
				if state.Phase == ogsync.FinishedPhase {
					fmt.Println("Game finished")
					return
				}
			case ogsync.EventNameUndoRequested:
				fmt.Printf("Undo requested at move %d, type \"accept\" to accept\n", game.State().UndoRequested)
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := command(game, line); err != nil {
				fmt.Printf("Error: %v\n", err)
			}

		case <-ticker.C:
			if err := socket.Ping(); err != nil {
				logger.Warn("ping error", zap.Error(err))
			}
		}
	}
}

func show(game *ogsync.Game, userID int64) {
	state := game.State()
	clock := game.Clock()
	now := time.Now()

	fmt.Printf("%s\n", state)
	if n := state.MoveNumber(); n > 0 {
		fmt.Printf("Move %d: %s\n", n, formatMove(state.Moves[n-1], state.BoardSize()))
	}
	if black, white := clock.Project(ogsync.PlayerBlack, now), clock.Project(ogsync.PlayerWhite, now); black != nil && white != nil {
		fmt.Printf("Clock: (B) %s  (W) %s\n", black, white)
	}

	mine := ogsync.PlayerUnknown
	switch userID {
	case state.Players.Black.ID:
		mine = ogsync.PlayerBlack
	case state.Players.White.ID:
		mine = ogsync.PlayerWhite
	}
	switch turn := clock.CurrentColor(); {
	case mine == ogsync.PlayerUnknown:
		fmt.Printf("Not your game, watching only. %s to play\n", turn)
	case turn == mine:
		fmt.Println(`Your turn. Enter a coordinate in "A1" format, "pass", "resign", "undo", "chat <text>" or "refresh"`)
		fmt.Print("> ")
	default:
		fmt.Printf("Waiting for %s\n", turn)
	}
}

func formatMove(m ogsync.Move, boardSize int) string {
	if m.IsPass() {
		return "pass"
	}
	a1, err := m.ToA1Coordinate(boardSize)
	if err != nil {
		return m.String()
	}
	return a1.String()
}

func command(game *ogsync.Game, line string) error {
	op, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	state := game.State()

	switch strings.ToLower(op) {
	case "":
		return nil
	case "pass":
		return game.Pass()
	case "resign":
		return game.Resign()
	case "cancel":
		return game.Cancel()
	case "undo":
		return game.Undo(state.MoveNumber())
	case "accept":
		return game.AcceptUndo(state.UndoRequested)
	case "pause":
		return game.Pause()
	case "resume":
		return game.Resume()
	case "chat":
		return game.SendChat(arg, ogsync.ChatMain, state.MoveNumber())
	case "refresh":
		return game.RequestGameData()
	}

	a1, err := ogsync.NewA1Coordinate(op)
	if err != nil {
		return err
	}
	coord, err := a1.ToOriginCoordinate(state.BoardSize())
	if err != nil {
		return err
	}
	return game.PlayAt(coord.X, coord.Y)
}

// readLines feeds stdin lines to the returned channel, which is closed on EOF.
func readLines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// Can also take a URL like https://online-go.com/game/123
func parseGameID(s string) (int64, error) {
	parts := strings.Split("/"+s, "/")
	last := parts[len(parts)-1]
	gameID, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to extract gameID from %q: %w", s, err)
	}
	return gameID, nil
}

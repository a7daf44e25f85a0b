package main

import (
	"context"
	"fmt"

	"github.com/ymattw/ogsync"
)

const (
	// Full-width characters for stones and grid
	GridChar   = "〸"
	BlackStone = "⚫"
	WhiteStone = "⚪"

	// 24-bit color codes: https://en.wikipedia.org/wiki/ANSI_escape_code#24-bit
	GridFG      = "\033[38;2;31;31;31m"    // #1f1f1f
	BoardBG     = "\033[48;2;124;76;56m"   // #7c4c38
	LastBlackBG = "\033[48;2;230;230;230m" // #e6e6e6
	LastWhiteBG = "\033[48;2;204;0;0m"     // #cc0000
	Reset       = "\033[0m"
)

type Stone int

const (
	Empty Stone = iota
	Black
	White
)

// boardSnapshot is the server computed position. The library mirrors moves
// only, captures are left to the server.
type boardSnapshot struct {
	Board    [][]Stone               `json:"board"`
	LastMove ogsync.OriginCoordinate `json:"last_move"`
}

func fetchBoard(ctx context.Context, client *ogsync.Client, gameID int64) (*boardSnapshot, error) {
	var b boardSnapshot
	if err := client.Get(ctx, fmt.Sprintf("/termination-api/game/%d/state", gameID), nil, &b); err != nil {
		return nil, err
	}
	if len(b.Board) == 0 || len(b.Board) != len(b.Board[0]) || len(b.Board) > 25 {
		return nil, fmt.Errorf("invalid board dimension %d", len(b.Board))
	}
	return &b, nil
}

func (b *boardSnapshot) cell(row, col int) string {
	stone := b.Board[row][col]
	bg := BoardBG
	if b.LastMove.X == col && b.LastMove.Y == row {
		bg = map[Stone]string{Empty: BoardBG, Black: LastBlackBG, White: LastWhiteBG}[stone]
	}
	content := map[Stone]string{Empty: GridChar, Black: BlackStone, White: WhiteStone}[stone]
	return GridFG + bg + content + Reset
}

func colLabel(col int) rune {
	letter := 'Ａ' + rune(col) // Full-width Latin capital A
	if col >= 8 {
		letter += 1
	}
	return letter
}

func (b *boardSnapshot) draw() {
	size := len(b.Board)
	labels := func() {
		fmt.Printf("%3s", " ")
		for c := 0; c < size; c++ {
			fmt.Printf("%c", colLabel(c))
		}
		fmt.Println()
	}

	labels()
	for row := 0; row < size; row++ {
		fmt.Printf("%2d ", size-row)
		for col := 0; col < size; col++ {
			fmt.Print(b.cell(row, col))
		}
		fmt.Printf(" %-2d\n", size-row)
	}
	labels()
}

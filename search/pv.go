package search

import (
	"strings"

	"github.com/samber/lo"

	"github.com/pboivin/ferz/chess"
)

// Credit: MIT-licensed https://github.com/algerbrex/blunder/blob/main/engine/search.go
type PVLine struct {
	Moves []chess.Move
}

// Clear the principal variation line.
func (pvLine *PVLine) Clear() {
	pvLine.Moves = pvLine.Moves[:0]
}

// Update the principal variation line with a new best move,
// and a new line of best play after the best move.
func (pvLine *PVLine) Update(move chess.Move, newPVLine PVLine) {
	pvLine.Clear()
	pvLine.Moves = append(pvLine.Moves, move)
	pvLine.Moves = append(pvLine.Moves, newPVLine.Moves...)
}

// GetPVMove returns the best move from the principal variation line.
func (pvLine *PVLine) GetPVMove() chess.Move {
	if len(pvLine.Moves) == 0 {
		return chess.MoveNone
	}
	return pvLine.Moves[0]
}

// String renders the line in coordinate notation, root move first.
func (pvLine PVLine) String() string {
	return strings.Join(lo.Map(pvLine.Moves, func(m chess.Move, _ int) string {
		return m.String()
	}), " ")
}

package search

import (
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"

	"github.com/pboivin/ferz/chess"
	"github.com/pboivin/ferz/position"
)

func positionFromFEN(t *testing.T, fen string) *position.Position {
	t.Helper()
	pos, err := position.FromFEN(fen)
	if err != nil {
		t.Fatalf("bad fen %q: %v", fen, err)
	}
	return pos
}

func collectMoves(mp *MovePicker) []chess.Move {
	var moves []chess.Move
	mp.Enumerate(func(m chess.Move) bool {
		moves = append(moves, m)
		return true
	})
	return moves
}

func indexOf(moves []chess.Move, want string) int {
	for i, m := range moves {
		if m.String() == want {
			return i
		}
	}
	return -1
}

func TestMVVLVAOrdering(t *testing.T) {
	is := is.New(t)
	// White has exd5 winning a queen and Nxh4 winning a pawn; both stand
	// up to the exchange, so they share the good-tacticals stage and the
	// bigger victim goes first.
	pos := positionFromFEN(t, "6k1/8/8/3q4/4P2p/5N2/8/6K1 w - - 0 1")

	mp := NewMovePicker(MainMode, pos, chess.MoveNone, chess.MoveNone, chess.MoveNone, chess.MoveNone)
	moves := collectMoves(mp)

	pxq := indexOf(moves, "e4d5")
	nxp := indexOf(moves, "f3h4")
	is.True(pxq >= 0)
	is.True(nxp >= 0)
	is.True(pxq < nxp)
}

func TestPickerYieldsEachLegalMoveOnce(t *testing.T) {
	// Italian-style middlegame with captures, castling and plenty of
	// quiets. The union over all stages must be exactly the legal move
	// set, with no duplicates, whatever heuristic moves are plugged in.
	pos := positionFromFEN(t, "r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4")

	parse := func(s string) chess.Move {
		m, err := pos.ParseMove(s)
		if err != nil {
			t.Fatalf("bad move %q: %v", s, err)
		}
		return m
	}
	ttMove := parse("e1g1")
	killer1 := parse("d2d3")
	killer2 := parse("b1c3")
	counter := parse("a2a3")

	mp := NewMovePicker(MainMode, pos, ttMove, killer1, killer2, counter)
	moves := collectMoves(mp)

	seen := make(map[chess.Move]bool)
	for _, m := range moves {
		assert.False(t, seen[m], "move %v yielded twice", m)
		seen[m] = true
	}

	legal := pos.LegalMoves()
	assert.Equal(t, len(legal), len(moves))
	for _, m := range legal {
		assert.True(t, seen[m], "legal move %v never yielded", m)
	}

	// The hash move leads, the refutations come before the remaining
	// quiets, and the losing captures (Bxf7, Nxe5 both lose material)
	// trail the good quiets.
	assert.Equal(t, ttMove, moves[0])
	lastRefutation := indexOf(moves, "a2a3")
	assert.Less(t, indexOf(moves, "d2d3"), lastRefutation)
	assert.Less(t, indexOf(moves, "b1c3"), lastRefutation)
	assert.Greater(t, indexOf(moves, "c4f7"), lastRefutation)
	assert.Greater(t, indexOf(moves, "f3e5"), lastRefutation)
}

func TestQuiescenceFiltersLosingCaptures(t *testing.T) {
	is := is.New(t)
	// dxe5 and Nxe5 win the queen; Nxg5 loses a knight for a pawn to the
	// h6 recapture and must be discarded, not deferred.
	pos := positionFromFEN(t, "6k1/8/7p/4q1p1/3P4/5N2/8/6K1 w - - 0 1")

	mp := NewMovePicker(QuiescenceMode, pos, chess.MoveNone, chess.MoveNone, chess.MoveNone, chess.MoveNone)
	moves := collectMoves(mp)

	is.Equal(indexOf(moves, "f3g5"), -1)
	pxq := indexOf(moves, "d4e5")
	nxq := indexOf(moves, "f3e5")
	is.True(pxq >= 0)
	is.True(nxq >= 0)
	is.True(pxq < nxq) // same victim, cheaper attacker first
	is.Equal(len(moves), 2)
}

func TestEvasionsWhenInCheck(t *testing.T) {
	// In check the picker yields every legal evasion and then stops; the
	// killer/counter/quiet stages never run.
	pos := positionFromFEN(t, "6k1/8/8/8/8/8/6PP/r5K1 w - - 0 1")

	killer, err := pos.ParseMove("g1f2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mp := NewMovePicker(MainMode, pos, chess.MoveNone, killer, chess.MoveNone, chess.MoveNone)
	moves := collectMoves(mp)

	legal := pos.LegalMoves()
	assert.Equal(t, len(legal), len(moves))
	seen := make(map[chess.Move]bool)
	for _, m := range moves {
		assert.False(t, seen[m])
		seen[m] = true
	}
	for _, m := range legal {
		assert.True(t, seen[m])
	}
}

func TestEvasionCapturesFirst(t *testing.T) {
	is := is.New(t)
	// Checked by a rook that can be captured: the capture outranks the
	// king walks in the evasion stage.
	pos := positionFromFEN(t, "6k1/8/8/8/8/8/1Q4PP/r5K1 w - - 0 1")

	mp := NewMovePicker(MainMode, pos, chess.MoveNone, chess.MoveNone, chess.MoveNone, chess.MoveNone)
	moves := collectMoves(mp)

	is.True(len(moves) > 1)
	is.Equal(moves[0].String(), "b2a1")
}

func TestQuietThreatEvasionBonus(t *testing.T) {
	is := is.New(t)
	// The d4 rook stands on a square attacked by the c6 knight. Rook
	// retreats to knight-safe squares collect the escape bonus and lead
	// the quiet stage.
	pos := positionFromFEN(t, "6k1/8/2n5/8/3R4/8/7P/6K1 w - - 0 1")

	mp := NewMovePicker(MainMode, pos, chess.MoveNone, chess.MoveNone, chess.MoveNone, chess.MoveNone)
	moves := collectMoves(mp)

	first := moves[0]
	is.Equal(first.From().String(), "d4")
	is.True(!pos.ThreatenedByMinors().Has(first.To()))
}

func TestStoppedEnumerationReturnsFalse(t *testing.T) {
	is := is.New(t)
	pos := position.StartingPosition()

	mp := NewMovePicker(MainMode, pos, chess.MoveNone, chess.MoveNone, chess.MoveNone, chess.MoveNone)
	count := 0
	is.True(!mp.Enumerate(func(chess.Move) bool {
		count++
		return count < 3
	}))
	is.Equal(count, 3)

	mp = NewMovePicker(MainMode, pos, chess.MoveNone, chess.MoveNone, chess.MoveNone, chess.MoveNone)
	is.True(mp.Enumerate(func(chess.Move) bool { return true }))
}

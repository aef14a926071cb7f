package search

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/matryer/is"

	"github.com/pboivin/ferz/chess"
	"github.com/pboivin/ferz/position"
)

func newTestSearchData(pos *position.Position, limits SearchLimits) *SearchData {
	var stop atomic.Bool
	return newSearchData(context.Background(), pos, limits, &stop)
}

func TestKillerUpdates(t *testing.T) {
	is := is.New(t)
	sd := newTestSearchData(position.StartingPosition(), SearchLimits{})

	m1 := chess.NewMove(chess.MakeSquare(4, 1), chess.MakeSquare(4, 3))
	m2 := chess.NewMove(chess.MakeSquare(3, 1), chess.MakeSquare(3, 3))

	sd.updateKillers(m1, 5)
	is.Equal(sd.killerMoves[5][0], m1)
	is.Equal(sd.killerMoves[5][1], chess.MoveNone)

	// Re-installing the same killer does not duplicate it.
	sd.updateKillers(m1, 5)
	is.Equal(sd.killerMoves[5][0], m1)
	is.Equal(sd.killerMoves[5][1], chess.MoveNone)

	// A new killer shifts the old one to the second slot.
	sd.updateKillers(m2, 5)
	is.Equal(sd.killerMoves[5][0], m2)
	is.Equal(sd.killerMoves[5][1], m1)
	is.True(sd.killerMoves[5][0] != sd.killerMoves[5][1])

	// Other plies are untouched.
	is.Equal(sd.killerMoves[4][0], chess.MoveNone)
}

func TestCounterMoves(t *testing.T) {
	is := is.New(t)
	pos := StartingPositionAfter(t, "e2e4")
	sd := newTestSearchData(pos, SearchLimits{})

	reply := chess.NewMove(chess.MakeSquare(2, 6), chess.MakeSquare(2, 4))
	sd.updateCounter(reply)
	is.Equal(sd.getCounter(), reply)

	// At the root of the history there is no opponent move to key on.
	root := newTestSearchData(position.StartingPosition(), SearchLimits{})
	root.updateCounter(reply)
	is.Equal(root.getCounter(), chess.MoveNone)
}

// StartingPositionAfter plays the given moves from the start position.
func StartingPositionAfter(t *testing.T, moves ...string) *position.Position {
	t.Helper()
	pos := position.StartingPosition()
	for _, ms := range moves {
		m, err := pos.ParseMove(ms)
		if err != nil {
			t.Fatalf("bad move %q: %v", ms, err)
		}
		pos.DoMove(m)
	}
	return pos
}

func TestAllocatedTimeMonotone(t *testing.T) {
	is := is.New(t)

	alloc := func(timeLeft int64) int64 {
		sd := newTestSearchData(position.StartingPosition(), SearchLimits{
			TimeLeft:  [chess.NumSides]int64{timeLeft, timeLeft},
			MovesToGo: 30,
		})
		return sd.allocatedTime
	}

	prev := int64(0)
	for _, tl := range []int64{100, 1000, 10000, 60000, 600000} {
		a := alloc(tl)
		is.True(a >= prev)
		is.True(a < tl) // always below the remaining clock
		is.True(a >= 1)
		prev = a
	}

	// Without clock state no allocation happens.
	sd := newTestSearchData(position.StartingPosition(), SearchLimits{})
	is.Equal(sd.allocatedTime, int64(0))
	is.True(!sd.useTournamentTime())
}

func TestShouldStopNodeLimit(t *testing.T) {
	is := is.New(t)
	sd := newTestSearchData(position.StartingPosition(), SearchLimits{MaxNodes: 2048})

	// Off the 1024-node boundary the budget is not even sampled.
	sd.nbNodes.Store(5000)
	is.True(!sd.shouldStop())

	sd.nbNodes.Store(1024)
	is.True(!sd.shouldStop())
	sd.nbNodes.Store(2048)
	is.True(sd.shouldStop())
}

func TestShouldStopExternal(t *testing.T) {
	is := is.New(t)

	var stop atomic.Bool
	sd := newSearchData(context.Background(), position.StartingPosition(), SearchLimits{}, &stop)
	sd.nbNodes.Store(1024)
	is.True(!sd.shouldStop())
	stop.Store(true)
	is.True(sd.shouldStop())

	ctx, cancel := context.WithCancel(context.Background())
	var stop2 atomic.Bool
	sd = newSearchData(ctx, position.StartingPosition(), SearchLimits{}, &stop2)
	sd.nbNodes.Store(1024)
	is.True(!sd.shouldStop())
	cancel()
	is.True(sd.shouldStop())
}

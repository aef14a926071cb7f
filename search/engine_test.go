package search

import (
	"context"
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"

	"github.com/pboivin/ferz/chess"
	"github.com/pboivin/ferz/eval"
	"github.com/pboivin/ferz/position"
)

// newTestEngine skips the system-memory-sized table so the tests stay
// cheap.
func newTestEngine(pos *position.Position) *Engine {
	e := &Engine{
		rootPosition: pos,
		tt:           &TranspositionTable{},
	}
	e.tt.Reset(0)
	return e
}

func runSearch(t *testing.T, e *Engine, limits SearchLimits) SearchEvent {
	t.Helper()
	var finish SearchEvent
	e.OnSearchFinish(func(ev SearchEvent) { finish = ev })
	if err := e.Search(context.Background(), limits); err != nil {
		t.Fatalf("search: %v", err)
	}
	return finish
}

func TestMateInOne(t *testing.T) {
	is := is.New(t)
	pos := positionFromFEN(t, "6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1")
	e := newTestEngine(pos)

	finish := runSearch(t, e, SearchLimits{MaxDepth: 3})

	is.True(finish.Score >= chess.ScoreMate-2)
	is.True(len(finish.PV) > 0)
	first := finish.PV[0]
	is.Equal(first.From(), chess.SquareA1)
	is.Equal(first.To().Rank(), 7) // rook mates on the back rank
	is.True(!e.SearchAborted())
}

func TestStalemateDetection(t *testing.T) {
	is := is.New(t)
	pos := positionFromFEN(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	e := newTestEngine(pos)

	finish := runSearch(t, e, SearchLimits{MaxDepth: 5})

	is.Equal(finish.Score, chess.ScoreDraw)
	is.Equal(len(finish.PV), 0)
}

func TestQuiescenceStandPat(t *testing.T) {
	is := is.New(t)
	// No captures exist in the start position, so depth 0 resolves to the
	// static evaluation after visiting exactly one node.
	pos := position.StartingPosition()
	e := newTestEngine(pos.Copy())
	sd := newTestSearchData(pos.Copy(), SearchLimits{})

	var pv PVLine
	score := e.qSearch(sd, -chess.ScoreInf, chess.ScoreInf, 0, 0, &pv)

	is.Equal(score, eval.Evaluate(pos))
	is.Equal(sd.nbNodes.Load(), uint64(1))
}

func TestNodeBudgetRespected(t *testing.T) {
	pos := position.StartingPosition()
	e := newTestEngine(pos)

	finish := runSearch(t, e, SearchLimits{MaxDepth: 20, MaxNodes: 10_000})

	// The budget is sampled every 1024 nodes, so the overshoot is bounded
	// by the check granularity.
	assert.LessOrEqual(t, finish.Nodes, uint64(10_000+1024))
	assert.True(t, e.SearchAborted())
	assert.Greater(t, finish.Depth, 0) // at least one completed iteration
}

func TestExternalStop(t *testing.T) {
	is := is.New(t)
	pos := position.StartingPosition()
	e := newTestEngine(pos)
	e.OnSearchProgress(func(ev SearchEvent) {
		if ev.Depth == 2 {
			e.Stop()
		}
	})

	finish := runSearch(t, e, SearchLimits{MaxDepth: 30})

	is.True(e.SearchAborted())
	is.True(finish.Depth < 30)
	is.True(len(finish.PV) > 0) // last completed depth's line survives
}

func TestAlreadySearching(t *testing.T) {
	is := is.New(t)
	e := newTestEngine(position.StartingPosition())
	e.searching.Store(true)
	err := e.Search(context.Background(), SearchLimits{MaxDepth: 1})
	is.Equal(err, ErrAlreadySearching)
	is.True(e.IsSearching())
}

func TestSearchMovesRestriction(t *testing.T) {
	is := is.New(t)
	pos := position.StartingPosition()
	restricted, err := pos.ParseMove("a2a3")
	is.NoErr(err)
	e := newTestEngine(pos)

	finish := runSearch(t, e, SearchLimits{
		MaxDepth:    3,
		SearchMoves: []chess.Move{restricted},
	})

	is.True(len(finish.PV) > 0)
	is.Equal(finish.PV[0], restricted)
}

func TestSearchRestoresPosition(t *testing.T) {
	is := is.New(t)
	// Do/undo symmetry across the whole tree: after a search the working
	// position must be back at its entry state, key included.
	pos := positionFromFEN(t, "r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4")
	wantFEN := pos.FEN()
	wantKey := pos.HashKey()

	e := newTestEngine(pos.Copy())
	sd := newTestSearchData(pos, SearchLimits{})
	var pv PVLine
	e.pvSearch(sd, -chess.ScoreInf, chess.ScoreInf, 3, 0, &pv, rootNode)

	is.Equal(sd.position.FEN(), wantFEN)
	is.Equal(sd.position.HashKey(), wantKey)
}

func TestProgressEventsPerDepth(t *testing.T) {
	is := is.New(t)
	e := newTestEngine(position.StartingPosition())

	var depths []int
	e.OnSearchProgress(func(ev SearchEvent) {
		depths = append(depths, ev.Depth)
		is.True(len(ev.PV) > 0)
		is.True(ev.Nodes > 0)
	})
	finish := runSearch(t, e, SearchLimits{MaxDepth: 4})

	is.Equal(depths, []int{1, 2, 3, 4})
	is.Equal(finish.Depth, 4)
	is.True(!e.SearchAborted())
}

func TestKillerPersistsAcrossIterations(t *testing.T) {
	is := is.New(t)
	// The killer table lives in SearchData for the whole iterative
	// deepening run: a refutation installed at one depth is offered to
	// the picker when the same ply is revisited at the next depth.
	pos := position.StartingPosition()
	e := newTestEngine(pos.Copy())
	sd := newTestSearchData(pos.Copy(), SearchLimits{})

	var pv PVLine
	e.pvSearch(sd, -chess.ScoreInf, chess.ScoreInf, 2, 0, &pv, rootNode)
	installed := sd.killerMoves[1][0]
	is.True(installed != chess.MoveNone)

	pv.Clear()
	e.pvSearch(sd, -chess.ScoreInf, chess.ScoreInf, 3, 0, &pv, rootNode)
	is.True(sd.killerMoves[1][0] != chess.MoveNone)
}

package search

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pboivin/ferz/chess"
	"github.com/pboivin/ferz/position"
)

// SearchLimits bounds a search. A zero value on any axis means
// unconstrained on that axis.
type SearchLimits struct {
	// TimeLeft and Increment are the tournament clock state in
	// milliseconds, indexed by chess.Side.
	TimeLeft  [chess.NumSides]int64
	Increment [chess.NumSides]int64
	// MovesToGo is the number of moves until the next time control.
	MovesToGo int
	MaxDepth  int
	MaxNodes  uint64
	// MaxTime is a fixed per-move time in milliseconds.
	MaxTime int64
	// SearchMoves, when non-empty, restricts the root to these moves.
	SearchMoves []chess.Move
}

// moveOverheadMs is the safety margin kept off the clock to cover I/O
// latency.
const moveOverheadMs = 50

// defaultMovesToGo spreads sudden-death time over a nominal game length.
const defaultMovesToGo = 40

// budgetCheckMask amortizes wall-clock sampling: the budget is
// consulted once every 1024 nodes.
const budgetCheckMask = 1023

// SearchData is the per-search mutable state, owned exclusively by the
// searcher.
type SearchData struct {
	position *position.Position
	limits   SearchLimits
	// nbNodes is read by the logging ticker while the searcher runs.
	nbNodes atomic.Uint64

	startTime     time.Time
	allocatedTime int64

	killerMoves  [chess.MaxPly][2]chess.Move
	counterMoves [chess.NumPieces][chess.NumSquares]chess.Move

	ctx     context.Context
	stop    *atomic.Bool
	aborted bool
}

func newSearchData(ctx context.Context, pos *position.Position, limits SearchLimits, stop *atomic.Bool) *SearchData {
	sd := &SearchData{
		position:  pos,
		limits:    limits,
		ctx:       ctx,
		stop:      stop,
		startTime: time.Now(),
	}
	sd.initAllocatedTime()
	return sd
}

func (sd *SearchData) getElapsed() int64 {
	return time.Since(sd.startTime).Milliseconds()
}

func (sd *SearchData) useTournamentTime() bool {
	return sd.limits.TimeLeft[chess.White]|sd.limits.TimeLeft[chess.Black] != 0
}

func (sd *SearchData) useFixedTime() bool {
	return sd.limits.MaxTime > 0
}

func (sd *SearchData) useNodeCountLimit() bool {
	return sd.limits.MaxNodes > 0
}

// initAllocatedTime derives the per-move budget from the clock state:
// an even share of the remaining time plus most of the increment,
// capped a safety margin below the clock.
func (sd *SearchData) initAllocatedTime() {
	if !sd.useTournamentTime() {
		return
	}
	us := sd.position.SideToMove()
	timeLeft := sd.limits.TimeLeft[us]
	movesToGo := int64(sd.limits.MovesToGo)
	if movesToGo == 0 {
		movesToGo = defaultMovesToGo
	}
	allocated := timeLeft/movesToGo + 3*sd.limits.Increment[us]/4
	if allocated > timeLeft-moveOverheadMs {
		allocated = timeLeft - moveOverheadMs
	}
	if allocated < 1 {
		allocated = 1
	}
	sd.allocatedTime = allocated
}

// shouldStop reports whether the search budget is exhausted or an
// external stop was requested. The check runs every 1024 nodes; in
// between it reports false without sampling the clock.
func (sd *SearchData) shouldStop() bool {
	nbNodes := sd.nbNodes.Load()
	if nbNodes&budgetCheckMask != 0 {
		return false
	}
	if sd.stop.Load() || sd.ctx.Err() != nil {
		return true
	}
	if sd.useNodeCountLimit() && nbNodes >= sd.limits.MaxNodes {
		return true
	}
	if sd.useTournamentTime() || sd.useFixedTime() {
		elapsed := sd.getElapsed()
		if sd.useTournamentTime() && elapsed >= sd.allocatedTime {
			return true
		}
		if sd.useFixedTime() && elapsed >= sd.limits.MaxTime {
			return true
		}
	}
	return false
}

// updateKillers installs a quiet refutation at ply, shifting the
// previous slot-0 killer down. The two slots never hold the same move.
func (sd *SearchData) updateKillers(move chess.Move, ply int) {
	if sd.killerMoves[ply][0] != move {
		sd.killerMoves[ply][1] = sd.killerMoves[ply][0]
		sd.killerMoves[ply][0] = move
	}
}

// updateCounter records move as the refutation of the opponent's last
// move, keyed by the piece that landed on its destination. No-op at the
// root of the do/undo history.
func (sd *SearchData) updateCounter(move chess.Move) {
	prev := sd.position.PreviousMove()
	if prev == chess.MoveNone {
		return
	}
	sd.counterMoves[sd.position.PieceAt(prev.To())][prev.To()] = move
}

func (sd *SearchData) getCounter() chess.Move {
	prev := sd.position.PreviousMove()
	if prev == chess.MoveNone {
		return chess.MoveNone
	}
	return sd.counterMoves[sd.position.PieceAt(prev.To())][prev.To()]
}

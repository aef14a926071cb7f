// Package search implements the iterative-deepening alpha-beta searcher
// with quiescence, its staged move picker, and the transposition table.
package search

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pboivin/ferz/chess"
	"github.com/pboivin/ferz/eval"
	"github.com/pboivin/ferz/position"
)

var ErrAlreadySearching = errors.New("a search is already running")

// DefaultHashFraction is the share of system memory given to the
// transposition table when the embedder does not choose one.
const DefaultHashFraction = 0.02

// SearchEvent reports the state of a search after a completed
// iteration. PV is valid by reference until the next event.
type SearchEvent struct {
	Depth    int
	PV       []chess.Move
	Score    chess.Score
	Nodes    uint64
	Elapsed  int64 // milliseconds
	Hashfull int   // permille
}

type nodeType uint8

const (
	rootNode nodeType = iota
	pvNode
	nonPVNode
)

// Engine owns a root position and a transposition table and runs
// searches against them. The searcher itself is single-threaded; Stop
// may be called from any goroutine.
type Engine struct {
	rootPosition *position.Position
	tt           *TranspositionTable

	searching     atomic.Bool
	aborted       atomic.Bool
	stopRequested atomic.Bool

	progressFn func(SearchEvent)
	finishFn   func(SearchEvent)
}

func NewEngine() *Engine {
	e := &Engine{
		rootPosition: position.StartingPosition(),
		tt:           &TranspositionTable{},
	}
	e.tt.Reset(DefaultHashFraction)
	e.aborted.Store(true)
	return e
}

// SetPosition replaces the root position. Must not be called while a
// search is running.
func (e *Engine) SetPosition(pos *position.Position) {
	if e.IsSearching() {
		panic("search: SetPosition called during a search")
	}
	e.rootPosition = pos
}

func (e *Engine) Position() *position.Position {
	return e.rootPosition
}

// ResizeHash re-sizes the transposition table to a fraction of system
// memory, dropping its contents.
func (e *Engine) ResizeHash(fractionOfMemory float64) {
	if e.IsSearching() {
		panic("search: ResizeHash called during a search")
	}
	e.tt.Reset(fractionOfMemory)
}

// ClearHash drops all transposition entries, keeping the size.
func (e *Engine) ClearHash() {
	if e.IsSearching() {
		panic("search: ClearHash called during a search")
	}
	clear(e.tt.table)
	e.tt.generation = 0
}

// OnSearchProgress registers a callback invoked from the searcher
// goroutine after every completed depth. The handler must not mutate
// engine state.
func (e *Engine) OnSearchProgress(fn func(SearchEvent)) {
	e.progressFn = fn
}

// OnSearchFinish registers a callback invoked once per search, after
// the last completed depth.
func (e *Engine) OnSearchFinish(fn func(SearchEvent)) {
	e.finishFn = fn
}

func (e *Engine) IsSearching() bool {
	return e.searching.Load()
}

// SearchAborted reports whether the last search ended on budget
// exhaustion or an external stop rather than reaching its depth limit.
func (e *Engine) SearchAborted() bool {
	return e.aborted.Load()
}

// Stop requests cooperative termination of the running search. The
// search exits at its next budget check.
func (e *Engine) Stop() {
	e.stopRequested.Store(true)
}

// Search runs iterative deepening under the given limits, emitting a
// progress event per completed depth and a finish event at the end. It
// is synchronous; embedders wanting an asynchronous search run it on
// their own goroutine. Calling Search while a search is running is a
// precondition violation reported as ErrAlreadySearching.
func (e *Engine) Search(ctx context.Context, limits SearchLimits) error {
	if !e.searching.CompareAndSwap(false, true) {
		return ErrAlreadySearching
	}
	defer e.searching.Store(false)

	e.stopRequested.Store(false)
	e.aborted.Store(false)
	e.tt.newGeneration()

	sd := newSearchData(ctx, e.rootPosition.Copy(), limits, &e.stopRequested)

	tstart := time.Now()
	g := errgroup.Group{}
	done := make(chan bool)

	g.Go(func() error {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		var lastNodes uint64
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				log.Debug().Uint64("nps", sd.nbNodes.Load()-lastNodes).Msg("nodes-per-second")
				lastNodes = sd.nbNodes.Load()
			}
		}
	})

	g.Go(func() error {
		e.idSearch(sd)
		done <- true
		return nil
	})

	err := g.Wait()
	e.aborted.Store(sd.aborted)
	log.Debug().
		Uint64("ttable-created", e.tt.created.Load()).
		Uint64("ttable-lookups", e.tt.lookups.Load()).
		Uint64("ttable-hits", e.tt.hits.Load()).
		Uint64("ttable-t2collisions", e.tt.t2collisions.Load()).
		Uint64("nodes", sd.nbNodes.Load()).
		Float64("time-elapsed-sec", time.Since(tstart).Seconds()).
		Msg("search-returning")
	return err
}

func (e *Engine) event(sd *SearchData, depth int, pv *PVLine, score chess.Score) SearchEvent {
	return SearchEvent{
		Depth:    depth,
		PV:       pv.Moves,
		Score:    score,
		Nodes:    sd.nbNodes.Load(),
		Elapsed:  sd.getElapsed(),
		Hashfull: e.tt.Hashfull(),
	}
}

// idSearch is the iterative-deepening driver. The last fully completed
// depth's line is authoritative; an aborted iteration is discarded.
func (e *Engine) idSearch(sd *SearchData) {
	maxDepth := sd.limits.MaxDepth
	if maxDepth <= 0 || maxDepth > chess.MaxPly {
		maxDepth = chess.MaxPly
	}

	var bestPV PVLine
	var bestScore chess.Score
	lastDepth := 0

	pv := PVLine{Moves: make([]chess.Move, 0, chess.MaxPly)}
	for depth := 1; depth <= maxDepth; depth++ {
		pv.Clear()
		score := e.pvSearch(sd, -chess.ScoreInf, chess.ScoreInf, depth, 0, &pv, rootNode)
		if sd.aborted {
			break
		}
		lastDepth = depth
		bestScore = score
		bestPV.Clear()
		bestPV.Moves = append(bestPV.Moves, pv.Moves...)

		log.Debug().Int("depth", depth).Int16("score", int16(score)).
			Str("pv", bestPV.String()).Uint64("nodes", sd.nbNodes.Load()).
			Msg("deepening-iteratively")
		if e.progressFn != nil {
			e.progressFn(e.event(sd, depth, &bestPV, bestScore))
		}
		if sd.shouldStop() {
			sd.aborted = true
			break
		}
	}

	if e.finishFn != nil {
		e.finishFn(e.event(sd, lastDepth, &bestPV, bestScore))
	}
}

// pvSearch is the negamax alpha-beta search. An aborted node unwinds
// returning alpha without storing to the transposition table or
// touching the refutation tables.
func (e *Engine) pvSearch(sd *SearchData, alpha, beta chess.Score, depth, ply int, pv *PVLine, nt nodeType) chess.Score {
	if depth <= 0 {
		return e.qSearch(sd, alpha, beta, 0, ply, pv)
	}

	sd.nbNodes.Add(1)
	if nt != rootNode {
		if sd.aborted || sd.shouldStop() {
			sd.aborted = true
			return alpha
		}
	}

	pos := sd.position
	alphaOrig := alpha

	ttMove := chess.MoveNone
	if m, ttScore, flag, ttDepth, ok := e.tt.probe(pos.HashKey(), ply); ok {
		ttMove = m
		if nt == nonPVNode && ttDepth >= depth {
			switch flag {
			case TTExact:
				return ttScore
			case TTLower:
				if ttScore >= beta {
					return ttScore
				}
			case TTUpper:
				if ttScore <= alpha {
					return ttScore
				}
			}
		}
	}

	bestScore := -chess.ScoreInf
	bestMove := chess.MoveNone
	movesSearched := 0
	childPV := PVLine{}

	mp := NewMovePicker(MainMode, pos, ttMove, sd.killerMoves[ply][0], sd.killerMoves[ply][1], sd.getCounter())
	mp.Enumerate(func(m chess.Move) bool {
		if nt == rootNode && len(sd.limits.SearchMoves) > 0 && !containsMove(sd.limits.SearchMoves, m) {
			return true
		}
		movesSearched++
		childNT := nonPVNode
		if nt != nonPVNode && movesSearched == 1 {
			childNT = pvNode
		}

		pos.DoMove(m)
		score := -e.pvSearch(sd, -beta, -alpha, depth-1, ply+1, &childPV, childNT)
		pos.UndoMove(m)
		if sd.aborted {
			return false
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
			if score > alpha {
				alpha = score
				pv.Update(m, childPV)
			}
		}
		if score >= beta {
			// Fail high: remember quiet refutations.
			if !pos.IsTactical(m) {
				sd.updateKillers(m, ply)
				sd.updateCounter(m)
			}
			return false
		}
		childPV.Clear()
		return true
	})

	if sd.aborted {
		return alpha
	}

	if movesSearched == 0 {
		if pos.InCheck() {
			return chess.MatedIn(ply)
		}
		return chess.ScoreDraw
	}

	flag := uint8(TTExact)
	if bestScore >= beta {
		flag = TTLower
	} else if alpha == alphaOrig {
		flag = TTUpper
	}
	e.tt.store(pos.HashKey(), bestMove, bestScore, flag, depth, ply)

	return bestScore
}

// qSearch resolves tactical sequences past the horizon. The static
// evaluation stands pat unless the side to move is in check, in which
// case every evasion is searched.
func (e *Engine) qSearch(sd *SearchData, alpha, beta chess.Score, depth, ply int, pv *PVLine) chess.Score {
	sd.nbNodes.Add(1)
	if sd.aborted || sd.shouldStop() {
		sd.aborted = true
		return alpha
	}

	pos := sd.position
	inCheck := pos.InCheck()
	bestScore := -chess.ScoreInf

	if !inCheck {
		standPat := eval.Evaluate(pos)
		if standPat >= beta {
			return standPat
		}
		if standPat > alpha {
			alpha = standPat
		}
		bestScore = standPat
	}

	if ply >= chess.MaxPly {
		return eval.Evaluate(pos)
	}

	ttMove := chess.MoveNone
	if m, _, _, _, ok := e.tt.probe(pos.HashKey(), ply); ok {
		ttMove = m
	}

	movesSearched := 0
	childPV := PVLine{}

	mp := NewMovePicker(QuiescenceMode, pos, ttMove, chess.MoveNone, chess.MoveNone, chess.MoveNone)
	mp.Enumerate(func(m chess.Move) bool {
		movesSearched++
		pos.DoMove(m)
		score := -e.qSearch(sd, -beta, -alpha, depth-1, ply+1, &childPV)
		pos.UndoMove(m)
		if sd.aborted {
			return false
		}

		if score > bestScore {
			bestScore = score
			if score > alpha {
				alpha = score
				pv.Update(m, childPV)
			}
		}
		if score >= beta {
			return false
		}
		childPV.Clear()
		return true
	})

	if sd.aborted {
		return alpha
	}

	if inCheck && movesSearched == 0 {
		return chess.MatedIn(ply)
	}

	return bestScore
}

func containsMove(moves []chess.Move, m chess.Move) bool {
	for _, sm := range moves {
		if sm == m {
			return true
		}
	}
	return false
}

package search

import (
	"math"
	"sync/atomic"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	"github.com/pboivin/ferz/chess"
)

const (
	TTExact = 0x01
	TTLower = 0x02
	TTUpper = 0x03
)

const entrySize = 16

const bottom2ByteMask = (1 << 16) - 1

// TableEntry packs a probe result into 16 bytes (entrySize). The key is
// not stored whole: the bottom bytes are implied by the entry's bucket,
// the rest is kept for verification.
type TableEntry struct {
	top4bytes uint32
	mid2bytes uint16
	score     int16
	play      chess.Move
	flag      uint8
	depth     uint8
	gen       uint8
}

// fullHash reconstructs the 64-bit hash for this entry, given the
// bucket index that supplied the bottom bytes.
func (t TableEntry) fullHash(idx uint64) uint64 {
	return uint64(t.top4bytes)<<32 + uint64(t.mid2bytes)<<16 + (idx & bottom2ByteMask)
}

func (t TableEntry) valid() bool {
	// a table flag is 1, 2, or 3.
	return t.flag != 0
}

// TranspositionTable is a fixed-capacity power-of-two table indexed by
// the low bits of the Zobrist key. The searcher owns it exclusively
// during a search; no locking.
type TranspositionTable struct {
	table        []TableEntry
	created      atomic.Uint64
	lookups      atomic.Uint64
	hits         atomic.Uint64
	sizePowerOf2 int
	sizeMask     uint64
	generation   uint8
	// "type 2" collisions. A type 2 collision happens when two positions
	// share the same lower bytes. A type 1 collision happens when two
	// positions share the same overall hash. We don't have a super easy
	// way to detect the latter, but it should be much less common.
	t2collisions atomic.Uint64
}

// scoreToTT rebases mate scores to be ply-independent before storage.
func scoreToTT(s chess.Score, ply int) int16 {
	if s >= chess.ScoreMateInMaxPly {
		return int16(s) + int16(ply)
	}
	if s <= -chess.ScoreMateInMaxPly {
		return int16(s) - int16(ply)
	}
	return int16(s)
}

// scoreFromTT rebases a stored mate score to the probing ply.
func scoreFromTT(s int16, ply int) chess.Score {
	sc := chess.Score(s)
	if sc >= chess.ScoreMateInMaxPly {
		return sc - chess.Score(ply)
	}
	if sc <= -chess.ScoreMateInMaxPly {
		return sc + chess.Score(ply)
	}
	return sc
}

// probe looks up zval. On a hit it returns the stored move, the score
// rebased to ply, the bound flag and the depth searched.
func (t *TranspositionTable) probe(zval uint64, ply int) (chess.Move, chess.Score, uint8, int, bool) {
	t.lookups.Add(1)
	idx := zval & t.sizeMask
	entry := t.table[idx]
	if entry.fullHash(idx) != zval {
		if entry.valid() {
			// There is another unrelated node at this bucket.
			t.t2collisions.Add(1)
		}
		return chess.MoveNone, 0, 0, 0, false
	}
	if !entry.valid() {
		return chess.MoveNone, 0, 0, 0, false
	}
	t.hits.Add(1)
	return entry.play, scoreFromTT(entry.score, ply), entry.flag, int(entry.depth), true
}

// store writes an entry for zval. Replacement favors the current
// generation and greater depth; a store never fails, at worst it keeps
// the deeper resident entry.
func (t *TranspositionTable) store(zval uint64, play chess.Move, score chess.Score, flag uint8, depth, ply int) {
	idx := zval & t.sizeMask
	old := t.table[idx]
	if old.valid() && old.gen == t.generation &&
		old.fullHash(idx) != zval && int(old.depth) > depth {
		return
	}
	t.table[idx] = TableEntry{
		top4bytes: uint32(zval >> 32),
		mid2bytes: uint16(zval >> 16),
		score:     scoreToTT(score, ply),
		play:      play,
		flag:      flag,
		depth:     uint8(depth),
		gen:       t.generation,
	}
	t.created.Add(1)
}

// newGeneration ages out the previous search's entries for replacement
// and hashfull purposes; the entries themselves stay probeable.
func (t *TranspositionTable) newGeneration() {
	t.generation++
}

// Hashfull estimates table occupancy in permille by sampling the first
// 1000 buckets, counting entries written by the current search.
func (t *TranspositionTable) Hashfull() int {
	sample := 1000
	if len(t.table) < sample {
		sample = len(t.table)
	}
	if sample == 0 {
		return 0
	}
	used := 0
	for i := 0; i < sample; i++ {
		if t.table[i].valid() && t.table[i].gen == t.generation {
			used++
		}
	}
	return used * 1000 / sample
}

// Reset sizes the table to a fraction of total system memory (biggest
// power of two that fits, never below 2^16 entries so that the stored
// key bytes always verify the full hash) and clears it.
func (t *TranspositionTable) Reset(fractionOfMemory float64) {
	totalMem := memory.TotalMemory()
	desiredNElems := fractionOfMemory * (float64(totalMem) / float64(entrySize))
	// find biggest power of 2 lower than desired.
	t.sizePowerOf2 = 16
	if desiredNElems > 1<<16 {
		t.sizePowerOf2 = int(math.Log2(desiredNElems))
	}

	numElems := 1 << t.sizePowerOf2
	t.sizeMask = uint64(numElems - 1)
	reset := false
	if t.table != nil && len(t.table) == numElems {
		reset = true
		clear(t.table)
	} else {
		t.table = make([]TableEntry, numElems)
	}
	t.generation = 0

	log.Info().Int("num-elems", numElems).
		Float64("desired-num-elems", desiredNElems).
		Int("estimated-total-memory-bytes", numElems*entrySize).
		Uint64("total-system-memory-bytes", totalMem).
		Bool("reset", reset).
		Msg("transposition-table-size")

	t.created.Store(0)
	t.lookups.Store(0)
	t.hits.Store(0)
	t.t2collisions.Store(0)
}

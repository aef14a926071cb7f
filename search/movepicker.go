package search

import (
	"sort"

	"github.com/pboivin/ferz/chess"
	"github.com/pboivin/ferz/position"
)

// PickerMode selects the staging used by a MovePicker.
type PickerMode uint8

const (
	// MainMode runs the full staging used by the principal-variation
	// search.
	MainMode PickerMode = iota
	// QuiescenceMode yields only the hash move, check evasions, and
	// tacticals whose static exchange does not lose material.
	QuiescenceMode
)

type scoredMove struct {
	move  chess.Move
	score int16
}

// MovePicker enumerates the legal moves of a node lazily, in stages
// ordered to maximize the beta-cutoff rate:
//
//	1. hash move
//	2. check evasions (and nothing else) when in check
//	3. good tacticals, MVV-LVA order, SEE split
//	4. killer 1   5. killer 2   6. counter move
//	7. good quiets, threat-aware order
//	8. bad tacticals   9. bad quiets
//
// No move is yielded twice within one enumeration.
type MovePicker struct {
	pos        *position.Position
	mode       PickerMode
	ttMove     chess.Move
	refutations [3]chess.Move

	threatened chess.Bitboard
}

// NewMovePicker builds a picker for one node. killer1 and killer2 must
// be distinct unless both are MoveNone.
func NewMovePicker(mode PickerMode, pos *position.Position, ttMove, killer1, killer2, counter chess.Move) *MovePicker {
	if killer1 != chess.MoveNone && killer1 == killer2 {
		panic("search: killer slots must be distinct")
	}
	return &MovePicker{
		pos:         pos,
		mode:        mode,
		ttMove:      ttMove,
		refutations: [3]chess.Move{killer1, killer2, counter},
	}
}

func sortByScore(moves []scoredMove) {
	sort.SliceStable(moves, func(i, j int) bool {
		return moves[i].score > moves[j].score
	})
}

// Enumerate drives handler over the staged moves. handler returns false
// to stop (a beta cutoff); Enumerate then returns false. Each stage is
// fully scored and sorted before its first move is yielded.
func (mp *MovePicker) Enumerate(handler func(chess.Move) bool) bool {
	pos := mp.pos

	// Hash move
	if pos.IsLegal(mp.ttMove) {
		if !handler(mp.ttMove) {
			return false
		}
	}

	moves := make([]scoredMove, 0, 64)

	// Evasions
	if pos.InCheck() {
		pos.EnumerateMoves(position.Evasions, func(m chess.Move) bool {
			if m == mp.ttMove {
				return true
			}
			moves = append(moves, scoredMove{m, mp.scoreEvasion(m)})
			return true
		})
		sortByScore(moves)
		for _, sm := range moves {
			if !handler(sm.move) {
				return false
			}
		}
		return true
	}

	// Tacticals
	pos.EnumerateMoves(position.TacticalMoves, func(m chess.Move) bool {
		if m == mp.ttMove {
			return true
		}
		if mp.mode == QuiescenceMode && !pos.SEE(m, 0) {
			return true
		}
		moves = append(moves, scoredMove{m, mp.scoreTactical(m)})
		return true
	})
	sortByScore(moves)

	// Good tacticals; losing captures are deferred to stage 8. For
	// quiescence bad moves are already pruned in move enumeration.
	var badTacticals []scoredMove
	for _, sm := range moves {
		if mp.mode == MainMode && !pos.SEE(sm.move, -50) { // Allow Bishop takes Knight
			badTacticals = append(badTacticals, sm)
			continue
		}
		if !handler(sm.move) {
			return false
		}
	}

	// Stop here for Quiescence
	if mp.mode == QuiescenceMode {
		return true
	}

	// Killer 1, Killer 2, Counter
	for i, refutation := range mp.refutations {
		if refutation == chess.MoveNone || refutation == mp.ttMove || pos.IsTactical(refutation) {
			continue
		}
		if i == 2 && (refutation == mp.refutations[0] || refutation == mp.refutations[1]) {
			continue
		}
		if !pos.IsLegal(refutation) {
			continue
		}
		if !handler(refutation) {
			return false
		}
	}

	// Quiets
	mp.threatened = (pos.Pieces(pos.SideToMove(), chess.Knight)|pos.Pieces(pos.SideToMove(), chess.Bishop))&pos.ThreatenedByPawns() |
		pos.Pieces(pos.SideToMove(), chess.Rook)&pos.ThreatenedByMinors() |
		pos.Pieces(pos.SideToMove(), chess.Queen)&pos.ThreatenedByRooks()

	moves = moves[:0]
	pos.EnumerateMoves(position.QuietMoves, func(m chess.Move) bool {
		if m == mp.ttMove || m == mp.refutations[0] || m == mp.refutations[1] || m == mp.refutations[2] {
			return true
		}
		moves = append(moves, scoredMove{m, mp.scoreQuiet(m)})
		return true
	})
	sortByScore(moves)

	// Good quiets
	var badQuiets []scoredMove
	for _, sm := range moves {
		if sm.score < 0 {
			badQuiets = append(badQuiets, sm)
			continue
		}
		if !handler(sm.move) {
			return false
		}
	}

	// Bad tacticals
	for _, sm := range badTacticals {
		if !handler(sm.move) {
			return false
		}
	}

	// Bad quiets
	for _, sm := range badQuiets {
		if !handler(sm.move) {
			return false
		}
	}

	return true
}

func (mp *MovePicker) scoreEvasion(m chess.Move) int16 {
	if mp.pos.IsCapture(m) {
		return mp.scoreTactical(m)
	}
	return 0
}

// scoreTactical is MVV-LVA: most valuable victim first, cheapest
// attacker breaking ties.
func (mp *MovePicker) scoreTactical(m chess.Move) int16 {
	victim := mp.pos.PieceAt(m.To()).Type()
	attacker := mp.pos.PieceAt(m.From()).Type()
	return int16(chess.PieceValue[victim]) - int16(attacker)
}

// scoreQuiet prefers cheap-piece activity, rewards moving a piece off a
// square attacked by something less valuable (when the destination is
// safe from that attacker class), and nudges checking moves up.
func (mp *MovePicker) scoreQuiet(m chess.Move) int16 {
	pos := mp.pos
	from, to := m.From(), m.To()
	pt := pos.PieceAt(from).Type()
	score := int16(chess.NumPieceTypes) - int16(pt)

	if m.Kind() == chess.PromotionMove {
		// Promotions belong to the tactical stage; a promotion reaching
		// quiet scoring is searched late.
		return -100
	}

	if mp.threatened.Has(from) {
		switch {
		case pt == chess.Queen && !pos.ThreatenedByRooks().Has(to):
			score += 1000
		case pt == chess.Rook && !pos.ThreatenedByMinors().Has(to):
			score += 500
		case (pt == chess.Bishop || pt == chess.Knight) && !pos.ThreatenedByPawns().Has(to):
			score += 300
		}
	}

	us := pos.SideToMove()
	enemyKing := pos.Pieces(us.Other(), chess.King)
	occupied := pos.Occupied()
	switch pt {
	case chess.Pawn:
		if chess.PawnAttacks(us, to)&enemyKing != 0 {
			score += 10
		}
	case chess.Knight:
		if chess.KnightAttacks(to)&enemyKing != 0 {
			score += 10
		}
	case chess.Bishop:
		if chess.BishopAttacks(to, occupied)&enemyKing != 0 {
			score += 10
		}
	case chess.Rook:
		if chess.RookAttacks(to, occupied)&enemyKing != 0 {
			score += 10
		}
	case chess.Queen:
		if chess.QueenAttacks(to, occupied)&enemyKing != 0 {
			score += 10
		}
	}

	return score
}

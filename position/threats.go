package position

import (
	"github.com/pboivin/ferz/chess"
)

// Threat bitboards are the attack sets of the opponent of the side to
// move, cumulative by attacker class. The move picker uses them to spot
// pieces standing on squares attacked by something cheaper.

// ThreatenedByPawns is every square attacked by an enemy pawn.
func (p *Position) ThreatenedByPawns() chess.Bitboard {
	them := p.sideToMove.Other()
	return chess.PawnAttacksBB(them, p.Pieces(them, chess.Pawn))
}

// ThreatenedByMinors adds squares attacked by enemy knights and bishops.
func (p *Position) ThreatenedByMinors() chess.Bitboard {
	them := p.sideToMove.Other()
	occupied := p.Occupied()
	threats := p.ThreatenedByPawns()
	for bb := p.Pieces(them, chess.Knight); bb != 0; {
		threats |= chess.KnightAttacks(bb.PopLSB())
	}
	for bb := p.Pieces(them, chess.Bishop); bb != 0; {
		threats |= chess.BishopAttacks(bb.PopLSB(), occupied)
	}
	return threats
}

// ThreatenedByRooks adds squares attacked by enemy rooks.
func (p *Position) ThreatenedByRooks() chess.Bitboard {
	them := p.sideToMove.Other()
	occupied := p.Occupied()
	threats := p.ThreatenedByMinors()
	for bb := p.Pieces(them, chess.Rook); bb != 0; {
		threats |= chess.RookAttacks(bb.PopLSB(), occupied)
	}
	return threats
}

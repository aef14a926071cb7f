package position

import (
	"github.com/pboivin/ferz/chess"
)

// MoveCategory restricts move enumeration to a class of moves.
type MoveCategory uint8

const (
	AllMoves MoveCategory = iota
	// TacticalMoves are captures and promotions.
	TacticalMoves
	// QuietMoves are everything else, castling included.
	QuietMoves
	// Evasions are the legal moves while in check; the legality filter
	// makes them equivalent to AllMoves.
	Evasions
)

// EnumerateMoves calls fn for every legal move of the given category,
// in generation order. fn returns false to stop early; EnumerateMoves
// returns false in that case.
func (p *Position) EnumerateMoves(cat MoveCategory, fn func(chess.Move) bool) bool {
	var list chess.MoveList
	p.generatePseudo(cat, &list)
	for _, m := range list {
		if !p.isLegalPseudo(m) {
			continue
		}
		if !fn(m) {
			return false
		}
	}
	return true
}

// LegalMoves collects every legal move.
func (p *Position) LegalMoves() chess.MoveList {
	moves := make(chess.MoveList, 0, 64)
	p.EnumerateMoves(AllMoves, func(m chess.Move) bool {
		moves = append(moves, m)
		return true
	})
	return moves
}

// IsLegal reports whether m is legal in the current position. m may
// come from anywhere (hash table, killer slots); it does not need to be
// well-formed for this position.
func (p *Position) IsLegal(m chess.Move) bool {
	if m == chess.MoveNone {
		return false
	}
	pc := p.board[m.From()]
	if pc == chess.NoPiece || pc.Side() != p.sideToMove {
		return false
	}
	found := false
	p.EnumerateMoves(AllMoves, func(gm chess.Move) bool {
		if gm == m {
			found = true
			return false
		}
		return true
	})
	return found
}

// isLegalPseudo verifies that the pseudo-legal move m does not leave our
// king attacked, by making it and inspecting the result.
func (p *Position) isLegalPseudo(m chess.Move) bool {
	us := p.sideToMove
	p.DoMove(m)
	legal := !p.AttackedBy(p.KingSquare(us), p.sideToMove)
	p.UndoMove(m)
	return legal
}

func (p *Position) generatePseudo(cat MoveCategory, list *chess.MoveList) {
	if cat == Evasions {
		cat = AllMoves
	}
	us := p.sideToMove
	occupied := p.Occupied()

	var targets chess.Bitboard
	switch cat {
	case TacticalMoves:
		targets = p.bySide[us.Other()]
	case QuietMoves:
		targets = ^occupied
	default:
		targets = ^p.bySide[us]
	}

	p.genPawnMoves(cat, list)

	for pt := chess.Knight; pt <= chess.King; pt++ {
		for bb := p.Pieces(us, pt); bb != 0; {
			from := bb.PopLSB()
			for att := chess.PieceAttacks(pt, from, occupied) & targets; att != 0; {
				*list = append(*list, chess.NewMove(from, att.PopLSB()))
			}
		}
	}

	if cat != TacticalMoves {
		p.genCastlingMoves(list)
	}
}

func pawnPushDelta(s chess.Side) int {
	if s == chess.White {
		return 8
	}
	return -8
}

func (p *Position) genPawnMoves(cat MoveCategory, list *chess.MoveList) {
	us := p.sideToMove
	them := us.Other()
	pawns := p.Pieces(us, chess.Pawn)
	occupied := p.Occupied()
	enemies := p.bySide[them]
	up := pawnPushDelta(us)

	promoRank := chess.Rank8BB
	doubleRank := chess.Rank2BB
	if us == chess.Black {
		promoRank = chess.Rank1BB
		doubleRank = chess.Rank7BB
	}

	shiftUp := func(b chess.Bitboard) chess.Bitboard {
		if us == chess.White {
			return b << 8
		}
		return b >> 8
	}

	if cat != TacticalMoves {
		singles := shiftUp(pawns) &^ occupied
		for bb := singles &^ promoRank; bb != 0; {
			to := bb.PopLSB()
			*list = append(*list, chess.NewMove(chess.Square(int(to)-up), to))
		}
		doubles := shiftUp(shiftUp(pawns&doubleRank)&^occupied) &^ occupied
		for bb := doubles; bb != 0; {
			to := bb.PopLSB()
			*list = append(*list, chess.NewMove(chess.Square(int(to)-2*up), to))
		}
	}

	if cat != QuietMoves {
		for bb := shiftUp(pawns) &^ occupied & promoRank; bb != 0; {
			to := bb.PopLSB()
			appendPromotions(list, chess.Square(int(to)-up), to)
		}

		for bb := pawns; bb != 0; {
			from := bb.PopLSB()
			for att := chess.PawnAttacks(us, from) & enemies; att != 0; {
				to := att.PopLSB()
				if promoRank.Has(to) {
					appendPromotions(list, from, to)
				} else {
					*list = append(*list, chess.NewMove(from, to))
				}
			}
		}

		if p.epSquare != chess.SquareNone {
			for bb := chess.PawnAttacks(them, p.epSquare) & pawns; bb != 0; {
				*list = append(*list, chess.NewEnPassantMove(bb.PopLSB(), p.epSquare))
			}
		}
	}
}

func appendPromotions(list *chess.MoveList, from, to chess.Square) {
	for _, pt := range [4]chess.PieceType{chess.Queen, chess.Rook, chess.Bishop, chess.Knight} {
		*list = append(*list, chess.NewPromotionMove(from, to, pt))
	}
}

func (p *Position) genCastlingMoves(list *chess.MoveList) {
	us := p.sideToMove
	them := us.Other()
	occupied := p.Occupied()

	kingside, queenside := WhiteKingside, WhiteQueenside
	kingFrom := chess.SquareE1
	if us == chess.Black {
		kingside, queenside = BlackKingside, BlackQueenside
		kingFrom = chess.SquareE8
	}
	if p.castling&(kingside|queenside) == 0 || p.AttackedBy(kingFrom, them) {
		return
	}

	// The transit square is checked here; the destination square is
	// covered by the legality filter.
	if p.castling&kingside != 0 {
		f, g := kingFrom+1, kingFrom+2
		if occupied&(f.BB()|g.BB()) == 0 && !p.AttackedBy(f, them) {
			*list = append(*list, chess.NewCastlingMove(kingFrom, g))
		}
	}
	if p.castling&queenside != 0 {
		d, c, b := kingFrom-1, kingFrom-2, kingFrom-3
		if occupied&(d.BB()|c.BB()|b.BB()) == 0 && !p.AttackedBy(d, them) {
			*list = append(*list, chess.NewCastlingMove(kingFrom, c))
		}
	}
}

// ParseMove parses a move in UCI coordinate notation against the legal
// moves of the current position.
func (p *Position) ParseMove(s string) (chess.Move, error) {
	var found chess.Move
	p.EnumerateMoves(AllMoves, func(m chess.Move) bool {
		if m.String() == s {
			found = m
			return false
		}
		return true
	})
	if found == chess.MoveNone {
		return chess.MoveNone, &IllegalMoveError{Move: s}
	}
	return found, nil
}

// IllegalMoveError reports a move string that matches no legal move.
type IllegalMoveError struct {
	Move string
}

func (e *IllegalMoveError) Error() string {
	return "illegal move " + e.Move
}

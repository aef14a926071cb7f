package position

import (
	"github.com/pboivin/ferz/chess"
)

// SEE reports whether the static exchange evaluation of m meets or
// exceeds threshold centipawns: the material balance after the capture
// sequence on m's destination square, both sides always recapturing
// with their least valuable attacker.
func (p *Position) SEE(m chess.Move, threshold int) bool {
	// Castling cannot lose material; en passant and promotions are rare
	// enough to approximate as an even exchange.
	if m.Kind() != chess.NormalMove {
		return threshold <= 0
	}

	from, to := m.From(), m.To()

	swap := chess.PieceValue[p.board[to].Type()] - threshold
	if swap < 0 {
		return false
	}
	swap = chess.PieceValue[p.board[from].Type()] - swap
	if swap <= 0 {
		return true
	}

	occupied := p.Occupied() ^ from.BB() ^ to.BB()
	stm := p.board[from].Side()
	attackers := p.attackersTo(to, occupied)

	bishops := p.byType[chess.Bishop] | p.byType[chess.Queen]
	rooks := p.byType[chess.Rook] | p.byType[chess.Queen]

	res := 1
	for {
		stm = stm.Other()
		attackers &= occupied
		stmAttackers := attackers & p.bySide[stm]
		if stmAttackers == 0 {
			break
		}
		res ^= 1

		var bb chess.Bitboard
		switch {
		case stmAttackers&p.byType[chess.Pawn] != 0:
			bb = stmAttackers & p.byType[chess.Pawn]
			if swap = chess.PieceValue[chess.Pawn] - swap; swap < res {
				return res != 0
			}
			occupied ^= bb.LSB().BB()
			attackers |= chess.BishopAttacks(to, occupied) & bishops
		case stmAttackers&p.byType[chess.Knight] != 0:
			bb = stmAttackers & p.byType[chess.Knight]
			if swap = chess.PieceValue[chess.Knight] - swap; swap < res {
				return res != 0
			}
			occupied ^= bb.LSB().BB()
		case stmAttackers&p.byType[chess.Bishop] != 0:
			bb = stmAttackers & p.byType[chess.Bishop]
			if swap = chess.PieceValue[chess.Bishop] - swap; swap < res {
				return res != 0
			}
			occupied ^= bb.LSB().BB()
			attackers |= chess.BishopAttacks(to, occupied) & bishops
		case stmAttackers&p.byType[chess.Rook] != 0:
			bb = stmAttackers & p.byType[chess.Rook]
			if swap = chess.PieceValue[chess.Rook] - swap; swap < res {
				return res != 0
			}
			occupied ^= bb.LSB().BB()
			attackers |= chess.RookAttacks(to, occupied) & rooks
		case stmAttackers&p.byType[chess.Queen] != 0:
			bb = stmAttackers & p.byType[chess.Queen]
			if swap = chess.PieceValue[chess.Queen] - swap; swap < res {
				return res != 0
			}
			occupied ^= bb.LSB().BB()
			attackers |= chess.BishopAttacks(to, occupied)&bishops |
				chess.RookAttacks(to, occupied)&rooks
		default:
			// King capture: only stands if the other side has no
			// attacker left to reply with.
			if attackers&^p.bySide[stm] != 0 {
				return res == 0
			}
			return res != 0
		}
	}
	return res != 0
}

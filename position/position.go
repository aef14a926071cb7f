// Package position implements the chess board state: piece placement,
// make/unmake, legality, static exchange evaluation and staged move
// enumeration for the search.
package position

import (
	"fmt"
	"strings"

	"github.com/pboivin/ferz/chess"
	"github.com/pboivin/ferz/zobrist"
)

// Castling rights bits.
const (
	WhiteKingside  uint8 = 1 << iota
	WhiteQueenside
	BlackKingside
	BlackQueenside
)

// castlingMasks[sq] clears the rights that die when a piece moves from
// or to sq.
var castlingMasks [chess.NumSquares]uint8

func init() {
	for sq := range castlingMasks {
		castlingMasks[sq] = 0xF
	}
	castlingMasks[chess.SquareA1] &^= WhiteQueenside
	castlingMasks[chess.SquareH1] &^= WhiteKingside
	castlingMasks[chess.SquareE1] &^= WhiteKingside | WhiteQueenside
	castlingMasks[chess.SquareA8] &^= BlackQueenside
	castlingMasks[chess.SquareH8] &^= BlackKingside
	castlingMasks[chess.SquareE8] &^= BlackKingside | BlackQueenside
}

type undoInfo struct {
	move     chess.Move
	captured chess.Piece
	castling uint8
	epSquare chess.Square
	rule50   int
	key      uint64
}

// Position is a full chess position with enough history to unmake every
// move made on it. DoMove and UndoMove are strict inverses.
type Position struct {
	board      [chess.NumSquares]chess.Piece
	byType     [chess.King + 1]chess.Bitboard
	bySide     [chess.NumSides]chess.Bitboard
	sideToMove chess.Side
	castling   uint8
	epSquare   chess.Square
	rule50     int
	fullmove   int
	key        uint64
	stack      []undoInfo
}

func (p *Position) SideToMove() chess.Side {
	return p.sideToMove
}

func (p *Position) Occupied() chess.Bitboard {
	return p.bySide[chess.White] | p.bySide[chess.Black]
}

// Pieces is the bitboard of side s's pieces of type pt.
func (p *Position) Pieces(s chess.Side, pt chess.PieceType) chess.Bitboard {
	return p.bySide[s] & p.byType[pt]
}

func (p *Position) PieceAt(sq chess.Square) chess.Piece {
	return p.board[sq]
}

func (p *Position) KingSquare(s chess.Side) chess.Square {
	return p.Pieces(s, chess.King).LSB()
}

// HashKey is the Zobrist key of the current position.
func (p *Position) HashKey() uint64 {
	return p.key
}

// PreviousMove is the move that produced the current position, or
// MoveNone at the root of the do/undo history.
func (p *Position) PreviousMove() chess.Move {
	if len(p.stack) == 0 {
		return chess.MoveNone
	}
	return p.stack[len(p.stack)-1].move
}

// Copy returns an independent copy sharing no state with p.
func (p *Position) Copy() *Position {
	c := *p
	c.stack = append([]undoInfo(nil), p.stack...)
	return &c
}

func (p *Position) putPiece(pc chess.Piece, sq chess.Square) {
	p.board[sq] = pc
	b := sq.BB()
	p.byType[pc.Type()] |= b
	p.bySide[pc.Side()] |= b
}

func (p *Position) removePiece(sq chess.Square) {
	pc := p.board[sq]
	b := sq.BB()
	p.byType[pc.Type()] &^= b
	p.bySide[pc.Side()] &^= b
	p.board[sq] = chess.NoPiece
}

func (p *Position) movePiece(from, to chess.Square) {
	pc := p.board[from]
	p.removePiece(from)
	p.putPiece(pc, to)
}

// castlingRookSquares maps the king's destination to the rook's from/to
// squares.
func castlingRookSquares(s chess.Side, kingTo chess.Square) (chess.Square, chess.Square) {
	base := chess.Square(0)
	if s == chess.Black {
		base = chess.SquareA8
	}
	if kingTo.File() == 6 { // kingside
		return base + 7, base + 5
	}
	return base, base + 3 // queenside
}

// epCaptureSquare is the square of the pawn removed by an en-passant
// capture landing on to.
func epCaptureSquare(s chess.Side, to chess.Square) chess.Square {
	if s == chess.White {
		return to - 8
	}
	return to + 8
}

// DoMove applies m, which must be legal (or at least pseudo-legal; the
// legality filter relies on making and unmaking candidate moves).
func (p *Position) DoMove(m chess.Move) {
	us := p.sideToMove
	them := us.Other()
	from, to := m.From(), m.To()
	piece := p.board[from]
	captured := p.board[to]

	u := undoInfo{
		move:     m,
		castling: p.castling,
		epSquare: p.epSquare,
		rule50:   p.rule50,
		key:      p.key,
	}

	if p.epSquare != chess.SquareNone {
		p.key ^= zobrist.EnPassant(p.epSquare.File())
		p.epSquare = chess.SquareNone
	}
	p.rule50++

	switch m.Kind() {
	case chess.CastlingMove:
		rookFrom, rookTo := castlingRookSquares(us, to)
		rook := p.board[rookFrom]
		p.movePiece(from, to)
		p.movePiece(rookFrom, rookTo)
		p.key ^= zobrist.PieceSquare(piece, from) ^ zobrist.PieceSquare(piece, to) ^
			zobrist.PieceSquare(rook, rookFrom) ^ zobrist.PieceSquare(rook, rookTo)
	case chess.EnPassantMove:
		capSq := epCaptureSquare(us, to)
		captured = p.board[capSq]
		p.removePiece(capSq)
		p.movePiece(from, to)
		p.key ^= zobrist.PieceSquare(captured, capSq) ^
			zobrist.PieceSquare(piece, from) ^ zobrist.PieceSquare(piece, to)
		p.rule50 = 0
	default:
		if captured != chess.NoPiece {
			p.removePiece(to)
			p.key ^= zobrist.PieceSquare(captured, to)
			p.rule50 = 0
		}
		p.movePiece(from, to)
		p.key ^= zobrist.PieceSquare(piece, from) ^ zobrist.PieceSquare(piece, to)
		if piece.Type() == chess.Pawn {
			p.rule50 = 0
			if to == from+16 || from == to+16 {
				ep := (from + to) / 2
				p.epSquare = ep
				p.key ^= zobrist.EnPassant(ep.File())
			}
			if m.Kind() == chess.PromotionMove {
				promo := chess.MakePiece(us, m.PromotionPiece())
				p.removePiece(to)
				p.putPiece(promo, to)
				p.key ^= zobrist.PieceSquare(piece, to) ^ zobrist.PieceSquare(promo, to)
			}
		}
	}

	if rights := p.castling & castlingMasks[from] & castlingMasks[to]; rights != p.castling {
		p.key ^= zobrist.Castling(p.castling) ^ zobrist.Castling(rights)
		p.castling = rights
	}

	p.sideToMove = them
	p.key ^= zobrist.SideToMove()
	if them == chess.White {
		p.fullmove++
	}

	u.captured = captured
	p.stack = append(p.stack, u)
}

// UndoMove unmakes m, which must be the most recent move done on p.
func (p *Position) UndoMove(m chess.Move) {
	u := p.stack[len(p.stack)-1]
	if u.move != m {
		panic(fmt.Sprintf("position: UndoMove(%v) does not match last move %v", m, u.move))
	}
	p.stack = p.stack[:len(p.stack)-1]

	them := p.sideToMove
	us := them.Other()
	from, to := m.From(), m.To()

	switch m.Kind() {
	case chess.CastlingMove:
		rookFrom, rookTo := castlingRookSquares(us, to)
		p.movePiece(to, from)
		p.movePiece(rookTo, rookFrom)
	case chess.EnPassantMove:
		p.movePiece(to, from)
		p.putPiece(u.captured, epCaptureSquare(us, to))
	case chess.PromotionMove:
		p.removePiece(to)
		p.putPiece(chess.MakePiece(us, chess.Pawn), from)
		if u.captured != chess.NoPiece {
			p.putPiece(u.captured, to)
		}
	default:
		p.movePiece(to, from)
		if u.captured != chess.NoPiece {
			p.putPiece(u.captured, to)
		}
	}

	p.sideToMove = us
	if them == chess.White {
		p.fullmove--
	}
	p.castling = u.castling
	p.epSquare = u.epSquare
	p.rule50 = u.rule50
	p.key = u.key
}

// attackersTo is the set of pieces of both sides attacking sq, given an
// occupancy that may differ from the board's (for SEE x-rays).
func (p *Position) attackersTo(sq chess.Square, occupied chess.Bitboard) chess.Bitboard {
	return chess.PawnAttacks(chess.White, sq)&p.Pieces(chess.Black, chess.Pawn) |
		chess.PawnAttacks(chess.Black, sq)&p.Pieces(chess.White, chess.Pawn) |
		chess.KnightAttacks(sq)&p.byType[chess.Knight] |
		chess.KingAttacks(sq)&p.byType[chess.King] |
		chess.BishopAttacks(sq, occupied)&(p.byType[chess.Bishop]|p.byType[chess.Queen]) |
		chess.RookAttacks(sq, occupied)&(p.byType[chess.Rook]|p.byType[chess.Queen])
}

// AttackedBy reports whether any piece of side s attacks sq.
func (p *Position) AttackedBy(sq chess.Square, s chess.Side) bool {
	return p.attackersTo(sq, p.Occupied())&p.bySide[s] != 0
}

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	return p.AttackedBy(p.KingSquare(p.sideToMove), p.sideToMove.Other())
}

// IsCapture reports whether m captures a piece (including en passant).
func (p *Position) IsCapture(m chess.Move) bool {
	return m.Kind() == chess.EnPassantMove || p.board[m.To()] != chess.NoPiece
}

// IsTactical reports whether m is a capture or a promotion.
func (p *Position) IsTactical(m chess.Move) bool {
	if m == chess.MoveNone {
		return false
	}
	return p.IsCapture(m) || m.Kind() == chess.PromotionMove
}

// String renders the board from White's point of view, rank 8 first.
func (p *Position) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(&sb, "%d  ", rank+1)
		for file := 0; file < 8; file++ {
			sb.WriteString(p.board[chess.MakeSquare(file, rank)].String())
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\n   a b c d e f g h\n")
	fmt.Fprintf(&sb, "\nfen: %s\nkey: %016x\n", p.FEN(), p.key)
	return sb.String()
}

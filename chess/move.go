package chess

// Move is a 16-bit move encoding:
//
//	bits 0-5   destination square
//	bits 6-11  origin square
//	bits 12-13 promotion piece type minus Knight
//	bits 14-15 move kind
//
// Castling moves carry the king's origin and destination (e1g1 style).
// MoveNone is zero and never equals a real move.
type Move uint16

const MoveNone Move = 0

type MoveKind uint16

const (
	NormalMove    MoveKind = 0 << 14
	PromotionMove MoveKind = 1 << 14
	EnPassantMove MoveKind = 2 << 14
	CastlingMove  MoveKind = 3 << 14
)

func NewMove(from, to Square) Move {
	return Move(from)<<6 | Move(to)
}

func NewPromotionMove(from, to Square, promo PieceType) Move {
	return NewMove(from, to) | Move(PromotionMove) | Move(promo-Knight)<<12
}

func NewEnPassantMove(from, to Square) Move {
	return NewMove(from, to) | Move(EnPassantMove)
}

func NewCastlingMove(from, to Square) Move {
	return NewMove(from, to) | Move(CastlingMove)
}

func (m Move) From() Square {
	return Square(m >> 6 & 63)
}

func (m Move) To() Square {
	return Square(m & 63)
}

func (m Move) Kind() MoveKind {
	return MoveKind(m) & (3 << 14)
}

// PromotionPiece is meaningful only when Kind() == PromotionMove.
func (m Move) PromotionPiece() PieceType {
	return Knight + PieceType(m>>12&3)
}

// String renders the move in UCI coordinate notation, e.g. "e2e4" or
// "e7e8q".
func (m Move) String() string {
	if m == MoveNone {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if m.Kind() == PromotionMove {
		s += m.PromotionPiece().String()
	}
	return s
}

// MaxMoves bounds the number of legal moves in any reachable position.
const MaxMoves = 256

type MoveList []Move

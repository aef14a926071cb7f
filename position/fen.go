package position

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pboivin/ferz/chess"
	"github.com/pboivin/ferz/zobrist"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var pieceFromChar = map[byte]chess.Piece{
	'P': chess.MakePiece(chess.White, chess.Pawn),
	'N': chess.MakePiece(chess.White, chess.Knight),
	'B': chess.MakePiece(chess.White, chess.Bishop),
	'R': chess.MakePiece(chess.White, chess.Rook),
	'Q': chess.MakePiece(chess.White, chess.Queen),
	'K': chess.MakePiece(chess.White, chess.King),
	'p': chess.MakePiece(chess.Black, chess.Pawn),
	'n': chess.MakePiece(chess.Black, chess.Knight),
	'b': chess.MakePiece(chess.Black, chess.Bishop),
	'r': chess.MakePiece(chess.Black, chess.Rook),
	'q': chess.MakePiece(chess.Black, chess.Queen),
	'k': chess.MakePiece(chess.Black, chess.King),
}

// StartingPosition returns the standard initial position.
func StartingPosition() *Position {
	p, err := FromFEN(StartFEN)
	if err != nil {
		panic(err)
	}
	return p
}

// FromFEN parses a FEN string into a fresh Position.
func FromFEN(fen string) (*Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return nil, fmt.Errorf("fen %q: want at least 4 fields, got %d", fen, len(fields))
	}

	p := &Position{epSquare: chess.SquareNone, fullmove: 1}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return nil, fmt.Errorf("fen %q: want 8 ranks, got %d", fen, len(ranks))
	}
	for ri, rankStr := range ranks {
		rank := 7 - ri
		file := 0
		for i := 0; i < len(rankStr); i++ {
			c := rankStr[i]
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			pc, ok := pieceFromChar[c]
			if !ok || file > 7 {
				return nil, fmt.Errorf("fen %q: bad rank %q", fen, rankStr)
			}
			p.putPiece(pc, chess.MakeSquare(file, rank))
			file++
		}
		if file != 8 {
			return nil, fmt.Errorf("fen %q: rank %q does not fill 8 files", fen, rankStr)
		}
	}
	if p.Pieces(chess.White, chess.King) == 0 || p.Pieces(chess.Black, chess.King) == 0 {
		return nil, fmt.Errorf("fen %q: both kings must be present", fen)
	}

	switch fields[1] {
	case "w":
		p.sideToMove = chess.White
	case "b":
		p.sideToMove = chess.Black
	default:
		return nil, fmt.Errorf("fen %q: bad side to move %q", fen, fields[1])
	}

	if fields[2] != "-" {
		for i := 0; i < len(fields[2]); i++ {
			switch fields[2][i] {
			case 'K':
				p.castling |= WhiteKingside
			case 'Q':
				p.castling |= WhiteQueenside
			case 'k':
				p.castling |= BlackKingside
			case 'q':
				p.castling |= BlackQueenside
			default:
				return nil, fmt.Errorf("fen %q: bad castling rights %q", fen, fields[2])
			}
		}
	}

	if fields[3] != "-" {
		sq, err := chess.SquareFromString(fields[3])
		if err != nil {
			return nil, fmt.Errorf("fen %q: %w", fen, err)
		}
		p.epSquare = sq
	}

	if len(fields) > 4 {
		n, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("fen %q: bad halfmove clock: %w", fen, err)
		}
		p.rule50 = n
	}
	if len(fields) > 5 {
		n, err := strconv.Atoi(fields[5])
		if err != nil {
			return nil, fmt.Errorf("fen %q: bad fullmove number: %w", fen, err)
		}
		p.fullmove = n
	}

	p.key = p.computeKey()
	return p, nil
}

func (p *Position) computeKey() uint64 {
	var key uint64
	for sq := chess.Square(0); sq < chess.NumSquares; sq++ {
		if pc := p.board[sq]; pc != chess.NoPiece {
			key ^= zobrist.PieceSquare(pc, sq)
		}
	}
	key ^= zobrist.Castling(p.castling)
	if p.epSquare != chess.SquareNone {
		key ^= zobrist.EnPassant(p.epSquare.File())
	}
	if p.sideToMove == chess.Black {
		key ^= zobrist.SideToMove()
	}
	return key
}

// FEN renders the position as a FEN string.
func (p *Position) FEN() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			pc := p.board[chess.MakeSquare(file, rank)]
			if pc == chess.NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteString(pc.String())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if p.sideToMove == chess.White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	if p.castling == 0 {
		sb.WriteByte('-')
	} else {
		for _, c := range []struct {
			bit uint8
			ch  byte
		}{{WhiteKingside, 'K'}, {WhiteQueenside, 'Q'}, {BlackKingside, 'k'}, {BlackQueenside, 'q'}} {
			if p.castling&c.bit != 0 {
				sb.WriteByte(c.ch)
			}
		}
	}

	fmt.Fprintf(&sb, " %s %d %d", p.epSquare, p.rule50, p.fullmove)
	return sb.String()
}

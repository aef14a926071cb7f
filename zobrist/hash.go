// Package zobrist holds the random keys used to hash chess positions.
// https://en.wikipedia.org/wiki/Zobrist_hashing
package zobrist

import (
	"lukechampine.com/frand"

	"github.com/pboivin/ferz/chess"
)

const bignum = 1<<63 - 2

var (
	pieceSquare [chess.NumPieces][chess.NumSquares]uint64
	sideToMove  uint64
	castling    [16]uint64
	enPassant   [8]uint64
)

func init() {
	for p := range pieceSquare {
		for sq := range pieceSquare[p] {
			pieceSquare[p][sq] = frand.Uint64n(bignum) + 1
		}
	}
	sideToMove = frand.Uint64n(bignum) + 1
	for i := range castling {
		castling[i] = frand.Uint64n(bignum) + 1
	}
	for i := range enPassant {
		enPassant[i] = frand.Uint64n(bignum) + 1
	}
}

// PieceSquare is the key for piece p sitting on sq.
func PieceSquare(p chess.Piece, sq chess.Square) uint64 {
	return pieceSquare[p][sq]
}

// SideToMove is toggled whenever the turn passes.
func SideToMove() uint64 {
	return sideToMove
}

// Castling is keyed on the full rights mask so that any rights change is
// a single xor-out, xor-in pair.
func Castling(rights uint8) uint64 {
	return castling[rights]
}

// EnPassant is keyed on the file of the en-passant square.
func EnPassant(file int) uint64 {
	return enPassant[file]
}

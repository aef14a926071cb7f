package position

import (
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/pboivin/ferz/chess"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func TestFENRoundTrip(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2",
		"6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1",
	}
	for _, fen := range fens {
		p, err := FromFEN(fen)
		assert.NoError(t, err, fen)
		assert.Equal(t, fen, p.FEN())
	}
}

func TestFENErrors(t *testing.T) {
	badFENs := []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1",      // 7 ranks
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq -", // bad side
		"rnbqkbnr/pppppppp/9/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -", // rank overflow
		"8/8/8/8/8/8/8/8 w - - 0 1",                            // no kings
	}
	for _, fen := range badFENs {
		_, err := FromFEN(fen)
		assert.Error(t, err, fen)
	}
}

func TestStartingPosition(t *testing.T) {
	is := is.New(t)
	p := StartingPosition()
	is.Equal(p.SideToMove(), chess.White)
	is.Equal(p.Occupied().Count(), 32)
	is.Equal(p.PieceAt(chess.SquareE1), chess.MakePiece(chess.White, chess.King))
	is.True(!p.InCheck())
	is.Equal(p.PreviousMove(), chess.MoveNone)
}

func TestKeyMatchesRecompute(t *testing.T) {
	is := is.New(t)
	p := StartingPosition()
	for _, ms := range []string{"e2e4", "c7c5", "g1f3", "d7d6", "f1b5", "c8d7", "e1g1"} {
		m, err := p.ParseMove(ms)
		is.NoErr(err)
		p.DoMove(m)
		is.Equal(p.HashKey(), p.computeKey())
	}
}

package position

import (
	"fmt"
	"io"

	"github.com/pboivin/ferz/chess"
)

// Perft counts the leaf nodes of the legal move tree to the given
// depth. It is the standard cross-check for move generation and
// make/unmake correctness.
func (p *Position) Perft(depth int) uint64 {
	if depth <= 0 {
		return 1
	}
	var total uint64
	p.EnumerateMoves(AllMoves, func(m chess.Move) bool {
		if depth == 1 {
			total++
		} else {
			p.DoMove(m)
			total += p.Perft(depth - 1)
			p.UndoMove(m)
		}
		return true
	})
	return total
}

// Divide prints the perft subtotal under each root move, then returns
// the overall total.
func (p *Position) Divide(w io.Writer, depth int) uint64 {
	var total uint64
	p.EnumerateMoves(AllMoves, func(m chess.Move) bool {
		var n uint64 = 1
		if depth > 1 {
			p.DoMove(m)
			n = p.Perft(depth - 1)
			p.UndoMove(m)
		}
		total += n
		fmt.Fprintf(w, "%v: %d\n", m, n)
		return true
	})
	return total
}

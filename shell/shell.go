// Package shell implements the interactive console. It speaks the UCI
// text protocol plus a few convenience commands (board display, perft).
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"

	"github.com/pboivin/ferz/chess"
	"github.com/pboivin/ferz/config"
	"github.com/pboivin/ferz/eval"
	"github.com/pboivin/ferz/position"
	"github.com/pboivin/ferz/search"
)

type ShellController struct {
	l      *readline.Instance
	cfg    *config.Config
	engine *search.Engine

	searchDone chan struct{}
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func showMessage(msg string, w io.Writer) {
	io.WriteString(w, msg)
	io.WriteString(w, "\n")
}

func NewShellController(cfg *config.Config) *ShellController {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[31mferz>\033[0m ",
		HistoryFile:     cfg.HistoryFile,
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}

	sc := &ShellController{l: l, cfg: cfg, engine: search.NewEngine()}
	sc.engine.ResizeHash(cfg.HashFraction)
	sc.engine.OnSearchProgress(sc.printProgress)
	sc.engine.OnSearchFinish(sc.printBestMove)
	return sc
}

func (sc *ShellController) showMessage(msg string) {
	showMessage(msg, sc.l.Stdout())
}

func (sc *ShellController) showError(err error) {
	showMessage("Error: "+err.Error(), sc.l.Stderr())
}

// formatScore renders a score the UCI way: centipawns, or moves to
// mate from the engine's point of view.
func formatScore(s chess.Score) string {
	if s.IsMate() {
		movesToMate := (int(chess.ScoreMate-s) + 1) / 2
		if s < 0 {
			movesToMate = -(int(chess.ScoreMate+s) + 1) / 2
		}
		return fmt.Sprintf("mate %d", movesToMate)
	}
	return fmt.Sprintf("cp %d", s)
}

func (sc *ShellController) printProgress(ev search.SearchEvent) {
	line := fmt.Sprintf("info depth %d score %s nodes %d time %d hashfull %d",
		ev.Depth, formatScore(ev.Score), ev.Nodes, ev.Elapsed, ev.Hashfull)
	if len(ev.PV) > 0 {
		line += " pv " + search.PVLine{Moves: ev.PV}.String()
	}
	sc.showMessage(line)
}

func (sc *ShellController) printBestMove(ev search.SearchEvent) {
	best := chess.MoveNone
	if len(ev.PV) > 0 {
		best = ev.PV[0]
	}
	sc.showMessage("bestmove " + best.String())
}

func (sc *ShellController) handlePosition(fields []string) error {
	if len(fields) == 0 {
		return errors.New("position needs startpos or fen")
	}

	var pos *position.Position
	var err error
	movesAt := -1

	switch fields[0] {
	case "startpos":
		pos = position.StartingPosition()
		movesAt = 1
	case "fen":
		fenFields := fields[1:]
		for i, f := range fenFields {
			if f == "moves" {
				fenFields = fenFields[:i]
				break
			}
		}
		pos, err = position.FromFEN(strings.Join(fenFields, " "))
		if err != nil {
			return err
		}
		movesAt = 1 + len(fenFields)
	default:
		return fmt.Errorf("unknown position mode %q", fields[0])
	}

	if movesAt < len(fields) && fields[movesAt] == "moves" {
		for _, ms := range fields[movesAt+1:] {
			m, err := pos.ParseMove(ms)
			if err != nil {
				return err
			}
			pos.DoMove(m)
		}
	}

	sc.engine.SetPosition(pos)
	return nil
}

func (sc *ShellController) handleGo(fields []string) error {
	if sc.engine.IsSearching() {
		return errors.New("already searching")
	}

	limits := search.SearchLimits{}
	explicit := false
	for i := 0; i < len(fields); i++ {
		intArg := func() (int64, error) {
			if i+1 >= len(fields) {
				return 0, fmt.Errorf("%s needs a value", fields[i])
			}
			n, err := strconv.ParseInt(fields[i+1], 10, 64)
			i++
			return n, err
		}
		var n int64
		var err error
		switch fields[i] {
		case "depth":
			if n, err = intArg(); err == nil {
				limits.MaxDepth = int(n)
			}
		case "nodes":
			if n, err = intArg(); err == nil {
				limits.MaxNodes = uint64(n)
			}
		case "movetime":
			if n, err = intArg(); err == nil {
				limits.MaxTime = n
			}
		case "wtime":
			if n, err = intArg(); err == nil {
				limits.TimeLeft[chess.White] = n
			}
		case "btime":
			if n, err = intArg(); err == nil {
				limits.TimeLeft[chess.Black] = n
			}
		case "winc":
			if n, err = intArg(); err == nil {
				limits.Increment[chess.White] = n
			}
		case "binc":
			if n, err = intArg(); err == nil {
				limits.Increment[chess.Black] = n
			}
		case "movestogo":
			if n, err = intArg(); err == nil {
				limits.MovesToGo = int(n)
			}
		case "searchmoves":
			for ; i+1 < len(fields); i++ {
				m, merr := sc.engine.Position().ParseMove(fields[i+1])
				if merr != nil {
					return merr
				}
				limits.SearchMoves = append(limits.SearchMoves, m)
			}
		case "infinite":
			// no limits; stop command ends the search
		default:
			err = fmt.Errorf("unknown go argument %q", fields[i])
		}
		if err != nil {
			return err
		}
		explicit = true
	}

	if !explicit {
		limits.MaxDepth = sc.cfg.DefaultDepth
	}

	sc.searchDone = make(chan struct{})
	go func() {
		defer close(sc.searchDone)
		if err := sc.engine.Search(context.Background(), limits); err != nil {
			sc.showError(err)
		}
	}()
	return nil
}

func (sc *ShellController) handlePerft(fields []string, divide bool) error {
	depth := 5
	if len(fields) > 0 {
		var err error
		if depth, err = strconv.Atoi(fields[0]); err != nil {
			return err
		}
	}
	pos := sc.engine.Position()
	sc.showMessage(fmt.Sprintf("perft depth=%d", depth))
	begin := time.Now()
	var n uint64
	if divide {
		n = pos.Divide(sc.l.Stdout(), depth)
	} else {
		n = pos.Perft(depth)
	}
	elapsed := time.Since(begin).Milliseconds()
	if elapsed == 0 {
		elapsed = 1
	}
	sc.showMessage(fmt.Sprintf("Nodes: %d", n))
	sc.showMessage(fmt.Sprintf("NPS: %d", n*1000/uint64(elapsed)))
	sc.showMessage(fmt.Sprintf("Time: %dms", elapsed))
	return nil
}

func (sc *ShellController) waitForSearch() {
	if sc.searchDone != nil {
		<-sc.searchDone
		sc.searchDone = nil
	}
}

func (sc *ShellController) modeSwitch(line string, sig chan os.Signal) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "uci":
		sc.showMessage("id name Ferz")
		sc.showMessage("id author pboivin")
		sc.showMessage("uciok")

	case "isready":
		sc.showMessage("readyok")

	case "ucinewgame":
		sc.engine.ClearHash()
		sc.engine.SetPosition(position.StartingPosition())

	case "position":
		if err := sc.handlePosition(fields[1:]); err != nil {
			sc.showError(err)
		}

	case "go":
		if err := sc.handleGo(fields[1:]); err != nil {
			sc.showError(err)
		}

	case "stop":
		sc.engine.Stop()
		sc.waitForSearch()

	case "d":
		sc.showMessage(sc.engine.Position().String())

	case "eval":
		sc.showMessage(fmt.Sprintf("static eval: %d", eval.Evaluate(sc.engine.Position())))

	case "perft":
		if err := sc.handlePerft(fields[1:], false); err != nil {
			sc.showError(err)
		}

	case "divide":
		if err := sc.handlePerft(fields[1:], true); err != nil {
			sc.showError(err)
		}

	case "help":
		usage(sc.l.Stderr())

	case "bye", "exit", "quit":
		sc.engine.Stop()
		sc.waitForSearch()
		sig <- syscall.SIGINT

	default:
		log.Debug().Msgf("you said: %v", strconv.Quote(line))
	}
	return nil
}

func usage(w io.Writer) {
	io.WriteString(w, "commands:\n")
	io.WriteString(w, "uci / isready / ucinewgame - UCI handshake\n")
	io.WriteString(w, "position [startpos|fen <fen>] [moves ...] - set the root position\n")
	io.WriteString(w, "go [depth n] [nodes n] [movetime ms] [wtime/btime/winc/binc ms] [movestogo n] [searchmoves ...] - search\n")
	io.WriteString(w, "stop - stop the running search\n")
	io.WriteString(w, "d - display the board\n")
	io.WriteString(w, "eval - static evaluation of the position\n")
	io.WriteString(w, "perft <n> / divide <n> - move generation node counts\n")
	io.WriteString(w, "quit - exit\n")
}

func (sc *ShellController) Loop(sig chan os.Signal) {
	defer sc.l.Close()

	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				sig <- syscall.SIGINT
				break
			}
			continue
		} else if err == io.EOF {
			sig <- syscall.SIGINT
			break
		}
		line = strings.TrimSpace(line)

		if err := sc.modeSwitch(line, sig); err != nil {
			log.Error().Err(err).Msg("")
			break
		}
		if strings.HasPrefix(line, "quit") || strings.HasPrefix(line, "exit") || strings.HasPrefix(line, "bye") {
			break
		}
	}
	log.Debug().Msgf("Exiting readline loop...")
}

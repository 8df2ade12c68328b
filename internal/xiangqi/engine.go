package xiangqi

import "fmt"

// Engine is a mutable game session: a board plus whose turn it is.
// Red moves first.
type Engine struct {
	Board Board
	Turn  int8
}

// NewEngine returns a fresh game at the standard starting position.
func NewEngine() *Engine {
	return &Engine{Board: NewBoard(), Turn: Red}
}

// MoveRecord is the wire/persisted shape of one applied ply.
type MoveRecord struct {
	From  Square
	To    Square
	Piece byte
}

// Replay rebuilds an Engine by applying a recorded move list from the
// standard starting position. It returns an error if any recorded
// move is not legal against the position it was played from — this
// should never happen for moves the engine itself accepted, and
// signals corrupted persisted state if it does.
func Replay(moves []MoveRecord) (*Engine, error) {
	e := NewEngine()
	for i, rec := range moves {
		mv := e.FindLegalMove(rec.From.R, rec.From.C, rec.To.R, rec.To.C)
		if mv == nil {
			return nil, fmt.Errorf("replay move %d (%v -> %v) is not legal", i, rec.From, rec.To)
		}
		e.ApplyMove(*mv)
	}
	return e, nil
}

// FindLegalMove returns the legal move from (fr,fc) to (tr,tc) for the
// side to move, or nil if none exists (illegal, blocked, out of
// bounds, or leaves the mover in check).
func (e *Engine) FindLegalMove(fr, fc, tr, tc int) *Move {
	from, to := Square{fr, fc}, Square{tr, tc}
	if !from.InBounds() || !to.InBounds() {
		return nil
	}
	for _, m := range LegalMoves(&e.Board, e.Turn) {
		if m.From == from && m.To == to {
			mv := m
			return &mv
		}
	}
	return nil
}

// ApplyMove applies m to the board and flips the turn. Callers must
// only pass moves obtained from FindLegalMove/LegalMoves against the
// current position.
func (e *Engine) ApplyMove(m Move) {
	applyMove(&e.Board, m)
	e.Turn = -e.Turn
}

// IsChecked reports whether color's king is currently attacked.
func (e *Engine) IsChecked(color int8) bool {
	return IsChecked(&e.Board, color)
}

// LegalMoves returns color's legal moves in the current position.
func (e *Engine) LegalMoves(color int8) []Move {
	return LegalMoves(&e.Board, color)
}

// Outcome describes why a game ended.
type Outcome struct {
	Over      bool
	Winner    int8 // 0 if not over
	Checkmate bool
	Stalemate bool
}

// TerminalAfterMove evaluates whether the side to move (e.Turn, i.e.
// the opponent of whoever just moved) has been checkmated or
// stalemated. mover is the color that just played.
func (e *Engine) TerminalAfterMove(mover int8) Outcome {
	opponent := -mover
	if len(e.LegalMoves(opponent)) > 0 {
		return Outcome{}
	}
	if e.IsChecked(opponent) {
		return Outcome{Over: true, Winner: mover, Checkmate: true}
	}
	return Outcome{Over: true, Winner: mover, Stalemate: true}
}

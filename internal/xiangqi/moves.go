package xiangqi

// Move is one applied or candidate ply.
type Move struct {
	From    Square
	To      Square
	Piece   byte
	Capture *Piece // nil if the destination was empty
}

// PseudoMoves returns every move color's pieces can make, ignoring
// whether the mover's own king would be left in check.
func PseudoMoves(b *Board, color int8) []Move {
	var moves []Move
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			p := b.At(r, c)
			if p == nil || p.Color != color {
				continue
			}
			moves = append(moves, pieceMoves(b, Square{r, c}, p)...)
		}
	}
	return moves
}

func pieceMoves(b *Board, from Square, p *Piece) []Move {
	switch p.Type {
	case Rook:
		return slideMoves(b, from, p)
	case Cannon:
		return cannonMoves(b, from, p)
	case Horse:
		return horseMoves(b, from, p)
	case Elephant:
		return elephantMoves(b, from, p)
	case Advisor:
		return advisorMoves(b, from, p)
	case King:
		return kingMoves(b, from, p)
	case Pawn:
		return pawnMoves(b, from, p)
	}
	return nil
}

func buildMove(b *Board, from, to Square, p *Piece) (Move, bool) {
	if !to.InBounds() {
		return Move{}, false
	}
	target := b.At(to.R, to.C)
	if target != nil && target.Color == p.Color {
		return Move{}, false
	}
	return Move{From: from, To: to, Piece: p.Type, Capture: target}, true
}

var orthogonal = []Square{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

func slideMoves(b *Board, from Square, p *Piece) []Move {
	var moves []Move
	for _, d := range orthogonal {
		r, c := from.R+d.R, from.C+d.C
		for (Square{r, c}).InBounds() {
			to := Square{r, c}
			target := b.At(r, c)
			if target == nil {
				moves = append(moves, Move{From: from, To: to, Piece: p.Type})
			} else {
				if target.Color != p.Color {
					moves = append(moves, Move{From: from, To: to, Piece: p.Type, Capture: target})
				}
				break
			}
			r += d.R
			c += d.C
		}
	}
	return moves
}

func cannonMoves(b *Board, from Square, p *Piece) []Move {
	var moves []Move
	for _, d := range orthogonal {
		r, c := from.R+d.R, from.C+d.C
		screened := false
		for (Square{r, c}).InBounds() {
			to := Square{r, c}
			target := b.At(r, c)
			if !screened {
				if target == nil {
					moves = append(moves, Move{From: from, To: to, Piece: p.Type})
				} else {
					screened = true
				}
			} else {
				if target != nil {
					if target.Color != p.Color {
						moves = append(moves, Move{From: from, To: to, Piece: p.Type, Capture: target})
					}
					break
				}
			}
			r += d.R
			c += d.C
		}
	}
	return moves
}

// horseDeltas pairs each destination offset with the leg offset whose
// square, when occupied, hobbles that move.
var horseDeltas = []struct{ leg, dest Square }{
	{Square{-1, 0}, Square{-2, -1}},
	{Square{-1, 0}, Square{-2, 1}},
	{Square{1, 0}, Square{2, -1}},
	{Square{1, 0}, Square{2, 1}},
	{Square{0, -1}, Square{-1, -2}},
	{Square{0, -1}, Square{1, -2}},
	{Square{0, 1}, Square{-1, 2}},
	{Square{0, 1}, Square{1, 2}},
}

func horseMoves(b *Board, from Square, p *Piece) []Move {
	var moves []Move
	for _, hd := range horseDeltas {
		leg := Square{from.R + hd.leg.R, from.C + hd.leg.C}
		if b.At(leg.R, leg.C) != nil {
			continue // hobbled
		}
		to := Square{from.R + hd.dest.R, from.C + hd.dest.C}
		if m, ok := buildMove(b, from, to, p); ok {
			moves = append(moves, m)
		}
	}
	return moves
}

var elephantDeltas = []Square{{-2, -2}, {-2, 2}, {2, -2}, {2, 2}}

func elephantMoves(b *Board, from Square, p *Piece) []Move {
	var moves []Move
	for _, d := range elephantDeltas {
		eye := Square{from.R + d.R/2, from.C + d.C/2}
		to := Square{from.R + d.R, from.C + d.C}
		if !to.InBounds() || !onOwnSide(p.Color, to.R) {
			continue
		}
		if b.At(eye.R, eye.C) != nil {
			continue // blocked eye
		}
		if m, ok := buildMove(b, from, to, p); ok {
			moves = append(moves, m)
		}
	}
	return moves
}

var advisorDeltas = []Square{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}

func advisorMoves(b *Board, from Square, p *Piece) []Move {
	var moves []Move
	for _, d := range advisorDeltas {
		to := Square{from.R + d.R, from.C + d.C}
		if !inPalace(p.Color, to.R, to.C) {
			continue
		}
		if m, ok := buildMove(b, from, to, p); ok {
			moves = append(moves, m)
		}
	}
	return moves
}

func kingMoves(b *Board, from Square, p *Piece) []Move {
	var moves []Move
	for _, d := range orthogonal {
		to := Square{from.R + d.R, from.C + d.C}
		if !inPalace(p.Color, to.R, to.C) {
			continue
		}
		if m, ok := buildMove(b, from, to, p); ok {
			moves = append(moves, m)
		}
	}
	return moves
}

func pawnMoves(b *Board, from Square, p *Piece) []Move {
	var moves []Move
	forward := -1
	if p.Color == Red {
		forward = 1
	}
	candidates := []Square{{from.R - forward, from.C}}
	if !onOwnSide(p.Color, from.R) {
		candidates = append(candidates, Square{from.R, from.C - 1}, Square{from.R, from.C + 1})
	}
	for _, to := range candidates {
		if m, ok := buildMove(b, from, to, p); ok {
			moves = append(moves, m)
		}
	}
	return moves
}

// findKing locates color's king.
func findKing(b *Board, color int8) (Square, bool) {
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			if p := b.At(r, c); p != nil && p.Type == King && p.Color == color {
				return Square{r, c}, true
			}
		}
	}
	return Square{}, false
}

// IsChecked reports whether color's king is currently attacked, either
// by a normal piece move or by the flying-general rule (both kings
// share a file with nothing between them).
func IsChecked(b *Board, color int8) bool {
	king, ok := findKing(b, color)
	if !ok {
		return false
	}

	opp, ok := findKing(b, -color)
	if ok && opp.C == king.C {
		clear := true
		lo, hi := king.R, opp.R
		if lo > hi {
			lo, hi = hi, lo
		}
		for r := lo + 1; r < hi; r++ {
			if b.At(r, king.C) != nil {
				clear = false
				break
			}
		}
		if clear {
			return true
		}
	}

	for _, m := range PseudoMoves(b, -color) {
		if m.To == king {
			return true
		}
	}
	return false
}

// LegalMoves returns color's pseudo-legal moves filtered to those that
// do not leave color's own king in check.
func LegalMoves(b *Board, color int8) []Move {
	pseudo := PseudoMoves(b, color)
	legal := make([]Move, 0, len(pseudo))
	for _, m := range pseudo {
		trial := b.Clone()
		applyMove(&trial, m)
		if !IsChecked(&trial, color) {
			legal = append(legal, m)
		}
	}
	return legal
}

// applyMove mutates b in place, without touching turn state.
func applyMove(b *Board, m Move) {
	p := b.At(m.From.R, m.From.C)
	b[m.To.R][m.To.C] = p
	b[m.From.R][m.From.C] = nil
}

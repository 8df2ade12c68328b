package roomstate

// BoardSize is the Gomoku board dimension (19x19).
const BoardSize = 19

// GomokuMove is one placed stone.
type GomokuMove struct {
	R int  `json:"r"`
	C int  `json:"c"`
	P Role `json:"p"`
}

// Gomoku is the persisted record for one Gomoku room.
type Gomoku struct {
	Seats
	Moves []GomokuMove `json:"moves"`
}

// NewGomoku returns a default, empty Gomoku room.
func NewGomoku() *Gomoku {
	return &Gomoku{Seats: NewSeats()}
}

// Reset clears the board and hands the shared seat bookkeeping back to
// its post-reset defaults.
func (g *Gomoku) Reset() {
	g.Moves = nil
	g.ResetGame()
}

// Occupied reports whether (r, c) already holds a stone.
func (g *Gomoku) Occupied(r, c int) bool {
	for _, m := range g.Moves {
		if m.R == r && m.C == c {
			return true
		}
	}
	return false
}

var directions = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// FiveInARow reports whether the stone just placed at (r, c) by p
// completes a line of five or more in any of the four axes.
func (g *Gomoku) FiveInARow(r, c int, p Role) bool {
	occ := make(map[[2]int]Role, len(g.Moves))
	for _, m := range g.Moves {
		occ[[2]int{m.R, m.C}] = m.P
	}
	occ[[2]int{r, c}] = p

	for _, d := range directions {
		count := 1
		for i := 1; ; i++ {
			rr, cc := r+d[0]*i, c+d[1]*i
			if occ[[2]int{rr, cc}] != p {
				break
			}
			count++
		}
		for i := 1; ; i++ {
			rr, cc := r-d[0]*i, c-d[1]*i
			if occ[[2]int{rr, cc}] != p {
				break
			}
			count++
		}
		if count >= 5 {
			return true
		}
	}
	return false
}

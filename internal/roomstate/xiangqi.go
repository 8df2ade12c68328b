package roomstate

import "github.com/RoseWrightdev/gameroomd/internal/xiangqi"

// XiangqiMove is one applied ply, in the wire/persisted shape.
type XiangqiMove struct {
	From xiangqi.Square `json:"from"`
	To   xiangqi.Square `json:"to"`
	P    Role           `json:"p"`
}

// Xiangqi is the persisted record for one Xiangqi room. SeatA is red
// (moves first), SeatB is black.
type Xiangqi struct {
	Seats
	Moves []XiangqiMove `json:"moves"`
}

// NewXiangqi returns a default, empty Xiangqi room.
func NewXiangqi() *Xiangqi {
	return &Xiangqi{Seats: NewSeats()}
}

// Reset clears the move history and hands the shared seat bookkeeping
// back to its post-reset defaults.
func (x *Xiangqi) Reset() {
	x.Moves = nil
	x.ResetGame()
}

// RoleColor maps a seat to its xiangqi.Color.
func RoleColor(role Role) int8 {
	if role == SeatA {
		return xiangqi.Red
	}
	return xiangqi.Black
}

// ColorRole is the inverse of RoleColor.
func ColorRole(color int8) Role {
	if color == xiangqi.Red {
		return SeatA
	}
	return SeatB
}

// Engine replays the persisted move list into a fresh rule-engine
// instance. It is the single source of truth for legality checking —
// the room actor never tracks board state itself.
func (x *Xiangqi) Engine() (*xiangqi.Engine, error) {
	recs := make([]xiangqi.MoveRecord, len(x.Moves))
	for i, m := range x.Moves {
		recs[i] = xiangqi.MoveRecord{From: m.From, To: m.To, Piece: 0}
	}
	return xiangqi.Replay(recs)
}

package seatalloc

import (
	"testing"

	"github.com/RoseWrightdev/gameroomd/internal/roomstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialMinter() NewToken {
	n := 0
	return func() string {
		n++
		return "tok" + string(rune('0'+n))
	}
}

func TestAllocateFreshRoomAssignsAThenB(t *testing.T) {
	s := roomstate.NewSeats()
	mint := sequentialMinter()

	r1 := Allocate(&s, "", WantAuto, Online{}, 1000, 180000, mint)
	require.Equal(t, roomstate.SeatA, r1.Role)
	assert.True(t, r1.Minted)

	r2 := Allocate(&s, "", WantAuto, Online{A: 1}, 1000, 180000, mint)
	require.Equal(t, roomstate.SeatB, r2.Role)
	assert.True(t, r2.Minted)

	r3 := Allocate(&s, "", WantAuto, Online{A: 1, B: 1}, 1000, 180000, mint)
	assert.Equal(t, roomstate.Spectator, r3.Role)
}

func TestAllocateTokenMatchReconnects(t *testing.T) {
	s := roomstate.NewSeats()
	mint := sequentialMinter()
	r1 := Allocate(&s, "", WantA, Online{}, 1000, 180000, mint)

	r2 := Allocate(&s, r1.Token, WantAuto, Online{A: 1}, 5000, 180000, mint)
	assert.Equal(t, roomstate.SeatA, r2.Role)
	assert.Equal(t, r1.Token, r2.Token)
	assert.False(t, r2.Minted)
	assert.Equal(t, int64(5000), s.LastSeenA)
}

func TestAllocateExplicitSpectateNeverTakesASeat(t *testing.T) {
	s := roomstate.NewSeats()
	mint := sequentialMinter()
	r := Allocate(&s, "", WantSpectate, Online{}, 1000, 180000, mint)
	assert.Equal(t, roomstate.Spectator, r.Role)
	assert.Equal(t, "", s.TokenA)
}

func TestAllocateCannotStealWhileHolderOnline(t *testing.T) {
	s := roomstate.NewSeats()
	mint := sequentialMinter()
	r1 := Allocate(&s, "", WantA, Online{}, 1000, 180000, mint)
	require.Equal(t, roomstate.SeatA, r1.Role)

	r2 := Allocate(&s, "", WantA, Online{A: 1}, 1000+200000, 180000, mint)
	assert.Equal(t, roomstate.Spectator, r2.Role, "seat A is still occupied by a live connection")
}

func TestAllocateStealsAfterGraceExpires(t *testing.T) {
	s := roomstate.NewSeats()
	mint := sequentialMinter()
	r1 := Allocate(&s, "", WantA, Online{}, 1000, 180000, mint)
	oldToken := r1.Token

	// Exactly at the grace boundary: still not stealable.
	r2 := Allocate(&s, "", WantA, Online{}, 1000+180000, 180000, mint)
	assert.Equal(t, roomstate.Spectator, r2.Role)

	// Strictly past the grace boundary: stealable.
	r3 := Allocate(&s, "", WantA, Online{}, 1000+180001, 180000, mint)
	require.Equal(t, roomstate.SeatA, r3.Role)
	assert.True(t, r3.Stolen)
	assert.NotEqual(t, oldToken, r3.Token)

	// The old token no longer grants any seat.
	assert.Equal(t, roomstate.Spectator, s.RoleFromToken(oldToken))
}

func TestParseWantAliases(t *testing.T) {
	assert.Equal(t, WantA, ParseWant("black", "black", "white"))
	assert.Equal(t, WantA, ParseWant("b", "black", "white"))
	assert.Equal(t, WantB, ParseWant("white", "black", "white"))
	assert.Equal(t, WantSpectate, ParseWant("watch", "black", "white"))
	assert.Equal(t, WantAuto, ParseWant("", "black", "white"))
	assert.Equal(t, WantA, ParseWant("red", "red", "black"))
	assert.Equal(t, WantB, ParseWant("black", "red", "black"))
}

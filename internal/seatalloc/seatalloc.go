// Package seatalloc implements the seat-allocation algorithm: given a
// presented token and a seat preference, it decides whether an
// incoming connection reconnects to an existing seat, takes a free
// seat, steals an abandoned one, or falls back to spectating.
package seatalloc

import (
	"strings"

	"github.com/RoseWrightdev/gameroomd/internal/roomstate"
)

// Want is a normalized seat preference.
type Want int

const (
	WantAuto Want = iota
	WantA
	WantB
	WantSpectate
)

// ParseWant normalizes the raw query-string want aliases. Unrecognized
// values fall back to WantAuto. seatAName/seatBName select the
// game-specific aliases for "A" and "B" (e.g. "black"/"white" for
// Gomoku, "red"/"black" for Xiangqi).
func ParseWant(raw, seatAName, seatBName string) Want {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return WantAuto
	case "a", "1", seatAName, string(seatAName[0]):
		return WantA
	case "b", "2", seatBName, string(seatBName[0]):
		return WantB
	case "spectate", "watch", "0":
		return WantSpectate
	default:
		return WantAuto
	}
}

// Online reports the current connected-socket count for each playable
// seat, as observed by the fan-out set. The allocator needs this to
// decide whether a seat is genuinely idle (no live holder) before
// letting the grace period apply.
type Online struct {
	A, B int
}

// Result is the allocator's decision.
type Result struct {
	Role    roomstate.Role
	Token   string // the seat's token after allocation; "" for spectators
	Minted  bool   // true if a new token was minted (fresh seat or steal)
	Stolen  bool   // true if this allocation reclaimed an abandoned seat
}

// NewToken mints a fresh opaque seat token. Swapped out by callers in
// tests that need deterministic tokens.
type NewToken func() string

// Allocate runs the seat-allocation algorithm described by the seat
// record's current state. now is in unix millis; graceMillis is a
// duration in milliseconds.
func Allocate(s *roomstate.Seats, presentedToken string, want Want, online Online, now, graceMillis int64, mint NewToken) Result {
	// 1. Token match: reconnecting to a seat you already hold always wins.
	if presentedToken != "" {
		if role := s.RoleFromToken(presentedToken); role != roomstate.Spectator {
			s.Touch(role, now)
			return Result{Role: role, Token: presentedToken}
		}
	}

	if want == WantSpectate {
		return Result{Role: roomstate.Spectator}
	}

	canSteal := func(role roomstate.Role) bool {
		tok := s.Token(role)
		if tok == "" {
			return false
		}
		onlineCount := online.A
		if role == roomstate.SeatB {
			onlineCount = online.B
		}
		if onlineCount != 0 {
			return false
		}
		return now-s.LastSeen(role) > graceMillis
	}

	tryAssign := func(role roomstate.Role) (Result, bool) {
		tok := s.Token(role)
		stolen := false
		if tok != "" {
			if !canSteal(role) {
				return Result{}, false
			}
			stolen = true
		}
		newToken := mint()
		s.SetToken(role, newToken, now)
		return Result{Role: role, Token: newToken, Minted: true, Stolen: stolen}, true
	}

	if want == WantA || want == WantAuto {
		if res, ok := tryAssign(roomstate.SeatA); ok {
			return res
		}
	}
	if want == WantB || want == WantAuto {
		if res, ok := tryAssign(roomstate.SeatB); ok {
			return res
		}
	}

	return Result{Role: roomstate.Spectator}
}

// Package gameroom implements the per-room actors (C4): Gomoku,
// Xiangqi, and Relay. Each actor is a single-writer state machine —
// guarded by its own mutex, the same discipline the teacher's Room
// uses — that owns one roomstate record, a fanout.Set of attached
// sockets, and a store.Store for durability.
package gameroom

import (
	"context"
	"time"

	"github.com/RoseWrightdev/gameroomd/internal/fanout"
	"github.com/RoseWrightdev/gameroomd/internal/logging"
	"github.com/RoseWrightdev/gameroomd/internal/metrics"
	"github.com/RoseWrightdev/gameroomd/internal/roomstate"
	"github.com/RoseWrightdev/gameroomd/internal/seatalloc"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clock returns the current time as unix millis. A field rather than
// a direct time.Now() call so seat-steal/grace tests can control time.
type Clock func() int64

func systemClock() int64 { return time.Now().UnixMilli() }

func mintToken() string { return uuid.NewString() }

// GraceDefault is the default idle threshold before a seat becomes
// stealable, matching the spec's GRACE constant. The router does not
// use it: it builds actors with config.RoomGraceSeconds (default 180).
const GraceDefault = 3 * time.Minute

// admitSeat runs the seat allocator against seats, applies duplicate-
// connection suppression for the resulting token, and stamps c's
// attachment. It returns the assigned role.
//
// Suppression ordering follows (a) admit -> (b) update record -> (c)
// close the prior same-token socket, so the evicted socket's close
// handler always observes a record that already names the new
// connection.
func admitSeat(ctx context.Context, kind string, seats *roomstate.Seats, clients *fanout.Set, c *fanout.Conn, token, want string, seatAName, seatBName string, now int64, grace time.Duration) roomstate.Role {
	a, b := clients.OnlineByRole()
	w := seatalloc.ParseWant(want, seatAName, seatBName)
	res := seatalloc.Allocate(seats, token, w, seatalloc.Online{A: a, B: b}, now, grace.Milliseconds(), mintToken)

	c.SetAttachment(fanout.Attachment{Kind: kind, Role: res.Role, Token: res.Token})

	if res.Role != roomstate.Spectator {
		if prior := clients.FindByToken(res.Token); prior != nil && prior != c {
			logging.Info(ctx, "evicting duplicate connection for seat token",
				zap.String("kind", kind), zap.Int("role", int(res.Role)))
			prior.CloseWithReason(1000, "reconnect")
		}
	}
	if res.Stolen {
		metrics.SeatSteals.WithLabelValues(kind).Inc()
	}
	return res.Role
}

// isPlayer is the single authority predicate used by every actor: a
// connection may only act as a player if its attachment token still
// names a live seat in the current record.
func isPlayer(role roomstate.Role) bool {
	return role == roomstate.SeatA || role == roomstate.SeatB
}

func votesPayload(seats *roomstate.Seats) map[string]any {
	return map[string]any{
		"votes": map[string]any{
			"rematch": map[string]bool{"A": seats.Rematch[roomstate.SeatA], "B": seats.Rematch[roomstate.SeatB]},
			"swap":    map[string]bool{"A": seats.Swap[roomstate.SeatA], "B": seats.Swap[roomstate.SeatB]},
		},
	}
}

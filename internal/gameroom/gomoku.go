package gameroom

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/RoseWrightdev/gameroomd/internal/fanout"
	"github.com/RoseWrightdev/gameroomd/internal/logging"
	"github.com/RoseWrightdev/gameroomd/internal/metrics"
	"github.com/RoseWrightdev/gameroomd/internal/protocol"
	"github.com/RoseWrightdev/gameroomd/internal/roomstate"
	"github.com/RoseWrightdev/gameroomd/internal/store"
	"go.uber.org/zap"
)

// Gomoku is the five-in-a-row room actor (C4, Gomoku variant). SeatA
// is black (opens), SeatB is white.
type Gomoku struct {
	id      string
	st      store.Store
	clients *fanout.Set
	clock   Clock
	grace   time.Duration

	mu    sync.Mutex
	state *roomstate.Gomoku
}

func NewGomoku(id string, st store.Store, grace time.Duration) *Gomoku {
	g := &Gomoku{
		id:      id,
		st:      st,
		clients: fanout.NewSet(),
		clock:   systemClock,
		grace:   grace,
		state:   roomstate.NewGomoku(),
	}
	g.load(context.Background())
	return g
}

func (g *Gomoku) Kind() string { return "gomoku" }

func (g *Gomoku) storeKey() string { return "gm_room:" + g.id }

func (g *Gomoku) load(ctx context.Context) {
	raw, err := g.st.Load(ctx, g.storeKey())
	if err != nil {
		logging.Error(ctx, "failed to load gomoku room state", zap.Error(err))
		return
	}
	if raw == nil {
		return
	}
	var s roomstate.Gomoku
	if err := json.Unmarshal(raw, &s); err != nil {
		logging.Error(ctx, "failed to unmarshal gomoku room state, using defaults", zap.Error(err))
		return
	}
	g.state = &s
}

func (g *Gomoku) persist(ctx context.Context) {
	raw, err := json.Marshal(g.state)
	if err != nil {
		logging.Error(ctx, "failed to marshal gomoku room state", zap.Error(err))
		return
	}
	if err := g.st.Put(ctx, g.storeKey(), raw); err != nil {
		logging.Error(ctx, "failed to persist gomoku room state", zap.Error(err))
	}
}

func (g *Gomoku) seatsPayload() map[string]any {
	return map[string]any{"seats": map[string]bool{
		"black": g.state.TokenA != "",
		"white": g.state.TokenB != "",
	}}
}

// HandleOpen admits a new connection: allocate a seat, suppress any
// duplicate, persist, and send init + presence/seats broadcasts.
func (g *Gomoku) HandleOpen(c *fanout.Conn, token, want string) {
	ctx := context.Background()
	g.mu.Lock()
	defer g.mu.Unlock()

	g.clients.Add(c)
	now := g.clock()
	role := admitSeat(ctx, "gomoku", &g.state.Seats, g.clients, c, token, want, "black", "white", now, g.grace)
	g.persist(ctx)

	att := c.GetAttachment()
	fanout.SendTo(c, protocol.Out("init", map[string]any{
		"you":      role,
		"token":    att.Token,
		"moves":    g.state.Moves,
		"current":  g.state.Current,
		"gameOver": g.state.GameOver,
		"winner":   g.state.Winner,
		"reason":   g.state.Reason,
		"seats":    g.seatsPayload()["seats"],
		"votes":    votesPayload(&g.state.Seats)["votes"],
	}))

	g.clients.Broadcast(protocol.Out("presence", map[string]any{"n": g.clients.Len()}))
	g.clients.Broadcast(protocol.Out("gm_seats", g.seatsPayload()))
	metrics.IncConnection()
	metrics.RoomPresence.WithLabelValues(g.id).Set(float64(g.clients.Len()))
}

// HandleClose refreshes the departing seat's last-seen stamp. The seat
// itself is not released — only grace-expired steal or explicit leave
// frees it.
func (g *Gomoku) HandleClose(c *fanout.Conn) {
	ctx := context.Background()
	g.mu.Lock()
	defer g.mu.Unlock()

	g.clients.Remove(c)
	att := c.GetAttachment()
	if role := g.state.RoleFromToken(att.Token); isPlayer(role) {
		g.state.Touch(role, g.clock())
	}
	g.persist(ctx)

	g.clients.Broadcast(protocol.Out("presence", map[string]any{"n": g.clients.Len()}))
	g.clients.Broadcast(protocol.Out("gm_seats", g.seatsPayload()))
	metrics.RoomPresence.WithLabelValues(g.id).Set(float64(g.clients.Len()))
}

// HandleMessage dispatches one inbound frame by type.
func (g *Gomoku) HandleMessage(c *fanout.Conn, raw []byte) {
	ctx := context.Background()
	start := time.Now()
	in, err := protocol.DecodeInbound(raw)
	if err != nil {
		metrics.EventsTotal.WithLabelValues("unknown", "malformed").Inc()
		return
	}
	defer func() {
		metrics.MoveProcessingDuration.WithLabelValues("gomoku").Observe(time.Since(start).Seconds())
	}()

	g.mu.Lock()
	defer g.mu.Unlock()

	att := c.GetAttachment()
	role := g.state.RoleFromToken(att.Token)

	switch in.Type {
	case "move":
		g.handleMove(ctx, c, role, in.Raw)
	case "timeout":
		g.handleTimeout(ctx, c, role)
	case "rematch":
		g.handleRematch(ctx, c, role)
	case "swap":
		g.handleSwap(ctx, c, role)
	case "gm_leave":
		g.handleLeave(ctx, c, role)
	default:
		metrics.EventsTotal.WithLabelValues(in.Type, "ignored").Inc()
	}
}

type movePayload struct {
	R int `json:"r"`
	C int `json:"c"`
}

func (g *Gomoku) handleMove(ctx context.Context, c *fanout.Conn, role roomstate.Role, raw json.RawMessage) {
	if !isPlayer(role) {
		g.reject(c, "观战不能落子", "move")
		return
	}
	if g.state.GameOver {
		g.reject(c, "对局已结束", "move")
		return
	}
	if g.state.Current != role {
		g.reject(c, "还没轮到你", "move")
		return
	}

	var mv movePayload
	if err := json.Unmarshal(raw, &mv); err != nil {
		g.reject(c, "非法落子", "move")
		return
	}
	if mv.R < 0 || mv.R >= roomstate.BoardSize || mv.C < 0 || mv.C >= roomstate.BoardSize {
		g.reject(c, "越界", "move")
		return
	}
	if g.state.Occupied(mv.R, mv.C) {
		g.reject(c, "该位置已有棋子", "move")
		return
	}

	g.state.Moves = append(g.state.Moves, roomstate.GomokuMove{R: mv.R, C: mv.C, P: role})
	g.state.Touch(role, g.clock())
	g.state.ClearVotes()

	fields := map[string]any{"r": mv.R, "c": mv.C, "p": role}
	if g.state.FiveInARow(mv.R, mv.C, role) {
		g.state.GameOver = true
		g.state.Winner = role
		g.state.Reason = "五连"
		fields["win"] = role
		fields["reason"] = g.state.Reason
	} else {
		g.state.Current = role.Opponent()
		fields["next"] = g.state.Current
	}

	g.persist(ctx)
	metrics.EventsTotal.WithLabelValues("move", "accepted").Inc()
	g.clients.Broadcast(protocol.Out("move", fields))
}

func (g *Gomoku) handleTimeout(ctx context.Context, c *fanout.Conn, role roomstate.Role) {
	if !isPlayer(role) || g.state.GameOver || g.state.Current != role {
		g.reject(c, "无法判定超时", "timeout")
		return
	}
	g.state.GameOver = true
	g.state.Winner = role.Opponent()
	g.state.Reason = "超时判负"
	g.persist(ctx)
	metrics.EventsTotal.WithLabelValues("timeout", "accepted").Inc()
	g.clients.Broadcast(protocol.Out("move", map[string]any{"r": -1, "c": -1, "win": g.state.Winner, "reason": g.state.Reason}))
}

func (g *Gomoku) handleRematch(ctx context.Context, c *fanout.Conn, role roomstate.Role) {
	if !isPlayer(role) || !g.state.GameOver {
		g.reject(c, "当前无法重开", "rematch")
		return
	}
	bothReady := g.state.Vote("rematch", role)
	g.persist(ctx)
	metrics.EventsTotal.WithLabelValues("rematch", "accepted").Inc()

	if bothReady {
		g.state.Reset()
		g.persist(ctx)
		g.clients.Broadcast(protocol.Out("state", map[string]any{
			"moves": g.state.Moves, "current": g.state.Current, "gameOver": g.state.GameOver,
		}))
		g.clients.Broadcast(protocol.Out("votes", votesPayload(&g.state.Seats)))
		return
	}
	g.clients.Broadcast(protocol.Out("rematch_pending", nil))
	g.clients.Broadcast(protocol.Out("votes", votesPayload(&g.state.Seats)))
}

func (g *Gomoku) handleSwap(ctx context.Context, c *fanout.Conn, role roomstate.Role) {
	if !isPlayer(role) || !(g.state.GameOver || len(g.state.Moves) == 0) {
		g.reject(c, "对局已开始，无法换座", "swap")
		return
	}
	bothReady := g.state.Vote("swap", role)
	g.persist(ctx)
	metrics.EventsTotal.WithLabelValues("swap", "accepted").Inc()

	if bothReady {
		g.state.SwapSeats()
		g.state.Reset()
		g.persist(ctx)
		g.clients.Broadcast(protocol.Out("gm_seats", g.seatsPayload()))
		for _, conn := range g.clients.Snapshot() {
			att := conn.GetAttachment()
			newRole := g.state.RoleFromToken(att.Token)
			conn.SetAttachment(fanout.Attachment{Kind: att.Kind, Role: newRole, Token: att.Token})
			fanout.SendTo(conn, protocol.Out("role", map[string]any{"you": newRole}))
		}
		g.clients.Broadcast(protocol.Out("state", map[string]any{
			"moves": g.state.Moves, "current": g.state.Current, "gameOver": g.state.GameOver,
		}))
		g.clients.Broadcast(protocol.Out("votes", votesPayload(&g.state.Seats)))
		return
	}
	g.clients.Broadcast(protocol.Out("swap_pending", nil))
	g.clients.Broadcast(protocol.Out("votes", votesPayload(&g.state.Seats)))
}

func (g *Gomoku) handleLeave(ctx context.Context, c *fanout.Conn, role roomstate.Role) {
	att := c.GetAttachment()
	if !isPlayer(role) || g.state.Token(role) != att.Token {
		return
	}
	g.state.SetToken(role, "", 0)
	g.persist(ctx)
	metrics.EventsTotal.WithLabelValues("gm_leave", "accepted").Inc()
	g.clients.Broadcast(protocol.Out("gm_seats", g.seatsPayload()))
	g.clients.Broadcast(protocol.Out("presence", map[string]any{"n": g.clients.Len()}))
}

func (g *Gomoku) reject(c *fanout.Conn, reason, eventType string) {
	metrics.EventsTotal.WithLabelValues(eventType, "rejected").Inc()
	fanout.SendTo(c, protocol.Reject(reason, false))
}

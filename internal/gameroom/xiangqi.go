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
	"github.com/RoseWrightdev/gameroomd/internal/xiangqi"
	"go.uber.org/zap"
)

// Xiangqi is the Chinese-chess room actor (C4, Xiangqi variant). SeatA
// is red (moves first), SeatB is black. Board legality is delegated
// entirely to internal/xiangqi; this actor only replays persisted
// moves into a fresh engine and validates the next ply against it.
type Xiangqi struct {
	id      string
	st      store.Store
	clients *fanout.Set
	clock   Clock
	grace   time.Duration

	mu    sync.Mutex
	state *roomstate.Xiangqi
}

func NewXiangqi(id string, st store.Store, grace time.Duration) *Xiangqi {
	x := &Xiangqi{
		id:      id,
		st:      st,
		clients: fanout.NewSet(),
		clock:   systemClock,
		grace:   grace,
		state:   roomstate.NewXiangqi(),
	}
	x.load(context.Background())
	return x
}

func (x *Xiangqi) Kind() string { return "xiangqi" }

func (x *Xiangqi) storeKey() string { return "xq_room:" + x.id }

func (x *Xiangqi) load(ctx context.Context) {
	raw, err := x.st.Load(ctx, x.storeKey())
	if err != nil {
		logging.Error(ctx, "failed to load xiangqi room state", zap.Error(err))
		return
	}
	if raw == nil {
		return
	}
	var s roomstate.Xiangqi
	if err := json.Unmarshal(raw, &s); err != nil {
		logging.Error(ctx, "failed to unmarshal xiangqi room state, using defaults", zap.Error(err))
		return
	}
	if _, err := s.Engine(); err != nil {
		logging.Error(ctx, "persisted xiangqi move history failed to replay, discarding", zap.Error(err))
		return
	}
	x.state = &s
}

func (x *Xiangqi) persist(ctx context.Context) {
	raw, err := json.Marshal(x.state)
	if err != nil {
		logging.Error(ctx, "failed to marshal xiangqi room state", zap.Error(err))
		return
	}
	if err := x.st.Put(ctx, x.storeKey(), raw); err != nil {
		logging.Error(ctx, "failed to persist xiangqi room state", zap.Error(err))
	}
}

func (x *Xiangqi) seatsPayload() map[string]any {
	return map[string]any{"seats": map[string]bool{
		"red":   x.state.TokenA != "",
		"black": x.state.TokenB != "",
	}}
}

// initPayload builds the full resync frame: current move list, turn,
// and terminal state. Sent on open and after any rejected move so the
// client's local board never drifts from the engine's.
func (x *Xiangqi) initPayload(role roomstate.Role, token string) map[string]any {
	return map[string]any{
		"you":      role,
		"token":    token,
		"moves":    x.state.Moves,
		"current":  x.state.Current,
		"gameOver": x.state.GameOver,
		"winner":   x.state.Winner,
		"reason":   x.state.Reason,
		"seats":    x.seatsPayload()["seats"],
		"votes":    votesPayload(&x.state.Seats)["votes"],
	}
}

func (x *Xiangqi) HandleOpen(c *fanout.Conn, token, want string) {
	ctx := context.Background()
	x.mu.Lock()
	defer x.mu.Unlock()

	x.clients.Add(c)
	now := x.clock()
	role := admitSeat(ctx, "xiangqi", &x.state.Seats, x.clients, c, token, want, "red", "black", now, x.grace)
	x.persist(ctx)

	att := c.GetAttachment()
	fanout.SendTo(c, protocol.Out("init", x.initPayload(role, att.Token)))

	x.clients.Broadcast(protocol.Out("presence", map[string]any{"n": x.clients.Len()}))
	x.clients.Broadcast(protocol.Out("xq_seats", x.seatsPayload()))
	metrics.IncConnection()
	metrics.RoomPresence.WithLabelValues(x.id).Set(float64(x.clients.Len()))
}

func (x *Xiangqi) HandleClose(c *fanout.Conn) {
	ctx := context.Background()
	x.mu.Lock()
	defer x.mu.Unlock()

	x.clients.Remove(c)
	att := c.GetAttachment()
	if role := x.state.RoleFromToken(att.Token); isPlayer(role) {
		x.state.Touch(role, x.clock())
	}
	x.persist(ctx)

	x.clients.Broadcast(protocol.Out("presence", map[string]any{"n": x.clients.Len()}))
	x.clients.Broadcast(protocol.Out("xq_seats", x.seatsPayload()))
	metrics.RoomPresence.WithLabelValues(x.id).Set(float64(x.clients.Len()))
}

func (x *Xiangqi) HandleMessage(c *fanout.Conn, raw []byte) {
	ctx := context.Background()
	start := time.Now()
	in, err := protocol.DecodeInbound(raw)
	if err != nil {
		metrics.EventsTotal.WithLabelValues("unknown", "malformed").Inc()
		return
	}
	defer func() {
		metrics.MoveProcessingDuration.WithLabelValues("xiangqi").Observe(time.Since(start).Seconds())
	}()

	x.mu.Lock()
	defer x.mu.Unlock()

	att := c.GetAttachment()
	role := x.state.RoleFromToken(att.Token)

	switch in.Type {
	case "xq_move":
		x.handleMove(ctx, c, role, att.Token, in.Raw)
	case "xq_timeout":
		x.handleTimeout(ctx, c, role)
	case "xq_rematch":
		x.handleRematch(ctx, c, role)
	case "xq_swap":
		x.handleSwap(ctx, c, role)
	case "xq_leave":
		x.handleLeave(ctx, c, role)
	default:
		metrics.EventsTotal.WithLabelValues(in.Type, "ignored").Inc()
	}
}

type xqMovePayload struct {
	From xiangqi.Square `json:"from"`
	To   xiangqi.Square `json:"to"`
}

// handleMove validates and applies one ply. Any rejection resyncs the
// sender with a fresh init frame, since by the time a client's local
// prediction diverges from the engine there is no smaller repair than
// a full state push.
func (x *Xiangqi) handleMove(ctx context.Context, c *fanout.Conn, role roomstate.Role, token string, raw json.RawMessage) {
	if !isPlayer(role) {
		x.resync(c, role, token, "观战不能落子")
		return
	}
	if x.state.GameOver {
		x.resync(c, role, token, "对局已结束")
		return
	}
	if x.state.Current != role {
		x.resync(c, role, token, "还没轮到你")
		return
	}

	var mv xqMovePayload
	if err := json.Unmarshal(raw, &mv); err != nil {
		x.resync(c, role, token, "非法走法")
		return
	}

	engine, err := x.state.Engine()
	if err != nil {
		logging.Error(ctx, "xiangqi engine replay failed mid-session", zap.Error(err))
		x.resync(c, role, token, "棋局状态异常")
		return
	}

	wantColor := roomstate.RoleColor(role)
	if engine.Turn != wantColor {
		x.resync(c, role, token, "还没轮到你")
		return
	}

	legal := engine.FindLegalMove(mv.From.R, mv.From.C, mv.To.R, mv.To.C)
	if legal == nil {
		x.resync(c, role, token, "非法走法")
		return
	}

	engine.ApplyMove(*legal)
	x.state.Moves = append(x.state.Moves, roomstate.XiangqiMove{From: mv.From, To: mv.To, P: role})
	x.state.Touch(role, x.clock())
	x.state.ClearVotes()

	fields := map[string]any{"from": mv.From, "to": mv.To, "p": role}
	out := engine.TerminalAfterMove(wantColor)
	if out.Over {
		x.state.GameOver = true
		x.state.Winner = roomstate.ColorRole(out.Winner)
		switch {
		case out.Checkmate:
			x.state.Reason = "绝杀"
		case out.Stalemate:
			x.state.Reason = "困毙"
		}
		fields["win"] = x.state.Winner
		fields["reason"] = x.state.Reason
	} else {
		x.state.Current = role.Opponent()
		fields["next"] = x.state.Current
		fields["check"] = engine.IsChecked(-wantColor)
	}

	x.persist(ctx)
	metrics.EventsTotal.WithLabelValues("xq_move", "accepted").Inc()
	x.clients.Broadcast(protocol.Out("xq_move", fields))
	if out.Over {
		x.clients.Broadcast(protocol.Out("xq_over", map[string]any{"winner": x.state.Winner, "reason": x.state.Reason}))
	}
}

func (x *Xiangqi) resync(c *fanout.Conn, role roomstate.Role, token, reason string) {
	metrics.EventsTotal.WithLabelValues("xq_move", "rejected").Inc()
	fanout.SendTo(c, protocol.Reject(reason, true))
	fanout.SendTo(c, protocol.Out("init", x.initPayload(role, token)))
}

func (x *Xiangqi) handleTimeout(ctx context.Context, c *fanout.Conn, role roomstate.Role) {
	if !isPlayer(role) || x.state.GameOver || x.state.Current != role {
		x.reject(c, "无法判定超时", "xq_timeout")
		return
	}
	x.state.GameOver = true
	x.state.Winner = role.Opponent()
	x.state.Reason = "超时判负"
	x.persist(ctx)
	metrics.EventsTotal.WithLabelValues("xq_timeout", "accepted").Inc()
	x.clients.Broadcast(protocol.Out("xq_move", map[string]any{"win": x.state.Winner, "reason": x.state.Reason}))
	x.clients.Broadcast(protocol.Out("xq_over", map[string]any{"winner": x.state.Winner, "reason": x.state.Reason}))
}

func (x *Xiangqi) handleRematch(ctx context.Context, c *fanout.Conn, role roomstate.Role) {
	if !isPlayer(role) || !x.state.GameOver {
		x.reject(c, "当前无法重开", "xq_rematch")
		return
	}
	bothReady := x.state.Vote("rematch", role)
	x.persist(ctx)
	metrics.EventsTotal.WithLabelValues("xq_rematch", "accepted").Inc()

	if bothReady {
		x.state.Reset()
		x.persist(ctx)
		x.clients.Broadcast(protocol.Out("xq_reset", map[string]any{
			"reason": x.state.Reason, "current": x.state.Current, "moves": x.state.Moves,
		}))
		x.clients.Broadcast(protocol.Out("xq_votes", votesPayload(&x.state.Seats)))
		return
	}
	x.clients.Broadcast(protocol.Out("rematch_pending", nil))
	x.clients.Broadcast(protocol.Out("xq_votes", votesPayload(&x.state.Seats)))
}

func (x *Xiangqi) handleSwap(ctx context.Context, c *fanout.Conn, role roomstate.Role) {
	if !isPlayer(role) || !(x.state.GameOver || len(x.state.Moves) == 0) {
		x.reject(c, "对局已开始，无法换座", "xq_swap")
		return
	}
	bothReady := x.state.Vote("swap", role)
	x.persist(ctx)
	metrics.EventsTotal.WithLabelValues("xq_swap", "accepted").Inc()

	if bothReady {
		x.state.SwapSeats()
		x.state.Reset()
		x.persist(ctx)
		x.clients.Broadcast(protocol.Out("xq_seats", x.seatsPayload()))
		for _, conn := range x.clients.Snapshot() {
			att := conn.GetAttachment()
			newRole := x.state.RoleFromToken(att.Token)
			conn.SetAttachment(fanout.Attachment{Kind: att.Kind, Role: newRole, Token: att.Token})
			fanout.SendTo(conn, protocol.Out("role", map[string]any{"you": newRole}))
		}
		x.clients.Broadcast(protocol.Out("xq_reset", map[string]any{
			"reason": x.state.Reason, "current": x.state.Current, "moves": x.state.Moves,
		}))
		x.clients.Broadcast(protocol.Out("xq_votes", votesPayload(&x.state.Seats)))
		return
	}
	x.clients.Broadcast(protocol.Out("swap_pending", nil))
	x.clients.Broadcast(protocol.Out("xq_votes", votesPayload(&x.state.Seats)))
}

func (x *Xiangqi) handleLeave(ctx context.Context, c *fanout.Conn, role roomstate.Role) {
	att := c.GetAttachment()
	if !isPlayer(role) || x.state.Token(role) != att.Token {
		return
	}
	x.state.SetToken(role, "", 0)
	x.persist(ctx)
	metrics.EventsTotal.WithLabelValues("xq_leave", "accepted").Inc()
	x.clients.Broadcast(protocol.Out("xq_seats", x.seatsPayload()))
	x.clients.Broadcast(protocol.Out("presence", map[string]any{"n": x.clients.Len()}))
}

func (x *Xiangqi) reject(c *fanout.Conn, reason, eventType string) {
	metrics.EventsTotal.WithLabelValues(eventType, "rejected").Inc()
	fanout.SendTo(c, protocol.Reject(reason, false))
}

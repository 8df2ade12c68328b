package gameroom

import (
	"encoding/json"
	"testing"

	"github.com/RoseWrightdev/gameroomd/internal/fanout"
	"github.com/RoseWrightdev/gameroomd/internal/roomstate"
	"github.com/RoseWrightdev/gameroomd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGomoku() *Gomoku {
	return NewGomoku("t1", store.NewMemory(), GraceDefault)
}

func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

func TestGomokuFirstTwoConnectionsGetOpposingSeats(t *testing.T) {
	g := newTestGomoku()
	connA, sockA := newTestConn(t, g, "gomoku")
	g.HandleOpen(connA, "", "auto")
	connB, sockB := newTestConn(t, g, "gomoku")
	g.HandleOpen(connB, "", "auto")

	waitForCount(t, func() int { return len(sockA.messages()) }, 1)
	waitForCount(t, func() int { return len(sockB.messages()) }, 1)

	initA := sockA.lastOfType("init")
	initB := sockB.lastOfType("init")
	require.NotNil(t, initA)
	require.NotNil(t, initB)
	assert.Equal(t, float64(roomstate.SeatA), initA["you"])
	assert.Equal(t, float64(roomstate.SeatB), initB["you"])
}

func TestGomokuMoveAlternatesTurnAndBroadcasts(t *testing.T) {
	g := newTestGomoku()
	connA, sockA := newTestConn(t, g, "gomoku")
	g.HandleOpen(connA, "", "auto")
	connB, sockB := newTestConn(t, g, "gomoku")
	g.HandleOpen(connB, "", "auto")

	tokenA := sockA.lastOfType("init")["token"].(string)
	connA.SetAttachment(fanout.Attachment{Kind: "gomoku", Role: roomstate.SeatA, Token: tokenA})

	g.HandleMessage(connA, mustJSON(map[string]any{"type": "move", "r": 5, "c": 5}))

	mv := waitForType(t, sockB, "move")
	assert.Equal(t, float64(5), mv["r"])
	assert.Equal(t, float64(roomstate.SeatB), mv["next"])
}

func TestGomokuSpectatorCannotMove(t *testing.T) {
	g := newTestGomoku()
	conn, sock := newTestConn(t, g, "gomoku")
	g.HandleOpen(conn, "", "spectate")

	g.HandleMessage(conn, mustJSON(map[string]any{"type": "move", "r": 1, "c": 1}))

	assert.NotNil(t, waitForType(t, sock, "reject"))
}

func TestGomokuOutOfBoundsMoveRejected(t *testing.T) {
	g := newTestGomoku()
	conn, sock := newTestConn(t, g, "gomoku")
	g.HandleOpen(conn, "", "auto")
	tok := sock.lastOfType("init")["token"].(string)
	conn.SetAttachment(fanout.Attachment{Kind: "gomoku", Role: roomstate.SeatA, Token: tok})

	g.HandleMessage(conn, mustJSON(map[string]any{"type": "move", "r": -1, "c": 0}))

	assert.NotNil(t, waitForType(t, sock, "reject"))
}

func TestGomokuFiveInARowEndsGame(t *testing.T) {
	g := newTestGomoku()
	connA, sockA := newTestConn(t, g, "gomoku")
	g.HandleOpen(connA, "", "auto")
	connB, _ := newTestConn(t, g, "gomoku")
	g.HandleOpen(connB, "", "auto")

	tokA := sockA.lastOfType("init")["token"].(string)
	tokB := g.state.TokenB
	connA.SetAttachment(fanout.Attachment{Kind: "gomoku", Role: roomstate.SeatA, Token: tokA})
	connB.SetAttachment(fanout.Attachment{Kind: "gomoku", Role: roomstate.SeatB, Token: tokB})

	for i := 0; i < 4; i++ {
		g.HandleMessage(connA, mustJSON(map[string]any{"type": "move", "r": 0, "c": i}))
		g.HandleMessage(connB, mustJSON(map[string]any{"type": "move", "r": 10, "c": i}))
	}
	g.HandleMessage(connA, mustJSON(map[string]any{"type": "move", "r": 0, "c": 4}))

	require.True(t, g.state.GameOver)
	assert.Equal(t, roomstate.SeatA, g.state.Winner)
}

func TestGomokuRematchRequiresBothSeats(t *testing.T) {
	g := newTestGomoku()
	connA, sockA := newTestConn(t, g, "gomoku")
	g.HandleOpen(connA, "", "auto")
	connB, sockB := newTestConn(t, g, "gomoku")
	g.HandleOpen(connB, "", "auto")
	tokA := sockA.lastOfType("init")["token"].(string)
	tokB := sockB.lastOfType("init")["token"].(string)
	connA.SetAttachment(fanout.Attachment{Kind: "gomoku", Role: roomstate.SeatA, Token: tokA})
	connB.SetAttachment(fanout.Attachment{Kind: "gomoku", Role: roomstate.SeatB, Token: tokB})
	g.state.GameOver = true

	g.HandleMessage(connA, mustJSON(map[string]any{"type": "rematch"}))
	assert.True(t, g.state.GameOver, "game stays over until both seats vote")

	g.HandleMessage(connB, mustJSON(map[string]any{"type": "rematch"}))
	assert.False(t, g.state.GameOver)
	assert.Empty(t, g.state.Moves)
}

func TestGomokuSwapRequiresBothSeatsAndReassignsRoles(t *testing.T) {
	g := newTestGomoku()
	connA, sockA := newTestConn(t, g, "gomoku")
	g.HandleOpen(connA, "", "auto")
	connB, sockB := newTestConn(t, g, "gomoku")
	g.HandleOpen(connB, "", "auto")
	tokA := sockA.lastOfType("init")["token"].(string)
	tokB := sockB.lastOfType("init")["token"].(string)
	connA.SetAttachment(fanout.Attachment{Kind: "gomoku", Role: roomstate.SeatA, Token: tokA})
	connB.SetAttachment(fanout.Attachment{Kind: "gomoku", Role: roomstate.SeatB, Token: tokB})

	g.HandleMessage(connA, mustJSON(map[string]any{"type": "swap"}))
	assert.NotNil(t, waitForType(t, sockB, "swap_pending"))

	g.HandleMessage(connB, mustJSON(map[string]any{"type": "swap"}))

	roleA := waitForType(t, sockA, "role")
	roleB := waitForType(t, sockB, "role")
	assert.Equal(t, float64(roomstate.SeatB), roleA["you"])
	assert.Equal(t, float64(roomstate.SeatA), roleB["you"])
	assert.Equal(t, roomstate.SeatB, connA.GetAttachment().Role)
	assert.Equal(t, roomstate.SeatA, connB.GetAttachment().Role)
}

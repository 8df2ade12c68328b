package gameroom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayForwardsVerbatimToAllIncludingSender(t *testing.T) {
	r := NewRelay("t1")
	connA, sockA := newTestConn(t, r, "relay")
	r.HandleOpen(connA, "", "")
	connB, sockB := newTestConn(t, r, "relay")
	r.HandleOpen(connB, "", "")

	r.HandleMessage(connA, mustJSON(map[string]any{"type": "offer", "sdp": "xyz"}))

	got := waitForType(t, sockB, "offer")
	require.NotNil(t, got)
	assert.Equal(t, "xyz", got["sdp"])
	echoed := waitForType(t, sockA, "offer")
	assert.Equal(t, "xyz", echoed["sdp"])
}

func TestRelayDropsNonObjectFrames(t *testing.T) {
	r := NewRelay("t1")
	connA, _ := newTestConn(t, r, "relay")
	r.HandleOpen(connA, "", "")
	connB, sockB := newTestConn(t, r, "relay")
	r.HandleOpen(connB, "", "")

	before := len(sockB.messages())
	r.HandleMessage(connA, []byte(`"just a string"`))
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, before, len(sockB.messages()))
}

func TestRelayClosePublishesPresence(t *testing.T) {
	r := NewRelay("t1")
	connA, sockA := newTestConn(t, r, "relay")
	r.HandleOpen(connA, "", "")
	connB, _ := newTestConn(t, r, "relay")
	r.HandleOpen(connB, "", "")

	r.HandleClose(connB)

	pres := waitForType(t, sockA, "presence")
	assert.Equal(t, float64(1), pres["n"])
}

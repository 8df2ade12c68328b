package fanout

import (
	"sync"
	"testing"
	"time"

	"github.com/RoseWrightdev/gameroomd/internal/roomstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	assertWait = 2 * time.Second
	assertTick = 10 * time.Millisecond
)

// fakeSocket is an in-memory stand-in for *websocket.Conn, just enough
// of the surface for Conn's pumps to exercise.
type fakeSocket struct {
	mu       sync.Mutex
	written  [][]byte
	controls [][]byte
	closed   bool
	readCh   chan fakeRead
}

type fakeRead struct {
	msgType int
	data    []byte
	err     error
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{readCh: make(chan fakeRead, 8)}
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	r, ok := <-f.readCh
	if !ok {
		return 0, nil, errClosedFake
	}
	return r.msgType, r.data, r.err
}

var errClosedFake = assertErr("fake socket closed")

type assertErr string

func (e assertErr) Error() string { return string(e) }

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.written = append(f.written, cp)
	return nil
}

func (f *fakeSocket) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, append([]byte(nil), data...))
	return nil
}

func (f *fakeSocket) SetReadDeadline(t time.Time) error  { return nil }
func (f *fakeSocket) SetWriteDeadline(t time.Time) error { return nil }
func (f *fakeSocket) SetPongHandler(h func(string) error) {}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) writtenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

type fakeRoom struct {
	mu       sync.Mutex
	messages [][]byte
	closed   []*Conn
}

func (r *fakeRoom) HandleMessage(c *Conn, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, raw)
}

func (r *fakeRoom) HandleClose(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, c)
}

func TestConnSendIsNonBlockingOnFullBuffer(t *testing.T) {
	sock := newFakeSocket()
	room := &fakeRoom{}
	c := NewConn("conn-1", sock, room, "gomoku")

	for i := 0; i < sendBufferSize+5; i++ {
		c.Send([]byte("x"))
	}
	// Must return promptly regardless of buffer overflow; nothing to
	// assert beyond "this call did not block", which the test timeout
	// itself enforces.
}

func TestConnCloseWithReasonIsIdempotent(t *testing.T) {
	sock := newFakeSocket()
	room := &fakeRoom{}
	c := NewConn("conn-1", sock, room, "gomoku")

	c.CloseWithReason(1000, "reconnect")
	assert.NotPanics(t, func() {
		c.CloseWithReason(1000, "reconnect")
	})
}

func TestConnAttachmentRoundTrip(t *testing.T) {
	sock := newFakeSocket()
	room := &fakeRoom{}
	c := NewConn("conn-1", sock, room, "xiangqi")

	c.SetAttachment(Attachment{Kind: "xiangqi", Role: roomstate.SeatA, Token: "tok-1"})
	got := c.GetAttachment()
	assert.Equal(t, roomstate.SeatA, got.Role)
	assert.Equal(t, "tok-1", got.Token)
}

func TestReadPumpDispatchesTextFramesAndNotifiesClose(t *testing.T) {
	sock := newFakeSocket()
	room := &fakeRoom{}
	c := NewConn("conn-1", sock, room, "gomoku")
	c.Run()

	sock.readCh <- fakeRead{msgType: 1, data: []byte(`{"type":"move"}`)}
	close(sock.readCh)

	done := make(chan struct{})
	go func() {
		c.ReadPump()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ReadPump did not return after socket close")
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	require.Len(t, room.messages, 1)
	assert.Contains(t, string(room.messages[0]), "move")
	require.Len(t, room.closed, 1)
	assert.Same(t, c, room.closed[0])
}

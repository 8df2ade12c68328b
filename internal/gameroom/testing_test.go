package gameroom

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/RoseWrightdev/gameroomd/internal/fanout"
)

// fakeSocket is a minimal in-memory stand-in for *websocket.Conn,
// structurally satisfying fanout's unexported socket interface.
type fakeSocket struct {
	mu      sync.Mutex
	written [][]byte
	readCh  chan fakeRead
}

type fakeRead struct {
	msgType int
	data    []byte
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{readCh: make(chan fakeRead, 8)}
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	r, ok := <-f.readCh
	if !ok {
		return 0, nil, errSocketClosed
	}
	return r.msgType, r.data, nil
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errSocketClosed = sentinelErr("socket closed")

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeSocket) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}
func (f *fakeSocket) SetReadDeadline(t time.Time) error   { return nil }
func (f *fakeSocket) SetWriteDeadline(t time.Time) error  { return nil }
func (f *fakeSocket) SetPongHandler(h func(string) error) {}
func (f *fakeSocket) Close() error                        { return nil }

func (f *fakeSocket) messages() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.written))
	for _, raw := range f.written {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSocket) last() map[string]any {
	msgs := f.messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (f *fakeSocket) lastOfType(kind string) map[string]any {
	msgs := f.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i]["type"] == kind {
			return msgs[i]
		}
	}
	return nil
}

// newTestConn wires a fakeSocket through the real Conn/writePump
// machinery so Send/Broadcast exercise the same code path production
// traffic does.
func newTestConn(t *testing.T, room fanout.Room, kind string) (*fanout.Conn, *fakeSocket) {
	t.Helper()
	sock := newFakeSocket()
	c := fanout.NewConn(kind+"-conn", sock, room, kind)
	c.Run()
	return c, sock
}

func waitForCount(t *testing.T, get func() int, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if get() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for message count >= %d, got %d", want, get())
}

func waitForType(t *testing.T, sock *fakeSocket, kind string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m := sock.lastOfType(kind); m != nil {
			return m
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for a %q message", kind)
	return nil
}

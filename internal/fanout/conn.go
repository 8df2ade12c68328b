// Package fanout manages the set of sockets attached to a room and the
// non-blocking send/broadcast operations over that set. It is the
// concrete mechanism behind a room actor's "suspension points": each
// Conn runs its own read/write pump goroutine pair so a slow or dead
// client can never stall the room's single-writer event loop.
package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/RoseWrightdev/gameroomd/internal/logging"
	"github.com/RoseWrightdev/gameroomd/internal/metrics"
	"github.com/RoseWrightdev/gameroomd/internal/roomstate"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// socket is the minimal transport surface Conn depends on, so tests
// can substitute a fake.
type socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Room is the narrow contract a Conn needs from whatever actor owns
// it: route an inbound frame, and clean up on disconnect.
type Room interface {
	HandleMessage(c *Conn, raw []byte)
	HandleClose(c *Conn)
}

// Conn wraps one attached socket. Attachment (Kind/Role/Token) is the
// bearer credential the owning room actor consults fresh on every
// message — it is never cached as an authority decision, only as data.
type Conn struct {
	ID   string
	sock socket
	send chan []byte
	room Room

	mu    sync.RWMutex
	Kind  string
	Role  roomstate.Role
	Token string

	closeOnce sync.Once
}

// NewConn constructs a Conn without starting any goroutine (see Run
// and ReadPump). Callers must still register it with a Set and call
// room.HandleOpen-style logic themselves; NewConn only wires the
// transport.
func NewConn(id string, sock socket, room Room, kind string) *Conn {
	c := &Conn{
		ID:   id,
		sock: sock,
		send: make(chan []byte, sendBufferSize),
		room: room,
		Kind: kind,
	}
	return c
}

// Run starts the write pump in its own goroutine. It does not start
// the read pump; callers invoke ReadPump separately so the caller's
// goroutine is the one blocked on network reads.
func (c *Conn) Run() {
	go c.writePump()
}

// ReadPump blocks, dispatching each inbound frame to the room, until
// the socket errors or closes. It always ends by notifying the room
// of the disconnect and releasing the send channel.
func (c *Conn) ReadPump() {
	defer func() {
		c.room.HandleClose(c)
		c.Close()
		metrics.DecConnection()
	}()

	c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.sock.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.room.HandleMessage(c, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Send queues a frame for this connection only. Non-blocking: a full
// buffer (a slow or wedged client) drops the message rather than
// stalling the room actor.
func (c *Conn) Send(raw []byte) {
	select {
	case c.send <- raw:
	default:
		logging.Warn(context.Background(), "dropping message to slow client", zap.String("conn_id", c.ID))
	}
}

// CloseWithReason sends a close frame carrying code/reason, then tears
// the connection down. Used for duplicate-connection suppression
// ("reconnect"); a completed swap does not close any connection.
func (c *Conn) CloseWithReason(code int, reason string) {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(code, reason)
		c.sock.WriteControl(websocket.CloseMessage, msg, deadline)
		close(c.send)
	})
}

// Close tears the connection down without a specific close code.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Attachment snapshots the connection's current seat credentials.
type Attachment struct {
	Kind  string
	Role  roomstate.Role
	Token string
}

func (c *Conn) SetAttachment(a Attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Kind, c.Role, c.Token = a.Kind, a.Role, a.Token
}

func (c *Conn) GetAttachment() Attachment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Attachment{Kind: c.Kind, Role: c.Role, Token: c.Token}
}

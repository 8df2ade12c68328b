package fanout

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/RoseWrightdev/gameroomd/internal/logging"
	"github.com/RoseWrightdev/gameroomd/internal/roomstate"
	"go.uber.org/zap"
	"k8s.io/utils/set"
)

// Set is the current set of sockets attached to one room. All methods
// are safe for concurrent use, but callers inside a room actor's
// single-writer handler only need that guarantee incidentally — the
// actor itself already serializes open/message/close.
type Set struct {
	mu      sync.RWMutex
	members map[*Conn]struct{}
}

func NewSet() *Set {
	return &Set{members: make(map[*Conn]struct{})}
}

func (s *Set) Add(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[c] = struct{}{}
}

func (s *Set) Remove(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, c)
}

// Len reports the current presence count.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Snapshot returns a point-in-time copy of the attached connections,
// safe to range over without holding the set's lock.
func (s *Set) Snapshot() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Conn, 0, len(s.members))
	for c := range s.members {
		out = append(out, c)
	}
	return out
}

// FindByToken returns the live connection currently attached under
// token, if any. Used for duplicate-connection suppression.
func (s *Set) FindByToken(token string) *Conn {
	if token == "" {
		return nil
	}
	for _, c := range s.Snapshot() {
		if c.GetAttachment().Token == token {
			return c
		}
	}
	return nil
}

// OnlineByRole counts live connections currently attached under each
// playable role, which the seat allocator needs to decide whether a
// seat is genuinely idle.
func (s *Set) OnlineByRole() (a, b int) {
	for _, c := range s.Snapshot() {
		switch c.GetAttachment().Role {
		case roomstate.SeatA:
			a++
		case roomstate.SeatB:
			b++
		}
	}
	return a, b
}

// Marshal is a convenience wrapper: marshal v once, then fan it out.
func Marshal(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal broadcast payload", zap.Error(err))
		return nil
	}
	return raw
}

// Broadcast sends raw to every attached connection.
func (s *Set) Broadcast(raw []byte) {
	if raw == nil {
		return
	}
	for _, c := range s.Snapshot() {
		c.Send(raw)
	}
}

// BroadcastToRoles sends raw only to connections currently seated in
// one of roles, for spectator-only or player-only broadcasts. It is
// grounded in the same role-set filtering idea the teacher applies to
// its broadcast target selection. The post-swap "role" message does
// not use it: each connection gets its own frame through SendTo.
func (s *Set) BroadcastToRoles(raw []byte, roles ...roomstate.Role) {
	if raw == nil {
		return
	}
	allow := set.New(roles...)
	for _, c := range s.Snapshot() {
		if allow.Has(c.GetAttachment().Role) {
			c.Send(raw)
		}
	}
}

// SendTo delivers raw to exactly one connection — used for directed
// init/reject/role messages that must never be broadcast.
func SendTo(c *Conn, raw []byte) {
	if raw == nil || c == nil {
		return
	}
	c.Send(raw)
}

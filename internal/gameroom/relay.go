package gameroom

import (
	"context"
	"encoding/json"

	"github.com/RoseWrightdev/gameroomd/internal/fanout"
	"github.com/RoseWrightdev/gameroomd/internal/logging"
	"github.com/RoseWrightdev/gameroomd/internal/metrics"
	"github.com/RoseWrightdev/gameroomd/internal/protocol"
	"go.uber.org/zap"
)

// Relay is a stateless fan-out actor: it carries no record, persists
// nothing, enforces no authority or schema, and simply rebroadcasts
// whatever valid JSON object one attached socket sends to every
// attached socket, the sender included, verbatim.
type Relay struct {
	id      string
	clients *fanout.Set
}

func NewRelay(id string) *Relay {
	return &Relay{id: id, clients: fanout.NewSet()}
}

func (r *Relay) Kind() string { return "relay" }

func (r *Relay) HandleOpen(c *fanout.Conn, _, _ string) {
	r.clients.Add(c)
	r.clients.Broadcast(protocol.Out("presence", map[string]any{"n": r.clients.Len()}))
	metrics.IncConnection()
	metrics.RoomPresence.WithLabelValues(r.id).Set(float64(r.clients.Len()))
}

func (r *Relay) HandleClose(c *fanout.Conn) {
	r.clients.Remove(c)
	r.clients.Broadcast(protocol.Out("presence", map[string]any{"n": r.clients.Len()}))
	metrics.RoomPresence.WithLabelValues(r.id).Set(float64(r.clients.Len()))
}

// HandleMessage forwards raw to every attached socket (the sender
// included) unchanged, provided it parses as a JSON object. No type dispatch, no schema, no
// sender authority check.
func (r *Relay) HandleMessage(c *fanout.Conn, raw []byte) {
	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		logging.Warn(context.Background(), "dropping non-object relay frame", zap.String("conn_id", c.ID))
		metrics.EventsTotal.WithLabelValues("relay", "malformed").Inc()
		return
	}
	metrics.EventsTotal.WithLabelValues("relay", "accepted").Inc()
	r.clients.Broadcast(raw)
}

// Package metrics declares the process's Prometheus instrumentation.
//
// Naming convention: namespace_subsystem_name
//   - namespace: game_room (application-level grouping)
//   - subsystem: websocket, room, store, seat, circuit_breaker, rate_limit
//   - name: specific metric
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the current number of attached sockets across all rooms.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "game_room",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of live room actors.
	ActiveRooms = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "game_room",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	}, []string{"kind"})

	// RoomPresence tracks the number of attached sockets per room.
	RoomPresence = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "game_room",
		Subsystem: "room",
		Name:      "presence",
		Help:      "Number of attached sockets in each room",
	}, []string{"room_id"})

	// EventsTotal tracks every inbound message processed, by type and outcome.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_room",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total inbound events processed",
	}, []string{"event_type", "status"})

	// MoveProcessingDuration tracks time spent inside a room actor's handler.
	MoveProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "game_room",
		Subsystem: "room",
		Name:      "move_processing_seconds",
		Help:      "Time spent processing a room actor event",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"kind"})

	// SeatSteals tracks grace-period seat reclamations.
	SeatSteals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_room",
		Subsystem: "seat",
		Name:      "steals_total",
		Help:      "Total seats reclaimed via the grace-period steal rule",
	}, []string{"kind"})

	// StoreBreakerState mirrors the circuit breaker guarding the persistence store.
	// 0: Closed, 1: Open, 2: Half-Open.
	StoreBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "game_room",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the persistence store circuit breaker",
	}, []string{"backend"})

	// RateLimitExceeded tracks connections rejected by the admission limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_room",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total connection attempts rejected by the rate limiter",
	}, []string{"scope"})
)

func IncConnection() { ActiveConnections.Inc() }
func DecConnection() { ActiveConnections.Dec() }

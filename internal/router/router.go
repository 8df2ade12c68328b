// Package router implements the dispatch layer (C6): it upgrades
// inbound HTTP requests to WebSocket connections and resolves each to
// exactly one room actor, keyed by a routing key that is stable for
// the life of the process.
package router

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/RoseWrightdev/gameroomd/internal/config"
	"github.com/RoseWrightdev/gameroomd/internal/fanout"
	"github.com/RoseWrightdev/gameroomd/internal/gameroom"
	"github.com/RoseWrightdev/gameroomd/internal/logging"
	"github.com/RoseWrightdev/gameroomd/internal/metrics"
	"github.com/RoseWrightdev/gameroomd/internal/ratelimit"
	"github.com/RoseWrightdev/gameroomd/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// openable is satisfied by every room actor kind; it is the union of
// fanout.Room with the admission hook the router calls right after a
// socket finishes upgrading.
type openable interface {
	fanout.Room
	HandleOpen(c *fanout.Conn, token, want string)
}

// Router owns the registry of live room actors and the websocket
// upgrader configuration. One Router is built in main and shared by
// every registered gin route.
type Router struct {
	st    store.Store
	rl    *ratelimit.RateLimiter
	grace time.Duration

	allowedOrigins []string
	upgrader       websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]openable
}

func New(cfg *config.Config, st store.Store, rl *ratelimit.RateLimiter) *Router {
	origins := []string{"http://localhost:3000"}
	if cfg.AllowedOrigins != "" {
		origins = strings.Split(cfg.AllowedOrigins, ",")
	}

	r := &Router{
		st:             st,
		rl:             rl,
		grace:          time.Duration(cfg.RoomGraceSeconds) * time.Second,
		allowedOrigins: origins,
		rooms:          make(map[string]openable),
	}
	r.upgrader = websocket.Upgrader{
		CheckOrigin: r.checkOrigin,
	}
	return r
}

func (r *Router) checkOrigin(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range r.allowedOrigins {
		allowedURL, err := url.Parse(strings.TrimSpace(allowed))
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

// getOrCreate returns the actor registered under key, constructing one
// with newActor if none exists yet. Room identity is the routing key:
// each key resolves to exactly one actor for the process lifetime.
func (r *Router) getOrCreate(key, kind string, newActor func() openable) openable {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[key]; ok {
		return room
	}
	room := newActor()
	r.rooms[key] = room
	metrics.ActiveRooms.WithLabelValues(kind).Inc()
	return room
}

// RegisterRoutes wires the three routing rules onto e: /ws (Gomoku),
// /relay (Relay or Xiangqi, by game query param), and a catch-all 200
// for anything else.
func (r *Router) RegisterRoutes(e *gin.Engine) {
	e.GET("/ws", r.serveWs)
	e.GET("/relay", r.serveRelay)
	e.NoRoute(func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
}

func (r *Router) serveWs(c *gin.Context) {
	if !r.requireUpgrade(c) {
		return
	}
	roomID := c.Query("room")
	if roomID == "" {
		roomID = "default"
	}
	key := "gomoku:" + roomID
	room := r.getOrCreate(key, "gomoku", func() openable {
		return gameroom.NewGomoku(roomID, r.st, r.grace)
	})
	r.serve(c, room, "gomoku", key)
}

func (r *Router) serveRelay(c *gin.Context) {
	if !r.requireUpgrade(c) {
		return
	}
	roomID := c.Query("room")
	if roomID == "" {
		roomID = "default"
	}
	game := c.Query("game")
	if game == "" {
		game = "relay"
	}

	key := game + ":" + roomID
	var room openable
	if game == "xq" {
		room = r.getOrCreate(key, "xiangqi", func() openable {
			return gameroom.NewXiangqi(roomID, r.st, r.grace)
		})
		r.serve(c, room, "xiangqi", key)
		return
	}
	room = r.getOrCreate(key, "relay", func() openable {
		return gameroom.NewRelay(roomID)
	})
	r.serve(c, room, "relay", key)
}

func (r *Router) requireUpgrade(c *gin.Context) bool {
	if !strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		c.Status(http.StatusUpgradeRequired)
		return false
	}
	return true
}

func (r *Router) serve(c *gin.Context, room openable, kind, roomKey string) {
	if !r.rl.CheckRoom(c.Request.Context(), roomKey) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	sock, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(context.Background(), "websocket upgrade failed", zap.String("kind", kind), zap.Error(err))
		return
	}

	token := c.Query("token")
	want := c.Query("want")

	conn := fanout.NewConn(uuid.NewString(), sock, room, kind)
	conn.Run()
	room.HandleOpen(conn, token, want)
	conn.ReadPump()
}

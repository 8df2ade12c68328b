// Package ratelimit throttles connection admission with Redis or local
// memory backing, protecting a room actor from connection-churn floods.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/RoseWrightdev/gameroomd/internal/config"
	"github.com/RoseWrightdev/gameroomd/internal/logging"
	"github.com/RoseWrightdev/gameroomd/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// RateLimiter admits or rejects incoming websocket upgrades by IP and
// by room, before a connection ever reaches a room actor.
type RateLimiter struct {
	wsIP   *limiter.Limiter
	wsRoom *limiter.Limiter
}

// New builds a RateLimiter. A nil redisClient falls back to an
// in-process memory store (single-instance mode).
func New(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	ipRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIP)
	if err != nil {
		return nil, fmt.Errorf("invalid ws ip rate: %w", err)
	}
	roomRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsRoom)
	if err != nil {
		return nil, fmt.Errorf("invalid ws room rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "gameroom:limiter:"})
		if err != nil {
			return nil, fmt.Errorf("create redis limiter store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Info(context.Background(), "rate limiter using memory store")
	}

	return &RateLimiter{
		wsIP:   limiter.New(store, ipRate),
		wsRoom: limiter.New(store, roomRate),
	}, nil
}

// CheckWebSocket enforces the per-IP connection-admission limit. It
// writes the 429 response itself and returns false when exceeded.
func (rl *RateLimiter) CheckWebSocket(c *gin.Context) bool {
	ctx := c.Request.Context()
	ip := c.ClientIP()

	res, err := rl.wsIP.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "ws rate limiter store failed", zap.Error(err))
		return true // fail open
	}
	if res.Reached {
		metrics.RateLimitExceeded.WithLabelValues("ip").Inc()
		c.Header("Retry-After", strconv.FormatInt(res.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections from this address"})
		return false
	}
	return true
}

// CheckRoom enforces the per-room connection-admission limit.
func (rl *RateLimiter) CheckRoom(ctx context.Context, roomKey string) bool {
	res, err := rl.wsRoom.Get(ctx, roomKey)
	if err != nil {
		logging.Error(ctx, "ws room rate limiter store failed", zap.Error(err))
		return true // fail open
	}
	if res.Reached {
		metrics.RateLimitExceeded.WithLabelValues("room").Inc()
		return false
	}
	return true
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RoseWrightdev/gameroomd/internal/logging"
	"github.com/RoseWrightdev/gameroomd/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// keyPrefix namespaces room records in the shared Redis keyspace.
const keyPrefix = "gameroom:"

// Redis is a circuit-breaker-wrapped Store backed by Redis. A flaky or
// down Redis degrades a room's durability without wedging the room
// actor that depends on it: on an open breaker, Load returns "no
// record" and Put is dropped and logged — never returned as a fatal
// error to the caller.
type Redis struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// NewRedis dials addr and verifies connectivity before returning.
func NewRedis(addr, password string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis-room-store",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var v float64
			switch to {
			case gobreaker.StateClosed:
				v = 0
			case gobreaker.StateOpen:
				v = 1
			case gobreaker.StateHalfOpen:
				v = 2
			}
			metrics.StoreBreakerState.WithLabelValues("redis").Set(v)
		},
	}

	logging.Info(context.Background(), "connected to redis room store", zap.String("addr", addr))
	return &Redis{client: rdb, cb: gobreaker.NewCircuitBreaker(st)}, nil
}

func (r *Redis) Load(ctx context.Context, key string) ([]byte, error) {
	res, err := r.cb.Execute(func() (interface{}, error) {
		v, err := r.client.Get(ctx, keyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return []byte(nil), nil
		}
		return v, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			logging.Warn(ctx, "redis breaker open, treating load as empty")
			return nil, nil
		}
		return nil, fmt.Errorf("redis load %s: %w", key, err)
	}
	if res == nil {
		return nil, nil
	}
	return res.([]byte), nil
}

func (r *Redis) Put(ctx context.Context, key string, data []byte) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, keyPrefix+key, data, 0).Err()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			logging.Warn(ctx, "redis breaker open, dropping put", zap.String("key", key))
			return nil
		}
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

// Client exposes the underlying redis.Client so other subsystems
// (the connection-admission rate limiter) can share one connection
// pool instead of dialing Redis twice.
func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) Ping(ctx context.Context) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, r.client.Ping(ctx).Err()
	})
	return err
}

func (r *Redis) Close() error {
	return r.client.Close()
}

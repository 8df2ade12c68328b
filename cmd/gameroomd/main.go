package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RoseWrightdev/gameroomd/internal/config"
	"github.com/RoseWrightdev/gameroomd/internal/logging"
	"github.com/RoseWrightdev/gameroomd/internal/middleware"
	"github.com/RoseWrightdev/gameroomd/internal/ratelimit"
	"github.com/RoseWrightdev/gameroomd/internal/router"
	"github.com/RoseWrightdev/gameroomd/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	envPaths := []string{".env", "../../.env", "../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}
	ctx := context.Background()

	var st store.Store
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		rs, err := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Fatal(ctx, "failed to connect to redis", zap.Error(err))
		}
		st = rs
		redisClient = rs.Client()
	} else {
		logging.Info(ctx, "redis disabled, using in-process memory store")
		st = store.NewMemory()
	}

	rl, err := ratelimit.New(cfg, redisClient)
	if err != nil {
		logging.Fatal(ctx, "failed to build rate limiter", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	if cfg.GoEnv != "production" {
		gin.SetMode(gin.DebugMode)
	}
	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(middleware.CorrelationID())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = []string{cfg.AllowedOrigins}
	if cfg.AllowedOrigins == "" {
		corsCfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	e.Use(cors.New(corsCfg))

	e.Use(func(c *gin.Context) {
		if c.GetHeader("Upgrade") != "" {
			if !rl.CheckWebSocket(c) {
				c.Abort()
				return
			}
		}
		c.Next()
	})

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rtr := router.New(cfg, st, rl)
	rtr.RegisterRoutes(e)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: e,
	}

	go func() {
		logging.Info(ctx, "gameroomd listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down gameroomd")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "forced shutdown", zap.Error(err))
	}
}

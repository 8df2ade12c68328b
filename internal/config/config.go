// Package config validates process environment variables into a typed
// Config at startup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration.
type Config struct {
	// Listen port, defaults to 8080
	Port string

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	// Persistence backend
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Transport hardening
	AllowedOrigins string

	// Seat-steal grace period, in seconds.
	RoomGraceSeconds int

	// Connection-admission rate limits, "<limit>-<period>" (M=minute, H=hour).
	RateLimitWsIP   string
	RateLimitWsRoom string
}

// ValidateEnv validates the environment variables, filling defaults for
// unset ones, and returns a Config. It returns an error naming every violation at once rather than
// failing on the first one.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
	} else if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got %q)", cfg.Port))
	}

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got %q)", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.RoomGraceSeconds = 180
	if raw := os.Getenv("ROOM_GRACE_SECONDS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("ROOM_GRACE_SECONDS must be a non-negative integer (got %q)", raw))
		} else {
			cfg.RoomGraceSeconds = n
		}
	}

	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWsRoom = getEnvOrDefault("RATE_LIMIT_WS_ROOM", "500-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 || parts[0] == "" {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	return err == nil && port >= 1 && port <= 65535
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"port", cfg.Port,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"redis_password", redactSecret(cfg.RedisPassword),
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"room_grace_seconds", cfg.RoomGraceSeconds,
		"rate_limit_ws_ip", cfg.RateLimitWsIP,
		"rate_limit_ws_room", cfg.RateLimitWsRoom,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "***"
	}
	return secret[:4] + "***"
}

package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AuthMode string

const (
	// AuthModeHeader trusts an explicit User-Id header (the service sits
	// behind a gateway that already authenticated the caller).
	AuthModeHeader AuthMode = "header"
	// AuthModeJWT resolves the caller from a verified bearer token.
	AuthModeJWT AuthMode = "jwt"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	JWTSecret    string
	AuthMode     AuthMode
	LockTimeout  time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		HTTPAddr:     os.Getenv("HTTP_ADDR"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: []string{os.Getenv("KAFKA_BROKER")},
		JWTSecret:    os.Getenv("JWT_SECRET"),
		AuthMode:     AuthMode(os.Getenv("AUTH_MODE")),
		LockTimeout:  3000 * time.Millisecond,
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = "host=localhost user=postgres password=postgres dbname=users sslmode=disable"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if len(cfg.KafkaBrokers) == 1 && cfg.KafkaBrokers[0] == "" {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "supersecret"
	}
	if cfg.AuthMode != AuthModeJWT {
		cfg.AuthMode = AuthModeHeader
	}
	if ms, err := strconv.Atoi(os.Getenv("LOCK_TIMEOUT_MS")); err == nil && ms > 0 {
		cfg.LockTimeout = time.Duration(ms) * time.Millisecond
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"auth_mode", cfg.AuthMode,
		"lock_timeout", cfg.LockTimeout)
	return cfg
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv string

	HTTPAddr    string
	DatabaseURL string

	JWTSecret string
	JWTIssuer string

	// RabbitMQ
	RabbitURL         string
	RabbitExchange    string
	RabbitQueue       string
	RabbitPrefetch    int
	RabbitMaxAttempts int

	// Redis & Caching
	RedisURL     string
	CacheTTLLook time.Duration

	// Rate Limiting
	RLEnabled bool
	RLLimit   int
	RLWindow  time.Duration

	LogLevel  string
	LogFormat string

	// World simulation
	StarterLocationID string
	DedupeCacheSize   int
	WorkerPoolSize    int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")

	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.JWTIssuer = getEnv("JWT_ISSUER", "")

	cfg.RabbitURL = getEnv("RABBITMQ_URL", "")
	cfg.RabbitExchange = getEnv("RABBITMQ_EXCHANGE", "world.events")
	cfg.RabbitQueue = getEnv("RABBITMQ_QUEUE", "world-service.events")
	cfg.RabbitPrefetch = getIntEnv("RABBITMQ_PREFETCH", 10)
	cfg.RabbitMaxAttempts = getIntEnv("RABBITMQ_MAX_ATTEMPTS", 5)

	cfg.RedisURL = getEnv("REDIS_URL", "")
	cfg.CacheTTLLook = getDuration("CACHE_TTL_LOOK", 30*time.Second)

	// Rate Limiting Defaults: 100 reqs / 1 min
	cfg.RLEnabled = getEnv("RL_ENABLED", "true") == "true"
	cfg.RLLimit = getIntEnv("RL_IP_LIMIT", 100)
	cfg.RLWindow = getDuration("RL_IP_WINDOW", 1*time.Minute)

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	cfg.StarterLocationID = getEnv("WORLD_STARTER_LOCATION_ID", "")
	cfg.DedupeCacheSize = getIntEnv("DEDUPE_CACHE_SIZE", 4096)
	cfg.WorkerPoolSize = getIntEnv("WORKER_POOL_SIZE", 5)

	cfg.HTTPReadTimeout = getDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	cfg.HTTPWriteTimeout = getDuration("HTTP_WRITE_TIMEOUT", 20*time.Second)
	cfg.HTTPIdleTimeout = getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second)

	// validation: dev runs fully in memory; everything else needs the
	// durable backends.
	if cfg.AppEnv != "dev" {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("missing DATABASE_URL (required when APP_ENV != dev)")
		}
		if cfg.RabbitURL == "" {
			return nil, fmt.Errorf("missing RABBITMQ_URL (required when APP_ENV != dev)")
		}
		if cfg.StarterLocationID == "" {
			return nil, fmt.Errorf("missing WORLD_STARTER_LOCATION_ID (required when APP_ENV != dev)")
		}
	}

	return cfg, nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getIntEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

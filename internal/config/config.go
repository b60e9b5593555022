package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Known broadcast driver names. Custom drivers registered via the manager's
// Extend hook are allowed on top of these.
const (
	DriverRedis = "redis"
	DriverPoll  = "poll"
	DriverLog   = "log"
	DriverNull  = "null"
)

// Poll store backends.
const (
	PollStorePostgres = "postgres"
	PollStoreMemory   = "memory"
)

type Config struct {
	AppEnv          string
	Port            string
	LogLevel        string
	LogFormat       string
	BroadcastDriver string
	RedisURL        string
	RedisKeyPrefix  string
	DatabaseURL     string
	PollStore       string
	SessionSecret   string
	QueueWorkers    int
	QueueCapacity   int
	PollRate        float64
	PollBurst       int
	PresenceTTL     time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		BroadcastDriver: getEnv("BROADCAST_DRIVER", DriverLog),
		RedisURL:        getEnv("REDIS_URL", ""),
		RedisKeyPrefix:  getEnv("REDIS_KEY_PREFIX", "fanout:"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		PollStore:       getEnv("POLL_STORE", PollStoreMemory),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
	}

	var err error
	if cfg.QueueWorkers, err = getEnvInt("QUEUE_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.QueueCapacity, err = getEnvInt("QUEUE_CAPACITY", 256); err != nil {
		return nil, err
	}
	if cfg.PollBurst, err = getEnvInt("POLL_BURST", 10); err != nil {
		return nil, err
	}
	pollRate, err := getEnvInt("POLL_RATE_PER_SECOND", 5)
	if err != nil {
		return nil, err
	}
	cfg.PollRate = float64(pollRate)
	presenceTTL, err := getEnvInt("PRESENCE_TTL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cfg.PresenceTTL = time.Duration(presenceTTL) * time.Second

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	switch cfg.BroadcastDriver {
	case DriverRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when BROADCAST_DRIVER is %q", DriverRedis)
		}
	case DriverPoll:
		switch cfg.PollStore {
		case PollStorePostgres:
			if cfg.DatabaseURL == "" {
				return nil, fmt.Errorf("DATABASE_URL is required when POLL_STORE is %q", PollStorePostgres)
			}
		case PollStoreMemory:
		default:
			return nil, fmt.Errorf("unknown POLL_STORE %q", cfg.PollStore)
		}
	case DriverLog, DriverNull:
	default:
		return nil, fmt.Errorf("unknown BROADCAST_DRIVER %q", cfg.BroadcastDriver)
	}

	if cfg.QueueWorkers < 1 {
		return nil, fmt.Errorf("QUEUE_WORKERS must be at least 1")
	}
	if cfg.QueueCapacity < 1 {
		return nil, fmt.Errorf("QUEUE_CAPACITY must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

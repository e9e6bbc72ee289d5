package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pkgstrings "helpdesk/pkg/platform/strings"
)

// Config captures everything cmd/server needs to wire the process.
// Values come from the environment so main stays lean.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    RedisConfig
	SMTP     SMTP
	Kafka    Kafka
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Postgres captures record-store configuration. An empty DSN selects the
// in-memory stores (development and tests).
type Postgres struct {
	DSN         string
	RunMigrate  bool
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// RedisConfig captures the unread-count cache configuration. An empty URL
// disables the cache; dispatch falls back to store counts.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SMTP captures the outbound message transport configuration. An empty Addr
// disables message delivery; notifications stay persisted-only.
type SMTP struct {
	Addr    string
	From    string
	Timeout time.Duration
}

// Kafka captures the lifecycle event stream configuration. Empty brokers
// disable publishing.
type Kafka struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("HELPDESK_ADDR", ":8080"),
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: Postgres{
			DSN:         os.Getenv("POSTGRES_DSN"),
			RunMigrate:  os.Getenv("POSTGRES_MIGRATE") == "true",
			MaxOpen:     envInt("POSTGRES_MAX_OPEN", 20),
			MaxIdle:     envInt("POSTGRES_MAX_IDLE", 5),
			MaxLifetime: envDuration("POSTGRES_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		SMTP: SMTP{
			Addr:    os.Getenv("SMTP_ADDR"),
			From:    envOr("SMTP_FROM", "helpdesk@localhost"),
			Timeout: envDuration("SMTP_TIMEOUT", 10*time.Second),
		},
		Kafka: Kafka{
			Brokers: pkgstrings.DedupeAndTrim(strings.Split(os.Getenv("KAFKA_BROKERS"), ",")),
			Topic:   envOr("KAFKA_TOPIC", "helpdesk.ticket-events"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}


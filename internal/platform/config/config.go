// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"time"

	pstrings "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/strings"
)

// Config is the full runtime configuration.
type Config struct {
	Server    Server
	Postgres  Postgres
	Redis     Redis
	Kafka     Kafka
	Auth      Auth
	Providers Providers
	RateLimit RateLimit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	MetricsAddr string
	LogLevel    string
}

// Postgres captures the database connection settings. An empty URL selects the
// in-memory stores, which keeps local development dependency-free.
type Postgres struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis captures the identity-cache connection settings. An empty URL selects
// the in-process cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures the audit event publishing settings. No brokers disables
// publishing; audit events still go to the structured log.
type Kafka struct {
	Brokers    []string
	AuditTopic string
}

// Auth captures token validation settings.
type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// Providers captures the upstream data provider endpoints.
type Providers struct {
	SpecURL      string
	SpecAPIKey   string
	TyreURL      string
	TyreAPIKey   string
	FetchTimeout time.Duration
}

// RateLimit captures the per-requester throttle on unlock routes.
type RateLimit struct {
	PerMinute int
	Disabled  bool
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:        getenv("UNLOCK_ADDR", ":8080"),
			MetricsAddr: getenv("UNLOCK_METRICS_ADDR", ":9090"),
			LogLevel:    getenv("LOG_LEVEL", "info"),
		},
		Postgres: Postgres{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getenvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getenvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getenvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getenvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getenvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:    splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getenv("KAFKA_AUDIT_TOPIC", "unlock.audit.events"),
		},
		Auth: Auth{
			// The default only exists for local development.
			JWTSigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     getenv("JWT_ISSUER", "unlock-api"),
			JWTAudience:   getenv("JWT_AUDIENCE", "unlock-mobile"),
		},
		Providers: Providers{
			SpecURL:      os.Getenv("SPEC_PROVIDER_URL"),
			SpecAPIKey:   os.Getenv("SPEC_PROVIDER_API_KEY"),
			TyreURL:      os.Getenv("TYRE_PROVIDER_URL"),
			TyreAPIKey:   os.Getenv("TYRE_PROVIDER_API_KEY"),
			FetchTimeout: getenvDuration("PROVIDER_FETCH_TIMEOUT", 15*time.Second),
		},
		RateLimit: RateLimit{
			PerMinute: getenvInt("RATE_LIMIT_PER_MINUTE", 30),
			Disabled:  os.Getenv("RATE_LIMIT_DISABLED") == "true",
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return pstrings.SplitAndTrim(s, ",")
}

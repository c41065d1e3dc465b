package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// AppConfig aggregates runtime settings; everything comes from the
// environment (optionally seeded from a .env file).
type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"campusmart.db"`

	// An empty REDIS_ADDR disables rate limiting, the event backplane,
	// presence and the delivery outbox. Unset means defaultRedisAddr.
	RedisAddr string `env:"REDIS_ADDR"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka receives outbound notification deliveries (comma separated brokers).
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"campusmart-notifications"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"campusmart-delivery"`

	// Redis Stream outbox: notifications are appended after commit and the
	// relay forwards them to Kafka.
	OutboxStream   string `env:"OUTBOX_STREAM" envDefault:"campusmart:outbox"`
	OutboxGroup    string `env:"OUTBOX_GROUP" envDefault:"campusmart-relay-group"`
	OutboxConsumer string `env:"OUTBOX_CONSUMER"`

	// ConsumerEnabled runs the Kafka delivery consumer in this process.
	ConsumerEnabled bool `env:"CONSUMER_ENABLED" envDefault:"true"`

	EventChannel string `env:"EVENT_CHANNEL" envDefault:"campusmart:events"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"168h"`

	// Write endpoints are limited per user with a sliding window.
	RateLimit  int           `env:"RATE_LIMIT" envDefault:"30"`
	RateWindow time.Duration `env:"RATE_WINDOW" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

func (c AppConfig) RedisEnabled() bool { return c.RedisAddr != "" }

// OutboxEnabled requires both ends of the relay.
func (c AppConfig) OutboxEnabled() bool { return c.RedisEnabled() && len(c.KafkaBrokers) > 0 }

// Load reads .env (if present) and the environment, then validates.
func Load() (AppConfig, error) {
	_ = godotenv.Load()
	return Parse()
}

const defaultRedisAddr = "localhost:6379"

// Parse reads the current environment without touching .env files.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	// envDefault would also replace an explicitly empty value.
	if _, set := os.LookupEnv("REDIS_ADDR"); !set {
		cfg.RedisAddr = defaultRedisAddr
	}
	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)

	if cfg.RedisDB < 0 {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %d", cfg.RedisDB)
	}
	if cfg.RateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("RATE_LIMIT must be > 0")
	}
	if cfg.RateWindow < time.Second {
		return AppConfig{}, fmt.Errorf("RATE_WINDOW must be >= 1s")
	}
	if cfg.TokenTTL <= 0 {
		return AppConfig{}, fmt.Errorf("TOKEN_TTL must be > 0")
	}
	if cfg.JWTSecret == "" {
		return AppConfig{}, fmt.Errorf("JWT_SECRET must not be empty")
	}
	switch cfg.DBDriver {
	case "sqlite", "mysql":
	default:
		return AppConfig{}, fmt.Errorf("invalid DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.OutboxStream == "" {
		return AppConfig{}, fmt.Errorf("OUTBOX_STREAM must not be empty")
	}
	if cfg.OutboxGroup == "" {
		return AppConfig{}, fmt.Errorf("OUTBOX_GROUP must not be empty")
	}
	if cfg.EventChannel == "" {
		return AppConfig{}, fmt.Errorf("EVENT_CHANNEL must not be empty")
	}
	return cfg, nil
}

// compact trims broker entries and drops empty ones.
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		s := strings.TrimSpace(v)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

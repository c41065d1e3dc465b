package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 10*time.Second, cfg.RateWindow)
	assert.True(t, cfg.OutboxEnabled())
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RATE_WINDOW", "1m")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.OutboxEnabled())
	assert.Equal(t, time.Minute, cfg.RateWindow)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"RATE_LIMIT":  "0",
		"RATE_WINDOW": "10ms",
		"DB_DRIVER":   "oracle",
		"REDIS_DB":    "-1",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 5432, cfg.PostgresPort)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "checkout-completed", cfg.KafkaTopic)
	assert.Equal(t, 100, cfg.MongoMaxPoolSize)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("SNAPSHOT_TTL", "2h")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MONGO_MAX_POOL_SIZE", "20")
	t.Setenv("SESSION_IDLE_TTL", "5m")

	cfg := Load()

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 6543, cfg.PostgresPort)
	assert.Equal(t, 2*time.Hour, cfg.SnapshotTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 20, cfg.MongoMaxPoolSize)
	assert.Equal(t, 5*time.Minute, cfg.SessionIdleTTL)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("POSTGRES_PORT", "not-a-port")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 5432, cfg.PostgresPort)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

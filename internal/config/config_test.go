package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "cart-events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	yamlDoc := `
app_env: prod
http:
  port: "9090"
  request_timeout: 5s
storage:
  backend: redis
  redis_addr: redis:6379
  ttl: 48h
kafka:
  brokers: [kafka-1:9092, kafka-2:9092]
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.AppEnv)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, 48*time.Hour, cfg.Storage.TTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	// untouched keys keep their defaults
	assert.Equal(t, "cartdb", cfg.Storage.MongoDB)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: redis\n"), 0o600))

	t.Setenv("CART_STORAGE", "memory")
	t.Setenv("KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("CART_TTL", "not-a-duration")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*24*time.Hour, cfg.Storage.TTL)
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("CART_STORAGE", "localstorage")

	_, err := Load("")
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoad_CartCacheBounds(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10000, cfg.Storage.CacheSize)
	assert.Equal(t, 30*time.Minute, cfg.Storage.CacheIdleTTL)

	t.Setenv("CART_CACHE_SIZE", "250")
	t.Setenv("CART_CACHE_IDLE_TTL", "5m")

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Storage.CacheSize)
	assert.Equal(t, 5*time.Minute, cfg.Storage.CacheIdleTTL)
}

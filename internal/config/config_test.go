package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ofsl")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "league.events", cfg.RabbitExchange)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "port: \"9090\"\nsweep_interval: 1m\nrabbit_exchange: ofsl\navailability_cache_ttl: 10s\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "postgres://localhost/ofsl")
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port, "environment wins over the file")
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 10*time.Second, cfg.CacheTTL)
	assert.Equal(t, "ofsl", cfg.RabbitExchange)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestValidateProductionNeedsSecret(t *testing.T) {
	cfg := defaults()
	cfg.DatabaseURL = "postgres://localhost/ofsl"
	cfg.Env = "production"
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())
}

func TestValidateNotifyQueueSize(t *testing.T) {
	cfg := defaults()
	cfg.DatabaseURL = "postgres://localhost/ofsl"
	assert.Equal(t, 256, cfg.NotifyQueueSize)
	require.NoError(t, cfg.Validate())

	cfg.NotifyQueueSize = 0
	assert.ErrorContains(t, cfg.Validate(), "NOTIFY_QUEUE_SIZE")
}

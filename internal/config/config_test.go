package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, "./data", cfg.Storage.DataPath)
	assert.Equal(t, "text-embedding-3-small", cfg.Similarity.Model)
	assert.Equal(t, 4096, cfg.Similarity.CacheSize)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, time.Hour, cfg.Maintenance.Interval)
	assert.Equal(t, 50.0, cfg.Maintenance.OpsPerSecond)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  engine: memory
similarity:
  model: custom-embedder
  cache_size: 128
maintenance:
  interval: 30m
  users: [alice, bob]
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Engine)
	assert.Equal(t, "custom-embedder", cfg.Similarity.Model)
	assert.Equal(t, 128, cfg.Similarity.CacheSize)
	assert.Equal(t, 30*time.Minute, cfg.Maintenance.Interval)
	assert.Equal(t, []string{"alice", "bob"}, cfg.Maintenance.Users)

	// Unset fields keep their defaults.
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  engine: sqlite\n"), 0o600))

	t.Setenv("RECALL_STORAGE_ENGINE", "postgres")
	t.Setenv("RECALL_POSTGRES_DSN", "postgres://localhost/recall")
	t.Setenv("RECALL_SWEEP_INTERVAL", "15m")
	t.Setenv("RECALL_SWEEP_USERS", "carol, dave")
	t.Setenv("RECALL_EMBEDDING_CACHE_SIZE", "64")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Engine)
	assert.Equal(t, "postgres://localhost/recall", cfg.Storage.PostgresDSN)
	assert.Equal(t, 15*time.Minute, cfg.Maintenance.Interval)
	assert.Equal(t, []string{"carol", "dave"}, cfg.Maintenance.Users)
	assert.Equal(t, 64, cfg.Similarity.CacheSize)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("RECALL_STORAGE_ENGINE", "etcd")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigPostgresRequiresDSN(t *testing.T) {
	t.Setenv("RECALL_STORAGE_ENGINE", "postgres")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("RECALL_TEST_INT", "not a number")
	assert.Equal(t, 7, getEnvInt("RECALL_TEST_INT", 7))

	t.Setenv("RECALL_TEST_DUR", "bogus")
	assert.Equal(t, time.Minute, getEnvDuration("RECALL_TEST_DUR", time.Minute))

	t.Setenv("RECALL_TEST_FLOAT", "2.5")
	assert.Equal(t, 2.5, getEnvFloat("RECALL_TEST_FLOAT", 1))
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "snappy", cfg.Storage.Compression)
	assert.True(t, cfg.Storage.ArchiveSnapshot)
	assert.Equal(t, 30, cfg.Source.TimeoutSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Validation.Bounds.IsZero())
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  url: https://example.org/hydrants.json
  timeout_seconds: 10
validation:
  bounds:
    min_lat: 38.0
    max_lat: 40.0
    min_lon: -85.0
    max_lon: -84.0
storage:
  backend: bucket
  bucket_url: gs://lake
  prefix: hydrants/
  compression: zstd
alerts:
  kafka_brokers: [broker-1:9092, broker-2:9092]
  kafka_topic: hydrant-runs
metrics:
  enabled: true
  address: ":9191"
logging:
  level: debug
  format: json
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/hydrants.json", cfg.Source.URL)
	assert.Equal(t, 10, cfg.Source.TimeoutSeconds)
	assert.Equal(t, 38.0, cfg.Validation.Bounds.MinLat)
	assert.False(t, cfg.Validation.Bounds.IsZero())
	assert.Equal(t, "bucket", cfg.Storage.Backend)
	assert.Equal(t, "gs://lake", cfg.Storage.BucketURL)
	assert.Equal(t, "zstd", cfg.Storage.Compression)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Alerts.KafkaBrokers)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9191", cfg.Metrics.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: local
  local_dir: /from/file
`), 0644))

	t.Setenv("STORAGE_LOCAL_DIR", "/from/env")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("ALERT_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.Storage.LocalDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Alerts.KafkaBrokers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

// Package config loads pipeline settings from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pipeline settings.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Validation ValidationConfig `yaml:"validation"`
	Storage    StorageConfig    `yaml:"storage"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Registry   RegistryConfig   `yaml:"registry"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SourceConfig configures the open-data API collaborator.
type SourceConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ValidationConfig configures the data-quality rules.
type ValidationConfig struct {
	// Bounds overrides the default city bounding box when all four values
	// are set.
	Bounds BoundsConfig `yaml:"bounds"`
}

// BoundsConfig is the geographic envelope for coordinate validation.
type BoundsConfig struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// IsZero reports whether no bounding box was configured.
func (b BoundsConfig) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLon == 0 && b.MaxLon == 0
}

// StorageConfig configures the artifact destination.
type StorageConfig struct {
	Backend         string `yaml:"backend"` // "local" | "bucket"
	LocalDir        string `yaml:"local_dir"`
	BucketURL       string `yaml:"bucket_url"`
	Prefix          string `yaml:"prefix"`
	Compression     string `yaml:"compression"` // parquet codec
	ArchiveSnapshot bool   `yaml:"archive_snapshot"`
}

// CatalogConfig configures the optional run catalog.
type CatalogConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	Namespace   string `yaml:"namespace"`
}

// RegistryConfig configures the prior-run registry.
type RegistryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// AlertsConfig configures the alert sinks.
type AlertsConfig struct {
	WebhookURL   string   `yaml:"webhook_url"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the baseline configuration before file and environment
// overrides.
func Default() Config {
	return Config{
		Source: SourceConfig{
			TimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			Backend:         "local",
			LocalDir:        "./data",
			Prefix:          "hydrants/",
			Compression:     "snappy",
			ArchiveSnapshot: true,
		},
		Registry: RegistryConfig{
			Enabled: true,
			Dir:     "./state",
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the given YAML file (skipped when path is
// empty) and applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// MustLoad loads configuration from the CONFIG_FILE environment variable
// (empty means defaults + env only) and exits on failure.
func MustLoad() Config {
	cfg, err := Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("[config] %v", err)
	}
	return cfg
}

// applyEnv overrides selected settings from environment variables, which
// win over the file for container deployments.
func applyEnv(cfg *Config) {
	setString(&cfg.Source.URL, "SOURCE_URL")
	setString(&cfg.Storage.Backend, "STORAGE_BACKEND")
	setString(&cfg.Storage.LocalDir, "STORAGE_LOCAL_DIR")
	setString(&cfg.Storage.BucketURL, "STORAGE_BUCKET_URL")
	setString(&cfg.Storage.Prefix, "STORAGE_PREFIX")
	setString(&cfg.Catalog.PostgresDSN, "CATALOG_DSN")
	setString(&cfg.Catalog.Namespace, "CATALOG_NAMESPACE")
	setString(&cfg.Registry.Dir, "REGISTRY_DIR")
	setString(&cfg.Alerts.WebhookURL, "ALERT_WEBHOOK_URL")
	setString(&cfg.Alerts.KafkaTopic, "ALERT_KAFKA_TOPIC")
	setString(&cfg.Metrics.Address, "METRICS_ADDRESS")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	if v := os.Getenv("ALERT_KAFKA_BROKERS"); v != "" {
		cfg.Alerts.KafkaBrokers = strings.Split(v, ",")
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

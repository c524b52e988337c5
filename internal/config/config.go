// Package config provides configuration management for Recall.
// It loads settings from an optional YAML file and from environment
// variables with the RECALL_ prefix, with sensible defaults for all
// options. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Recall engine.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Similarity  SimilarityConfig  `yaml:"similarity"`
	LLM         LLMConfig         `yaml:"llm"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	// Engine selects the storage backend: sqlite, postgres, or memory
	// (default: sqlite).
	Engine string `yaml:"engine"`

	// DataPath is the directory holding the SQLite database file
	// (default: ./data).
	DataPath string `yaml:"data_path"`

	// PostgresDSN is the connection string for the postgres engine.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// SimilarityConfig contains embedding provider configuration.
type SimilarityConfig struct {
	// APIKey authenticates against the embedding API. Empty disables
	// semantic retrieval; the engine degrades to text-free ranking.
	APIKey string `yaml:"api_key"`

	// Model is the embedding model name (default: text-embedding-3-small).
	Model string `yaml:"model"`

	// BaseURL overrides the API endpoint, e.g. for a local proxy.
	BaseURL string `yaml:"base_url"`

	// CacheSize is the embedding LRU capacity (default: 4096).
	CacheSize int `yaml:"cache_size"`
}

// LLMConfig contains the text-generation provider used by consolidation.
type LLMConfig struct {
	// APIKey authenticates against the completion API. Empty disables
	// model-backed fact extraction; the deterministic extractor is used.
	APIKey string `yaml:"api_key"`

	// Model is the completion model name (default: gpt-4o-mini).
	Model string `yaml:"model"`

	// BaseURL overrides the API endpoint.
	BaseURL string `yaml:"base_url"`
}

// MaintenanceConfig controls the background sweeper.
type MaintenanceConfig struct {
	// Interval between sweeps (default: 1h).
	Interval time.Duration `yaml:"interval"`

	// OpsPerSecond bounds how many entities one sweep touches per second
	// (default: 50).
	OpsPerSecond float64 `yaml:"ops_per_second"`

	// Users are the user ids the sweeper maintains.
	Users []string `yaml:"users"`
}

// UnmarshalYAML accepts the interval as a duration string ("30m", "2h")
// and leaves absent fields untouched so file values layer over defaults.
func (m *MaintenanceConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Interval     string   `yaml:"interval"`
		OpsPerSecond *float64 `yaml:"ops_per_second"`
		Users        []string `yaml:"users"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("maintenance interval: %w", err)
		}
		m.Interval = d
	}
	if raw.OpsPerSecond != nil {
		m.OpsPerSecond = *raw.OpsPerSecond
	}
	if raw.Users != nil {
		m.Users = raw.Users
	}
	return nil
}

// LoadConfig loads configuration from the optional file at path and from
// RECALL_-prefixed environment variables. An empty path skips the file;
// a non-empty path that does not exist is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Storage.Engine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: postgres engine requires a DSN")
	}
	if c.Maintenance.Interval < 0 {
		return fmt.Errorf("config: negative maintenance interval")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		Similarity: SimilarityConfig{
			Model:     "text-embedding-3-small",
			CacheSize: 4096,
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		Maintenance: MaintenanceConfig{
			Interval:     time.Hour,
			OpsPerSecond: 50,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Storage.Engine = getEnv("RECALL_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("RECALL_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("RECALL_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Similarity.APIKey = getEnv("RECALL_EMBEDDING_API_KEY", cfg.Similarity.APIKey)
	cfg.Similarity.Model = getEnv("RECALL_EMBEDDING_MODEL", cfg.Similarity.Model)
	cfg.Similarity.BaseURL = getEnv("RECALL_EMBEDDING_BASE_URL", cfg.Similarity.BaseURL)
	cfg.Similarity.CacheSize = getEnvInt("RECALL_EMBEDDING_CACHE_SIZE", cfg.Similarity.CacheSize)

	cfg.LLM.APIKey = getEnv("RECALL_LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("RECALL_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = getEnv("RECALL_LLM_BASE_URL", cfg.LLM.BaseURL)

	cfg.Maintenance.Interval = getEnvDuration("RECALL_SWEEP_INTERVAL", cfg.Maintenance.Interval)
	cfg.Maintenance.OpsPerSecond = getEnvFloat("RECALL_SWEEP_OPS_PER_SECOND", cfg.Maintenance.OpsPerSecond)
	if users := os.Getenv("RECALL_SWEEP_USERS"); users != "" {
		cfg.Maintenance.Users = splitList(users)
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the environment variable exists but cannot be parsed as an
// integer, it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value when missing or unparseable.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable ("30m", "2h")
// or returns a default value when missing or unparseable.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package config loads sporenet's configuration from YAML with a
// defaults fallback, the same Viper search-path and Validate pattern
// the teacher uses for its application config.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/sporenet/sporenet/internal/ratelimit"
)

// Config is sporenet's complete runtime configuration.
type Config struct {
	Profile   string          `mapstructure:"profile"`
	Data      DataConfig      `mapstructure:"data"`
	RestAPI   RestAPIConfig   `mapstructure:"rest_api"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Beliefs   BeliefsConfig   `mapstructure:"beliefs"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	RateLimit ratelimit.Config `mapstructure:"rate_limit"`
}

// DataConfig holds the SQLite storage location and backup policy.
type DataConfig struct {
	Dir         string `mapstructure:"dir"`
	MaxBackups  int    `mapstructure:"max_backups"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RestAPIConfig holds REST API server configuration.
type RestAPIConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Port         int      `mapstructure:"port"`
	Host         string   `mapstructure:"host"`
	CORS         bool     `mapstructure:"cors"`
	APIKey       string   `mapstructure:"api_key"`
	AutoPort     bool     `mapstructure:"auto_port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OllamaConfig holds the default embedding/chat provider configuration.
type OllamaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	ChatModel      string `mapstructure:"chat_model"`
}

// BeliefsConfig holds the belief lifecycle thresholds.
type BeliefsConfig struct {
	DecayHalfLifeDays    float64 `mapstructure:"decay_half_life_days"`
	ReinforceThreshold   float64 `mapstructure:"reinforce_threshold"`
	GreyZoneFloor        float64 `mapstructure:"grey_zone_floor"`
	GreyZoneCeiling      float64 `mapstructure:"grey_zone_ceiling"`
	PruneThreshold       float64 `mapstructure:"prune_threshold"`
	ReflectionSimilarity float64 `mapstructure:"reflection_similarity"`
}

// RetrievalConfig holds the hybrid search cutoffs.
type RetrievalConfig struct {
	RecallCutoff    float64 `mapstructure:"recall_cutoff"`
	KnowledgeCutoff float64 `mapstructure:"knowledge_cutoff"`
}

// DefaultConfig returns sporenet's configuration with verified default
// values, mirroring the teacher's DefaultConfig shape.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".sporenet")

	return &Config{
		Profile: "default",
		Data: DataConfig{
			Dir:         dataDir,
			MaxBackups:  5,
			AutoMigrate: true,
		},
		RestAPI: RestAPIConfig{
			Enabled:  true,
			Port:     7077,
			Host:     "localhost",
			CORS:     true,
			AutoPort: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Ollama: OllamaConfig{
			Enabled:        true,
			BaseURL:        "http://localhost:11434",
			EmbeddingModel: "nomic-embed-text",
			ChatModel:      "qwen2.5:3b",
		},
		Beliefs: BeliefsConfig{
			DecayHalfLifeDays:    30,
			ReinforceThreshold:   0.85,
			GreyZoneFloor:        0.70,
			GreyZoneCeiling:      0.85,
			PruneThreshold:       0.1,
			ReflectionSimilarity: 0.90,
		},
		Retrieval: RetrievalConfig{
			RecallCutoff:    0.2,
			KnowledgeCutoff: 0.5,
		},
		RateLimit: *ratelimit.DefaultConfig(),
	}
}

// Load loads configuration from YAML with fallback to defaults.
// Searches, in order: ./config.yaml, ~/.sporenet/config.yaml,
// /etc/sporenet/config.yaml.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".sporenet"))
	v.AddConfigPath("/etc/sporenet")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("profile", d.Profile)
	v.SetDefault("data.dir", d.Data.Dir)
	v.SetDefault("data.max_backups", d.Data.MaxBackups)
	v.SetDefault("data.auto_migrate", d.Data.AutoMigrate)

	v.SetDefault("rest_api.enabled", d.RestAPI.Enabled)
	v.SetDefault("rest_api.port", d.RestAPI.Port)
	v.SetDefault("rest_api.host", d.RestAPI.Host)
	v.SetDefault("rest_api.cors", d.RestAPI.CORS)
	v.SetDefault("rest_api.auto_port", d.RestAPI.AutoPort)

	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.global.requests_per_second", d.RateLimit.Global.RequestsPerSecond)
	v.SetDefault("rate_limit.global.burst_size", d.RateLimit.Global.BurstSize)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("ollama.enabled", d.Ollama.Enabled)
	v.SetDefault("ollama.base_url", d.Ollama.BaseURL)
	v.SetDefault("ollama.embedding_model", d.Ollama.EmbeddingModel)
	v.SetDefault("ollama.chat_model", d.Ollama.ChatModel)

	v.SetDefault("beliefs.decay_half_life_days", d.Beliefs.DecayHalfLifeDays)
	v.SetDefault("beliefs.reinforce_threshold", d.Beliefs.ReinforceThreshold)
	v.SetDefault("beliefs.grey_zone_floor", d.Beliefs.GreyZoneFloor)
	v.SetDefault("beliefs.grey_zone_ceiling", d.Beliefs.GreyZoneCeiling)
	v.SetDefault("beliefs.prune_threshold", d.Beliefs.PruneThreshold)
	v.SetDefault("beliefs.reflection_similarity", d.Beliefs.ReflectionSimilarity)

	v.SetDefault("retrieval.recall_cutoff", d.Retrieval.RecallCutoff)
	v.SetDefault("retrieval.knowledge_cutoff", d.Retrieval.KnowledgeCutoff)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Data.MaxBackups < 0 {
		return fmt.Errorf("data.max_backups must be >= 0")
	}

	if c.RestAPI.Enabled {
		if c.RestAPI.Port < 1 || c.RestAPI.Port > 65535 {
			return fmt.Errorf("rest_api.port must be between 1 and 65535")
		}
		if c.RestAPI.Host == "" {
			return fmt.Errorf("rest_api.host is required when the REST API is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	if c.Ollama.Enabled && c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url is required when Ollama is enabled")
	}

	if c.Beliefs.GreyZoneFloor > c.Beliefs.GreyZoneCeiling {
		return fmt.Errorf("beliefs.grey_zone_floor must be <= beliefs.grey_zone_ceiling")
	}
	if c.Beliefs.DecayHalfLifeDays <= 0 {
		return fmt.Errorf("beliefs.decay_half_life_days must be > 0")
	}

	return nil
}

// EnsureDataDir creates the configured data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.Data.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// ConfigDir returns the default configuration directory.
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".sporenet")
}

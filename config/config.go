package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	AlertLens AlertLensConfig `yaml:"alertlens"`
}

// AlertLensConfig is the project configuration.
type AlertLensConfig struct {
	DataDir   string          `yaml:"data_dir" validate:"required"`
	Rules     RulesConfig     `yaml:"rules"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Match     MatchConfig     `yaml:"match"`
	LLM       LLMConfig       `yaml:"llm"`
	Takeaways TakeawaysConfig `yaml:"takeaways"`
	Report    ReportConfig    `yaml:"report"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RulesConfig locates the rule corpus.
type RulesConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// AlertsConfig controls where raw alerts come from.
type AlertsConfig struct {
	Input AlertInputConfig `yaml:"input"`
}

// AlertInputConfig selects the alert source.
type AlertInputConfig struct {
	Mode  string           `yaml:"mode" validate:"oneof=file redis"` // file|redis
	File  FileConfig       `yaml:"file"`
	Redis RedisInputConfig `yaml:"redis"`
}

// FileConfig is a local path. An empty alert input path means alerts.json
// in the data directory.
type FileConfig struct {
	Path string `yaml:"path"`
}

// RedisInputConfig controls the Redis alert queue.
type RedisInputConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
	MaxAlerts    int           `yaml:"max_alerts" validate:"gte=0"`
}

// EmbeddingConfig selects the embedding provider and its caches.
type EmbeddingConfig struct {
	Provider   string           `yaml:"provider" validate:"oneof=ollama mock"`
	Model      string           `yaml:"model"`
	ServerURL  string           `yaml:"server_url"`
	Dimensions int              `yaml:"dimensions" validate:"gte=0"`
	CacheSize  int              `yaml:"cache_size" validate:"gte=0"`
	Workers    int              `yaml:"workers" validate:"gte=1"`
	Redis      RedisCacheConfig `yaml:"redis"`
}

// RedisCacheConfig controls the shared embedding cache.
type RedisCacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// MatchConfig controls nearest-rule search.
type MatchConfig struct {
	TopK          int               `yaml:"top_k" validate:"gte=1"`
	Workers       int               `yaml:"workers" validate:"gte=1"`
	SearchTimeout time.Duration     `yaml:"search_timeout" validate:"gte=0"`
	Pairing       string            `yaml:"pairing" validate:"oneof=best all"`
	Output        MatchOutputConfig `yaml:"output"`
}

// MatchOutputConfig controls optional match sinks.
type MatchOutputConfig struct {
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	Enabled   bool              `yaml:"enabled"`
	URL       string            `yaml:"url" validate:"required_if=Enabled true"`
	Database  string            `yaml:"database"`
	Table     string            `yaml:"table"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Timeout   time.Duration     `yaml:"timeout"`
	BatchSize int               `yaml:"batch_size"`
	Headers   map[string]string `yaml:"headers"`
}

// LLMConfig controls the completion backend and the retry loop.
type LLMConfig struct {
	Backend       string        `yaml:"backend" validate:"oneof=ollama-cli ollama-api"`
	Model         string        `yaml:"model" validate:"required"`
	ServerURL     string        `yaml:"server_url"`
	Command       []string      `yaml:"command"`
	RetryDelay    time.Duration `yaml:"retry_delay" validate:"gt=0"`
	MaxAttempts   int           `yaml:"max_attempts" validate:"gte=0"`
	DetailWorkers int           `yaml:"detail_workers" validate:"gte=1"`
}

// TakeawaysConfig controls the organization-level report.
type TakeawaysConfig struct {
	Count int `yaml:"count" validate:"gte=1"`
}

// ReportConfig controls report delivery.
type ReportConfig struct {
	Webhook HTTPOutputConfig `yaml:"webhook"`
}

// HTTPOutputConfig config for remote output. Empty URL disables it.
type HTTPOutputConfig struct {
	URL        string            `yaml:"url" validate:"omitempty,url"`
	Timeout    time.Duration     `yaml:"timeout"`
	Headers    map[string]string `yaml:"headers"`
	Retries    int               `yaml:"retries" validate:"gte=0"`
	RetryDelay time.Duration     `yaml:"retry_delay"`
}

// MetricsConfig controls the metrics textfile. Empty path disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.AlertLens.Logging = LoggingConfig{Enabled: true, Console: true}
	ApplyDefaults(cfg)
	return cfg
}

// LoadConfig reads and parses a YAML config file. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.AlertLens.Logging = LoggingConfig{Enabled: true, Console: true}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	c := &cfg.AlertLens
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Rules.Path == "" {
		c.Rules.Path = "rules"
	}

	if c.Alerts.Input.Mode == "" {
		c.Alerts.Input.Mode = "file"
	}
	if c.Alerts.Input.Redis.Addr == "" {
		c.Alerts.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Alerts.Input.Redis.Key == "" {
		c.Alerts.Input.Redis.Key = "alertlens:alerts"
	}
	if c.Alerts.Input.Redis.BlockTimeout == 0 {
		c.Alerts.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "all-minilm"
	}
	if c.Embedding.ServerURL == "" {
		c.Embedding.ServerURL = "http://localhost:11434"
	}
	if c.Embedding.CacheSize == 0 {
		c.Embedding.CacheSize = 4096
	}
	if c.Embedding.Workers == 0 {
		c.Embedding.Workers = 4
	}
	if c.Embedding.Redis.Addr == "" {
		c.Embedding.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Embedding.Redis.KeyPrefix == "" {
		c.Embedding.Redis.KeyPrefix = "alertlens:emb:"
	}
	if c.Embedding.Redis.TTL == 0 {
		c.Embedding.Redis.TTL = 7 * 24 * time.Hour
	}

	if c.Match.TopK == 0 {
		c.Match.TopK = 5
	}
	if c.Match.Workers == 0 {
		c.Match.Workers = 4
	}
	if c.Match.SearchTimeout == 0 {
		c.Match.SearchTimeout = 30 * time.Second
	}
	if c.Match.Pairing == "" {
		c.Match.Pairing = "best"
	}
	if c.Match.Output.ClickHouse.Table == "" {
		c.Match.Output.ClickHouse.Table = "alert_matches"
	}

	if c.LLM.Backend == "" {
		c.LLM.Backend = "ollama-cli"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3:8b"
	}
	if c.LLM.RetryDelay == 0 {
		c.LLM.RetryDelay = 2 * time.Second
	}
	if c.LLM.DetailWorkers == 0 {
		c.LLM.DetailWorkers = 1
	}

	if c.Takeaways.Count == 0 {
		c.Takeaways.Count = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks field constraints.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	return v.Struct(cfg)
}

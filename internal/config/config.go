package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it decodes from YAML strings like "5s".
// yaml.v3 has no native time.Duration support.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds importer configuration.
type Config struct {
	SourcePath     string   `yaml:"source_path" json:"source_path"`
	DatabaseDSN    string   `yaml:"database_dsn" json:"database_dsn"`
	LoadBatchSize  int      `yaml:"load_batch_size" json:"load_batch_size"`
	ChunkSize      int      `yaml:"chunk_size" json:"chunk_size"`
	Debug          bool     `yaml:"debug" json:"debug"`
	WebhookURL     string   `yaml:"webhook_url" json:"webhook_url"`
	WebhookTimeout Duration `yaml:"webhook_timeout" json:"webhook_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SourcePath:     "customers.csv",
		DatabaseDSN:    "file:customers.db",
		LoadBatchSize:  1000,
		ChunkSize:      1000,
		WebhookTimeout: Duration(5 * time.Second),
	}
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.SourcePath == "" {
		cfg.SourcePath = def.SourcePath
	}
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = def.DatabaseDSN
	}
	if cfg.LoadBatchSize <= 0 {
		cfg.LoadBatchSize = def.LoadBatchSize
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = def.WebhookTimeout
	}
	return cfg
}

// Parse loads YAML bytes into a Config, filling defaults for missing keys.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return applyDefaults(cfg), nil
}

// Load reads a YAML config file. A missing path yields pure defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

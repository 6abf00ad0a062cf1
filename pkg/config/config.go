// Package config loads service configuration from YAML and environment
// variables. Environment variables override YAML values; secrets come from
// the environment only.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for fabriq-engine.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8085"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""`
	Version  string `yaml:"-"` // Set at load time, not from config

	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Vision   VisionConfig   `yaml:"vision"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"fabriq"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"fabriq_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// URL builds a connection string for pgx.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// RedisConfig holds the estimation-result cache configuration. Leave Host
// empty to run without a cache.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// VisionConfig configures the external drawing-interpretation service.
type VisionConfig struct {
	Provider string `yaml:"provider" env:"VISION_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"VISION_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"VISION_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"VISION_API_KEY"` // Secret - not in YAML
	// TimeoutSeconds bounds one interpretation round trip.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"VISION_TIMEOUT_SECONDS" env-default:"90"`
	// MaxRetries bounds retries of transient network failures. Semantic
	// failures are never retried.
	MaxRetries int `yaml:"max_retries" env:"VISION_MAX_RETRIES" env-default:"3"`
}

// PipelineConfig tunes estimation pipeline concurrency.
type PipelineConfig struct {
	// ExtractorWorkers caps concurrent kernel extractions. 0 means one per
	// CPU core.
	ExtractorWorkers int `yaml:"extractor_workers" env:"EXTRACTOR_WORKERS" env-default:"0"`
}

// Load reads config.yaml when present, then applies environment overrides.
func Load(version string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read environment: %w", err)
		}
	}

	cfg.Version = version
	return cfg, nil
}

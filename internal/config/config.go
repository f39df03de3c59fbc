// Package config provides unified configuration loading for the VIN engine.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the VIN engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Cache         CacheConfig         `yaml:"cache"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Enrichment    EnrichmentConfig    `yaml:"enrichment"`
	OCR           OCRConfig           `yaml:"ocr"`
	Observability ObservabilityConfig `yaml:"observability"`
	Auth          AuthConfig          `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// CacheConfig holds decode cache settings.
type CacheConfig struct {
	Driver     string         `yaml:"driver"` // memory, redis, sqlite or postgres
	TTL        time.Duration  `yaml:"ttl"`
	MaxEntries int            `yaml:"max_entries"`
	Redis      RedisConfig    `yaml:"redis"`
	SQLite     SQLiteConfig   `yaml:"sqlite"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// GatewayConfig holds remote decode (NHTSA vPIC) settings.
type GatewayConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	UserAgent  string        `yaml:"user_agent"`
}

// EnrichmentConfig holds local-first decode settings.
type EnrichmentConfig struct {
	RemoteTimeout    time.Duration `yaml:"remote_timeout"`
	BatchConcurrency int           `yaml:"batch_concurrency"`
}

// OCRConfig holds tesseract settings.
type OCRConfig struct {
	Tesseract     string `yaml:"tesseract"`
	Lang          string `yaml:"lang"`
	TessdataDir   string `yaml:"tessdata_dir"`
	PSM           int    `yaml:"psm"`
	TSVConfidence bool   `yaml:"tsv_confidence"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// AuthConfig holds API key settings for /api/v1.
type AuthConfig struct {
	Enabled bool     `yaml:"enabled"`
	APIKeys []string `yaml:"api_keys"`
}

// Load reads .env files, then the YAML file at path (if any), then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// Missing .env files are fine.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8086,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   30 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   10 << 20,
			AllowedOrigins:   []string{"*"},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        24 * time.Hour,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
				Prefix:   "vin:",
			},
			SQLite: SQLiteConfig{
				Path:         "/tmp/vin-engine-cache.db",
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Gateway: GatewayConfig{
			Enabled:    true,
			BaseURL:    "https://vpic.nhtsa.dot.gov/api",
			Timeout:    10 * time.Second,
			MaxRetries: 0,
			UserAgent:  "vin-engine/1.0",
		},
		Enrichment: EnrichmentConfig{
			RemoteTimeout:    8 * time.Second,
			BatchConcurrency: 4,
		},
		OCR: OCRConfig{
			Tesseract:     "tesseract",
			Lang:          "eng",
			PSM:           6,
			TSVConfidence: true,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "vin-engine",
		},
		Auth: AuthConfig{
			Enabled: false,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Cache.Driver {
	case "memory", "redis", "sqlite":
	case "postgres":
		if c.Cache.Postgres.DSN == "" {
			return fmt.Errorf("cache driver postgres requires cache.postgres.dsn")
		}
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}

	if c.Gateway.Enabled && c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway base_url is required when the gateway is enabled")
	}

	if c.Gateway.MaxRetries < 0 || c.Gateway.MaxRetries > 5 {
		return fmt.Errorf("gateway max_retries must be between 0 and 5")
	}

	if c.Enrichment.BatchConcurrency < 1 || c.Enrichment.BatchConcurrency > 32 {
		return fmt.Errorf("enrichment batch_concurrency must be between 1 and 32")
	}

	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth enabled but no api_keys configured")
	}

	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Cache.Driver = "sqlite"
			cfg.Cache.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Cache.Driver = "postgres"
			cfg.Cache.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}

	if v := os.Getenv("NHTSA_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}

	if v := os.Getenv("GATEWAY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gateway.Enabled = b
		}
	}

	if v := os.Getenv("GATEWAY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Gateway.Timeout = d
		}
	}

	if v := os.Getenv("TESSERACT_PATH"); v != "" {
		cfg.OCR.Tesseract = v
	}

	if v := os.Getenv("TESSDATA_PREFIX"); v != "" {
		cfg.OCR.TessdataDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("API_KEY"); v != "" {
		cfg.Auth.Enabled = true
		cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, v)
	}
}

// Package config loads the runtime configuration for the trend engine,
// ingestion job and API server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// History sources for window resolution.
const (
	HistorySourcePostgres   = "postgres"
	HistorySourceClickhouse = "clickhouse"
)

// Defaults.
const (
	DefaultChunkSize        = 500
	DefaultChunkDelay       = 500 * time.Millisecond
	DefaultStatementTimeout = 60 * time.Second
	DefaultTrendsCron       = "0 0 6 * * *"
	DefaultIngestCron       = "0 0 5 * * *"
	DefaultHTTPAddr         = ":8080"
	DefaultIngestionBaseURL = "https://tcgcsv.com/tcgplayer"
	DefaultIngestionTimeout = 60 * time.Second
	DefaultCategoryID       = 3
)

// Config holds all application configuration.
type Config struct {
	ChunkSize        int           `yaml:"chunk_size"`
	ChunkDelay       time.Duration `yaml:"chunk_delay"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	HistorySource    string        `yaml:"history_source"`

	Database struct {
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Name     string `yaml:"name"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	Clickhouse struct {
		DSN string `yaml:"dsn"`
	} `yaml:"clickhouse"`

	Schedule struct {
		TrendsCron string `yaml:"trends_cron"`
		IngestCron string `yaml:"ingest_cron"`
	} `yaml:"schedule"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Ingestion struct {
		BaseURL    string        `yaml:"base_url"`
		CategoryID int           `yaml:"category_id"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"ingestion"`
}

// Load reads config from a YAML file (optional), loads a .env file if present,
// applies environment variable overrides, then fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// .env is optional; existing environment variables take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DSN, "POSTGRES_DSN")
	setString(&c.Clickhouse.DSN, "CLICKHOUSE_DSN")
	setString(&c.HistorySource, "HISTORY_SOURCE")
	setString(&c.Schedule.TrendsCron, "TRENDS_CRON")
	setString(&c.Schedule.IngestCron, "INGEST_CRON")
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.Ingestion.BaseURL, "INGESTION_BASE_URL")

	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse DB_PORT: %w", err)
		}
		c.Database.Port = port
	}
	if v := os.Getenv("CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = n
	}
	if err := setDuration(&c.ChunkDelay, "CHUNK_DELAY"); err != nil {
		return err
	}
	if err := setDuration(&c.StatementTimeout, "STATEMENT_TIMEOUT"); err != nil {
		return err
	}
	return setDuration(&c.Ingestion.Timeout, "INGESTION_TIMEOUT")
}

func (c *Config) applyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkDelay == 0 {
		c.ChunkDelay = DefaultChunkDelay
	}
	if c.StatementTimeout == 0 {
		c.StatementTimeout = DefaultStatementTimeout
	}
	if c.HistorySource == "" {
		c.HistorySource = HistorySourcePostgres
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.Name == "" {
		c.Database.Name = "pokemon_tcg"
	}
	if c.Database.User == "" {
		c.Database.User = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Schedule.TrendsCron == "" {
		c.Schedule.TrendsCron = DefaultTrendsCron
	}
	if c.Schedule.IngestCron == "" {
		c.Schedule.IngestCron = DefaultIngestCron
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.Ingestion.BaseURL == "" {
		c.Ingestion.BaseURL = DefaultIngestionBaseURL
	}
	if c.Ingestion.CategoryID == 0 {
		c.Ingestion.CategoryID = DefaultCategoryID
	}
	if c.Ingestion.Timeout == 0 {
		c.Ingestion.Timeout = DefaultIngestionTimeout
	}
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ChunkDelay < 0 {
		return fmt.Errorf("chunk_delay must not be negative")
	}
	if c.StatementTimeout < 0 {
		return fmt.Errorf("statement_timeout must not be negative")
	}
	switch c.HistorySource {
	case HistorySourcePostgres:
	case HistorySourceClickhouse:
		if c.Clickhouse.DSN == "" {
			return fmt.Errorf("clickhouse.dsn is required when history_source is clickhouse")
		}
	default:
		return fmt.Errorf("history_source must be %q or %q, got %q",
			HistorySourcePostgres, HistorySourceClickhouse, c.HistorySource)
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.Ingestion.CategoryID <= 0 {
		return fmt.Errorf("ingestion.category_id must be positive")
	}
	return nil
}

// PostgresDSN returns database.dsn if set, otherwise builds a URL from the
// individual connection fields.
func (c *Config) PostgresDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	if c.Database.Password != "" {
		u.User = url.UserPassword(c.Database.User, c.Database.Password)
	} else {
		u.User = url.User(c.Database.User)
	}
	return u.String()
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = d
	return nil
}

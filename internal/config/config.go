// Package config provides configuration management for the STAC federator.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Cache backends.
const (
	CacheBackendNone     = "none"
	CacheBackendPostgres = "postgres"
	CacheBackendSQLite   = "sqlite"
	CacheBackendRedis    = "redis"
)

// Job queue backends.
const (
	JobsBackendNone   = "none"
	JobsBackendMemory = "memory"
	JobsBackendRedis  = "redis"
)

// Config holds the complete application configuration loaded from environment variables.
type Config struct {
	Server         ServerConfig    `envPrefix:"SERVER_"`
	STAC           STACConfig      `envPrefix:"STAC_"`
	Search         SearchConfig    `envPrefix:"SEARCH_"`
	Provider       ProviderConfig  `envPrefix:"PROVIDER_"`
	Sentinel       SentinelConfig  `envPrefix:"SENTINEL_"`
	Landsat        LandsatConfig   `envPrefix:"LANDSAT_"`
	Planetary      PlanetaryConfig `envPrefix:"PC_"`
	Cache          CacheConfig     `envPrefix:"CACHE_"`
	Assets         AssetsConfig    `envPrefix:"ASSETS_"`
	Jobs           JobsConfig      `envPrefix:"JOBS_"`
	Metrics        MetricsConfig   `envPrefix:"METRICS_"`
	Logging        LoggingConfig   `envPrefix:"LOG_"`
	CollectionsDir string          `env:"COLLECTIONS_DIR" envDefault:""`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// STACConfig contains STAC API metadata configuration.
type STACConfig struct {
	Version     string `env:"VERSION" envDefault:"1.0.0"`
	BaseURL     string `env:"BASE_URL"` // Public-facing URL (required)
	Title       string `env:"TITLE" envDefault:"STAC Federator"`
	Description string `env:"DESCRIPTION" envDefault:"Federated satellite imagery search across Copernicus, USGS and Microsoft Planetary Computer"`
}

// SearchConfig contains federated search limits.
type SearchConfig struct {
	DefaultLimit    int           `env:"DEFAULT_LIMIT" envDefault:"10"`
	MaxLimit        int           `env:"MAX_LIMIT" envDefault:"100"`
	Deadline        time.Duration `env:"DEADLINE" envDefault:"20s"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"15s"`
	Deduplicate     bool          `env:"DEDUPLICATE" envDefault:"true"`
}

// ProviderConfig bounds the load sent to each upstream.
type ProviderConfig struct {
	Concurrency       int           `env:"CONCURRENCY" envDefault:"4"`
	RequestsPerSecond float64       `env:"RPS" envDefault:"5"`
	Burst             int           `env:"BURST" envDefault:"5"`
	SlowThreshold     time.Duration `env:"SLOW_THRESHOLD" envDefault:"5s"`
}

// SentinelConfig configures the Copernicus Data Space adapter.
type SentinelConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	BaseURL string `env:"BASE_URL" envDefault:"https://stac.dataspace.copernicus.eu/v1"`
}

// LandsatConfig configures the USGS LandsatLook adapter.
type LandsatConfig struct {
	Enabled       bool          `env:"ENABLED" envDefault:"true"`
	BaseURL       string        `env:"BASE_URL" envDefault:"https://landsatlook.usgs.gov/stac-server"`
	S3Presign     bool          `env:"S3_PRESIGN" envDefault:"false"`
	S3Region      string        `env:"S3_REGION" envDefault:"us-west-2"`
	PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"1h"`
	RequesterPays bool          `env:"REQUESTER_PAYS" envDefault:"true"`
}

// PlanetaryConfig configures the Microsoft Planetary Computer adapter.
type PlanetaryConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	BaseURL string `env:"BASE_URL" envDefault:"https://planetarycomputer.microsoft.com/api/stac/v1"`
	SASURL  string `env:"SAS_URL" envDefault:"https://planetarycomputer.microsoft.com/api/sas/v1/sign"`
}

// CacheConfig contains response cache configuration.
type CacheConfig struct {
	// Backend selects the durable tier: "none", "postgres", "sqlite" or "redis".
	// "none" keeps responses in process memory only, for local development.
	Backend        string        `env:"BACKEND" envDefault:"sqlite"`
	DSN            string        `env:"DSN" envDefault:"stac-federator-cache.db"`
	TTL            time.Duration `env:"TTL" envDefault:"24h"`
	PartialTTL     time.Duration `env:"PARTIAL_TTL" envDefault:"5m"`
	MemoryCapacity int           `env:"MEMORY_CAPACITY" envDefault:"50"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	BBoxPrecision  int           `env:"BBOX_PRECISION" envDefault:"4"`
}

// AssetsConfig contains asset resolution options.
type AssetsConfig struct {
	ProbeCOG     bool          `env:"PROBE_COG" envDefault:"false"`
	ProbeTimeout time.Duration `env:"PROBE_TIMEOUT" envDefault:"10s"`
}

// JobsConfig contains processing queue configuration.
type JobsConfig struct {
	// Backend selects the queue: "none", "memory" or "redis".
	Backend  string `env:"BACKEND" envDefault:"memory"`
	RedisURL string `env:"REDIS_URL" envDefault:""`
}

// MetricsConfig contains Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses configuration from environment variables, after loading a
// .env file from the working directory if one exists.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.Server.ReadTimeout)
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive, got %s", c.Server.WriteTimeout)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}

	// Validate STAC config
	if c.STAC.BaseURL == "" {
		return fmt.Errorf("STAC base URL is required")
	}

	if c.STAC.Version == "" {
		return fmt.Errorf("STAC version is required")
	}

	// Validate search config
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("default limit must be at least 1, got %d", c.Search.DefaultLimit)
	}

	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("max limit (%d) must be >= default limit (%d)", c.Search.MaxLimit, c.Search.DefaultLimit)
	}

	if c.Search.MaxLimit > 100 {
		return fmt.Errorf("max limit must be at most 100, got %d", c.Search.MaxLimit)
	}

	if c.Search.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive, got %s", c.Search.ProviderTimeout)
	}

	if c.Search.Deadline < 0 {
		return fmt.Errorf("search deadline cannot be negative, got %s", c.Search.Deadline)
	}

	// Validate provider config
	if c.Provider.Concurrency < 1 {
		return fmt.Errorf("provider concurrency must be at least 1, got %d", c.Provider.Concurrency)
	}

	if c.Provider.RequestsPerSecond < 0 {
		return fmt.Errorf("provider requests per second cannot be negative, got %v", c.Provider.RequestsPerSecond)
	}

	if !c.Sentinel.Enabled && !c.Landsat.Enabled && !c.Planetary.Enabled {
		return fmt.Errorf("at least one provider must be enabled")
	}

	if c.Sentinel.Enabled && c.Sentinel.BaseURL == "" {
		return fmt.Errorf("Sentinel base URL is required")
	}

	if c.Landsat.Enabled && c.Landsat.BaseURL == "" {
		return fmt.Errorf("Landsat base URL is required")
	}

	if c.Landsat.S3Presign && c.Landsat.S3Region == "" {
		return fmt.Errorf("Landsat S3 region is required when presigning is enabled")
	}

	if c.Planetary.Enabled && (c.Planetary.BaseURL == "" || c.Planetary.SASURL == "") {
		return fmt.Errorf("Planetary Computer base URL and SAS URL are required")
	}

	// Validate cache config
	switch c.Cache.Backend {
	case CacheBackendNone:
	case CacheBackendPostgres, CacheBackendSQLite, CacheBackendRedis:
		if c.Cache.DSN == "" {
			return fmt.Errorf("cache DSN is required for backend %q", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("cache backend must be one of: none, postgres, sqlite, redis, got %q", c.Cache.Backend)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.Cache.TTL)
	}

	if c.Cache.PartialTTL < 0 || c.Cache.PartialTTL > c.Cache.TTL {
		return fmt.Errorf("cache partial TTL must be between 0 and the cache TTL, got %s", c.Cache.PartialTTL)
	}

	if c.Cache.MemoryCapacity < 1 {
		return fmt.Errorf("cache memory capacity must be at least 1, got %d", c.Cache.MemoryCapacity)
	}

	if c.Cache.BBoxPrecision < 0 || c.Cache.BBoxPrecision > 10 {
		return fmt.Errorf("cache bbox precision must be between 0 and 10, got %d", c.Cache.BBoxPrecision)
	}

	// Validate jobs config
	switch c.Jobs.Backend {
	case JobsBackendNone, JobsBackendMemory:
	case JobsBackendRedis:
		if c.Jobs.RedisURL == "" {
			return fmt.Errorf("jobs Redis URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("jobs backend must be one of: none, memory, redis, got %q", c.Jobs.Backend)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics path is required when metrics are enabled")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}

// Address returns the server listen address in the format "host:port".
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

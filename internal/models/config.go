// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every service component.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, storage, redis, etc.)
// - Defaults that work on a single machine without Redis
// - Validation that catches misconfigurations at startup, never per request
package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Storage type constants
const (
	StorageTypeJSON     = "json"
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Cache and invalidation backend constants
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Rate limit tier names referenced by the built-in policy table.
const (
	TierDefault = "default"
	TierStrict  = "strict"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP server and network settings
// - Storage: system of record for products
// - Security: caller identity resolution
// - Redis: shared store connection used by rate limiting, caching and invalidation
// - RateLimit: bucket tiers and store failure behaviour
// - Cache: local result cache
// - Invalidation: cross-instance invalidation channel
// - Logging, Metrics, Observability: operational output
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Redis         RedisConfig         `yaml:"redis" json:"redis"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
	Cache         CacheConfig         `yaml:"cache" json:"cache"`
	Invalidation  InvalidationConfig  `yaml:"invalidation" json:"invalidation"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Path     string         `yaml:"path" json:"path"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// SecurityConfig controls how the caller identity is read. Authentication
// itself happens upstream; the service only trusts what it is handed.
type SecurityConfig struct {
	// JWTSecret verifies bearer tokens whose "sub" claim becomes the user id.
	JWTSecret string `yaml:"jwt_secret" json:"-"`
	// UserHeader is read when no valid bearer token is present. It is empty
	// by default: only set it behind a gateway that overwrites the header,
	// otherwise any client can pick a fresh identity per request.
	UserHeader string `yaml:"user_header" json:"user_header"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Password     string        `yaml:"password" json:"-"`
	DB           int           `yaml:"db" json:"db"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// BandwidthConfig is one (capacity, refill period) pair of a tier.
type BandwidthConfig struct {
	Capacity int64         `yaml:"capacity" json:"capacity"`
	Period   time.Duration `yaml:"period" json:"period"`
}

type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// FailOpen admits requests when the bucket store cannot be reached.
	FailOpen bool `yaml:"fail_open" json:"fail_open"`
	// Store holds bucket state: redis shares it across instances, memory
	// keeps it in this process only.
	Store string `yaml:"store" json:"store"`
	// StoreTimeout bounds every consumption round-trip.
	StoreTimeout time.Duration `yaml:"store_timeout" json:"store_timeout"`
	// DefaultRetryAfter is reported when the store cannot say when tokens return.
	DefaultRetryAfter time.Duration                `yaml:"default_retry_after" json:"default_retry_after"`
	Tiers             map[string][]BandwidthConfig `yaml:"tiers" json:"tiers"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Type    string        `yaml:"type" json:"type"`
	Name    string        `yaml:"name" json:"name"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
	// OpTimeout bounds every cache round-trip; a timeout reads as a miss.
	OpTimeout time.Duration `yaml:"op_timeout" json:"op_timeout"`
	Memory    MemoryConfig  `yaml:"memory" json:"memory"`
}

type MemoryConfig struct {
	// MaxSize bounds the entry count; the least recently used entry goes first.
	MaxSize int `yaml:"max_size" json:"max_size"`
}

type InvalidationConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	Type           string        `yaml:"type" json:"type"`
	Channel        string        `yaml:"channel" json:"channel"`
	PublishTimeout time.Duration `yaml:"publish_timeout" json:"publish_timeout"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration that runs on one machine with
// Redis at localhost.
//
// Default Values:
// - Tier "default": 100 requests per minute and 1000 per hour
// - Tier "strict": 10 requests per minute and 100 per hour
// - Cache TTL of one hour bounds staleness when invalidation messages are lost
// - Invalidation channel "product-cache-events"
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Path: "./data/products.json",
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			FailOpen:          true,
			Store:             BackendRedis,
			StoreTimeout:      250 * time.Millisecond,
			DefaultRetryAfter: 60 * time.Second,
			Tiers: map[string][]BandwidthConfig{
				TierDefault: {
					{Capacity: 100, Period: time.Minute},
					{Capacity: 1000, Period: time.Hour},
				},
				TierStrict: {
					{Capacity: 10, Period: time.Minute},
					{Capacity: 100, Period: time.Hour},
				},
			},
		},
		Cache: CacheConfig{
			Enabled:   true,
			Type:      BackendRedis,
			Name:      "products",
			TTL:       time.Hour,
			OpTimeout: 250 * time.Millisecond,
			Memory: MemoryConfig{
				MaxSize: 10000,
			},
		},
		Invalidation: InvalidationConfig{
			Enabled:        true,
			Type:           BackendRedis,
			Channel:        "product-cache-events",
			PublishTimeout: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "productservice",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache config: %w", err)
	}

	if err := c.Invalidation.Validate(); err != nil {
		return fmt.Errorf("invalid invalidation config: %w", err)
	}

	if c.UsesRedis() && c.Redis.Addr == "" {
		return errors.New("invalid redis config: address is required when a redis backend is enabled")
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	return nil
}

// UsesRedis reports whether any enabled component needs the shared Redis connection.
func (c *Config) UsesRedis() bool {
	return (c.RateLimit.Enabled && c.RateLimit.Store == BackendRedis) ||
		(c.Cache.Enabled && c.Cache.Type == BackendRedis) ||
		(c.Invalidation.Enabled && c.Invalidation.Type == BackendRedis)
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypeJSON:
		if stc.Path == "" {
			return errors.New("path is required for JSON storage")
		}
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return errors.New("database DSN is required for database storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
	return nil
}

// Validate checks every tier. A tier with no bandwidths or a non-positive
// capacity or period is rejected here so it can never reach a request.
func (rl *RateLimitConfig) Validate() error {
	if !rl.Enabled {
		return nil
	}

	if rl.Store != BackendMemory && rl.Store != BackendRedis {
		return fmt.Errorf("invalid rate limit store: %s", rl.Store)
	}

	if rl.StoreTimeout <= 0 {
		return errors.New("store timeout must be positive")
	}

	if rl.DefaultRetryAfter <= 0 {
		return errors.New("default retry after must be positive")
	}

	for _, required := range []string{TierDefault, TierStrict} {
		if _, ok := rl.Tiers[required]; !ok {
			return fmt.Errorf("tier %q must be configured", required)
		}
	}

	for _, name := range rl.TierNames() {
		bandwidths := rl.Tiers[name]
		if len(bandwidths) == 0 {
			return fmt.Errorf("tier %q has no bandwidths", name)
		}
		for i, bw := range bandwidths {
			if bw.Capacity <= 0 {
				return fmt.Errorf("tier %q bandwidth %d: capacity must be positive", name, i)
			}
			if bw.Period <= 0 {
				return fmt.Errorf("tier %q bandwidth %d: period must be positive", name, i)
			}
		}
	}

	return nil
}

// TierNames returns the configured tier names in sorted order.
func (rl *RateLimitConfig) TierNames() []string {
	names := make([]string, 0, len(rl.Tiers))
	for name := range rl.Tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cc *CacheConfig) Validate() error {
	if !cc.Enabled {
		return nil
	}

	if cc.Type != BackendMemory && cc.Type != BackendRedis {
		return fmt.Errorf("invalid cache type: %s", cc.Type)
	}

	if cc.Name == "" {
		return errors.New("cache name cannot be empty")
	}

	if cc.TTL <= 0 {
		return errors.New("cache TTL must be positive")
	}

	if cc.OpTimeout <= 0 {
		return errors.New("cache operation timeout must be positive")
	}

	return nil
}

func (ic *InvalidationConfig) Validate() error {
	if !ic.Enabled {
		return nil
	}

	if ic.Type != BackendMemory && ic.Type != BackendRedis {
		return fmt.Errorf("invalid invalidation type: %s", ic.Type)
	}

	if ic.Channel == "" {
		return errors.New("channel cannot be empty")
	}

	if ic.PublishTimeout <= 0 {
		return errors.New("publish timeout must be positive")
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	switch lc.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	switch lc.Output {
	case "stdout", "stderr":
	case "file":
		if lc.FilePath == "" {
			return errors.New("file path is required when output is file")
		}
	default:
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

package config

import (
	"time"

	"github.com/courtcopilot/courtcopilot/internal/ailink"
)

// Config represents the complete application configuration.
// Layer 1: built-in defaults
// Layer 2: user config file (~/.config/courtcopilot/config.yaml or --config)
// Layer 3: COURTCOPILOT_* environment variables and runtime overrides
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	History  HistoryConfig  `mapstructure:"history"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	AILink   ailink.Config  `mapstructure:"ailink"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the key-value backend.
//
// Driver "libsql" uses Path (local file) or URL (remote Turso); "memory"
// keeps everything in process. MaxBytes caps the total stored value size;
// zero means unbounded.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
}

// CacheConfig contains result cache configuration.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// HistoryConfig bounds the query history log.
type HistoryConfig struct {
	MaxItems int `mapstructure:"max_items"`
}

// PipelineConfig tunes the search pipeline.
type PipelineConfig struct {
	MaxQueryLength int `mapstructure:"max_query_length"`

	// CoalesceInflight shares one execution between concurrent identical
	// requests. Off by default: each call runs independently.
	CoalesceInflight bool `mapstructure:"coalesce_inflight"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

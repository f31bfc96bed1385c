// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Push     PushConfig     `mapstructure:"push"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Session  SessionConfig  `mapstructure:"session"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend   string `mapstructure:"backend"` // memory | redis
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Enabled reports whether a Postgres host is configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Feed ---

// FeedConfig holds collection names and timing for the sync engine.
type FeedConfig struct {
	Collections  CollectionsConfig `mapstructure:"collections"`
	SeenDebounce int               `mapstructure:"seen_debounce"` // milliseconds
	WriteTimeout int               `mapstructure:"write_timeout"` // milliseconds
}

type CollectionsConfig struct {
	Requests string `mapstructure:"requests"`
	Donors   string `mapstructure:"donors"`
	Users    string `mapstructure:"users"`
}

// PushConfig holds settings for the SNS push notifier and token lookup.
type PushConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"` // optional SNS endpoint override
	TokenCacheTTL int    `mapstructure:"token_cache_ttl"` // seconds
	TokenTable    string `mapstructure:"token_table"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

type TracingConfig struct {
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// SessionConfig identifies the account the CLI runs the feed for.
type SessionConfig struct {
	UID               string `mapstructure:"uid"`
	HighlightRequest  string `mapstructure:"highlight_request"`
	HighlightDonor    string `mapstructure:"highlight_donor"`
	HighlightStatus   string `mapstructure:"highlight_status"`
	FocusIntervalSecs int    `mapstructure:"focus_interval"`
}

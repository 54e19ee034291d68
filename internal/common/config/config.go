// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	SEC      SECConfig      `mapstructure:"sec"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Database DatabaseConfig `mapstructure:"database"`
	Push     PushConfig     `mapstructure:"push"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// SECConfig holds settings for the EDGAR discovery clients.
type SECConfig struct {
	SubmissionsBaseURL string `mapstructure:"submissions_base_url"`
	FeedBaseURL        string `mapstructure:"feed_base_url"`
	UserAgent          string `mapstructure:"user_agent"`
	RateLimitMs        int    `mapstructure:"rate_limit_ms"`       // minimum inter-request spacing
	RequestTimeout     int    `mapstructure:"request_timeout"`     // milliseconds
	LookbackMinutes    int    `mapstructure:"lookback_minutes"`    // broad feed cutoff window
	FeedPageSize       int    `mapstructure:"feed_page_size"`      // entries per feed query
}

// ScanConfig controls the periodic scan trigger.
type ScanConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
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

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	FilingsIdx string   `mapstructure:"filings_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PushConfig holds settings for the two push transports.
type PushConfig struct {
	Relay struct {
		Enabled bool   `mapstructure:"enabled"`
		URL     string `mapstructure:"url"`
	} `mapstructure:"relay"`

	Direct struct {
		Enabled         bool   `mapstructure:"enabled"`
		CredentialsFile string `mapstructure:"credentials_file"`
		CredentialsJSON string `mapstructure:"credentials_json"`
	} `mapstructure:"direct"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

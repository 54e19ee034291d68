// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like SEC_USER_AGENT
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when not present
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations (running from different directories).
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "edgarwatch"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.SEC.SubmissionsBaseURL == "" {
		cfg.SEC.SubmissionsBaseURL = "https://data.sec.gov"
	}
	if cfg.SEC.FeedBaseURL == "" {
		cfg.SEC.FeedBaseURL = "https://www.sec.gov/cgi-bin/browse-edgar"
	}
	if cfg.SEC.RateLimitMs <= 0 {
		cfg.SEC.RateLimitMs = 100 // SEC allows 10 requests per second
	}
	if cfg.SEC.RequestTimeout <= 0 {
		cfg.SEC.RequestTimeout = 30000
	}
	if cfg.SEC.LookbackMinutes <= 0 {
		cfg.SEC.LookbackMinutes = 60
	}
	if cfg.SEC.FeedPageSize <= 0 {
		cfg.SEC.FeedPageSize = 100
	}

	if cfg.Scan.IntervalSeconds <= 0 {
		cfg.Scan.IntervalSeconds = 60
	}

	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.MaxConnections <= 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle <= 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Elasticsearch.FilingsIdx == "" {
		cfg.Database.Elasticsearch.FilingsIdx = "filings"
	}

	if cfg.Push.Relay.URL == "" {
		cfg.Push.Relay.URL = "https://exp.host/--/api/v2/push/send"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.SEC.UserAgent == "" {
		if val := os.Getenv("SEC_USER_AGENT"); val != "" {
			cfg.SEC.UserAgent = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}

	if cfg.Push.Direct.CredentialsJSON == "" {
		if val := os.Getenv("FIREBASE_SERVICE_ACCOUNT_KEY"); val != "" {
			cfg.Push.Direct.CredentialsJSON = val
		}
	}
	if cfg.Push.Direct.CredentialsFile == "" {
		if val := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"); val != "" {
			cfg.Push.Direct.CredentialsFile = val
		}
	}
}

func validateConfig(cfg *Config) error {
	// The EDGAR endpoints reject anonymous clients; a contact UA is mandatory.
	if cfg.SEC.UserAgent == "" {
		return fmt.Errorf("sec.user_agent is required")
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	return nil
}

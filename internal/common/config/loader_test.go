// internal/common/config/loader_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "edgarwatch", cfg.App.Name)
	assert.Equal(t, "https://data.sec.gov", cfg.SEC.SubmissionsBaseURL)
	assert.Equal(t, 100, cfg.SEC.RateLimitMs)
	assert.Equal(t, 60, cfg.SEC.LookbackMinutes)
	assert.Equal(t, 60, cfg.Scan.IntervalSeconds)
	assert.Equal(t, "filings", cfg.Database.Elasticsearch.FilingsIdx)
	assert.Equal(t, "https://exp.host/--/api/v2/push/send", cfg.Push.Relay.URL)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidateConfig(t *testing.T) {
	valid := &Config{}
	applyDefaults(valid)
	valid.SEC.UserAgent = "edgarwatch admin@example.com"
	valid.Database.Postgres.Host = "localhost"
	valid.Database.Redis.Address = "localhost:6379"
	require.NoError(t, validateConfig(valid))

	t.Run("missing user agent", func(t *testing.T) {
		cfg := *valid
		cfg.SEC.UserAgent = ""
		assert.Error(t, validateConfig(&cfg))
	})

	t.Run("missing postgres host", func(t *testing.T) {
		cfg := *valid
		cfg.Database.Postgres.Host = ""
		assert.Error(t, validateConfig(&cfg))
	})

	t.Run("missing redis address", func(t *testing.T) {
		cfg := *valid
		cfg.Database.Redis.Address = ""
		assert.Error(t, validateConfig(&cfg))
	})
}

func TestGetDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5432, User: "svc", Password: "secret",
		Database: "edgarwatch", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=svc password=secret dbname=edgarwatch sslmode=disable",
		p.GetDSN())
}

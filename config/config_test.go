package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "default pair",
			input:    "http,scheduler",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeScheduler: true},
		},
		{
			name:  "all services with spaces",
			input: " http , scheduler , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:      true,
				ServiceModeScheduler: true,
				ServiceModeReaper:    true,
			},
		},
		{
			name:     "duplicate services",
			input:    "reaper,reaper",
			expected: map[ServiceMode]bool{ServiceModeReaper: true},
		},
		{name: "empty string", input: "", expectError: true},
		{name: "only commas", input: ",,", expectError: true},
		{name: "unknown service", input: "http,rules-engine", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAppConfig_ParseDefaults(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}))
	cfg.Sanitize()

	assert.True(t, cfg.IsHTTPServerEnabled())
	assert.True(t, cfg.IsSchedulerEnabled())
	assert.False(t, cfg.IsReaperEnabled())

	assert.Equal(t, "https://api.bol.com/retailer", cfg.Bol.RetailerBaseURL)
	assert.Equal(t, "https://api.bol.com/shared", cfg.Bol.SharedBaseURL)
	assert.Equal(t, "https://api.bol.com/advertiser/sponsored-products", cfg.Bol.AdvertisingBaseURL)
	assert.Equal(t, "https://login.bol.com/token", cfg.Bol.TokenURL)
	assert.Equal(t, 60*time.Second, cfg.Bol.TokenMargin)
	assert.Equal(t, 50, cfg.Bol.PageSize)

	assert.Equal(t, 120*time.Millisecond, cfg.Sync.ItemDelay)
	assert.Equal(t, 24*time.Hour, cfg.Sync.ExportMaxAge)
	assert.Equal(t, 50, cfg.Sync.ExportMaxAttempts)

	assert.Equal(t, "bolsync", cfg.Postgres.Name)
	assert.True(t, cfg.Postgres.RunMigrationsOnStart)
	assert.Equal(t, "localhost:6379", cfg.Redis.URI)
	assert.Equal(t, "/metrics", cfg.Observability.Metrics.Path)
}

func TestAppConfig_ParseOverrides(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"SERVICES":                 "reaper",
		"SYNC_SECRET":              "  s3cret  ",
		"DB_HOST":                  "db",
		"REDIS_URI":                "redis:6379",
		"BOL_RETAILER_BASE_URL":    "http://fake/retailer/",
		"SYNC_EXPORT_MAX_ATTEMPTS": "7",
		"SCHEDULER_SYNC_INTERVAL":  "5s",
	}}))
	cfg.Sanitize()

	assert.False(t, cfg.IsHTTPServerEnabled())
	assert.True(t, cfg.IsReaperEnabled())
	assert.Equal(t, "s3cret", cfg.SyncSecret)
	assert.Equal(t, "db", cfg.Postgres.Host)
	assert.Equal(t, "redis:6379", cfg.Redis.URI)
	assert.Equal(t, "http://fake/retailer", cfg.Bol.RetailerBaseURL)
	assert.Equal(t, 7, cfg.Sync.ExportMaxAttempts)
	assert.Equal(t, time.Minute, cfg.Scheduler.SyncInterval, "clamped to the minimum")
}

func TestConfig_ServiceEnabledMethodsWithInvalidConfig(t *testing.T) {
	cfg := &AppConfig{Services: "bogus"}
	assert.False(t, cfg.IsHTTPServerEnabled())
	assert.False(t, cfg.IsSchedulerEnabled())
	assert.False(t, cfg.IsReaperEnabled())
}

func TestValidServiceModes(t *testing.T) {
	assert.Equal(t, []ServiceMode{ServiceModeHTTP, ServiceModeScheduler, ServiceModeReaper}, ValidServiceModes())
}

func TestSyncConfig_Sanitize(t *testing.T) {
	s := SyncConfig{ItemDelay: -1, EnrichLimit: -3, ExportMaxAge: time.Minute, LockTTL: time.Second}
	s.Sanitize()

	assert.Zero(t, s.ItemDelay)
	assert.Zero(t, s.EnrichLimit)
	assert.Equal(t, 1, s.ForecastWeeks)
	assert.Equal(t, time.Hour, s.ExportMaxAge)
	assert.Equal(t, 1, s.ExportMaxAttempts)
	assert.Equal(t, time.Minute, s.LockTTL)
}

func TestReaperConfig_Sanitize(t *testing.T) {
	r := ReaperConfig{BatchSize: 50000}
	r.Sanitize()

	assert.Equal(t, time.Minute, r.Interval)
	assert.Equal(t, time.Hour, r.CompletedMaxAge)
	assert.Equal(t, 24*time.Hour, r.SnapshotMaxAge)
	assert.Equal(t, 10000, r.BatchSize)
}

func TestDBConfig_DSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", Name: "bolsync", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/bolsync?sslmode=require", c.DSN())
}

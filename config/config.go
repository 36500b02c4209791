// Package config loads the service configuration from environment variables.
package config

import (
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and Redis configuration
//   - http.go: HTTP server configuration
//   - bol.go: Marketplace API and sync pipeline configuration
//   - services.go: Service mode, scheduler and reaper configuration
type AppConfig struct {
	// IsDev switches the logger to text output at debug level.
	IsDev bool `env:"DEV" envDefault:"false"`

	// SyncSecret is the shared secret HTTP triggers must present. When empty
	// the trigger routes are disabled.
	SyncSecret string `env:"SYNC_SECRET"`

	// SecretsEncryptionKey seals tenant client secrets at rest. A 64 character
	// hex value is used directly; anything else is hashed. Empty stores them
	// unsealed.
	SecretsEncryptionKey string `env:"SECRETS_ENCRYPTION_KEY"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Marketplace API configuration
	Bol BolConfig

	// Sync pipeline configuration
	Sync SyncConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http,scheduler"`

	// Scheduler configuration
	Scheduler SchedulerConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.SyncSecret = strings.TrimSpace(c.SyncSecret)
	c.HTTP.Sanitize()
	c.Bol.Sanitize()
	c.Sync.Sanitize()
	c.Scheduler.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	return c.serviceEnabled(ServiceModeHTTP)
}

// IsSchedulerEnabled returns true if the scheduler service is enabled.
func (c *AppConfig) IsSchedulerEnabled() bool {
	return c.serviceEnabled(ServiceModeScheduler)
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	return c.serviceEnabled(ServiceModeReaper)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

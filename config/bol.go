package config

import (
	"strings"
	"time"
)

// BolConfig contains marketplace API endpoints, pacing and timeouts.
type BolConfig struct {
	RetailerBaseURL    string `env:"BOL_RETAILER_BASE_URL"    envDefault:"https://api.bol.com/retailer"`
	SharedBaseURL      string `env:"BOL_SHARED_BASE_URL"      envDefault:"https://api.bol.com/shared"`
	AdvertisingBaseURL string `env:"BOL_ADVERTISING_BASE_URL" envDefault:"https://api.bol.com/advertiser/sponsored-products"`
	TokenURL           string `env:"BOL_TOKEN_URL"            envDefault:"https://login.bol.com/token"`

	// RequestTimeout bounds a single upstream request including the body read.
	RequestTimeout time.Duration `env:"BOL_REQUEST_TIMEOUT" envDefault:"30s"`

	// TokenMargin is subtracted from the advertised token lifetime.
	TokenMargin time.Duration `env:"BOL_TOKEN_MARGIN" envDefault:"60s"`

	// Proactive pacing per audience, in requests per second. Zero disables it.
	RetailerRate     float64 `env:"BOL_RETAILER_RATE"     envDefault:"20"`
	RetailerBurst    int     `env:"BOL_RETAILER_BURST"    envDefault:"5"`
	AdvertisingRate  float64 `env:"BOL_ADVERTISING_RATE"  envDefault:"5"`
	AdvertisingBurst int     `env:"BOL_ADVERTISING_BURST" envDefault:"2"`

	// PageSize is the page length the collector treats as "more may follow".
	PageSize int `env:"BOL_PAGE_SIZE" envDefault:"50"`
}

// Sanitize applies guardrails to marketplace API configuration values.
func (b *BolConfig) Sanitize() {
	b.RetailerBaseURL = strings.TrimRight(strings.TrimSpace(b.RetailerBaseURL), "/")
	b.SharedBaseURL = strings.TrimRight(strings.TrimSpace(b.SharedBaseURL), "/")
	b.AdvertisingBaseURL = strings.TrimRight(strings.TrimSpace(b.AdvertisingBaseURL), "/")
	b.TokenURL = strings.TrimSpace(b.TokenURL)

	if b.RequestTimeout <= 0 {
		b.RequestTimeout = 30 * time.Second
	}
	if b.TokenMargin < 0 {
		b.TokenMargin = 0
	}
	if b.RetailerRate < 0 {
		b.RetailerRate = 0
	}
	if b.AdvertisingRate < 0 {
		b.AdvertisingRate = 0
	}
	if b.RetailerBurst < 1 {
		b.RetailerBurst = 1
	}
	if b.AdvertisingBurst < 1 {
		b.AdvertisingBurst = 1
	}
	if b.PageSize < 1 {
		b.PageSize = 50
	}
}

// SyncConfig contains the sync pipeline's budgets and bounds.
type SyncConfig struct {
	// ItemDelay is the pause between enrichment items of one tenant.
	ItemDelay time.Duration `env:"SYNC_ITEM_DELAY" envDefault:"120ms"`

	// EnrichLimit caps the EANs enriched per tenant per run.
	EnrichLimit int `env:"SYNC_ENRICH_LIMIT" envDefault:"25"`

	// ForecastWeeks is the horizon requested from the sales forecast.
	ForecastWeeks int `env:"SYNC_FORECAST_WEEKS" envDefault:"4"`

	// ExportMaxAge fails pending export jobs older than this.
	ExportMaxAge time.Duration `env:"SYNC_EXPORT_MAX_AGE" envDefault:"24h"`

	// ExportMaxAttempts fails pending export jobs polled this many times.
	ExportMaxAttempts int `env:"SYNC_EXPORT_MAX_ATTEMPTS" envDefault:"50"`

	// SweepBatchSize bounds the pending jobs loaded per sweep.
	SweepBatchSize int `env:"SYNC_SWEEP_BATCH_SIZE" envDefault:"500"`

	// LockTTL bounds how long a run may hold the distributed run lock.
	LockTTL time.Duration `env:"SYNC_LOCK_TTL" envDefault:"30m"`
}

// Sanitize applies guardrails to sync configuration values.
func (s *SyncConfig) Sanitize() {
	if s.ItemDelay < 0 {
		s.ItemDelay = 0
	}
	if s.EnrichLimit < 0 {
		s.EnrichLimit = 0
	}
	if s.ForecastWeeks < 1 {
		s.ForecastWeeks = 1
	}
	if s.ForecastWeeks > 12 {
		s.ForecastWeeks = 12
	}
	if s.ExportMaxAge < time.Hour {
		s.ExportMaxAge = time.Hour
	}
	if s.ExportMaxAttempts < 1 {
		s.ExportMaxAttempts = 1
	}
	if s.SweepBatchSize < 1 {
		s.SweepBatchSize = 1
	}
	if s.LockTTL < time.Minute {
		s.LockTTL = time.Minute
	}
}

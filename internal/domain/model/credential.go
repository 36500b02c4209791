// Package model defines the data types shared by the sync core, its storage
// layer and its HTTP surface.
package model

import (
	"errors"
	"strings"
	"time"
)

// DefaultSyncInterval applies when a credential carries no interval.
const DefaultSyncInterval = 60 * time.Minute

// Credential is one tenant's marketplace API access. The retailer pair is
// required; the advertising pair is optional and unrelated to it.
type Credential struct {
	TenantID                string     `json:"tenant_id"                 db:"tenant_id"`
	Name                    string     `json:"name"                      db:"name"`
	ClientID                string     `json:"client_id"                 db:"client_id"`
	ClientSecret            string     `json:"-"                         db:"client_secret"`
	AdvertisingClientID     *string    `json:"advertising_client_id,omitempty" db:"advertising_client_id"`
	AdvertisingClientSecret *string    `json:"-"                         db:"advertising_client_secret"`
	Active                  bool       `json:"active"                    db:"active"`
	SyncIntervalMinutes     int        `json:"sync_interval_minutes"     db:"sync_interval_minutes"`
	LastSyncedAt            *time.Time `json:"last_synced_at,omitempty"  db:"last_synced_at"`
	CreatedAt               time.Time  `json:"created_at"                db:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"                db:"updated_at"`
}

// HasAdvertising reports whether both halves of the advertising pair are set.
func (c *Credential) HasAdvertising() bool {
	return c.AdvertisingClientID != nil && strings.TrimSpace(*c.AdvertisingClientID) != "" &&
		c.AdvertisingClientSecret != nil && strings.TrimSpace(*c.AdvertisingClientSecret) != ""
}

// SyncInterval returns the configured interval, or DefaultSyncInterval when unset.
func (c *Credential) SyncInterval() time.Duration {
	if c.SyncIntervalMinutes <= 0 {
		return DefaultSyncInterval
	}
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

// SyncDue reports whether a scheduled run should process this tenant at now.
func (c *Credential) SyncDue(now time.Time) bool {
	if c.LastSyncedAt == nil {
		return true
	}
	return !now.Before(c.LastSyncedAt.Add(c.SyncInterval()))
}

// Validate checks the fields the sync needs before it can exchange a token.
func (c *Credential) Validate() error {
	if strings.TrimSpace(c.TenantID) == "" {
		return errors.New("tenant_id is required")
	}
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return errors.New("client_id and client_secret are required")
	}
	if c.SyncIntervalMinutes < 0 {
		return errors.New("sync_interval_minutes must be >= 0")
	}
	return nil
}

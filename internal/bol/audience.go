// Package bol is the client for the bol.com retailer and advertising APIs:
// per-audience OAuth token caching, a rate-aware transport, and page-by-page
// collection for list endpoints.
package bol

import (
	"fmt"
	"strings"
)

// Audience identifies which credential scope a token was issued for.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Audience string

const (
	// AudienceRetailer covers the retailer and shared surfaces.
	AudienceRetailer Audience = "retailer"
	// AudienceAdvertising covers the sponsored-products surface.
	AudienceAdvertising Audience = "advertising"
)

// Valid returns true for known audiences.
func (a Audience) Valid() bool {
	return a == AudienceRetailer || a == AudienceAdvertising
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Audience) UnmarshalText(text []byte) error {
	v := Audience(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid audience: %q", v)
	}
	*a = v
	return nil
}

// Surface is an API base that requests are issued against.
type Surface string

const (
	SurfaceRetailer    Surface = "retailer"
	SurfaceShared      Surface = "shared"
	SurfaceAdvertising Surface = "advertising"
)

// Audience returns the token audience a surface requires.
func (s Surface) Audience() Audience {
	if s == SurfaceAdvertising {
		return AudienceAdvertising
	}
	return AudienceRetailer
}

// Versioned media types used by the upstream API.
const (
	MediaTypeRetailerJSON    = "application/vnd.retailer.v10+json"
	MediaTypeRetailerCSV     = "application/vnd.retailer.v10+csv"
	MediaTypeAdvertisingJSON = "application/vnd.advertiser.v11+json"
)

// defaultHeaders returns the audience-specific headers injected on every request.
func defaultHeaders(a Audience) map[string]string {
	if a == AudienceAdvertising {
		return map[string]string{
			"Accept":       MediaTypeAdvertisingJSON,
			"Content-Type": MediaTypeAdvertisingJSON,
		}
	}
	return map[string]string{
		"Accept":       MediaTypeRetailerJSON,
		"Content-Type": MediaTypeRetailerJSON,
	}
}

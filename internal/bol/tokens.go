package bol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenURL is the client-credentials endpoint for both audiences.
	DefaultTokenURL = "https://login.bol.com/token"
	// DefaultTokenMargin is subtracted from the reported lifetime so a token is
	// never handed out right before it expires.
	DefaultTokenMargin = 60 * time.Second

	// tokenExchangeTimeout bounds a shared exchange, which no single caller's
	// context can cancel.
	tokenExchangeTimeout = 30 * time.Second
)

// CachedToken is an access token with its effective expiry.
type CachedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TokenCacheOptions configures a TokenCache.
type TokenCacheOptions struct {
	Audience   Audience
	TokenURL   string
	HTTPClient *http.Client
	Margin     time.Duration
	Now        func() time.Time
	Observer   Observer
}

// TokenCache keeps one access token per client id for a single audience.
// Concurrent misses for the same client id share one exchange.
type TokenCache struct {
	audience   Audience
	tokenURL   string
	httpClient *http.Client
	margin     time.Duration
	now        func() time.Time
	observer   Observer

	mu      sync.RWMutex
	entries map[string]CachedToken
	group   singleflight.Group
}

// NewTokenCache constructs a TokenCache with defaults for unset options.
func NewTokenCache(opts TokenCacheOptions) *TokenCache {
	if opts.Audience == "" {
		opts.Audience = AudienceRetailer
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultTokenMargin
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TokenCache{
		audience:   opts.Audience,
		tokenURL:   opts.TokenURL,
		httpClient: opts.HTTPClient,
		margin:     opts.Margin,
		now:        opts.Now,
		observer:   opts.Observer,
		entries:    make(map[string]CachedToken),
	}
}

// Token returns a valid access token for clientID, exchanging the credentials
// when no cached token is usable.
func (c *TokenCache) Token(ctx context.Context, clientID, clientSecret string) (string, error) {
	if clientID == "" || clientSecret == "" {
		return "", &AuthError{Audience: c.audience, Body: "missing client credentials"}
	}

	if tok, ok := c.lookup(clientID); ok {
		return tok.AccessToken, nil
	}

	// The flight runs detached so one caller giving up does not fail the
	// others waiting on the same exchange.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(clientID, func() (any, error) {
		// Another flight may have populated the entry while we waited.
		if tok, ok := c.lookup(clientID); ok {
			return tok, nil
		}
		exCtx, cancel := context.WithTimeout(flightCtx, tokenExchangeTimeout)
		defer cancel()
		tok, err := c.exchange(exCtx, clientID, clientSecret)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[clientID] = tok
		c.mu.Unlock()
		return tok, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return "", &TransportError{Op: fmt.Sprintf("%s token exchange", c.audience), Err: ctx.Err()}
	case res = <-ch:
	}
	if res.Err != nil {
		return "", res.Err
	}
	tok, ok := res.Val.(CachedToken)
	if !ok {
		return "", &TransportError{Op: "token exchange", Err: errors.New("unexpected token type")}
	}
	return tok.AccessToken, nil
}

// Invalidate drops the cached token for clientID.
func (c *TokenCache) Invalidate(clientID string) {
	c.mu.Lock()
	delete(c.entries, clientID)
	c.mu.Unlock()
}

// Len reports the number of cached tokens, expired or not.
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TokenCache) lookup(clientID string) (CachedToken, bool) {
	c.mu.RLock()
	tok, ok := c.entries[clientID]
	c.mu.RUnlock()
	if !ok || !c.now().Before(tok.ExpiresAt) {
		return CachedToken{}, false
	}
	return tok, true
}

func (c *TokenCache) exchange(ctx context.Context, clientID, clientSecret string) (CachedToken, error) {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     c.tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	tok, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, c.rawBasicAuthClient(clientID, clientSecret)))
	if err != nil {
		c.observe("error")
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return CachedToken{}, &AuthError{Audience: c.audience, StatusCode: status, Body: string(re.Body)}
		}
		return CachedToken{}, &TransportError{Op: fmt.Sprintf("%s token exchange", c.audience), Err: err}
	}
	c.observe("ok")

	return CachedToken{
		AccessToken: tok.AccessToken,
		ExpiresAt:   c.now().Add(tokenLifetime(tok) - c.margin),
	}, nil
}

// rawBasicAuthClient returns a copy of the configured client whose transport
// sends base64(clientID:clientSecret) without the form-encoding x/oauth2
// applies to header credentials.
func (c *TokenCache) rawBasicAuthClient(clientID, clientSecret string) *http.Client {
	hc := *c.httpClient
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = &basicAuthTransport{id: clientID, secret: clientSecret, base: base}
	return &hc
}

type basicAuthTransport struct {
	id     string
	secret string
	base   http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.id, t.secret)
	return t.base.RoundTrip(r)
}

// tokenLifetime reads expires_in from the token response. x/oauth2 only
// exposes it as an absolute Expiry stamped with the wall clock, which is used
// as a fallback when the field is missing.
func tokenLifetime(tok *oauth2.Token) time.Duration {
	if secs, ok := expiresInSeconds(tok.Extra("expires_in")); ok {
		return time.Duration(secs) * time.Second
	}
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	if !tok.Expiry.IsZero() {
		return time.Until(tok.Expiry)
	}
	return 0
}

func expiresInSeconds(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func (c *TokenCache) observe(result string) {
	if c.observer != nil {
		c.observer.ObserveTokenExchange(c.audience, result)
	}
}

// Tokens holds one TokenCache per audience.
type Tokens struct {
	retailer    *TokenCache
	advertising *TokenCache
}

// TokensOptions configures both audience caches.
type TokensOptions struct {
	TokenURL   string
	HTTPClient *http.Client
	Margin     time.Duration
	Now        func() time.Time
	Observer   Observer
}

// NewTokens builds retailer and advertising caches sharing the same options.
func NewTokens(opts TokensOptions) *Tokens {
	build := func(a Audience) *TokenCache {
		return NewTokenCache(TokenCacheOptions{
			Audience:   a,
			TokenURL:   opts.TokenURL,
			HTTPClient: opts.HTTPClient,
			Margin:     opts.Margin,
			Now:        opts.Now,
			Observer:   opts.Observer,
		})
	}
	return &Tokens{
		retailer:    build(AudienceRetailer),
		advertising: build(AudienceAdvertising),
	}
}

// Get returns a token for the given audience and client credentials.
func (t *Tokens) Get(ctx context.Context, audience Audience, clientID, clientSecret string) (string, error) {
	cache, err := t.cache(audience)
	if err != nil {
		return "", err
	}
	return cache.Token(ctx, clientID, clientSecret)
}

// Cache exposes the cache for one audience.
func (t *Tokens) Cache(audience Audience) (*TokenCache, error) {
	return t.cache(audience)
}

func (t *Tokens) cache(audience Audience) (*TokenCache, error) {
	switch audience {
	case AudienceRetailer:
		return t.retailer, nil
	case AudienceAdvertising:
		return t.advertising, nil
	default:
		return nil, fmt.Errorf("unknown audience %q", audience)
	}
}

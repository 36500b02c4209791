package bol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Default API bases.
const (
	DefaultRetailerBaseURL    = "https://api.bol.com/retailer"
	DefaultSharedBaseURL      = "https://api.bol.com/shared"
	DefaultAdvertisingBaseURL = "https://api.bol.com/advertiser/sponsored-products"
)

// maxResponseBytes caps how much of a response body is read into memory.
const maxResponseBytes = 64 << 20

// Observer receives request and token-exchange outcomes. Implementations must
// be safe for concurrent use.
type Observer interface {
	ObserveRequest(audience Audience, status int, elapsed time.Duration)
	ObserveTokenExchange(audience Audience, result string)
}

// Doer issues an authenticated request. *Client implements it.
type Doer interface {
	Do(ctx context.Context, token string, req Request) (*Response, error)
}

// Request describes one upstream call. Path is relative to the surface base.
type Request struct {
	Surface Surface
	Method  string
	Path    string
	Query   url.Values
	// Body is JSON-encoded unless it is already a []byte.
	Body    any
	Headers map[string]string
}

// Response is the normalized result of a call. Data holds the decoded JSON
// document when the response is JSON and successful; Text holds the raw body
// otherwise.
type Response struct {
	OK          bool
	Status      int
	ContentType string
	Header      http.Header
	Data        any
	Text        string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	RetailerBaseURL    string
	SharedBaseURL      string
	AdvertisingBaseURL string
	HTTPClient         *http.Client

	// Steady request rates per audience. Zero disables pacing for that audience.
	RetailerRate     rate.Limit
	RetailerBurst    int
	AdvertisingRate  rate.Limit
	AdvertisingBurst int

	Observer Observer
	Logger   *slog.Logger
}

// Client is the authenticated transport for the upstream API.
type Client struct {
	bases    map[Surface]string
	http     *http.Client
	limiters map[Audience]*rate.Limiter
	observer Observer
	logger   *slog.Logger
}

// NewClient constructs a Client. Empty base URLs fall back to the production hosts.
func NewClient(opts ClientOptions) *Client {
	bases := map[Surface]string{
		SurfaceRetailer:    firstNonEmpty(opts.RetailerBaseURL, DefaultRetailerBaseURL),
		SurfaceShared:      firstNonEmpty(opts.SharedBaseURL, DefaultSharedBaseURL),
		SurfaceAdvertising: firstNonEmpty(opts.AdvertisingBaseURL, DefaultAdvertisingBaseURL),
	}
	for k, v := range bases {
		bases[k] = strings.TrimRight(v, "/")
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limiters := make(map[Audience]*rate.Limiter, 2)
	if opts.RetailerRate > 0 {
		limiters[AudienceRetailer] = rate.NewLimiter(opts.RetailerRate, max(opts.RetailerBurst, 1))
	}
	if opts.AdvertisingRate > 0 {
		limiters[AudienceAdvertising] = rate.NewLimiter(opts.AdvertisingRate, max(opts.AdvertisingBurst, 1))
	}

	return &Client{
		bases:    bases,
		http:     hc,
		limiters: limiters,
		observer: opts.Observer,
		logger:   logger.With("component", "bol_client"),
	}
}

// Do sends req with the bearer token. Non-2xx statuses other than 429 are
// returned as a Response with OK=false; 429 yields *RateLimitError and network
// or decode failures yield *TransportError.
func (c *Client) Do(ctx context.Context, token string, req Request) (*Response, error) {
	surface := req.Surface
	if surface == "" {
		surface = SurfaceRetailer
	}
	base, ok := c.bases[surface]
	if !ok {
		return nil, fmt.Errorf("unknown surface %q", surface)
	}
	audience := surface.Audience()

	if lim := c.limiters[audience]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for %s rate limiter: %w", audience, err)
		}
	}

	httpReq, err := c.buildRequest(ctx, base, audience, token, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observeRequest(audience, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Op: requestOp(httpReq), Err: err}
	}
	defer resp.Body.Close()
	c.observeRequest(audience, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		retry := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.WarnContext(ctx, "upstream rate limit hit",
			"path", req.Path, "retry_after", retry.String())
		return nil, &RateLimitError{Path: req.Path, RetryAfter: retry}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: requestOp(httpReq), Err: fmt.Errorf("read body: %w", err)}
	}

	out := &Response{
		OK:          resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
	}

	if !out.OK {
		out.Text = string(body)
		c.logger.DebugContext(ctx, "upstream returned non-success status",
			"path", req.Path, "status", resp.StatusCode)
		return out, nil
	}

	if isJSONMediaType(out.ContentType) {
		if len(bytes.TrimSpace(body)) == 0 {
			return out, nil
		}
		if err := json.Unmarshal(body, &out.Data); err != nil {
			return nil, &TransportError{Op: requestOp(httpReq), Err: fmt.Errorf("decode json: %w", err)}
		}
		return out, nil
	}

	out.Text = string(body)
	return out, nil
}

func (c *Client) buildRequest(
	ctx context.Context,
	base string,
	audience Audience,
	token string,
	req Request,
) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := base + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, v := range defaultHeaders(audience) {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

func (c *Client) observeRequest(audience Audience, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(audience, status, elapsed)
	}
}

// parseRetryAfter reads a delay in whole seconds. Anything else yields the default.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return DefaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func isJSONMediaType(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func requestOp(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ErrNoData is returned by helpers that expect a JSON payload but received none.
var ErrNoData = errors.New("bol: response carried no data")

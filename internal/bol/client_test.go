package bol

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, h http.HandlerFunc, obs Observer) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientOptions{
		RetailerBaseURL:    srv.URL + "/retailer",
		SharedBaseURL:      srv.URL + "/shared",
		AdvertisingBaseURL: srv.URL + "/advertiser",
		HTTPClient:         srv.Client(),
		Observer:           obs,
	})
}

func TestClient_InjectsAuthAndDefaultHeaders(t *testing.T) {
	var got http.Header
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		path = r.URL.RequestURI()
		w.Header().Set("Content-Type", MediaTypeRetailerJSON)
		_, _ = w.Write([]byte(`{"orders":[]}`))
	}, nil)

	resp, err := c.Do(context.Background(), "tok", OrdersPage(2))
	require.NoError(t, err)
	assert.True(t, resp.OK)

	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, MediaTypeRetailerJSON, got.Get("Accept"))
	assert.Equal(t, "/retailer/orders?fulfilment-method=ALL&page=2&status=ALL", path)
}

func TestClient_CallerHeadersOverrideDefaults(t *testing.T) {
	var accept string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", MediaTypeRetailerCSV)
		_, _ = w.Write([]byte("offerId,ean\n1,2\n"))
	}, nil)

	ep, ok := Export("offers")
	require.True(t, ok)

	resp, err := c.Do(context.Background(), "tok", ep.Download("entity-1"))
	require.NoError(t, err)
	assert.Equal(t, MediaTypeRetailerCSV, accept)
	assert.Nil(t, resp.Data)
	assert.Equal(t, "offerId,ean\n1,2\n", resp.Text)
}

func TestClient_AdvertisingSurfaceUsesAdvertisingHeaders(t *testing.T) {
	var accept, path, body string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", MediaTypeAdvertisingJSON)
		_, _ = w.Write([]byte(`{"campaigns":[{"campaignId":"c1"}]}`))
	}, nil)

	resp, err := c.Do(context.Background(), "tok", CampaignsPage(1))
	require.NoError(t, err)
	assert.Equal(t, MediaTypeAdvertisingJSON, accept)
	assert.Equal(t, "/advertiser/campaign-management/campaigns/list", path)
	assert.JSONEq(t, `{"page":1,"pageSize":50}`, body)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Len(t, data["campaigns"], 1)
}

func TestClient_SharedSurface(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"processStatusId":123,"status":"PENDING"}`))
	}, nil)

	resp, err := c.Do(context.Background(), "tok", ProcessStatusRequest("123"))
	require.NoError(t, err)
	assert.Equal(t, "/shared/process-status/123", path)

	ps, err := ParseProcessStatus(resp.Data)
	require.NoError(t, err)
	assert.Equal(t, "123", ps.ProcessStatusID)
	assert.Equal(t, ProcessPending, ps.Status)
	assert.Empty(t, ps.EntityID)
}

func TestClient_RateLimited(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "seconds", header: "17", want: 17 * time.Second},
		{name: "absent", header: "", want: DefaultRetryAfter},
		{name: "unparseable", header: "soon", want: DefaultRetryAfter},
		{name: "negative", header: "-4", want: DefaultRetryAfter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(http.StatusTooManyRequests)
			}, nil)

			resp, err := c.Do(context.Background(), "tok", OrdersPage(1))
			require.Error(t, err)
			assert.Nil(t, resp)

			var rl *RateLimitError
			require.ErrorAs(t, err, &rl)
			assert.Equal(t, tt.want, rl.RetryAfter)
			assert.True(t, IsRateLimited(err))
		})
	}
}

func TestClient_NonSuccessReturnedNotThrown(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"Not Found"}`))
	}, nil)

	resp, err := c.Do(context.Background(), "tok", CatalogProduct("8712345678901"))
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, `{"title":"Not Found"}`, resp.Text)
	assert.Nil(t, resp.Data)
}

func TestClient_UnknownContentTypeFallsBackToText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("raw"))
	}, nil)

	resp, err := c.Do(context.Background(), "tok", OrdersPage(1))
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "raw", resp.Text)
}

func TestClient_MalformedJSONIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orders":`))
	}, nil)

	_, err := c.Do(context.Background(), "tok", OrdersPage(1))
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestClient_NetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(ClientOptions{RetailerBaseURL: base})
	_, err := c.Do(context.Background(), "tok", OrdersPage(1))
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "GET /orders", te.Op)
}

func TestClient_ObservesRequests(t *testing.T) {
	obs := &recordingObserver{}
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}, obs)

	_, err := c.Do(context.Background(), "tok", OrdersPage(1))
	require.NoError(t, err)
	assert.Equal(t, []int{http.StatusAccepted}, obs.requests)
}

func TestClient_RateLimiterHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(ClientOptions{
		RetailerBaseURL: srv.URL,
		HTTPClient:      srv.Client(),
		RetailerRate:    rate.Every(time.Hour),
		RetailerBurst:   1,
	})

	_, err := c.Do(context.Background(), "tok", OrdersPage(1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Do(ctx, "tok", OrdersPage(2))
	require.Error(t, err)
}

func TestParseProcessStatus_NoData(t *testing.T) {
	_, err := ParseProcessStatus(nil)
	require.ErrorIs(t, err, ErrNoData)
}

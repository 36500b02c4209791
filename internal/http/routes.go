// Package httpx serves the health, readiness, metrics and sync trigger endpoints.
package httpx

import (
	"log/slog"
	"net/http"
	"time"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Trigger SyncTrigger
	// SyncSecret guards the trigger routes. When empty they are not mounted.
	SyncSecret string
	RunTimeout time.Duration

	// HealthChecks back GET /readyz. /healthz never consults them.
	HealthChecks map[string]HealthCheck

	// Metrics serves MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string

	Logger *slog.Logger // optional
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(liveHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(liveHandler))
	ready := readyHandler(services.HealthChecks)
	mux.Handle("GET /readyz", ready)
	mux.Handle("HEAD /readyz", ready)

	if services.Metrics != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, services.Metrics)
	}

	if services.Trigger != nil && services.SyncSecret != "" {
		registerSyncRoutes(mux, &SyncHandlers{
			Trigger:    services.Trigger,
			RunTimeout: services.RunTimeout,
			Logger:     services.Logger,
		}, services.SyncSecret)
	}

	return mux
}

func registerSyncRoutes(mux *http.ServeMux, h *SyncHandlers, secret string) {
	auth := RequireSyncSecret(secret)
	mux.Handle("POST /api/sync/run", auth(http.HandlerFunc(h.Run)))
	mux.Handle("POST /api/sync/sweep", auth(http.HandlerFunc(h.Sweep)))
	mux.Handle("POST /api/sync/tenants/{id}", auth(http.HandlerFunc(h.Tenant)))
}

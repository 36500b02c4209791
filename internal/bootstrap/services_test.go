package bootstrap

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-bol-sync/config"
	"github.com/target/mmk-bol-sync/internal/data"
	"github.com/target/mmk-bol-sync/internal/data/cryptoutil"
)

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 0,
		},
		{
			name:  "http only",
			modes: []config.ServiceMode{config.ServiceModeHTTP},
			want:  1,
		},
		{
			name: "all services enabled",
			modes: []config.ServiceMode{
				config.ServiceModeHTTP,
				config.ServiceModeScheduler,
				config.ServiceModeReaper,
			},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelCapacity(enabled); got != tt.want {
				t.Fatalf("errorChannelCapacity(%v) = %d, want %d", tt.modes, got, tt.want)
			}
		})
	}
}

func TestGetEnabledServices(t *testing.T) {
	cfg := &config.AppConfig{Services: "scheduler, http,reaper"}
	assert.Equal(t, []string{"http", "reaper", "scheduler"}, GetEnabledServices(cfg))

	bad := &config.AppConfig{Services: "http,rules"}
	assert.Empty(t, GetEnabledServices(bad))
	require.Error(t, ValidateServiceConfig(bad))
	require.NoError(t, ValidateServiceConfig(cfg))
}

func TestNewServices_Wiring(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.AppConfig{}
	cfg.Sanitize()

	_, err = NewServices(&ServiceDeps{Config: cfg})
	require.Error(t, err)

	services, err := NewServices(&ServiceDeps{
		Config: cfg,
		DB:     db,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	assert.NotNil(t, services.Sync)
	assert.NotNil(t, services.Exports)
	assert.NotNil(t, services.Coordinator)
	assert.NotNil(t, services.Registry)
}

func TestBuildRepositories_LockerWithoutRedis(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repos := buildRepositories(db, nil, cryptoutil.PlainSealer{})
	assert.IsType(t, &data.PgRunLocker{}, repos.Locker)
}

func TestBuildSealer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := buildSealer("", logger)
	require.NoError(t, err)
	assert.IsType(t, cryptoutil.PlainSealer{}, s)

	s, err = buildSealer("a-passphrase", logger)
	require.NoError(t, err)
	assert.IsType(t, &cryptoutil.AESGCMSealer{}, s)
}

func TestBuildHTTPHandler_MetricsAndHealth(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.AppConfig{SyncSecret: "secret"}
	cfg.Observability.Metrics.Enabled = true
	cfg.Sanitize()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	services, err := NewServices(&ServiceDeps{Config: cfg, DB: db, Logger: logger})
	require.NoError(t, err)
	services.Metrics.TenantResult("ok")

	h := buildHTTPHandler(logger, routerServices(cfg, services, logger))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bolsync_tenant_results_total")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync/run", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, services.HealthChecks, "database")
	assert.NotContains(t, services.HealthChecks, "redis")
}

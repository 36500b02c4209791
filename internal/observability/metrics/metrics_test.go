package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-bol-sync/internal/bol"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest(bol.AudienceRetailer, 200, 120*time.Millisecond)
	m.ObserveTokenExchange(bol.AudienceAdvertising, "ok")
	m.SyncRun(ResultSuccess, 3*time.Second)
	m.TenantResult("ok")
	m.ExportJobOutcome("completed")
	m.CleanupOperation("delete_snapshots", 2, nil)
	m.CleanupSucceeded(time.Unix(1700000000, 0))

	families, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]bool{}
	for _, mf := range families {
		got[mf.GetName()] = true
	}
	for _, name := range []string{
		"bolsync_upstream_requests_total",
		"bolsync_upstream_request_duration_seconds",
		"bolsync_token_exchanges_total",
		"bolsync_sync_runs_total",
		"bolsync_sync_run_duration_seconds",
		"bolsync_tenant_results_total",
		"bolsync_export_job_outcomes_total",
		"bolsync_reaper_cleanup_operations_total",
		"bolsync_reaper_rows_deleted_total",
		"bolsync_reaper_last_success_timestamp_seconds",
	} {
		assert.True(t, got[name], "missing %s", name)
	}
}

func TestObserveRequest_Labels(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest(bol.AudienceRetailer, 429, time.Millisecond)
	m.ObserveRequest(bol.AudienceRetailer, 429, time.Millisecond)
	m.ObserveRequest(bol.AudienceRetailer, 0, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("retailer", "429")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("retailer", "none")), 0)
}

func TestCleanupOperation_Results(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CleanupOperation("delete_completed_jobs", 0, nil)
	m.CleanupOperation("delete_completed_jobs", 5, nil)
	m.CleanupOperation("delete_completed_jobs", 0, errors.New("db down"))

	assert.InDelta(t, 1, testutil.ToFloat64(m.reaperCleanups.WithLabelValues("delete_completed_jobs", ResultNoop, "")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.reaperCleanups.WithLabelValues("delete_completed_jobs", ResultSuccess, "")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.reaperCleanups.WithLabelValues("delete_completed_jobs", ResultError, "errors_errorstring")), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(m.reaperDeleted.WithLabelValues("delete_completed_jobs")), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(bol.AudienceRetailer, 200, time.Second)
		m.SyncRun(ResultError, time.Second)
		m.CleanupOperation("x", 1, nil)
	})
}

// Package metrics exposes the Prometheus collectors for the sync service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/target/mmk-bol-sync/internal/bol"
	obserrors "github.com/target/mmk-bol-sync/internal/observability/errors"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

const namespace = "bolsync"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	tokenExchanges   *prometheus.CounterVec
	syncRuns         *prometheus.CounterVec
	syncDuration     prometheus.Histogram
	tenantResults    *prometheus.CounterVec
	exportJobs       *prometheus.CounterVec
	reaperCleanups   *prometheus.CounterVec
	reaperDeleted    *prometheus.CounterVec
	reaperLastOK     prometheus.Gauge
}

var _ bol.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Marketplace API requests by audience and status code.",
		}, []string{"audience", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Marketplace API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"audience"}),
		tokenExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_exchanges_total",
			Help:      "Client-credential token exchanges by audience and result.",
		}, []string{"audience", "result"}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync runs by result.",
		}, []string{"result"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Wall time of a full sync run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		tenantResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_results_total",
			Help:      "Per-tenant sync outcomes.",
		}, []string{"status"}),
		exportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_job_outcomes_total",
			Help:      "Export job sweep outcomes.",
		}, []string{"status"}),
		reaperCleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_cleanup_operations_total",
			Help:      "Reaper cleanup operations by operation, result and error class.",
		}, []string{"operation", "result", "error_class"}),
		reaperDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_rows_deleted_total",
			Help:      "Rows removed by the reaper.",
		}, []string{"operation"}),
		reaperLastOK: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reaper_last_success_timestamp_seconds",
			Help:      "Unix time of the last cleanup pass without errors.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.upstreamRequests, m.upstreamLatency, m.tokenExchanges,
			m.syncRuns, m.syncDuration, m.tenantResults, m.exportJobs,
			m.reaperCleanups, m.reaperDeleted, m.reaperLastOK,
		)
	}
	return m
}

// ObserveRequest implements bol.Observer. Status 0 marks a request that never
// produced a response.
func (m *Metrics) ObserveRequest(audience bol.Audience, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(string(audience), code).Inc()
	m.upstreamLatency.WithLabelValues(string(audience)).Observe(elapsed.Seconds())
}

// ObserveTokenExchange implements bol.Observer.
func (m *Metrics) ObserveTokenExchange(audience bol.Audience, result string) {
	if m == nil {
		return
	}
	m.tokenExchanges.WithLabelValues(string(audience), result).Inc()
}

// SyncRun records a finished run.
func (m *Metrics) SyncRun(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(result).Inc()
	if elapsed > 0 {
		m.syncDuration.Observe(elapsed.Seconds())
	}
}

// TenantResult records one tenant's outcome within a run.
func (m *Metrics) TenantResult(status string) {
	if m == nil {
		return
	}
	m.tenantResults.WithLabelValues(status).Inc()
}

// ExportJobOutcome records one job's outcome within a sweep.
func (m *Metrics) ExportJobOutcome(status string) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(status).Inc()
}

// CleanupOperation records one reaper step.
func (m *Metrics) CleanupOperation(operation string, count int64, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	switch {
	case err != nil:
		result = ResultError
	case count == 0:
		result = ResultNoop
	}
	m.reaperCleanups.WithLabelValues(operation, result, obserrors.Classify(err)).Inc()
	if err == nil && count > 0 {
		m.reaperDeleted.WithLabelValues(operation).Add(float64(count))
	}
}

// CleanupSucceeded stamps the time of a clean reaper pass.
func (m *Metrics) CleanupSucceeded(at time.Time) {
	if m == nil {
		return
	}
	m.reaperLastOK.Set(float64(at.Unix()))
}

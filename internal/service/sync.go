package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-bol-sync/internal/bol"
	"github.com/target/mmk-bol-sync/internal/core"
	"github.com/target/mmk-bol-sync/internal/domain/model"
	"github.com/target/mmk-bol-sync/internal/observability/metrics"
)

const (
	// DefaultItemDelay spaces per-item enrichment calls of one tenant.
	DefaultItemDelay = 120 * time.Millisecond
	// DefaultEnrichLimit caps the EANs enriched per tenant pass.
	DefaultEnrichLimit = 25
	// DefaultForecastWeeks is the sales forecast horizon.
	DefaultForecastWeeks = 4

	// SweepEntryID identifies the report entry for an export sweep that could
	// not list its jobs.
	SweepEntryID = "sweep"
)

var errSyncRepoNotConfigured = errors.New("sync: credential and snapshot repositories are required")

// ExportRunner is the part of ExportService the orchestrator drives.
type ExportRunner interface {
	SubmitUnlessPending(ctx context.Context, cred *model.Credential, dataType string) (*model.ExportJob, bool, error)
	Sweep(ctx context.Context) (*model.RunReport, error)
}

// SyncMetrics receives run and tenant outcomes. *metrics.Metrics satisfies it.
type SyncMetrics interface {
	TenantResult(status string)
	SyncRun(result string, elapsed time.Duration)
}

// SyncRepos groups the storage ports used by SyncService.
type SyncRepos struct {
	Credentials core.CredentialRepository
	Snapshots   core.SnapshotRepository
	Analyses    core.AnalysisRepository
}

// SyncConfig tunes a tenant pass. Zero values take the defaults; a zero
// ItemDelay stays zero.
type SyncConfig struct {
	PageSize      int
	ItemDelay     time.Duration
	EnrichLimit   int
	ForecastWeeks int
}

// SyncServiceOptions configures SyncService.
type SyncServiceOptions struct {
	Client   bol.Doer
	Tokens   TokenSource
	Repos    SyncRepos
	Analyzer core.Analyzer
	Exports  ExportRunner
	Config   SyncConfig
	Now      func() time.Time
	Logger   *slog.Logger
	Metrics  SyncMetrics
}

// RunOptions selects what a Run covers.
type RunOptions struct {
	// Force ignores each tenant's sync interval.
	Force bool
	// SkipSweep leaves pending export jobs for a later sweep.
	SkipSweep bool
}

// SyncService is the orchestrator: one pass over every active tenant followed
// by an export completion sweep.
type SyncService struct {
	client  bol.Doer
	tokens  TokenSource
	creds   core.CredentialRepository
	latest  core.SnapshotRepository
	writer  snapshotWriter
	exports ExportRunner
	cfg     SyncConfig
	now     func() time.Time
	logger  *slog.Logger
	metrics SyncMetrics
}

// NewSyncService creates a SyncService.
func NewSyncService(opts SyncServiceOptions) (*SyncService, error) {
	if opts.Client == nil {
		return nil, errExportClientNotConfigured
	}
	if opts.Tokens == nil {
		return nil, errExportTokensNotConfigured
	}
	if opts.Repos.Credentials == nil || opts.Repos.Snapshots == nil {
		return nil, errSyncRepoNotConfigured
	}

	cfg := opts.Config
	if cfg.PageSize <= 0 {
		cfg.PageSize = bol.DefaultPageSize
	}
	if cfg.ItemDelay < 0 {
		cfg.ItemDelay = 0
	}
	if cfg.EnrichLimit <= 0 {
		cfg.EnrichLimit = DefaultEnrichLimit
	}
	if cfg.ForecastWeeks <= 0 {
		cfg.ForecastWeeks = DefaultForecastWeeks
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sync")

	return &SyncService{
		client:  opts.Client,
		tokens:  opts.Tokens,
		creds:   opts.Repos.Credentials,
		latest:  opts.Repos.Snapshots,
		exports: opts.Exports,
		cfg:     cfg,
		now:     now,
		logger:  logger,
		metrics: opts.Metrics,
		writer: snapshotWriter{
			snapshots: opts.Repos.Snapshots,
			analyses:  opts.Repos.Analyses,
			analyzer:  opts.Analyzer,
			logger:    logger,
		},
	}, nil
}

// Run syncs every active tenant in turn and then sweeps pending exports.
// Only a failure to load the tenant list is returned as an error.
func (s *SyncService) Run(ctx context.Context, opts RunOptions) (*model.RunReport, error) {
	start := s.now()
	creds, err := s.creds.ListActive(ctx)
	if err != nil {
		s.observeRun(metrics.ResultError, start)
		return nil, fmt.Errorf("list active tenants: %w", err)
	}

	report := model.NewRunReport(uuid.NewString(), start)
	log := s.logger.With("run_id", report.RunID)
	log.InfoContext(ctx, "sync run started", "tenants", len(creds), "force", opts.Force)

	for _, cred := range creds {
		if ctx.Err() != nil {
			log.WarnContext(ctx, "sync run interrupted", "error", ctx.Err())
			break
		}
		if !opts.Force && !cred.SyncDue(s.now()) {
			report.Add(model.ReportEntry{
				Kind:   model.EntryKindTenant,
				ID:     cred.TenantID,
				Status: model.EntryStatusSkipped,
				Detail: "not due",
			})
			s.observeTenant(model.EntryStatusSkipped)
			continue
		}
		report.Add(s.runTenant(ctx, cred))
	}

	if s.exports != nil && !opts.SkipSweep && ctx.Err() == nil {
		jobs, err := s.exports.Sweep(ctx)
		if err != nil {
			log.ErrorContext(ctx, "export sweep failed", "error", err)
			report.Add(model.ReportEntry{
				Kind:   model.EntryKindJob,
				ID:     SweepEntryID,
				Status: model.EntryStatusError,
				Detail: err.Error(),
			})
		}
		report.Merge(jobs)
	}

	report.Finish(s.now())
	counts := report.Counts()
	log.InfoContext(ctx, "sync run finished",
		"ok", counts[model.EntryStatusOK],
		"errors", counts[model.EntryStatusError],
		"skipped", counts[model.EntryStatusSkipped],
		"duration", report.FinishedAt.Sub(start))
	s.observeRun(metrics.ResultSuccess, start)
	return report, nil
}

// RunTenant syncs one active tenant on demand, ignoring its interval. A
// missing or inactive tenant is returned as a NotFound error.
func (s *SyncService) RunTenant(ctx context.Context, tenantID string) (*model.RunReport, error) {
	start := s.now()
	cred, err := s.creds.GetActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	report := model.NewRunReport(uuid.NewString(), start)
	report.Add(s.runTenant(ctx, cred))
	report.Finish(s.now())
	return report, nil
}

// runTenant is the tenant boundary: every error and panic below it becomes
// the tenant's report entry.
func (s *SyncService) runTenant(ctx context.Context, cred *model.Credential) (entry model.ReportEntry) {
	entry = model.ReportEntry{Kind: model.EntryKindTenant, ID: cred.TenantID}
	log := s.logger.With("tenant_id", cred.TenantID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			entry.Status = model.EntryStatusError
			entry.Detail = fmt.Sprintf("panic: %v", r)
			log.ErrorContext(ctx, "tenant sync panicked", "panic", r, "stack", string(debug.Stack()))
		}
		s.observeTenant(entry.Status)
	}()

	summary, err := s.syncTenant(ctx, cred, log)
	if err != nil {
		entry.Status = model.EntryStatusError
		entry.Detail = err.Error()
		log.ErrorContext(ctx, "tenant sync failed", "error", err, "duration", time.Since(start))
		return entry
	}

	entry.Status = model.EntryStatusOK
	entry.Detail = summary.String()
	log.InfoContext(ctx, "tenant synced", "summary", entry.Detail, "duration", time.Since(start))
	return entry
}

// tenantSummary counts what one tenant pass produced.
type tenantSummary struct {
	records  map[string]int
	exported bool
	notes    []string
}

func (t *tenantSummary) String() string {
	parts := make([]string, 0, len(t.records)+len(t.notes)+1)
	for _, dt := range []string{
		model.DataTypeOrders, model.DataTypeReturns, model.DataTypeCompetitors, model.DataTypeRanks,
		model.DataTypeCatalog, model.DataTypeForecast, model.DataTypeCampaigns,
	} {
		if n, ok := t.records[dt]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", dt, n))
		}
	}
	if t.exported {
		parts = append(parts, "offers export submitted")
	}
	parts = append(parts, t.notes...)
	return strings.Join(parts, ", ")
}

func (s *SyncService) syncTenant(ctx context.Context, cred *model.Credential, log *slog.Logger) (*tenantSummary, error) {
	summary := &tenantSummary{records: make(map[string]int)}

	token, err := s.tokens.Get(ctx, bol.AudienceRetailer, cred.ClientID, cred.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("retailer token: %w", err)
	}

	lists := []struct {
		dataType string
		build    bol.PageRequest
		path     string
	}{
		{model.DataTypeOrders, bol.OrdersPage, bol.OrdersItemsPath},
		{model.DataTypeReturns, bol.ReturnsPage, bol.ReturnsItemsPath},
	}
	for _, l := range lists {
		n, err := s.syncList(ctx, cred.TenantID, token, l.dataType, l.build, l.path, log)
		if err != nil {
			return nil, err
		}
		summary.records[l.dataType] = n
	}

	if s.exports != nil {
		_, created, err := s.exports.SubmitUnlessPending(ctx, cred, model.DataTypeOffers)
		switch {
		case err != nil:
			log.WarnContext(ctx, "offers export submit failed", "error", err)
			summary.notes = append(summary.notes, "offers export not submitted")
		case created:
			summary.exported = true
		}
	}

	if err := s.enrich(ctx, cred.TenantID, token, summary, log); err != nil {
		return nil, err
	}

	if cred.HasAdvertising() {
		if err := s.syncCampaigns(ctx, cred, summary, log); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.creds.MarkSynced(ctx, cred.TenantID, s.now()); err != nil {
		return nil, fmt.Errorf("mark synced: %w", err)
	}
	return summary, nil
}

// syncList collects every page of one list endpoint and stores the result.
// A pager that stops early still yields a snapshot of what it collected.
func (s *SyncService) syncList(
	ctx context.Context,
	tenantID, token, dataType string,
	build bol.PageRequest,
	itemsPath string,
	log *slog.Logger,
) (int, error) {
	pager, err := bol.NewPager(s.client, token, build, itemsPath)
	if err != nil {
		return 0, fmt.Errorf("%s pager: %w", dataType, err)
	}
	items := pager.WithPageSize(s.cfg.PageSize).CollectAll(ctx)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	stop := pager.Stop()
	if stop.Reason == bol.StopError || stop.Reason == bol.StopNotOK {
		log.WarnContext(ctx, "list sync ended early",
			"data_type", dataType,
			"reason", stop.Reason,
			"pages", stop.Pages,
			"last_status", stop.LastStatus,
			"error", stop.Err,
			"items", len(items))
	}

	if _, err := s.writer.write(ctx, tenantID, dataType, objects(items), nil); err != nil {
		return 0, err
	}
	return len(items), nil
}

// syncCampaigns collects advertising campaigns with the advertising token. A
// rejected advertising credential is noted and does not fail the tenant.
func (s *SyncService) syncCampaigns(
	ctx context.Context,
	cred *model.Credential,
	summary *tenantSummary,
	log *slog.Logger,
) error {
	token, err := s.tokens.Get(ctx, bol.AudienceAdvertising, *cred.AdvertisingClientID, *cred.AdvertisingClientSecret)
	if err != nil {
		log.WarnContext(ctx, "advertising token failed", "error", err)
		summary.notes = append(summary.notes, "campaigns skipped")
		return nil
	}
	n, err := s.syncList(ctx, cred.TenantID, token, model.DataTypeCampaigns, bol.CampaignsPage, bol.CampaignsItemsPath, log)
	if err != nil {
		return err
	}
	summary.records[model.DataTypeCampaigns] = n
	return nil
}

func (s *SyncService) observeTenant(status model.EntryStatus) {
	if s.metrics != nil {
		s.metrics.TenantResult(string(status))
	}
}

func (s *SyncService) observeRun(result string, start time.Time) {
	if s.metrics != nil {
		s.metrics.SyncRun(result, s.now().Sub(start))
	}
}

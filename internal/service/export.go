package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-bol-sync/internal/bol"
	"github.com/target/mmk-bol-sync/internal/core"
	"github.com/target/mmk-bol-sync/internal/domain/model"
	apperrors "github.com/target/mmk-bol-sync/internal/errors"
	"github.com/target/mmk-bol-sync/internal/tabular"
)

const (
	// DefaultExportMaxAge is how long a job may stay pending before it expires.
	DefaultExportMaxAge = 24 * time.Hour
	// DefaultExportMaxAttempts bounds status polls per job.
	DefaultExportMaxAttempts = 50
	// DefaultSweepBatchSize bounds the pending jobs loaded per sweep.
	DefaultSweepBatchSize = 500
)

// ErrUpstreamFailure marks an export the marketplace reported as failed.
var ErrUpstreamFailure = errors.New(model.ExportErrUpstream)

var (
	errExportClientNotConfigured = errors.New("export: upstream client not configured")
	errExportTokensNotConfigured = errors.New("export: token source not configured")
)

// TokenSource issues bearer tokens per audience and client id.
type TokenSource interface {
	Get(ctx context.Context, audience bol.Audience, clientID, clientSecret string) (string, error)
}

// ExportMetrics receives job outcomes. *metrics.Metrics satisfies it.
type ExportMetrics interface {
	ExportJobOutcome(status string)
}

// ExportRepos groups the storage ports used by ExportService.
type ExportRepos struct {
	Credentials core.CredentialRepository
	Jobs        core.ExportJobRepository
	Snapshots   core.SnapshotRepository
	Analyses    core.AnalysisRepository
}

// ExportConfig holds the sweep limits. Zero values take the defaults.
type ExportConfig struct {
	MaxAge      time.Duration
	MaxAttempts int
	BatchSize   int
}

// ExportServiceOptions configures ExportService.
type ExportServiceOptions struct {
	Client   bol.Doer
	Tokens   TokenSource
	Repos    ExportRepos
	Analyzer core.Analyzer
	Config   ExportConfig
	Now      func() time.Time
	Logger   *slog.Logger
	Metrics  ExportMetrics
}

// ExportService submits asynchronous marketplace exports and drives their jobs
// from pending to completed or failed.
type ExportService struct {
	client  bol.Doer
	tokens  TokenSource
	creds   core.CredentialRepository
	jobs    core.ExportJobRepository
	writer  snapshotWriter
	cfg     ExportConfig
	now     func() time.Time
	logger  *slog.Logger
	metrics ExportMetrics
}

// NewExportService creates an ExportService. Client, Tokens and the
// credential and job repositories are required.
func NewExportService(opts ExportServiceOptions) (*ExportService, error) {
	if opts.Client == nil {
		return nil, errExportClientNotConfigured
	}
	if opts.Tokens == nil {
		return nil, errExportTokensNotConfigured
	}
	if opts.Repos.Credentials == nil || opts.Repos.Jobs == nil {
		return nil, errors.New("export: credential and job repositories are required")
	}

	cfg := opts.Config
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultExportMaxAge
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultExportMaxAttempts
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSweepBatchSize
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "export")

	return &ExportService{
		client:    opts.Client,
		tokens:    opts.Tokens,
		creds:     opts.Repos.Credentials,
		jobs:      opts.Repos.Jobs,
		cfg:       cfg,
		now:       now,
		logger:    logger,
		metrics:   opts.Metrics,
		writer: snapshotWriter{
			snapshots: opts.Repos.Snapshots,
			analyses:  opts.Repos.Analyses,
			analyzer:  opts.Analyzer,
			logger:    logger,
		},
	}, nil
}

// Submit starts an upstream export for dataType and persists a pending job
// holding the returned process status id.
func (s *ExportService) Submit(ctx context.Context, cred *model.Credential, dataType string) (*model.ExportJob, error) {
	if cred == nil {
		return nil, apperrors.Validation("credential is required")
	}
	ep, ok := bol.Export(dataType)
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("unsupported export type %q", dataType))
	}

	token, err := s.tokens.Get(ctx, bol.AudienceRetailer, cred.ClientID, cred.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("submit %s export: %w", dataType, err)
	}
	resp, err := s.client.Do(ctx, token, ep.Submit())
	if err != nil {
		return nil, fmt.Errorf("submit %s export: %w", dataType, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("submit %s export: upstream status %d", dataType, resp.Status)
	}
	ps, err := bol.ParseProcessStatus(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("submit %s export: %w", dataType, err)
	}
	if ps.ProcessStatusID == "" {
		return nil, fmt.Errorf("submit %s export: response carried no processStatusId", dataType)
	}

	job, err := s.jobs.Create(ctx, &model.CreateExportJobRequest{
		TenantID:        cred.TenantID,
		DataType:        dataType,
		ProcessStatusID: ps.ProcessStatusID,
		StartedAt:       s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("persist %s export job: %w", dataType, err)
	}

	s.logger.InfoContext(ctx, "export submitted",
		"tenant_id", cred.TenantID,
		"data_type", dataType,
		"job_id", job.ID,
		"process_status_id", ps.ProcessStatusID)
	return job, nil
}

// SubmitUnlessPending submits an export unless the tenant already has a
// pending job of the same type. The bool reports whether a job was created.
func (s *ExportService) SubmitUnlessPending(
	ctx context.Context,
	cred *model.Credential,
	dataType string,
) (*model.ExportJob, bool, error) {
	if cred == nil {
		return nil, false, apperrors.Validation("credential is required")
	}
	pending, err := s.jobs.HasPending(ctx, cred.TenantID, dataType)
	if err != nil {
		return nil, false, fmt.Errorf("check pending %s export: %w", dataType, err)
	}
	if pending {
		return nil, false, nil
	}
	job, err := s.Submit(ctx, cred, dataType)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// Sweep resolves pending jobs, oldest first. Only a failure to list the jobs
// is returned as an error; per-job problems land in the report.
func (s *ExportService) Sweep(ctx context.Context) (*model.RunReport, error) {
	jobs, err := s.jobs.ListPending(ctx, s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list pending export jobs: %w", err)
	}

	report := model.NewRunReport(uuid.NewString(), s.now())
	for i, job := range jobs {
		if ctx.Err() != nil {
			s.logger.WarnContext(ctx, "sweep interrupted", "remaining", len(jobs)-i)
			break
		}
		out := s.resolve(ctx, job)
		entry := s.apply(ctx, job, out)
		report.Add(entry)
		if s.metrics != nil {
			s.metrics.ExportJobOutcome(string(entry.Status))
		}
	}
	report.Finish(s.now())

	counts := report.Counts()
	s.logger.InfoContext(ctx, "export sweep finished",
		"run_id", report.RunID,
		"jobs", len(report.Entries),
		"completed", counts[model.EntryStatusCompleted],
		"failed", counts[model.EntryStatusFailed],
		"pending", counts[model.EntryStatusPending],
		"transient", counts[model.EntryStatusTransient])
	return report, nil
}

type outcomeKind int

const (
	outcomePending outcomeKind = iota
	outcomeCompleted
	outcomeTerminal
	outcomeTransient
)

// pollOutcome is the result of resolving one job against upstream.
type pollOutcome struct {
	kind     outcomeKind
	reason   string
	entityID string
	records  int
}

func stillPending() pollOutcome { return pollOutcome{kind: outcomePending} }

func completedWith(entityID string, records int) pollOutcome {
	return pollOutcome{kind: outcomeCompleted, entityID: entityID, records: records}
}

func terminal(reason string) pollOutcome { return pollOutcome{kind: outcomeTerminal, reason: reason} }

func transient(format string, args ...any) pollOutcome {
	return pollOutcome{kind: outcomeTransient, reason: fmt.Sprintf(format, args...)}
}

// resolve decides the next state of job. The checks run in a fixed order:
// age, tenant, attempts, then the upstream status.
func (s *ExportService) resolve(ctx context.Context, job *model.ExportJob) pollOutcome {
	if job.Age(s.now()) > s.cfg.MaxAge {
		return terminal(model.ExportErrExpired)
	}

	cred, err := s.creds.GetActive(ctx, job.TenantID)
	if apperrors.IsNotFound(err) {
		return terminal(model.ExportErrTenantNotFound)
	}
	if err != nil {
		return transient("load tenant: %v", err)
	}

	if job.Attempts >= s.cfg.MaxAttempts {
		return terminal(model.ExportErrMaxAttempts)
	}

	token, err := s.tokens.Get(ctx, bol.AudienceRetailer, cred.ClientID, cred.ClientSecret)
	if err != nil {
		return transient("token: %v", err)
	}

	resp, err := s.client.Do(ctx, token, bol.ProcessStatusRequest(job.ProcessStatusID))
	// The attempt counts once the request is dispatched, whatever came back.
	if _, incErr := s.jobs.IncrementAttempts(ctx, job.ID); incErr != nil {
		s.logger.WarnContext(ctx, "failed to count export attempt", "job_id", job.ID, "error", incErr)
	}
	if err != nil {
		return transient("process status: %v", err)
	}
	if !resp.OK {
		return transient("process status: upstream status %d", resp.Status)
	}
	ps, err := bol.ParseProcessStatus(resp.Data)
	if err != nil {
		return transient("process status: %v", err)
	}

	switch ps.Status {
	case bol.ProcessSuccess:
		if ps.EntityID == "" {
			return stillPending()
		}
		return s.download(ctx, token, job, ps.EntityID)
	case bol.ProcessFailure:
		s.logger.WarnContext(ctx, "export failed upstream",
			"job_id", job.ID, "tenant_id", job.TenantID, "upstream_error", ps.ErrorMessage)
		return terminal(ErrUpstreamFailure.Error())
	default:
		return stillPending()
	}
}

// download fetches a finished export and stores it as an analyzed snapshot.
func (s *ExportService) download(ctx context.Context, token string, job *model.ExportJob, entityID string) pollOutcome {
	ep, ok := bol.Export(job.DataType)
	if !ok {
		return terminal(fmt.Sprintf("Unsupported export type %s", job.DataType))
	}
	resp, err := s.client.Do(ctx, token, ep.Download(entityID))
	if err != nil {
		return transient("download: %v", err)
	}
	if !resp.OK {
		return transient("download: upstream status %d", resp.Status)
	}

	records, err := tabular.DecodeReader(strings.NewReader(resp.Text))
	if err != nil {
		return transient("decode: %v", err)
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return transient("encode records: %v", err)
	}

	if _, err := s.writer.writeFromEntity(ctx, job.TenantID, job.DataType, entityID, tabular.Generics(records), payload); err != nil {
		return transient("%v", err)
	}
	return completedWith(entityID, len(records))
}

// apply writes the outcome and returns the report entry for it.
func (s *ExportService) apply(ctx context.Context, job *model.ExportJob, out pollOutcome) model.ReportEntry {
	entry := model.ReportEntry{Kind: model.EntryKindJob, ID: job.ID}
	var (
		changed bool
		err     error
	)

	switch out.kind {
	case outcomePending:
		entry.Status = model.EntryStatusPending
		return entry
	case outcomeTransient:
		entry.Status = model.EntryStatusTransient
		entry.Detail = out.reason
		if _, err := s.jobs.RecordError(ctx, job.ID, out.reason); err != nil {
			s.logger.WarnContext(ctx, "failed to record export job error", "job_id", job.ID, "error", err)
		}
		s.logger.InfoContext(ctx, "export job transient failure", "job_id", job.ID, "reason", out.reason)
		return entry
	case outcomeCompleted:
		changed, err = s.jobs.Complete(ctx, core.CompleteExportJobParams{
			ID:          job.ID,
			EntityID:    out.entityID,
			CompletedAt: s.now(),
		})
		entry.Status = model.EntryStatusCompleted
		entry.Detail = fmt.Sprintf("%d records", out.records)
	case outcomeTerminal:
		changed, err = s.jobs.Fail(ctx, core.FailExportJobParams{
			ID:          job.ID,
			Reason:      out.reason,
			CompletedAt: s.now(),
		})
		entry.Status = model.EntryStatusFailed
		entry.Detail = out.reason
	}

	if err != nil {
		s.logger.ErrorContext(ctx, "failed to write export job transition",
			"job_id", job.ID, "status", entry.Status, "error", err)
		return model.ReportEntry{
			Kind:   model.EntryKindJob,
			ID:     job.ID,
			Status: model.EntryStatusTransient,
			Detail: err.Error(),
		}
	}
	if !changed {
		// Another sweep resolved the job first.
		entry.Status = model.EntryStatusSkipped
		entry.Detail = "job no longer pending"
		return entry
	}

	s.logger.InfoContext(ctx, "export job resolved",
		"job_id", job.ID,
		"tenant_id", job.TenantID,
		"status", entry.Status,
		"detail", entry.Detail)
	return entry
}

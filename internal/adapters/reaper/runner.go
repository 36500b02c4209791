// Package reaper runs the retention reaper for export jobs and snapshots.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/mmk-bol-sync/config"
	"github.com/target/mmk-bol-sync/internal/core"
	"github.com/target/mmk-bol-sync/internal/data"
	"github.com/target/mmk-bol-sync/internal/service"
)

// Runner owns a ReaperService wired to the Postgres reaper repository.
type Runner struct {
	reaper *service.ReaperService
	cfg    config.ReaperConfig
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	Repo    core.ReaperRepository
	Metrics service.ReaperMetrics
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	reaper, err := wireReaperService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: reaper, cfg: opts.Config, logger: opts.Logger}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Repo == nil {
		return errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// wireReaperService wires up all dependencies for the reaper service.
func wireReaperService(opts RunnerOptions) (*service.ReaperService, error) {
	repo := opts.Repo
	if repo == nil {
		repo = data.NewReaperRepo(opts.DB)
	}

	return service.NewReaperService(service.ReaperServiceOptions{
		Repo:    repo,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner", r.retentionAttrs()...)
	return r.reaper.Run(ctx)
}

// RunOnce performs a single cleanup pass.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.logger.InfoContext(ctx, "running one reaper pass", r.retentionAttrs()...)
	return r.reaper.RunOnce(ctx)
}

func (r *Runner) retentionAttrs() []any {
	return []any{
		"interval", r.cfg.Interval,
		"completed_max_age", r.cfg.CompletedMaxAge,
		"failed_max_age", r.cfg.FailedMaxAge,
		"snapshot_max_age", r.cfg.SnapshotMaxAge,
		"batch_size", r.cfg.BatchSize,
	}
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-bol-sync/config"
	"github.com/target/mmk-bol-sync/internal/core"
	"github.com/target/mmk-bol-sync/internal/domain/model"
)

// ReaperMetrics receives cleanup outcomes. *metrics.Metrics satisfies it.
type ReaperMetrics interface {
	CleanupOperation(operation string, count int64, err error)
	CleanupSucceeded(at time.Time)
}

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required: reaper repository
	Config  config.ReaperConfig   // Required: reaper configuration
	Logger  *slog.Logger          // Optional: structured logger
	Metrics ReaperMetrics         // Optional: metrics sink
}

// ReaperService enforces retention on sync data.
//
// This service manages:
// - Deleting completed export jobs past their retention.
// - Deleting failed export jobs past their retention.
// - Deleting old snapshots together with their analyses.
type ReaperService struct {
	repo    core.ReaperRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics ReaperMetrics
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}

	cfg := opts.Config
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", cfg.Interval,
			"completed_max_age", cfg.CompletedMaxAge,
			"failed_max_age", cfg.FailedMaxAge,
			"snapshot_max_age", cfg.SnapshotMaxAge,
		)
	}

	return &ReaperService{
		repo:    opts.Repo,
		config:  cfg,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Spread instances that start together.
	waitWithJitter(ctx, s.config.Interval, s.logger)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

// RunOnce performs every cleanup step once. A failing step does not stop the
// later ones; their errors are joined.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	var (
		errs               []error
		allContextCanceled = true
		clean              = true
	)

	steps := []cleanupStep{
		{fn: s.deleteOldCompletedJobs, label: "delete old completed export jobs", operation: "delete_completed_jobs"},
		{fn: s.deleteOldFailedJobs, label: "delete old failed export jobs", operation: "delete_failed_jobs"},
		{fn: s.deleteOldSnapshots, label: "delete old snapshots", operation: "delete_snapshots"},
	}

	for _, step := range steps {
		outcome := s.executeCleanupStep(ctx, step.fn, step.label)
		if s.metrics != nil {
			s.metrics.CleanupOperation(step.operation, outcome.count, outcome.metricErr)
		}
		if outcome.aggregateErr != nil {
			clean = false
			errs = append(errs, outcome.aggregateErr)
			allContextCanceled = allContextCanceled && outcome.canceled
		}
	}

	if clean && s.metrics != nil {
		s.metrics.CleanupSucceeded(time.Now())
	}

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

type cleanupFunc func(context.Context) (int64, error)

type cleanupStep struct {
	fn        cleanupFunc
	label     string
	operation string
}

type cleanupStepOutcome struct {
	count        int64
	metricErr    error
	aggregateErr error
	canceled     bool
}

func (s *ReaperService) executeCleanupStep(
	ctx context.Context,
	fn cleanupFunc,
	label string,
) cleanupStepOutcome {
	count, err := fn(ctx)
	outcome := cleanupStepOutcome{
		count:     count,
		metricErr: suppressContextCancellation(err),
		canceled:  isContextCancellation(err),
	}
	if err != nil {
		outcome.aggregateErr = fmt.Errorf("%s: %w", label, err)
	}
	return outcome
}

func (s *ReaperService) deleteOldCompletedJobs(ctx context.Context) (int64, error) {
	total, err := drainBatches(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.DeleteOldExportJobs(ctx, core.DeleteOldExportJobsParams{
			Status:    model.ExportJobStatusCompleted,
			MaxAge:    s.config.CompletedMaxAge,
			BatchSize: s.config.BatchSize,
		})
	})
	s.logDeleted(ctx, "deleted old completed export jobs", total, s.config.CompletedMaxAge)
	return total, err
}

func (s *ReaperService) deleteOldFailedJobs(ctx context.Context) (int64, error) {
	total, err := drainBatches(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.DeleteOldExportJobs(ctx, core.DeleteOldExportJobsParams{
			Status:    model.ExportJobStatusFailed,
			MaxAge:    s.config.FailedMaxAge,
			BatchSize: s.config.BatchSize,
		})
	})
	s.logDeleted(ctx, "deleted old failed export jobs", total, s.config.FailedMaxAge)
	return total, err
}

func (s *ReaperService) deleteOldSnapshots(ctx context.Context) (int64, error) {
	total, err := drainBatches(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.DeleteOldSnapshots(ctx, s.config.SnapshotMaxAge, s.config.BatchSize)
	})
	s.logDeleted(ctx, "deleted old snapshots", total, s.config.SnapshotMaxAge)
	return total, err
}

// drainBatches repeats fn until a batch affects no rows. Large backlogs are
// handled in bounded batches.
func drainBatches(ctx context.Context, fn cleanupFunc) (int64, error) {
	var total int64
	for {
		count, err := fn(ctx)
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *ReaperService) logDeleted(ctx context.Context, msg string, count int64, maxAge time.Duration) {
	if count == 0 || s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, msg, "count", count, "max_age", maxAge)
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

// waitWithJitter sleeps a random delay up to 10% of interval, or until ctx ends.
func waitWithJitter(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	maxJitter := int64(interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}

// Package scheduler provides adapters for running periodic sync runs and
// export completion sweeps.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/target/mmk-bol-sync/config"
	"github.com/target/mmk-bol-sync/internal/domain/model"
	"github.com/target/mmk-bol-sync/internal/service"
)

// Trigger is the locked run surface the scheduler drives.
type Trigger interface {
	RunAll(ctx context.Context, opts service.RunOptions) (*model.RunReport, error)
	Sweep(ctx context.Context) (*model.RunReport, error)
}

// Runner runs a sync tick loop and a sweep tick loop until cancelled.
type Runner struct {
	trigger       Trigger
	syncInterval  time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
	jitter        func(time.Duration) time.Duration
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Trigger Trigger
	Config  config.SchedulerConfig
	Logger  *slog.Logger

	// Jitter returns the start delay for a given interval. Defaults to a
	// random delay below a tenth of the sync interval.
	Jitter func(time.Duration) time.Duration
}

// NewRunner creates a new scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}
	return &Runner{
		trigger:       opts.Trigger,
		syncInterval:  opts.Config.SyncInterval,
		sweepInterval: opts.Config.SweepInterval,
		logger:        opts.Logger.With("component", "scheduler"),
		jitter:        opts.Jitter,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Trigger == nil {
		return errors.New("trigger is required")
	}
	if opts.Config.SyncInterval <= 0 {
		opts.Config.SyncInterval = 15 * time.Minute
	}
	if opts.Config.SweepInterval <= 0 {
		opts.Config.SweepInterval = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Jitter == nil {
		opts.Jitter = randomJitter
	}
	return nil
}

// Run starts both tick loops and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scheduler runner",
		"sync_interval", r.syncInterval,
		"sweep_interval", r.sweepInterval)

	// Spread instances that start together.
	if d := r.jitter(r.syncInterval); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return stopReason(ctx)
		case <-timer.C:
		}
	}

	syncTicker := time.NewTicker(r.syncInterval)
	defer syncTicker.Stop()
	sweepTicker := time.NewTicker(r.sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler runner stopping", "reason", ctx.Err())
			return stopReason(ctx)

		case <-syncTicker.C:
			r.tick(ctx, "sync", func(ctx context.Context) (*model.RunReport, error) {
				return r.trigger.RunAll(ctx, service.RunOptions{})
			})

		case <-sweepTicker.C:
			r.tick(ctx, "sweep", r.trigger.Sweep)
		}
	}
}

func (r *Runner) tick(ctx context.Context, kind string, fn func(context.Context) (*model.RunReport, error)) {
	start := time.Now()
	report, err := fn(ctx)
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		r.logger.DebugContext(ctx, "scheduler tick skipped, run in progress", "kind", kind)
	case err != nil:
		// Continue running despite errors
		r.logger.ErrorContext(ctx, "scheduler tick failed", "kind", kind, "error", err)
	case report != nil && len(report.Entries) > 0:
		counts := report.Counts()
		r.logger.InfoContext(ctx, "scheduler tick finished",
			"kind", kind,
			"run_id", report.RunID,
			"entries", len(report.Entries),
			"errors", counts[model.EntryStatusError],
			"duration", time.Since(start))
	}
}

func stopReason(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func randomJitter(interval time.Duration) time.Duration {
	maxJitter := interval / 10
	if maxJitter <= 0 {
		return 0
	}
	return rand.N(maxJitter)
}

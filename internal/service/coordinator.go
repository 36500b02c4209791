package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-bol-sync/internal/core"
	"github.com/target/mmk-bol-sync/internal/domain/model"
)

// RunLockKey is the cache key guarding sync runs and sweeps across instances.
const RunLockKey = "bolsync:lock:run"

// DefaultRunLockTTL bounds a lock whose holder died without releasing it.
const DefaultRunLockTTL = 30 * time.Minute

// ErrRunInProgress is returned when another instance holds the run lock.
var ErrRunInProgress = errors.New("another sync run is in progress")

// SyncRunner is the orchestrator surface the coordinator drives.
type SyncRunner interface {
	Run(ctx context.Context, opts RunOptions) (*model.RunReport, error)
	RunTenant(ctx context.Context, tenantID string) (*model.RunReport, error)
}

// SweepRunner advances pending export jobs.
type SweepRunner interface {
	Sweep(ctx context.Context) (*model.RunReport, error)
}

// CoordinatorOptions groups dependencies for Coordinator.
type CoordinatorOptions struct {
	Sync    SyncRunner     // Required
	Exports SweepRunner    // Required
	Locker  core.RunLocker // Required
	LockTTL time.Duration  // Optional: defaults to DefaultRunLockTTL
	Logger  *slog.Logger   // Optional
}

// Coordinator serializes sync runs, single-tenant syncs and sweeps behind one
// distributed lock. Scheduler ticks and HTTP triggers both go through it.
type Coordinator struct {
	sync    SyncRunner
	exports SweepRunner
	locker  core.RunLocker
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Sync == nil {
		return nil, errors.New("SyncRunner is required")
	}
	if opts.Exports == nil {
		return nil, errors.New("SweepRunner is required")
	}
	if opts.Locker == nil {
		return nil, errors.New("RunLocker is required")
	}
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = DefaultRunLockTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		sync:    opts.Sync,
		exports: opts.Exports,
		locker:  opts.Locker,
		ttl:     ttl,
		logger:  logger.With("component", "run_coordinator"),
	}, nil
}

// RunAll performs a full sync run under the lock.
func (c *Coordinator) RunAll(ctx context.Context, opts RunOptions) (*model.RunReport, error) {
	return c.withLock(ctx, "sync_run", func(ctx context.Context) (*model.RunReport, error) {
		return c.sync.Run(ctx, opts)
	})
}

// RunTenant syncs one tenant under the lock.
func (c *Coordinator) RunTenant(ctx context.Context, tenantID string) (*model.RunReport, error) {
	return c.withLock(ctx, "sync_tenant", func(ctx context.Context) (*model.RunReport, error) {
		return c.sync.RunTenant(ctx, tenantID)
	})
}

// Sweep runs one export completion sweep under the lock.
func (c *Coordinator) Sweep(ctx context.Context) (*model.RunReport, error) {
	return c.withLock(ctx, "export_sweep", c.exports.Sweep)
}

func (c *Coordinator) withLock(
	ctx context.Context,
	op string,
	fn func(context.Context) (*model.RunReport, error),
) (*model.RunReport, error) {
	release, ok, err := c.locker.TryLock(ctx, RunLockKey, c.ttl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		c.logger.InfoContext(ctx, "run lock held elsewhere", "operation", op)
		return nil, ErrRunInProgress
	}
	defer func() {
		// The lock must be freed even when ctx was cancelled mid-run.
		if err := release(context.WithoutCancel(ctx)); err != nil {
			c.logger.WarnContext(ctx, "release run lock failed", "operation", op, "error", err)
		}
	}()
	return fn(ctx)
}

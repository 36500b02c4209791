package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/target/mmk-bol-sync/internal/core"
	"github.com/target/mmk-bol-sync/internal/data/pgxutil"
)

// Advisory lock namespace for reaper operations. Major key 2000 is reserved
// for sync cleanup.
var (
	advisoryLockReaperExportJobs = pgxutil.AdvisoryKey{Major: 2000, Minor: 1}
	advisoryLockReaperSnapshots  = pgxutil.AdvisoryKey{Major: 2000, Minor: 2}
)

// ReaperRepo deletes finished export jobs and aged snapshots in batches.
type ReaperRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewReaperRepo creates a ReaperRepo using the system clock.
func NewReaperRepo(db *sql.DB) *ReaperRepo {
	return &ReaperRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewReaperRepoWithTimeProvider creates a ReaperRepo with a custom clock.
func NewReaperRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ReaperRepo {
	return &ReaperRepo{DB: db, timeProvider: tp}
}

var _ core.ReaperRepository = (*ReaperRepo)(nil)

// DeleteOldExportJobs deletes terminal jobs with the given status whose
// completed_at is older than MaxAge. Pending jobs are never touched; the sweep
// owns them. Returns 0 without error when another instance holds the lock.
func (r *ReaperRepo) DeleteOldExportJobs(ctx context.Context, params core.DeleteOldExportJobsParams) (int64, error) {
	if !params.Status.Terminal() {
		return 0, fmt.Errorf("invalid export job status for cleanup: %s", params.Status)
	}
	if err := validateBatch(params.MaxAge, params.BatchSize); err != nil {
		return 0, err
	}

	cutoff := r.timeProvider.Now().Add(-params.MaxAge).UTC()
	return r.deleteLocked(ctx, advisoryLockReaperExportJobs, `
		DELETE FROM export_jobs
		WHERE id IN (
			SELECT id FROM export_jobs
			WHERE status = $1
			  AND completed_at < $2
			ORDER BY completed_at
			LIMIT $3
		)
	`, string(params.Status), cutoff, params.BatchSize)
}

// DeleteOldSnapshots deletes snapshots fetched before now-maxAge. Analyses are
// removed by the ON DELETE CASCADE on analyses.snapshot_id.
func (r *ReaperRepo) DeleteOldSnapshots(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if err := validateBatch(maxAge, batchSize); err != nil {
		return 0, err
	}

	cutoff := r.timeProvider.Now().Add(-maxAge).UTC()
	return r.deleteLocked(ctx, advisoryLockReaperSnapshots, `
		DELETE FROM snapshots
		WHERE id IN (
			SELECT id FROM snapshots
			WHERE fetched_at < $1
			ORDER BY fetched_at
			LIMIT $2
		)
	`, cutoff, batchSize)
}

func (r *ReaperRepo) deleteLocked(ctx context.Context, key pgxutil.AdvisoryKey, query string, args ...any) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := pgxutil.TryAdvisoryXactLock(ctx, tx, key)
			if err != nil {
				return err
			}
			if !locked {
				return nil
			}

			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("reaper delete: %w", err)
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

func validateBatch(maxAge time.Duration, batchSize int) error {
	if batchSize <= 0 {
		return errors.New("batch size must be greater than zero")
	}
	if maxAge <= 0 {
		return errors.New("max age must be greater than zero")
	}
	return nil
}

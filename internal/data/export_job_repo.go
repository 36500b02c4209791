package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-bol-sync/internal/core"
	"github.com/target/mmk-bol-sync/internal/domain/model"
	apperrors "github.com/target/mmk-bol-sync/internal/errors"
)

const exportJobColumns = `
  id,
  tenant_id,
  data_type,
  process_status_id,
  status,
  attempts,
  started_at,
  completed_at,
  error,
  entity_id
`

const defaultPendingLimit = 500

// ExportJobRepo persists export jobs. Updates are guarded on status = 'pending'
// so a terminal job never changes again.
type ExportJobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	newID        func() string
}

// NewExportJobRepo creates an ExportJobRepo using the system clock.
func NewExportJobRepo(db *sql.DB) *ExportJobRepo {
	return NewExportJobRepoWithTimeProvider(db, RealTimeProvider{})
}

// NewExportJobRepoWithTimeProvider creates an ExportJobRepo with a custom clock.
func NewExportJobRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ExportJobRepo {
	return &ExportJobRepo{DB: db, timeProvider: tp, newID: uuid.NewString}
}

// Create inserts a pending job with zero attempts.
func (r *ExportJobRepo) Create(ctx context.Context, req *model.CreateExportJobRequest) (*model.ExportJob, error) {
	if req == nil {
		return nil, ErrRequestRequired
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid export job")
	}

	startedAt := req.StartedAt
	if startedAt.IsZero() {
		startedAt = r.timeProvider.Now()
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO export_jobs (id, tenant_id, data_type, process_status_id, status, attempts, started_at)
		VALUES ($1, $2, $3, $4, 'pending', 0, $5)
		RETURNING `+exportJobColumns,
		r.newID(),
		strings.TrimSpace(req.TenantID),
		req.DataType,
		req.ProcessStatusID,
		startedAt.UTC(),
	)
	job, err := scanExportJob(row)
	if err != nil {
		return nil, fmt.Errorf("create export job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// GetByID returns a job or a NotFound error.
func (r *ExportJobRepo) GetByID(ctx context.Context, id string) (*model.ExportJob, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+exportJobColumns+` FROM export_jobs WHERE id = $1`, id)
	job, err := scanExportJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFoundf("export job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get export job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// ListPending returns pending jobs, oldest submission first.
func (r *ExportJobRepo) ListPending(ctx context.Context, limit int) ([]*model.ExportJob, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+exportJobColumns+`
		FROM export_jobs
		WHERE status = 'pending'
		ORDER BY started_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export jobs: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	out := make([]*model.ExportJob, 0)
	for rows.Next() {
		job, err := scanExportJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export jobs: %w", err)
	}
	return out, nil
}

// HasPending reports whether the tenant already has a pending job of dataType.
func (r *ExportJobRepo) HasPending(ctx context.Context, tenantID, dataType string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM export_jobs
			WHERE tenant_id = $1 AND data_type = $2 AND status = 'pending'
		)
	`, tenantID, dataType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending export job: %w", apperrors.MapDBError(err))
	}
	return exists, nil
}

// IncrementAttempts adds one to a pending job's attempt counter.
func (r *ExportJobRepo) IncrementAttempts(ctx context.Context, id string) (bool, error) {
	return r.execPending(ctx, "increment attempts", `
		UPDATE export_jobs SET attempts = attempts + 1
		WHERE id = $1 AND status = 'pending'
	`, id)
}

// RecordError stores the latest transient failure message on a pending job.
func (r *ExportJobRepo) RecordError(ctx context.Context, id, message string) (bool, error) {
	return r.execPending(ctx, "record export job error", `
		UPDATE export_jobs SET error = $2
		WHERE id = $1 AND status = 'pending'
	`, id, message)
}

// Complete moves a pending job to completed and records the entity id.
func (r *ExportJobRepo) Complete(ctx context.Context, p core.CompleteExportJobParams) (bool, error) {
	return r.execPending(ctx, "complete export job", `
		UPDATE export_jobs
		SET status = 'completed', entity_id = $2, completed_at = $3, error = NULL
		WHERE id = $1 AND status = 'pending'
	`, p.ID, p.EntityID, r.stamp(p.CompletedAt))
}

// Fail moves a pending job to failed with reason.
func (r *ExportJobRepo) Fail(ctx context.Context, p core.FailExportJobParams) (bool, error) {
	return r.execPending(ctx, "fail export job", `
		UPDATE export_jobs
		SET status = 'failed', error = $2, completed_at = $3
		WHERE id = $1 AND status = 'pending'
	`, p.ID, p.Reason, r.stamp(p.CompletedAt))
}

func (r *ExportJobRepo) execPending(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n > 0, nil
}

func (r *ExportJobRepo) stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = r.timeProvider.Now()
	}
	return t.UTC()
}

func scanExportJob(s rowScanner) (*model.ExportJob, error) {
	var (
		job         model.ExportJob
		completedAt sql.NullTime
		errMsg      sql.NullString
		entityID    sql.NullString
	)
	if err := s.Scan(
		&job.ID,
		&job.TenantID,
		&job.DataType,
		&job.ProcessStatusID,
		&job.Status,
		&job.Attempts,
		&job.StartedAt,
		&completedAt,
		&errMsg,
		&entityID,
	); err != nil {
		return nil, err
	}
	job.CompletedAt = nullableTime(completedAt)
	job.Error = nullableString(errMsg)
	job.EntityID = nullableString(entityID)
	return &job, nil
}

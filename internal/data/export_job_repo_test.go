package data

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-bol-sync/internal/core"
	"github.com/target/mmk-bol-sync/internal/domain/model"
	apperrors "github.com/target/mmk-bol-sync/internal/errors"
)

var exportJobCols = []string{
	"id", "tenant_id", "data_type", "process_status_id", "status", "attempts",
	"started_at", "completed_at", "error", "entity_id",
}

func newTestExportJobRepo(t *testing.T, now time.Time) (*ExportJobRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	repo := NewExportJobRepoWithTimeProvider(db, NewFixedTimeProvider(now))
	repo.newID = func() string { return "job-1" }
	return repo, mock
}

func TestExportJobRepo_Create(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	repo, mock := newTestExportJobRepo(t, now)

	mock.ExpectQuery(`INSERT INTO export_jobs`).
		WithArgs("job-1", "t1", "offers", "ps-9", now).
		WillReturnRows(sqlmock.NewRows(exportJobCols).
			AddRow("job-1", "t1", "offers", "ps-9", "pending", 0, now, nil, nil, nil))

	job, err := repo.Create(context.Background(), &model.CreateExportJobRequest{
		TenantID: "t1", DataType: "offers", ProcessStatusID: "ps-9",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ExportJobStatusPending, job.Status)
	assert.Zero(t, job.Attempts)
	assert.Nil(t, job.CompletedAt)
	assert.Nil(t, job.EntityID)
}

func TestExportJobRepo_Create_Invalid(t *testing.T) {
	repo, _ := newTestExportJobRepo(t, time.Now())

	_, err := repo.Create(context.Background(), nil)
	require.ErrorIs(t, err, ErrRequestRequired)

	_, err = repo.Create(context.Background(), &model.CreateExportJobRequest{TenantID: "t1", DataType: "offers"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestExportJobRepo_ListPending_OldestFirst(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	repo, mock := newTestExportJobRepo(t, now)
	done := now.Add(-time.Hour)

	mock.ExpectQuery(`WHERE status = 'pending'\s+ORDER BY started_at ASC, id ASC\s+LIMIT \$1`).
		WithArgs(defaultPendingLimit).
		WillReturnRows(sqlmock.NewRows(exportJobCols).
			AddRow("a", "t1", "offers", "ps-a", "pending", 3, now.Add(-2*time.Hour), nil, "timeout", nil).
			AddRow("b", "t2", "offers", "ps-b", "pending", 0, now.Add(-time.Hour), done, nil, "ent"))

	jobs, err := repo.ListPending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
	require.NotNil(t, jobs[0].Error)
	assert.Equal(t, "timeout", *jobs[0].Error)
	require.NotNil(t, jobs[1].EntityID)
	assert.Equal(t, "ent", *jobs[1].EntityID)
}

func TestExportJobRepo_HasPending(t *testing.T) {
	repo, mock := newTestExportJobRepo(t, time.Now())

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("t1", "offers").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasPending(context.Background(), "t1", "offers")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExportJobRepo_GetByID_NotFound(t *testing.T) {
	repo, mock := newTestExportJobRepo(t, time.Now())

	mock.ExpectQuery(`FROM export_jobs WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(exportJobCols))

	_, err := repo.GetByID(context.Background(), "nope")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestExportJobRepo_UpdatesArePendingGuarded(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	repo, mock := newTestExportJobRepo(t, now)
	ctx := context.Background()

	mock.ExpectExec(`SET attempts = attempts \+ 1\s+WHERE id = \$1 AND status = 'pending'`).
		WithArgs("j").WillReturnResult(sqlmock.NewResult(0, 1))
	changed, err := repo.IncrementAttempts(ctx, "j")
	require.NoError(t, err)
	assert.True(t, changed)

	mock.ExpectExec(`SET error = \$2\s+WHERE id = \$1 AND status = 'pending'`).
		WithArgs("j", "rate limited").WillReturnResult(sqlmock.NewResult(0, 1))
	changed, err = repo.RecordError(ctx, "j", "rate limited")
	require.NoError(t, err)
	assert.True(t, changed)

	mock.ExpectExec(`SET status = 'completed'.*WHERE id = \$1 AND status = 'pending'`).
		WithArgs("j", "entity-7", now).WillReturnResult(sqlmock.NewResult(0, 1))
	changed, err = repo.Complete(ctx, core.CompleteExportJobParams{ID: "j", EntityID: "entity-7"})
	require.NoError(t, err)
	assert.True(t, changed)

	// Already terminal: no row matches.
	mock.ExpectExec(`SET status = 'failed'.*WHERE id = \$1 AND status = 'pending'`).
		WithArgs("j", model.ExportErrExpired, now).WillReturnResult(sqlmock.NewResult(0, 0))
	changed, err = repo.Fail(ctx, core.FailExportJobParams{ID: "j", Reason: model.ExportErrExpired, CompletedAt: now})
	require.NoError(t, err)
	assert.False(t, changed)
}

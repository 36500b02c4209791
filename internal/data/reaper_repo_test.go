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
)

func TestReaperRepo_DeleteOldExportJobs(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := NewReaperRepoWithTimeProvider(db, NewFixedTimeProvider(now))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pg_try_advisory_xact_lock`).
		WithArgs(int32(2000), int32(1)).
		WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(true))
	mock.ExpectExec(`DELETE FROM export_jobs`).
		WithArgs("completed", now.Add(-7*24*time.Hour), 100).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	n, err := repo.DeleteOldExportJobs(context.Background(), core.DeleteOldExportJobsParams{
		Status:    model.ExportJobStatusCompleted,
		MaxAge:    7 * 24 * time.Hour,
		BatchSize: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestReaperRepo_LockHeldElsewhereDeletesNothing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReaperRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pg_try_advisory_xact_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(false))
	mock.ExpectCommit()

	n, err := repo.DeleteOldSnapshots(context.Background(), time.Hour, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReaperRepo_RejectsPendingAndBadBatches(t *testing.T) {
	repo := NewReaperRepo(nil)
	ctx := context.Background()

	_, err := repo.DeleteOldExportJobs(ctx, core.DeleteOldExportJobsParams{
		Status: model.ExportJobStatusPending, MaxAge: time.Hour, BatchSize: 10,
	})
	require.Error(t, err)

	_, err = repo.DeleteOldExportJobs(ctx, core.DeleteOldExportJobsParams{
		Status: model.ExportJobStatusFailed, MaxAge: time.Hour,
	})
	require.Error(t, err)

	_, err = repo.DeleteOldSnapshots(ctx, 0, 10)
	require.Error(t, err)
}
